// Package pipeline converts stored raw onboarding answers into durable
// domain records, exactly once per answer.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/patabrava/nality-sub002/internal/extract"
	"github.com/patabrava/nality-sub002/internal/model"
	"github.com/patabrava/nality-sub002/pkg/splitter"
)

// minAnswerChars is the shortest trimmed answer worth converting.
const minAnswerChars = 3

// Store is the persistence surface the converter needs.
type Store interface {
	ListAnswers(ctx context.Context, userID string) ([]model.OnboardingAnswer, error)
	MarkAnswerExtracted(ctx context.Context, answerID string, dest model.Destination, at time.Time) error
	UpdateUserIdentity(ctx context.Context, userID string, id model.ExtractedIdentity, birth model.ExtractedBirthData) error
	AppendProfileEntry(ctx context.Context, e model.ProfileEntry) error
	CreateLifeEvents(ctx context.Context, events []model.LifeEvent) error
}

// ConvertResult summarizes one conversion batch.
type ConvertResult struct {
	UsersUpdated   bool     `json:"usersUpdated"`
	ProfileUpdated bool     `json:"profileUpdated"`
	EventsCreated  int      `json:"eventsCreated"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors"`
}

// Converter walks a user's unconverted answers through the splitter
// collaborator and writes the results to their destinations. Concurrent
// calls for the same user collapse into one execution.
type Converter struct {
	store    Store
	splitter splitter.Client
	group    singleflight.Group
}

// NewConverter creates a Converter.
func NewConverter(st Store, sp splitter.Client) *Converter {
	return &Converter{store: st, splitter: sp}
}

// Convert processes every not-yet-extracted answer of the user. Per-answer
// collaborator failures are collected in the result and do not abort the
// batch; only the initial fetch is fatal. Answers already marked extracted
// are never reprocessed.
func (c *Converter) Convert(ctx context.Context, userID string) (*ConvertResult, error) {
	v, err, _ := c.group.Do(userID, func() (any, error) {
		return c.convert(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ConvertResult), nil
}

func (c *Converter) convert(ctx context.Context, userID string) (res *ConvertResult, err error) {
	res = &ConvertResult{Errors: []string{}}

	defer func() {
		if r := recover(); r != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("conversion panic: %v", r))
			err = nil
		}
	}()

	answers, err := c.store.ListAnswers(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: list answers for %s", userID)
	}

	for _, a := range answers {
		if a.Extracted {
			res.Skipped++
			continue
		}
		if len([]rune(strings.TrimSpace(a.AnswerText))) < minAnswerChars {
			res.Skipped++
			continue
		}

		resp, splitErr := c.splitter.Split(ctx, splitter.SplitRequest{
			Content: a.AnswerText,
			Source:  "onboarding",
			Topic:   a.QuestionTopic,
			UserID:  userID,
		})
		if splitErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("answer %s: %v", a.ID, splitErr))
			continue
		}
		if !resp.Success {
			res.Errors = append(res.Errors, fmt.Sprintf("answer %s: splitter reported failure", a.ID))
			continue
		}

		dest := model.Destination(resp.Destination)
		if dest == "" {
			dest = model.DestinationFor(a.QuestionTopic)
		}

		if writeErr := c.writeDestination(ctx, userID, a, dest, resp, res); writeErr != nil {
			// Leave the answer unmarked so a later run can retry it.
			res.Errors = append(res.Errors, fmt.Sprintf("answer %s: %v", a.ID, writeErr))
			continue
		}

		if markErr := c.store.MarkAnswerExtracted(ctx, a.ID, dest, time.Now().UTC()); markErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("answer %s: %v", a.ID, markErr))
		}
	}

	zap.L().Info("conversion batch done",
		zap.String("user_id", userID),
		zap.Int("answers", len(answers)),
		zap.Int("skipped", res.Skipped),
		zap.Int("events_created", res.EventsCreated),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (c *Converter) writeDestination(ctx context.Context, userID string, a model.OnboardingAnswer, dest model.Destination, resp *splitter.SplitResponse, res *ConvertResult) error {
	switch dest {
	case model.DestinationUsers:
		identity := extract.ExtractUserData(a.AnswerText)
		birth := extract.ExtractBirthData(a.AnswerText)
		if err := c.store.UpdateUserIdentity(ctx, userID, identity, birth); err != nil {
			return err
		}
		res.UsersUpdated = true

	case model.DestinationProfile:
		entry := model.ProfileEntry{
			UserID:  userID,
			Topic:   a.QuestionTopic,
			Content: a.AnswerText,
		}
		if err := c.store.AppendProfileEntry(ctx, entry); err != nil {
			return err
		}
		res.ProfileUpdated = true

	case model.DestinationLifeEvent:
		events := make([]model.LifeEvent, 0, len(resp.Events))
		for _, ev := range resp.Events {
			events = append(events, model.LifeEvent{
				UserID:      userID,
				Title:       ev.Title,
				Description: ev.Description,
				StartDate:   ev.StartDate,
				Category:    ev.Category,
				Confidence:  ev.Confidence,
				Source:      ev.Source,
			})
		}
		if err := c.store.CreateLifeEvents(ctx, events); err != nil {
			return err
		}
		res.EventsCreated += len(events)

	default:
		res.Skipped++
	}
	return nil
}
