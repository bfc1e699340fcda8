package splitter

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const splitSystemPrompt = `Du zerlegst freie deutschsprachige Lebensberichte in einzelne Lebensereignisse.
Antworte ausschließlich mit einem JSON-Objekt dieser Form:
{"destination":"users"|"user_profile"|"life_event"|"skip","events":[{"title":"...","description":"...","start_date":"YYYY-MM-DD","category":"...","confidence":0.0,"source":"onboarding"}]}
Wähle "life_event" nur, wenn der Text konkrete Ereignisse enthält. Gib bei reinen Präferenz- oder Identitätsangaben "users" bzw. "user_profile" zurück.`

// anthropicSplitter implements Client by calling Claude directly instead
// of a remote collaborator. Used when no collaborator URL is configured.
type anthropicSplitter struct {
	client sdk.Client
	model  string
}

// NewAnthropicSplitter creates an in-process splitter backed by the
// Anthropic API.
func NewAnthropicSplitter(apiKey, model string) Client {
	return &anthropicSplitter{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (s *anthropicSplitter) Split(ctx context.Context, req SplitRequest) (*SplitResponse, error) {
	prompt := "Thema: " + req.Topic + "\n\nText:\n" + req.Content

	msg, err := s.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(s.model),
		MaxTokens: 1024,
		System:    []sdk.TextBlockParam{{Text: splitSystemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "splitter: anthropic message")
	}

	var text string
	for _, b := range msg.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}

	var result SplitResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &result); err != nil {
		zap.L().Warn("splitter response not parseable",
			zap.String("model", s.model),
			zap.String("topic", req.Topic),
		)
		return nil, eris.Wrap(err, "splitter: unmarshal model reply")
	}
	result.Success = true
	return &result, nil
}

// extractJSON pulls the first JSON object out of a model reply that may
// wrap it in prose or a code fence.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
