package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/patabrava/nality-sub002/internal/db"
	"github.com/patabrava/nality-sub002/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// answerMeta is the JSON document stored in onboarding_answers.answer_json.
type answerMeta struct {
	Extracted   bool              `json:"extracted"`
	ExtractedAt *time.Time        `json:"extracted_at,omitempty"`
	Destination model.Destination `json:"destination,omitempty"`
}

// NewPostgres creates a PostgresStore with a connection pool. Statement
// caching is left to pgx, which prepares by SQL text automatically.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS onboarding_answers (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	question_topic TEXT NOT NULL,
	answer_text    TEXT NOT NULL,
	answer_json    JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_onboarding_answers_user ON onboarding_answers(user_id, created_at);

CREATE TABLE IF NOT EXISTS alt_onboarding_pending (
	token       TEXT PRIMARY KEY,
	email       TEXT NOT NULL,
	payload     JSONB NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	consumed_at TIMESTAMPTZ,
	consumed_by TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alt_pending_email_active ON alt_onboarding_pending(email) WHERE consumed_at IS NULL;

CREATE TABLE IF NOT EXISTS users (
	id                         TEXT PRIMARY KEY,
	email                      TEXT,
	full_name                  TEXT,
	form_of_address            TEXT,
	language_style             TEXT,
	birth_date                 TEXT,
	birth_place                TEXT,
	onboarding_complete        BOOLEAN NOT NULL DEFAULT FALSE,
	onboarding_completed_at    TIMESTAMPTZ,
	onboarding_private_payload JSONB,
	created_at                 TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_profile_entries (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	topic      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_profile_entries_user ON user_profile_entries(user_id);

CREATE TABLE IF NOT EXISTS life_events (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT,
	start_date  TEXT,
	category    TEXT,
	confidence  DOUBLE PRECISION,
	source      TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_life_events_user ON life_events(user_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateAnswer(ctx context.Context, a model.OnboardingAnswer) (*model.OnboardingAnswer, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	metaJSON, err := json.Marshal(answerMeta{Extracted: a.Extracted, ExtractedAt: a.ExtractedAt, Destination: a.Destination})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal answer meta")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO onboarding_answers (id, user_id, question_topic, answer_text, answer_json, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.QuestionTopic, a.AnswerText, metaJSON, a.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert answer")
	}
	return &a, nil
}

func (s *PostgresStore) ListAnswers(ctx context.Context, userID string) ([]model.OnboardingAnswer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, question_topic, answer_text, answer_json, created_at FROM onboarding_answers WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list answers %s", userID)
	}
	defer rows.Close()

	var answers []model.OnboardingAnswer
	for rows.Next() {
		var a model.OnboardingAnswer
		var metaJSON []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionTopic, &a.AnswerText, &metaJSON, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan answer")
		}
		var meta answerMeta
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &meta); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal answer meta %s", a.ID)
			}
		}
		a.Extracted = meta.Extracted
		a.ExtractedAt = meta.ExtractedAt
		a.Destination = meta.Destination
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate answers")
	}
	return answers, nil
}

func (s *PostgresStore) MarkAnswerExtracted(ctx context.Context, answerID string, dest model.Destination, at time.Time) error {
	metaJSON, err := json.Marshal(answerMeta{Extracted: true, ExtractedAt: &at, Destination: dest})
	if err != nil {
		return eris.Wrap(err, "postgres: marshal answer meta")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE onboarding_answers SET answer_json = answer_json || $2::jsonb WHERE id = $1`,
		answerID, metaJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark answer extracted %s", answerID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("answer not found: %s", answerID)
	}
	return nil
}

func (s *PostgresStore) CreatePending(ctx context.Context, rec model.PendingRecord) error {
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pending payload")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO alt_onboarding_pending (token, email, payload, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.Token, rec.Email, payloadJSON, rec.ExpiresAt, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert pending")
}

func (s *PostgresStore) GetPending(ctx context.Context, token string) (*model.PendingRecord, error) {
	var rec model.PendingRecord
	var payloadJSON []byte
	var consumedBy *string

	err := s.pool.QueryRow(ctx,
		`SELECT token, email, payload, expires_at, consumed_at, consumed_by, created_at FROM alt_onboarding_pending WHERE token = $1`,
		token,
	).Scan(&rec.Token, &rec.Email, &payloadJSON, &rec.ExpiresAt, &rec.ConsumedAt, &consumedBy, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pending %s", token)
	}

	if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal pending payload %s", token)
	}
	if consumedBy != nil {
		rec.ConsumedBy = *consumedBy
	}
	return &rec, nil
}

func (s *PostgresStore) ExpireActivePending(ctx context.Context, email string, at time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alt_onboarding_pending SET consumed_at = $1 WHERE email = $2 AND consumed_at IS NULL`,
		at, email,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: expire pending %s", email)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ConsumePending(ctx context.Context, token, userID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alt_onboarding_pending SET consumed_at = $1, consumed_by = $2 WHERE token = $3 AND consumed_at IS NULL`,
		at, userID, token,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: consume pending %s", token)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) UpdateUserIdentity(ctx context.Context, userID string, id model.ExtractedIdentity, birth model.ExtractedBirthData) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, full_name, form_of_address, language_style, birth_date, birth_place, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $7)
		 ON CONFLICT (id) DO UPDATE SET
			full_name       = COALESCE(EXCLUDED.full_name, users.full_name),
			form_of_address = COALESCE(EXCLUDED.form_of_address, users.form_of_address),
			language_style  = COALESCE(EXCLUDED.language_style, users.language_style),
			birth_date      = COALESCE(EXCLUDED.birth_date, users.birth_date),
			birth_place     = COALESCE(EXCLUDED.birth_place, users.birth_place),
			updated_at      = EXCLUDED.updated_at`,
		userID, id.FullName, string(id.FormOfAddress), string(id.LanguageStyle), birth.BirthDate, birth.BirthPlace, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update user identity %s", userID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("user not upserted: %s", userID)
	}
	return nil
}

func (s *PostgresStore) AppendProfileEntry(ctx context.Context, e model.ProfileEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_profile_entries (id, user_id, topic, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.Topic, e.Content, e.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert profile entry")
}

func (s *PostgresStore) CreateLifeEvents(ctx context.Context, events []model.LifeEvent) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		rows = append(rows, []any{ev.ID, ev.UserID, ev.Title, ev.Description, ev.StartDate, ev.Category, ev.Confidence, ev.Source, ev.CreatedAt})
	}

	_, err := db.CopyFrom(ctx, s.pool, "life_events",
		[]string{"id", "user_id", "title", "description", "start_date", "category", "confidence", "source", "created_at"},
		rows,
	)
	return eris.Wrap(err, "postgres: copy life events")
}

func (s *PostgresStore) CompleteUserOnboarding(ctx context.Context, userID string, c model.UserCompletion) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, full_name, form_of_address, onboarding_complete, onboarding_completed_at, onboarding_private_payload, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), TRUE, $4, $5, $6, $6)
		 ON CONFLICT (id) DO UPDATE SET
			full_name                  = COALESCE(EXCLUDED.full_name, users.full_name),
			form_of_address            = COALESCE(EXCLUDED.form_of_address, users.form_of_address),
			onboarding_complete        = TRUE,
			onboarding_completed_at    = EXCLUDED.onboarding_completed_at,
			onboarding_private_payload = EXCLUDED.onboarding_private_payload,
			updated_at                 = EXCLUDED.updated_at`,
		userID, c.FullName, string(c.FormOfAddress), c.CompletedAt, c.PrivatePayload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: complete onboarding %s", userID)
}

// GetUser deliberately never selects onboarding_private_payload: the
// private answer payload has no public read path.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	var email, fullName, formOfAddress, languageStyle, birthDate, birthPlace *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, email, full_name, form_of_address, language_style, birth_date, birth_place, onboarding_complete, onboarding_completed_at, created_at, updated_at
		 FROM users WHERE id = $1`,
		userID,
	).Scan(&u.ID, &email, &fullName, &formOfAddress, &languageStyle, &birthDate, &birthPlace, &u.OnboardingComplete, &u.OnboardingCompletedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get user %s", userID)
	}

	if email != nil {
		u.Email = *email
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if formOfAddress != nil {
		u.FormOfAddress = model.FormOfAddress(*formOfAddress)
	}
	if languageStyle != nil {
		u.LanguageStyle = model.LanguageStyle(*languageStyle)
	}
	if birthDate != nil {
		u.BirthDate = *birthDate
	}
	if birthPlace != nil {
		u.BirthPlace = *birthPlace
	}
	return &u, nil
}
