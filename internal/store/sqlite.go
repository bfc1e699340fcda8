package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/patabrava/nality-sub002/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and tests; semantics match PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS onboarding_answers (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	question_topic TEXT NOT NULL,
	answer_text    TEXT NOT NULL,
	answer_json    TEXT NOT NULL DEFAULT '{}',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_onboarding_answers_user ON onboarding_answers(user_id, created_at);

CREATE TABLE IF NOT EXISTS alt_onboarding_pending (
	token       TEXT PRIMARY KEY,
	email       TEXT NOT NULL,
	payload     TEXT NOT NULL,
	expires_at  DATETIME NOT NULL,
	consumed_at DATETIME,
	consumed_by TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_alt_pending_email ON alt_onboarding_pending(email);

CREATE TABLE IF NOT EXISTS users (
	id                         TEXT PRIMARY KEY,
	email                      TEXT,
	full_name                  TEXT,
	form_of_address            TEXT,
	language_style             TEXT,
	birth_date                 TEXT,
	birth_place                TEXT,
	onboarding_complete        INTEGER NOT NULL DEFAULT 0,
	onboarding_completed_at    DATETIME,
	onboarding_private_payload TEXT,
	created_at                 DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at                 DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS user_profile_entries (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	topic      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_profile_entries_user ON user_profile_entries(user_id);

CREATE TABLE IF NOT EXISTS life_events (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT,
	start_date  TEXT,
	category    TEXT,
	confidence  REAL,
	source      TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_life_events_user ON life_events(user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAnswer(ctx context.Context, a model.OnboardingAnswer) (*model.OnboardingAnswer, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	metaJSON, err := json.Marshal(answerMeta{Extracted: a.Extracted, ExtractedAt: a.ExtractedAt, Destination: a.Destination})
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal answer meta")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO onboarding_answers (id, user_id, question_topic, answer_text, answer_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.QuestionTopic, a.AnswerText, string(metaJSON), a.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert answer")
	}
	return &a, nil
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, userID string) ([]model.OnboardingAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, question_topic, answer_text, answer_json, created_at FROM onboarding_answers WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list answers %s", userID)
	}
	defer rows.Close()

	var answers []model.OnboardingAnswer
	for rows.Next() {
		var a model.OnboardingAnswer
		var metaJSON string
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionTopic, &a.AnswerText, &metaJSON, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan answer")
		}
		var meta answerMeta
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal answer meta %s", a.ID)
			}
		}
		a.Extracted = meta.Extracted
		a.ExtractedAt = meta.ExtractedAt
		a.Destination = meta.Destination
		answers = append(answers, a)
	}
	return answers, eris.Wrap(rows.Err(), "sqlite: iterate answers")
}

func (s *SQLiteStore) MarkAnswerExtracted(ctx context.Context, answerID string, dest model.Destination, at time.Time) error {
	metaJSON, err := json.Marshal(answerMeta{Extracted: true, ExtractedAt: &at, Destination: dest})
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal answer meta")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE onboarding_answers SET answer_json = ? WHERE id = ?`,
		string(metaJSON), answerID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark answer extracted %s", answerID)
	}
	return checkRowsAffected(res, "answer", answerID)
}

func (s *SQLiteStore) CreatePending(ctx context.Context, rec model.PendingRecord) error {
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pending payload")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alt_onboarding_pending (token, email, payload, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Token, rec.Email, string(payloadJSON), rec.ExpiresAt, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert pending")
}

func (s *SQLiteStore) GetPending(ctx context.Context, token string) (*model.PendingRecord, error) {
	var rec model.PendingRecord
	var payloadJSON string
	var consumedBy sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT token, email, payload, expires_at, consumed_at, consumed_by, created_at FROM alt_onboarding_pending WHERE token = ?`,
		token,
	).Scan(&rec.Token, &rec.Email, &payloadJSON, &rec.ExpiresAt, &rec.ConsumedAt, &consumedBy, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pending %s", token)
	}

	if err := json.Unmarshal([]byte(payloadJSON), &rec.Payload); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal pending payload %s", token)
	}
	if consumedBy.Valid {
		rec.ConsumedBy = consumedBy.String
	}
	return &rec, nil
}

func (s *SQLiteStore) ExpireActivePending(ctx context.Context, email string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alt_onboarding_pending SET consumed_at = ? WHERE email = ? AND consumed_at IS NULL`,
		at, email,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: expire pending %s", email)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: expire pending rows")
}

func (s *SQLiteStore) ConsumePending(ctx context.Context, token, userID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alt_onboarding_pending SET consumed_at = ?, consumed_by = ? WHERE token = ? AND consumed_at IS NULL`,
		at, userID, token,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: consume pending %s", token)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: consume pending rows")
	}
	return n == 1, nil
}

func (s *SQLiteStore) UpdateUserIdentity(ctx context.Context, userID string, id model.ExtractedIdentity, birth model.ExtractedBirthData) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, full_name, form_of_address, language_style, birth_date, birth_place, created_at, updated_at)
		 VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			full_name       = COALESCE(excluded.full_name, users.full_name),
			form_of_address = COALESCE(excluded.form_of_address, users.form_of_address),
			language_style  = COALESCE(excluded.language_style, users.language_style),
			birth_date      = COALESCE(excluded.birth_date, users.birth_date),
			birth_place     = COALESCE(excluded.birth_place, users.birth_place),
			updated_at      = excluded.updated_at`,
		userID, id.FullName, string(id.FormOfAddress), string(id.LanguageStyle), birth.BirthDate, birth.BirthPlace, now, now,
	)
	return eris.Wrapf(err, "sqlite: update user identity %s", userID)
}

func (s *SQLiteStore) AppendProfileEntry(ctx context.Context, e model.ProfileEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profile_entries (id, user_id, topic, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Topic, e.Content, e.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert profile entry")
}

func (s *SQLiteStore) CreateLifeEvents(ctx context.Context, events []model.LifeEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin life events")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO life_events (id, user_id, title, description, start_date, category, confidence, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.UserID, ev.Title, ev.Description, ev.StartDate, ev.Category, ev.Confidence, ev.Source, ev.CreatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert life event")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit life events")
}

func (s *SQLiteStore) CompleteUserOnboarding(ctx context.Context, userID string, c model.UserCompletion) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, full_name, form_of_address, onboarding_complete, onboarding_completed_at, onboarding_private_payload, created_at, updated_at)
		 VALUES (?, NULLIF(?, ''), NULLIF(?, ''), 1, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			full_name                  = COALESCE(excluded.full_name, users.full_name),
			form_of_address            = COALESCE(excluded.form_of_address, users.form_of_address),
			onboarding_complete        = 1,
			onboarding_completed_at    = excluded.onboarding_completed_at,
			onboarding_private_payload = excluded.onboarding_private_payload,
			updated_at                 = excluded.updated_at`,
		userID, c.FullName, string(c.FormOfAddress), c.CompletedAt, string(c.PrivatePayload), now, now,
	)
	return eris.Wrapf(err, "sqlite: complete onboarding %s", userID)
}

// GetUser deliberately never selects onboarding_private_payload.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	var email, fullName, formOfAddress, languageStyle, birthDate, birthPlace sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, form_of_address, language_style, birth_date, birth_place, onboarding_complete, onboarding_completed_at, created_at, updated_at
		 FROM users WHERE id = ?`,
		userID,
	).Scan(&u.ID, &email, &fullName, &formOfAddress, &languageStyle, &birthDate, &birthPlace, &u.OnboardingComplete, &u.OnboardingCompletedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get user %s", userID)
	}

	u.Email = email.String
	u.FullName = fullName.String
	u.FormOfAddress = model.FormOfAddress(formOfAddress.String)
	u.LanguageStyle = model.LanguageStyle(languageStyle.String)
	u.BirthDate = birthDate.String
	u.BirthPlace = birthPlace.String
	return &u, nil
}

// checkRowsAffected converts a zero-row update into a not-found error.
func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
