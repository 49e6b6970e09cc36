// Package store archives report requests and generated documents in SQLite
// so a report can be regenerated from its original inputs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/patient"
	"github.com/joelkehle/otreport/internal/report"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrInvalidSessionID = errors.New("session id must be a UUID")
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	patient    TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_inputs (
	session_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (session_id, instrument)
);

CREATE TABLE IF NOT EXISTS documents (
	session_id TEXT NOT NULL,
	revision   INTEGER NOT NULL,
	document   TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	PRIMARY KEY (session_id, revision)
);
`

// Session is an archived report request.
type Session struct {
	ID        string
	Patient   patient.Input
	Texts     map[extract.Instrument]string
	CreatedAt time.Time
}

// DocumentRecord is one stored rendering of a session.
type DocumentRecord struct {
	SessionID string
	Revision  int
	Document  report.Document
	Metadata  json.RawMessage
	CreatedAt time.Time
}

type SessionSummary struct {
	ID          string    `json:"session_id"`
	PatientName string    `json:"patient_name"`
	CreatedAt   time.Time `json:"created_at"`
	Revisions   int       `json:"revisions"`
}

type SQLiteStore struct {
	db    *sqlx.DB
	clock func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, clock: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidateSessionID accepts the empty ID, which SaveRequest assigns, and any
// UUID.
func ValidateSessionID(id string) error {
	if id == "" {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// SaveRequest archives the inputs of a session, replacing any earlier inputs
// stored under the same ID. An empty ID is assigned.
func (s *SQLiteStore) SaveRequest(ctx context.Context, sess Session) (string, error) {
	if err := ValidateSessionID(sess.ID); err != nil {
		return "", err
	}
	if sess.ID == "" {
		sess.ID = NewSessionID()
	}
	patientJSON, err := json.Marshal(sess.Patient)
	if err != nil {
		return "", err
	}
	created := sess.CreatedAt
	if created.IsZero() {
		created = s.clock()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO sessions (session_id, patient, created_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET patient = excluded.patient`,
		sess.ID, string(patientJSON), created.UTC().Format(time.RFC3339Nano)); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_inputs WHERE session_id = ?`, sess.ID); err != nil {
		return "", fmt.Errorf("clear inputs: %w", err)
	}
	for inst, body := range sess.Texts {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO session_inputs (session_id, instrument, body) VALUES (:session_id, :instrument, :body)`,
			map[string]any{"session_id": sess.ID, "instrument": string(inst), "body": body}); err != nil {
			return "", fmt.Errorf("save input %s: %w", inst, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return sess.ID, nil
}

type sessionRow struct {
	ID        string `db:"session_id"`
	Patient   string `db:"patient"`
	CreatedAt string `db:"created_at"`
}

type inputRow struct {
	Instrument string `db:"instrument"`
	Body       string `db:"body"`
}

func (s *SQLiteStore) LoadRequest(ctx context.Context, id string) (Session, error) {
	var row sessionRow
	if err := s.db.GetContext(ctx, &row, `SELECT session_id, patient, created_at FROM sessions WHERE session_id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return Session{}, err
	}
	sess := Session{ID: row.ID, Texts: map[extract.Instrument]string{}}
	if err := json.Unmarshal([]byte(row.Patient), &sess.Patient); err != nil {
		return Session{}, fmt.Errorf("decode patient: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, row.CreatedAt)

	var inputs []inputRow
	if err := s.db.SelectContext(ctx, &inputs, `SELECT instrument, body FROM session_inputs WHERE session_id = ? ORDER BY instrument`, id); err != nil {
		return Session{}, err
	}
	for _, in := range inputs {
		inst, err := extract.ParseInstrument(in.Instrument)
		if err != nil {
			continue
		}
		sess.Texts[inst] = in.Body
	}
	return sess, nil
}

// SaveDocument stores a new revision of the session's document and returns
// its revision number.
func (s *SQLiteStore) SaveDocument(ctx context.Context, sessionID string, doc report.Document, metadata any) (int, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode document: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	var revision int
	if err := tx.GetContext(ctx, &revision, `SELECT COALESCE(MAX(revision), 0) + 1 FROM documents WHERE session_id = ?`, sessionID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents (session_id, revision, document, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, revision, string(docJSON), string(metaJSON), s.clock().UTC().Format(time.RFC3339Nano)); err != nil {
		return 0, fmt.Errorf("save document: %w", err)
	}
	return revision, tx.Commit()
}

type documentRow struct {
	SessionID string `db:"session_id"`
	Revision  int    `db:"revision"`
	Document  string `db:"document"`
	Metadata  string `db:"metadata"`
	CreatedAt string `db:"created_at"`
}

// LatestDocument returns the highest revision stored for the session.
func (s *SQLiteStore) LatestDocument(ctx context.Context, sessionID string) (DocumentRecord, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row, `SELECT session_id, revision, document, metadata, created_at
		FROM documents WHERE session_id = ? ORDER BY revision DESC LIMIT 1`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentRecord{}, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
		}
		return DocumentRecord{}, err
	}
	rec := DocumentRecord{SessionID: row.SessionID, Revision: row.Revision, Metadata: json.RawMessage(row.Metadata)}
	if err := json.Unmarshal([]byte(row.Document), &rec.Document); err != nil {
		return DocumentRecord{}, fmt.Errorf("decode document: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, row.CreatedAt)
	return rec, nil
}

type summaryRow struct {
	ID        string `db:"session_id"`
	Patient   string `db:"patient"`
	CreatedAt string `db:"created_at"`
	Revisions int    `db:"revisions"`
}

// ListSessions returns the most recent sessions first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []summaryRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT s.session_id, s.patient, s.created_at, COUNT(d.revision) AS revisions
		FROM sessions s LEFT JOIN documents d ON d.session_id = s.session_id
		GROUP BY s.session_id ORDER BY s.created_at DESC, s.session_id LIMIT ?`, limit); err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(rows))
	for _, r := range rows {
		var in patient.Input
		_ = json.Unmarshal([]byte(r.Patient), &in)
		created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
		out = append(out, SessionSummary{ID: r.ID, PatientName: in.Name, CreatedAt: created, Revisions: r.Revisions})
	}
	return out, nil
}
