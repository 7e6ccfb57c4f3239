package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/smarthire/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a candidate or interview does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadySubmitted means a write targeted an interview that is no longer
// pending.
var ErrAlreadySubmitted = errors.New("interview already submitted")

const schemaVersion = "1"

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candidates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		skills TEXT NOT NULL DEFAULT '[]',
		resume_text TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS asked_questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		candidate_id TEXT NOT NULL,
		question TEXT NOT NULL,
		asked_at DATETIME NOT NULL,
		UNIQUE (candidate_id, question),
		FOREIGN KEY (candidate_id) REFERENCES candidates(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS interviews (
		id TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		started_at DATETIME NOT NULL,
		submitted_at DATETIME,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		technical REAL NOT NULL DEFAULT 0,
		communication REAL NOT NULL DEFAULT 0,
		overall REAL NOT NULL DEFAULT 0,
		result TEXT NOT NULL DEFAULT 'pending',
		feedback TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (candidate_id) REFERENCES candidates(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS interview_questions (
		interview_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		answer TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL DEFAULT 0,
		technical_score REAL NOT NULL DEFAULT 0,
		communication_score REAL NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (interview_id, position),
		FOREIGN KEY (interview_id) REFERENCES interviews(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.SetMetadata(context.Background(), "schema_version", schemaVersion)
}

// CreateCandidate inserts c. ID and CreatedAt must be set by the caller.
func (s *Store) CreateCandidate(ctx context.Context, c *model.Candidate) error {
	skills, err := encodeSkills(c.Skills)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO candidates (id, name, email, skills, resume_text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, skills, c.ResumeText, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

// GetCandidate returns a candidate by ID.
func (s *Store) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	var c model.Candidate
	var skills string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, skills, resume_text, created_at FROM candidates WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &skills, &c.ResumeText, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if c.Skills, err = decodeSkills(skills); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCandidateByEmail returns the candidate registered with email.
func (s *Store) GetCandidateByEmail(ctx context.Context, email string) (*model.Candidate, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM candidates WHERE email = ?`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("candidate with email %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.GetCandidate(ctx, id)
}

// ListCandidates returns all candidates, oldest first.
func (s *Store) ListCandidates(ctx context.Context) ([]model.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, skills, resume_text, created_at FROM candidates ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candidates []model.Candidate
	for rows.Next() {
		var c model.Candidate
		var skills string
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &skills, &c.ResumeText, &c.CreatedAt); err != nil {
			return nil, err
		}
		if c.Skills, err = decodeSkills(skills); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// UpdateResume replaces the résumé text and skills of a candidate.
func (s *Store) UpdateResume(ctx context.Context, id, text string, skills []string) error {
	encoded, err := encodeSkills(skills)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET resume_text = ?, skills = ? WHERE id = ?`, text, encoded, id)
	if err != nil {
		return err
	}
	return expectOne(res, "candidate", id)
}

// DeleteCandidate removes a candidate with its interviews and history.
func (s *Store) DeleteCandidate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candidates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "candidate", id)
}

// UsedQuestions returns every question already asked to the candidate, in
// the order they were recorded.
func (s *Store) UsedQuestions(ctx context.Context, candidateID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question FROM asked_questions WHERE candidate_id = ? ORDER BY id`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var used []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		used = append(used, q)
	}
	return used, rows.Err()
}

// AddUsedQuestions records questions as asked. Already recorded questions
// are ignored.
func (s *Store) AddUsedQuestions(ctx context.Context, candidateID string, questions []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertAsked(ctx, tx, candidateID, questions); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAsked(ctx context.Context, tx *sql.Tx, candidateID string, questions []string) error {
	now := time.Now()
	for _, q := range questions {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO asked_questions (candidate_id, question, asked_at) VALUES (?, ?, ?)`,
			candidateID, q, now,
		); err != nil {
			return fmt.Errorf("record asked question: %w", err)
		}
	}
	return nil
}

// CreateInterview inserts an interview with its questions. With recordAsked
// the question texts are added to the candidate's asked questions in the
// same transaction.
func (s *Store) CreateInterview(ctx context.Context, iv *model.Interview, recordAsked bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if recordAsked {
		texts := make([]string, len(iv.Questions))
		for i, q := range iv.Questions {
			texts[i] = q.Text
		}
		if err := insertAsked(ctx, tx, iv.CandidateID, texts); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interviews (id, candidate_id, type, status, started_at, result) VALUES (?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.CandidateID, iv.Type, iv.Status, iv.StartedAt, iv.Result,
	)
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}

	for i, q := range iv.Questions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO interview_questions (interview_id, position, text, answer, score) VALUES (?, ?, ?, ?, ?)`,
			iv.ID, i, q.Text, q.Answer, q.Score,
		)
		if err != nil {
			return fmt.Errorf("insert interview question: %w", err)
		}
	}

	return tx.Commit()
}

// GetInterview returns an interview with its questions and scores.
func (s *Store) GetInterview(ctx context.Context, id string) (*model.Interview, error) {
	iv, err := scanInterview(s.db.QueryRowContext(ctx, interviewSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interview %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadQuestions(ctx, iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// ListInterviews returns interviews, newest first. An empty candidateID
// lists every interview.
func (s *Store) ListInterviews(ctx context.Context, candidateID string) ([]model.Interview, error) {
	query := interviewSelect
	var args []any
	if candidateID != "" {
		query += ` WHERE candidate_id = ?`
		args = append(args, candidateID)
	}
	query += ` ORDER BY started_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var interviews []model.Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		interviews = append(interviews, *iv)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Questions are loaded after the cursor is closed; :memory: stores run on
	// a single connection.
	for i := range interviews {
		if err := s.loadQuestions(ctx, &interviews[i]); err != nil {
			return nil, err
		}
	}
	return interviews, nil
}

// SaveAnswer stores the answer for the question at position index. Only
// pending interviews accept answers.
func (s *Store) SaveAnswer(ctx context.Context, interviewID string, index int, answer string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interview_questions SET answer = ?
		 WHERE interview_id = ? AND position = ?
		   AND EXISTS (SELECT 1 FROM interviews WHERE id = ? AND status = ?)`,
		answer, interviewID, index, interviewID, model.StatusPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notPending(ctx, s.db, interviewID, fmt.Sprintf("interview question %s/%d", interviewID, index))
	}
	return nil
}

// SaveEvaluation persists scores, feedback and the verdict of a submitted
// interview, including per-question scores.
func (s *Store) SaveEvaluation(ctx context.Context, iv *model.Interview) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var submitted any
	if iv.SubmittedAt != nil {
		submitted = *iv.SubmittedAt
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE interviews SET status = ?, submitted_at = ?, duration_seconds = ?,
		 technical = ?, communication = ?, overall = ?, result = ?, feedback = ?
		 WHERE id = ? AND status = ?`,
		iv.Status, submitted, iv.DurationSeconds,
		iv.Scores.Technical, iv.Scores.Communication, iv.Scores.Overall, iv.Result, iv.Feedback,
		iv.ID, model.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("update interview: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notPending(ctx, tx, iv.ID, "interview "+iv.ID)
	}

	for i, q := range iv.Questions {
		var qs model.QuestionScore
		if i < len(iv.Scores.PerQuestion) {
			qs = iv.Scores.PerQuestion[i]
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE interview_questions SET answer = ?, score = ?, technical_score = ?, communication_score = ?, feedback = ?
			 WHERE interview_id = ? AND position = ?`,
			q.Answer, q.Score, qs.TechnicalScore, qs.CommunicationScore, qs.Feedback, iv.ID, i,
		)
		if err != nil {
			return fmt.Errorf("update interview question %d: %w", i, err)
		}
	}

	return tx.Commit()
}

const interviewSelect = `SELECT id, candidate_id, type, status, started_at, submitted_at, duration_seconds,
	technical, communication, overall, result, feedback FROM interviews`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (*model.Interview, error) {
	var iv model.Interview
	var submitted sql.NullTime
	err := row.Scan(&iv.ID, &iv.CandidateID, &iv.Type, &iv.Status, &iv.StartedAt, &submitted,
		&iv.DurationSeconds, &iv.Scores.Technical, &iv.Scores.Communication, &iv.Scores.Overall,
		&iv.Result, &iv.Feedback)
	if err != nil {
		return nil, err
	}
	if submitted.Valid {
		t := submitted.Time
		iv.SubmittedAt = &t
	}
	return &iv, nil
}

func (s *Store) loadQuestions(ctx context.Context, iv *model.Interview) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text, answer, score, technical_score, communication_score, feedback
		 FROM interview_questions WHERE interview_id = ? ORDER BY position`, iv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	iv.Questions = []model.Question{}
	var per []model.QuestionScore
	for rows.Next() {
		var q model.Question
		var qs model.QuestionScore
		if err := rows.Scan(&q.Text, &q.Answer, &q.Score, &qs.TechnicalScore, &qs.CommunicationScore, &qs.Feedback); err != nil {
			return err
		}
		iv.Questions = append(iv.Questions, q)
		per = append(per, qs)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if iv.Status == model.StatusSubmitted {
		iv.Scores.PerQuestion = per
	}
	return nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// notPending explains a conditional update on interviewID that matched no
// rows: ErrAlreadySubmitted when the interview exists but is no longer
// pending, ErrNotFound otherwise.
func notPending(ctx context.Context, q rowQuerier, interviewID, what string) error {
	var status model.InterviewStatus
	err := q.QueryRowContext(ctx, `SELECT status FROM interviews WHERE id = ?`, interviewID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case err != nil:
		return err
	case status != model.StatusPending:
		return fmt.Errorf("%s: %w", what, ErrAlreadySubmitted)
	default:
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func encodeSkills(skills []string) (string, error) {
	if skills == nil {
		skills = []string{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("encode skills: %w", err)
	}
	return string(b), nil
}

func decodeSkills(raw string) ([]string, error) {
	skills := []string{}
	if strings.TrimSpace(raw) == "" {
		return skills, nil
	}
	if err := json.Unmarshal([]byte(raw), &skills); err != nil {
		return nil, fmt.Errorf("decode skills: %w", err)
	}
	return skills, nil
}
