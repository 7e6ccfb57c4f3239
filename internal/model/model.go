package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInput marks caller misuse: malformed pairs, unknown interview
// types, out-of-range indexes.
var ErrInvalidInput = errors.New("invalid input")

// InterviewType selects which pool the selector draws from.
type InterviewType string

const (
	// InterviewTechnical draws from skill-matched bank categories.
	InterviewTechnical InterviewType = "technical"
	// InterviewManagement draws from the flat behavioral pool.
	InterviewManagement InterviewType = "management"
)

// ParseInterviewType normalizes s and rejects unknown types.
func ParseInterviewType(s string) (InterviewType, error) {
	switch t := InterviewType(strings.ToLower(strings.TrimSpace(s))); t {
	case InterviewTechnical, InterviewManagement:
		return t, nil
	case "":
		return InterviewTechnical, nil
	default:
		return "", fmt.Errorf("%w: unknown interview type %q", ErrInvalidInput, s)
	}
}

// InterviewStatus represents the lifecycle of an interview.
type InterviewStatus string

const (
	StatusPending   InterviewStatus = "pending"
	StatusSubmitted InterviewStatus = "submitted"
)

// Verdict is the hiring outcome derived from the overall score.
type Verdict string

const (
	VerdictPending  Verdict = "pending"
	VerdictSelected Verdict = "selected"
	VerdictRejected Verdict = "rejected"
)

// Question is the unit the selector emits and the evaluator enriches.
type Question struct {
	Text   string  `json:"question"`
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

// QA is a single question/answer pair handed to the evaluator.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionScore holds the evaluation of one answer.
type QuestionScore struct {
	TechnicalScore     float64 `json:"technical_score"`
	CommunicationScore float64 `json:"communication_score"`
	Feedback           string  `json:"feedback"`
}

// ScoreResult holds per-question and aggregate scores, all in [0, 100].
type ScoreResult struct {
	Technical     float64         `json:"technical"`
	Communication float64         `json:"communication"`
	Overall       float64         `json:"overall"`
	PerQuestion   []QuestionScore `json:"per_question"`
}

// Candidate is a person being interviewed.
type Candidate struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Skills     []string  `json:"skills"`
	ResumeText string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Interview is one session of questions for a candidate.
type Interview struct {
	ID              string          `json:"id"`
	CandidateID     string          `json:"candidate_id"`
	Type            InterviewType   `json:"type"`
	Status          InterviewStatus `json:"status"`
	StartedAt       time.Time       `json:"started_at"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	Questions       []Question      `json:"questions"`
	Scores          ScoreResult     `json:"scores"`
	Result          Verdict         `json:"result"`
	Feedback        string          `json:"feedback"`
	// TimeLimitSeconds is the suggested answering time; it is derived from
	// the question count and not persisted.
	TimeLimitSeconds int `json:"time_limit_seconds"`
}

// SecondsPerQuestion is the answering time allowed per question.
const SecondsPerQuestion = 180

// SetTimeLimit derives TimeLimitSeconds from the question count.
func (iv *Interview) SetTimeLimit() {
	iv.TimeLimitSeconds = SecondsPerQuestion * len(iv.Questions)
}

// Stats summarizes interview activity.
type Stats struct {
	Candidates     int     `json:"candidates"`
	Interviews     int     `json:"interviews"`
	AverageOverall float64 `json:"average_overall"`
}

// QAPairs returns the interview's questions as evaluator input.
func (iv *Interview) QAPairs() []QA {
	pairs := make([]QA, len(iv.Questions))
	for i, q := range iv.Questions {
		pairs[i] = QA{Question: q.Text, Answer: q.Answer}
	}
	return pairs
}

// Texts returns the question texts in order.
func (iv *Interview) Texts() []string {
	texts := make([]string, len(iv.Questions))
	for i, q := range iv.Questions {
		texts[i] = q.Text
	}
	return texts
}

// AppConfig holds runtime interview parameters set via CLI flags.
type AppConfig struct {
	DefaultQuestionCount int
	PassThreshold        float64
	Lang                 string
}
