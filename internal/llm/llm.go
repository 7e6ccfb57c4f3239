// Package llm adapts external text-generation services to the interview
// engine. Callers branch only on success or failure, never on which backend
// is configured.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pavelanni/smarthire/internal/llm/prompts"
	"github.com/pavelanni/smarthire/internal/model"
)

var (
	// ErrUnavailable means the service is not configured or the call failed
	// (network error, timeout, cancellation).
	ErrUnavailable = errors.New("generative service unavailable")
	// ErrMalformedResponse means the service answered with something that
	// could not be parsed into the expected shape.
	ErrMalformedResponse = errors.New("malformed generative service response")
)

// DefaultTimeout bounds a single outbound call.
const DefaultTimeout = 30 * time.Second

const defaultMaxLogLength = 200

// QuestionRequest asks the service for fresh interview questions.
type QuestionRequest struct {
	Skills  []string
	Type    model.InterviewType
	Count   int
	Exclude []string
}

// ItemEvaluation is the service's verdict on one answer. Index is 1-based.
type ItemEvaluation struct {
	Index              int
	TechnicalScore     float64
	CommunicationScore float64
	Feedback           string
}

// BatchEvaluation is the structured result of EvaluateBatch.
type BatchEvaluation struct {
	Evaluations       []ItemEvaluation
	Strengths         string
	Improvements      string
	RecommendedTopics []string
}

// Find returns the evaluation for the 1-based index, if any.
func (b *BatchEvaluation) Find(index int) (ItemEvaluation, bool) {
	for _, e := range b.Evaluations {
		if e.Index == index {
			return e, true
		}
	}
	return ItemEvaluation{}, false
}

// GenerativeService is the capability the engine depends on.
type GenerativeService interface {
	// Available reports whether calls may succeed. Checked once per
	// Select/Evaluate call; there are no retries.
	Available() bool
	// GenerateQuestions returns up to req.Count new questions.
	GenerateQuestions(ctx context.Context, req QuestionRequest) ([]string, error)
	// EvaluateBatch scores all pairs in one request.
	EvaluateBatch(ctx context.Context, pairs []model.QA) (*BatchEvaluation, error)
}

// ContentGenerator sends one prompt to a backend and returns its raw text.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Service implements GenerativeService over any ContentGenerator.
type Service struct {
	gen       ContentGenerator
	timeout   time.Duration
	maxLogLen int
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout sets the per-call timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxLogLength caps how much of a prompt or response is logged.
func WithMaxLogLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLogLen = n
		}
	}
}

// NewService wraps gen. A nil gen yields a service that is never available.
func NewService(gen ContentGenerator, opts ...Option) *Service {
	s := &Service{gen: gen, timeout: DefaultTimeout, maxLogLen: defaultMaxLogLength}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Available reports whether a backend is configured.
func (s *Service) Available() bool {
	return s != nil && s.gen != nil
}

// GenerateQuestions asks the backend for req.Count questions. The result is
// syntactically validated (non-empty strings) and capped at req.Count.
func (s *Service) GenerateQuestions(ctx context.Context, req QuestionRequest) ([]string, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	if req.Count <= 0 {
		return nil, nil
	}
	prompt, err := prompts.BuildQuestionPrompt(prompts.QuestionData{
		Skills:  req.Skills,
		Type:    string(req.Type),
		Count:   req.Count,
		Exclude: req.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("build question prompt: %w", err)
	}

	raw, err := s.call(ctx, "generate questions", prompt)
	if err != nil {
		return nil, err
	}
	questions, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}
	if len(questions) > req.Count {
		questions = questions[:req.Count]
	}
	return questions, nil
}

// EvaluateBatch sends every pair in a single request and parses the
// structured per-question scores and overall summary.
func (s *Service) EvaluateBatch(ctx context.Context, pairs []model.QA) (*BatchEvaluation, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	items := make([]prompts.QAItem, len(pairs))
	for i, p := range pairs {
		items[i] = prompts.QAItem{Index: i + 1, Question: p.Question, Answer: p.Answer}
	}
	prompt, err := prompts.BuildEvaluationPrompt(items)
	if err != nil {
		return nil, fmt.Errorf("build evaluation prompt: %w", err)
	}

	raw, err := s.call(ctx, "evaluate batch", prompt)
	if err != nil {
		return nil, err
	}
	return parseBatch(raw)
}

func (s *Service) call(ctx context.Context, op, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	slog.Debug("generative request",
		"op", op,
		"model", s.gen.Model(),
		"prompt_length", utf8.RuneCountInString(prompt),
		"prompt_preview", TruncateForLog(prompt, s.maxLogLen),
	)

	start := time.Now()
	raw, err := s.gen.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}

	slog.Debug("generative response",
		"op", op,
		"elapsed", time.Since(start),
		"response_length", utf8.RuneCountInString(raw),
		"response_preview", TruncateForLog(raw, s.maxLogLen),
	)
	return raw, nil
}

// Null is the always-unavailable service used when no backend is configured.
type Null struct{}

func (Null) Available() bool { return false }

func (Null) GenerateQuestions(context.Context, QuestionRequest) ([]string, error) {
	return nil, ErrUnavailable
}

func (Null) EvaluateBatch(context.Context, []model.QA) (*BatchEvaluation, error) {
	return nil, ErrUnavailable
}

// TruncateForLog shortens s to limit runes, appending an ellipsis when cut.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
