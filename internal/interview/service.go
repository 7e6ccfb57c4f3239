// Package interview runs candidate interview sessions on top of the question
// selector and the answer evaluator.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/smarthire/internal/evaluator"
	"github.com/pavelanni/smarthire/internal/model"
	"github.com/pavelanni/smarthire/internal/resume"
	"github.com/pavelanni/smarthire/internal/store"
)

const (
	MinQuestions     = 5
	MaxQuestions     = 15
	DefaultQuestions = 10
	DefaultPassScore = 60.0
)

var (
	// ErrNoSkills means the candidate has no skills to tailor questions to.
	ErrNoSkills = errors.New("candidate has no skills; upload a résumé first")
	// ErrNoQuestions means every selection tier came back empty.
	ErrNoQuestions = errors.New("could not select any questions")
	// ErrAlreadySubmitted means the interview can no longer change.
	ErrAlreadySubmitted = store.ErrAlreadySubmitted
	// ErrDuplicateEmail means another candidate registered the same email.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Repository persists candidates and interviews. CreateInterview with
// recordAsked adds the questions to the repository's own history in the same
// write. SaveAnswer and SaveEvaluation must return ErrAlreadySubmitted once an
// interview is no longer pending.
type Repository interface {
	CreateCandidate(ctx context.Context, c *model.Candidate) error
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	GetCandidateByEmail(ctx context.Context, email string) (*model.Candidate, error)
	ListCandidates(ctx context.Context) ([]model.Candidate, error)
	UpdateResume(ctx context.Context, id, text string, skills []string) error
	DeleteCandidate(ctx context.Context, id string) error
	CreateInterview(ctx context.Context, iv *model.Interview, recordAsked bool) error
	GetInterview(ctx context.Context, id string) (*model.Interview, error)
	ListInterviews(ctx context.Context, candidateID string) ([]model.Interview, error)
	SaveAnswer(ctx context.Context, interviewID string, index int, answer string) error
	SaveEvaluation(ctx context.Context, iv *model.Interview) error
	ExportResults(ctx context.Context) ([]model.CandidateResult, error)
}

// History stores each candidate's exclusion set.
type History interface {
	UsedQuestions(ctx context.Context, candidateID string) ([]string, error)
	AddUsedQuestions(ctx context.Context, candidateID string, questions []string) error
}

// forgetter is implemented by external history backends that do not share
// the repository's cascading deletes.
type forgetter interface {
	Forget(ctx context.Context, candidateID string) error
}

// Selector picks questions.
type Selector interface {
	Select(ctx context.Context, skills []string, typ model.InterviewType, used []string, count int) []string
}

// Evaluator scores answers.
type Evaluator interface {
	Evaluate(ctx context.Context, pairs []model.QA) (model.ScoreResult, string, error)
}

// Service coordinates selection, persistence and evaluation.
type Service struct {
	repo      Repository
	history   History
	// historyInRepo is set while the repository itself keeps the exclusion
	// set, so Start can record questions with the interview in one write.
	historyInRepo bool
	selector  Selector
	evaluator Evaluator
	cfg       model.AppConfig

	now   func() time.Time
	newID func() string

	// startMu serializes Start per candidate so the read-select-record cycle
	// on the exclusion set is atomic within this process.
	startMu sync.Map
}

// Option configures a Service.
type Option func(*Service)

// WithHistory replaces the repository-backed exclusion set.
func WithHistory(h History) Option {
	return func(s *Service) {
		if h != nil {
			s.history = h
			s.historyInRepo = false
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator sets the identifier source.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// NewService creates a Service. When repo also implements History it is used
// for the exclusion set unless WithHistory overrides it.
func NewService(repo Repository, sel Selector, ev Evaluator, cfg model.AppConfig, opts ...Option) *Service {
	if cfg.DefaultQuestionCount == 0 {
		cfg.DefaultQuestionCount = DefaultQuestions
	}
	if cfg.PassThreshold == 0 {
		cfg.PassThreshold = DefaultPassScore
	}
	s := &Service{
		repo:      repo,
		selector:  sel,
		evaluator: ev,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	if h, ok := repo.(History); ok {
		s.history = h
		s.historyInRepo = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClampCount bounds a requested question count to [MinQuestions,
// MaxQuestions]. Non-positive values select def.
func ClampCount(n, def int) int {
	if n <= 0 {
		n = def
	}
	return max(MinQuestions, min(MaxQuestions, n))
}

// RegisterCandidate creates a candidate. Skills are taken from skills when
// given, otherwise extracted from resumeText.
func (s *Service) RegisterCandidate(ctx context.Context, name, email string, skills []string, resumeText string) (*model.Candidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalidInput)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("%w: invalid email %q", model.ErrInvalidInput, email)
		}
		_, err := s.repo.GetCandidateByEmail(ctx, email)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	resumeText = strings.TrimSpace(resumeText)
	skills = resume.NormalizeSkills(skills)
	if len(skills) == 0 && resumeText != "" {
		skills = resume.ExtractSkills(resumeText)
	}

	c := &model.Candidate{
		ID:         s.newID(),
		Name:       name,
		Email:      email,
		Skills:     skills,
		ResumeText: resumeText,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateCandidate(ctx, c); err != nil {
		return nil, err
	}
	slog.Info("candidate registered", "id", c.ID, "skills", len(skills))
	return c, nil
}

// Candidate returns a candidate by ID.
func (s *Service) Candidate(ctx context.Context, id string) (*model.Candidate, error) {
	return s.repo.GetCandidate(ctx, id)
}

// Candidates returns every candidate.
func (s *Service) Candidates(ctx context.Context) ([]model.Candidate, error) {
	return s.repo.ListCandidates(ctx)
}

// DeleteCandidate removes a candidate and everything recorded for them.
func (s *Service) DeleteCandidate(ctx context.Context, id string) error {
	if err := s.repo.DeleteCandidate(ctx, id); err != nil {
		return err
	}
	if f, ok := s.history.(forgetter); ok {
		if err := f.Forget(ctx, id); err != nil {
			slog.Warn("could not clear question history", "candidate", id, "error", err)
		}
	}
	slog.Info("candidate deleted", "id", id)
	return nil
}

// AttachResume stores résumé text and replaces the candidate's skills with
// those found in it.
func (s *Service) AttachResume(ctx context.Context, id, text string) (*model.Candidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: résumé text is empty", model.ErrInvalidInput)
	}
	skills := resume.ExtractSkills(text)
	if err := s.repo.UpdateResume(ctx, id, text, skills); err != nil {
		return nil, err
	}
	slog.Info("résumé attached", "candidate", id, "skills", len(skills))
	return s.repo.GetCandidate(ctx, id)
}

// Start selects questions for the candidate, records them as used and
// persists a new pending interview. A count of zero uses the configured
// default; other values are clamped.
func (s *Service) Start(ctx context.Context, candidateID string, typ model.InterviewType, count int) (*model.Interview, error) {
	typ, err := model.ParseInterviewType(string(typ))
	if err != nil {
		return nil, err
	}
	count = ClampCount(count, s.cfg.DefaultQuestionCount)

	c, err := s.repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if len(c.Skills) == 0 {
		return nil, ErrNoSkills
	}

	mu := s.candidateLock(candidateID)
	mu.Lock()
	defer mu.Unlock()

	used, err := s.history.UsedQuestions(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load question history: %w", err)
	}

	texts := s.selector.Select(ctx, c.Skills, typ, used, count)
	if len(texts) == 0 {
		slog.Warn("no questions selected", "candidate", candidateID, "type", typ, "used", len(used))
		return nil, ErrNoQuestions
	}

	// An external history is written first: a failed insert below then costs
	// unused questions, never a repeat.
	if !s.historyInRepo {
		if err := s.history.AddUsedQuestions(ctx, candidateID, texts); err != nil {
			return nil, fmt.Errorf("record question history: %w", err)
		}
	}

	iv := &model.Interview{
		ID:          s.newID(),
		CandidateID: candidateID,
		Type:        typ,
		Status:      model.StatusPending,
		StartedAt:   s.now(),
		Questions:   make([]model.Question, len(texts)),
		Result:      model.VerdictPending,
		Scores:      model.ScoreResult{PerQuestion: []model.QuestionScore{}},
	}
	for i, t := range texts {
		iv.Questions[i] = model.Question{Text: t}
	}
	if err := s.repo.CreateInterview(ctx, iv, s.historyInRepo); err != nil {
		return nil, err
	}
	iv.SetTimeLimit()

	slog.Info("interview started", "id", iv.ID, "candidate", candidateID, "type", typ, "questions", len(texts), "requested", count)
	return iv, nil
}

func (s *Service) candidateLock(id string) *sync.Mutex {
	mu, _ := s.startMu.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Interview returns an interview by ID.
func (s *Service) Interview(ctx context.Context, id string) (*model.Interview, error) {
	iv, err := s.repo.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}
	iv.SetTimeLimit()
	return iv, nil
}

// Interviews lists interviews, optionally for one candidate.
func (s *Service) Interviews(ctx context.Context, candidateID string) ([]model.Interview, error) {
	list, err := s.repo.ListInterviews(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].SetTimeLimit()
	}
	return list, nil
}

// SaveAnswer stores the trimmed answer for the 0-based question index.
func (s *Service) SaveAnswer(ctx context.Context, interviewID string, index int, answer string) error {
	iv, err := s.repo.GetInterview(ctx, interviewID)
	if err != nil {
		return err
	}
	// The store rejects the write too if a submit lands in between.
	if iv.Status == model.StatusSubmitted {
		return ErrAlreadySubmitted
	}
	if index < 0 || index >= len(iv.Questions) {
		return fmt.Errorf("%w: question index %d out of range [0,%d)", model.ErrInvalidInput, index, len(iv.Questions))
	}
	return s.repo.SaveAnswer(ctx, interviewID, index, strings.TrimSpace(answer))
}

// Submit evaluates the answers and stores scores, feedback and the verdict.
// answers, when non-nil, overrides stored answers by position.
func (s *Service) Submit(ctx context.Context, interviewID string, answers map[int]string) (*model.Interview, error) {
	iv, err := s.repo.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if iv.Status == model.StatusSubmitted {
		return nil, ErrAlreadySubmitted
	}
	for i, a := range answers {
		if i < 0 || i >= len(iv.Questions) {
			return nil, fmt.Errorf("%w: question index %d out of range [0,%d)", model.ErrInvalidInput, i, len(iv.Questions))
		}
		iv.Questions[i].Answer = strings.TrimSpace(a)
	}

	scores, feedback, err := s.evaluator.Evaluate(ctx, iv.QAPairs())
	if err != nil {
		return nil, fmt.Errorf("evaluate interview %s: %w", interviewID, err)
	}

	now := s.now()
	iv.SubmittedAt = &now
	iv.DurationSeconds = max(0, int(now.Sub(iv.StartedAt).Seconds()))
	iv.Status = model.StatusSubmitted
	iv.Scores = scores
	iv.Feedback = feedback
	for i := range iv.Questions {
		if i < len(scores.PerQuestion) {
			ps := scores.PerQuestion[i]
			iv.Questions[i].Score = evaluator.Overall(ps.TechnicalScore, ps.CommunicationScore)
		}
	}
	iv.Result = model.VerdictRejected
	if scores.Overall >= s.cfg.PassThreshold {
		iv.Result = model.VerdictSelected
	}

	if err := s.repo.SaveEvaluation(ctx, iv); err != nil {
		return nil, err
	}
	iv.SetTimeLimit()

	slog.Info("interview submitted", "id", iv.ID, "overall", scores.Overall, "result", iv.Result, "duration", iv.DurationSeconds)
	return iv, nil
}

// Stats summarizes activity. An empty candidateID covers everyone. The
// average only counts submitted interviews.
func (s *Service) Stats(ctx context.Context, candidateID string) (model.Stats, error) {
	var st model.Stats
	if candidateID == "" {
		cands, err := s.repo.ListCandidates(ctx)
		if err != nil {
			return st, err
		}
		st.Candidates = len(cands)
	} else {
		if _, err := s.repo.GetCandidate(ctx, candidateID); err != nil {
			return st, err
		}
		st.Candidates = 1
	}

	list, err := s.repo.ListInterviews(ctx, candidateID)
	if err != nil {
		return st, err
	}
	st.Interviews = len(list)

	var sum float64
	var n int
	for _, iv := range list {
		if iv.Status != model.StatusSubmitted {
			continue
		}
		sum += iv.Scores.Overall
		n++
	}
	if n > 0 {
		st.AverageOverall = evaluator.Round1(sum / float64(n))
	}
	return st, nil
}
