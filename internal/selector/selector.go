// Package selector picks a non-repeating, skill-matched set of interview
// questions from the bank, falling back to the generic pool, the generative
// service and finally a fixed default set.
package selector

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pavelanni/smarthire/internal/bank"
	"github.com/pavelanni/smarthire/internal/llm"
	"github.com/pavelanni/smarthire/internal/model"
)

// DefaultQuestions is the last-resort set used when every other tier is empty.
var DefaultQuestions = []string{
	"Tell me about yourself and your technical background.",
	"What is your strongest programming skill and why?",
	"Describe a project you are most proud of.",
	"How do you stay updated with new technologies?",
	"What are your short-term and long-term career goals?",
}

// Selector chooses questions. It is safe for concurrent use.
type Selector struct {
	bank    *bank.Bank
	gen     llm.GenerativeService
	timeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand sets the random source used for shuffling. Tests pass a seeded
// source to get reproducible orderings.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithTimeout bounds the generator top-up call.
func WithTimeout(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Selector over b. A nil generator disables the top-up tier.
func New(b *bank.Bank, gen llm.GenerativeService, opts ...Option) *Selector {
	if gen == nil {
		gen = llm.Null{}
	}
	s := &Selector{
		bank:    b,
		gen:     gen,
		timeout: llm.DefaultTimeout,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns at most count distinct questions, none of which is in used.
// It never fails; a short or empty result means every tier ran dry.
func (s *Selector) Select(ctx context.Context, skills []string, typ model.InterviewType, used []string, count int) []string {
	if count <= 0 {
		return []string{}
	}
	exclude := toSet(used)

	if typ == model.InterviewManagement {
		pool := newPool(exclude)
		pool.add(s.bank.Management())
		out := s.take(pool.items, count)
		slog.Debug("management questions selected", "available", len(pool.items), "selected", len(out))
		return out
	}

	pool := newPool(exclude)
	for _, skill := range skills {
		for _, tag := range s.bank.CategoriesMatching(skill) {
			pool.add(s.bank.Questions(tag))
		}
	}
	matched := len(pool.items)
	if len(pool.items) < count {
		pool.add(s.bank.Questions(bank.GenericTag))
		slog.Debug("skill pool short, added generic questions", "matched", matched, "pool", len(pool.items), "count", count)
	}

	out := s.take(pool.items, count)

	if len(out) < count && s.gen.Available() {
		out = append(out, s.topUp(ctx, skills, typ, used, out, count-len(out))...)
	}

	if len(out) == 0 {
		fallback := newPool(exclude)
		fallback.add(DefaultQuestions)
		out = s.take(fallback.items, count)
		slog.Debug("all question tiers empty, using default set", "selected", len(out))
	}

	return out
}

// topUp asks the generator for the shortfall and keeps only new, unique
// questions.
func (s *Selector) topUp(ctx context.Context, skills []string, typ model.InterviewType, used, selected []string, need int) []string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exclude := make([]string, 0, len(used)+len(selected))
	exclude = append(exclude, used...)
	exclude = append(exclude, selected...)

	generated, err := s.gen.GenerateQuestions(ctx, llm.QuestionRequest{
		Skills:  skills,
		Type:    typ,
		Count:   need,
		Exclude: exclude,
	})
	if err != nil {
		slog.Warn("question generation failed, continuing without top-up", "error", err)
		return nil
	}

	pool := newPool(toSet(exclude))
	pool.add(generated)
	if len(pool.items) > need {
		pool.items = pool.items[:need]
	}
	slog.Debug("generator top-up", "requested", need, "received", len(generated), "kept", len(pool.items))
	return pool.items
}

// take shuffles items in place and returns a copy of the first count.
func (s *Selector) take(items []string, count int) []string {
	s.mu.Lock()
	s.rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	s.mu.Unlock()

	n := min(count, len(items))
	out := make([]string, n)
	copy(out, items[:n])
	return out
}

// pool accumulates questions in first-seen order, skipping excluded ones.
type pool struct {
	exclude map[string]struct{}
	seen    map[string]struct{}
	items   []string
}

func newPool(exclude map[string]struct{}) *pool {
	return &pool{exclude: exclude, seen: make(map[string]struct{})}
}

func (p *pool) add(questions []string) {
	for _, q := range questions {
		if q == "" {
			continue
		}
		if _, ok := p.exclude[q]; ok {
			continue
		}
		if _, ok := p.seen[q]; ok {
			continue
		}
		p.seen[q] = struct{}{}
		p.items = append(p.items, q)
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}
