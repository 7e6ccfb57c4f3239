// Package evaluator scores free-text interview answers.
//
// Two strategies produce identically shaped output: an AI-assisted one used
// when the generative service reports itself available, and a deterministic
// rule-based one used otherwise or whenever the AI call fails.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	appI18n "github.com/pavelanni/smarthire/internal/i18n"
	"github.com/pavelanni/smarthire/internal/llm"
	"github.com/pavelanni/smarthire/internal/model"
)

// Strategy names which path produced a result. It is only used for logging.
type Strategy string

const (
	StrategyAI        Strategy = "ai"
	StrategyRuleBased Strategy = "rule_based"
)

// Evaluator scores answers, preferring the generative service when available.
type Evaluator struct {
	gen llm.GenerativeService
}

// New creates an Evaluator. A nil service means rule-based scoring only.
func New(gen llm.GenerativeService) *Evaluator {
	if gen == nil {
		gen = llm.Null{}
	}
	return &Evaluator{gen: gen}
}

// Evaluate scores every pair and composes the feedback text. The only error
// is model.ErrInvalidInput for a pair without question text; service
// failures silently fall back to rule-based scoring.
func (e *Evaluator) Evaluate(ctx context.Context, pairs []model.QA) (model.ScoreResult, string, error) {
	if err := validate(pairs); err != nil {
		return model.ScoreResult{}, "", err
	}

	if e.gen.Available() {
		batch, err := e.gen.EvaluateBatch(ctx, pairs)
		if err == nil {
			res, feedback := FromBatch(ctx, pairs, batch)
			slog.Debug("answers evaluated", "strategy", StrategyAI, "questions", len(pairs), "overall", res.Overall)
			return res, feedback, nil
		}
		slog.Warn("AI evaluation failed, falling back to rule-based scoring", "error", err)
	}

	res, feedback := RuleBased(ctx, pairs)
	slog.Debug("answers evaluated", "strategy", StrategyRuleBased, "questions", len(pairs), "overall", res.Overall)
	return res, feedback, nil
}

func validate(pairs []model.QA) error {
	for i, p := range pairs {
		if isBlank(p.Question) {
			return fmt.Errorf("%w: pair %d has no question text", model.ErrInvalidInput, i+1)
		}
	}
	return nil
}

// FromBatch converts a structured AI response into scores and feedback.
// Questions without a matching entry score zero; unanswered questions score
// zero whatever the service said.
func FromBatch(ctx context.Context, pairs []model.QA, batch *llm.BatchEvaluation) (model.ScoreResult, string) {
	if batch == nil {
		batch = &llm.BatchEvaluation{}
	}

	per := make([]model.QuestionScore, len(pairs))
	for i, p := range pairs {
		if isBlank(p.Answer) {
			per[i] = model.QuestionScore{Feedback: appI18n.T(ctx, "FeedbackNoAnswerAI")}
			continue
		}
		qs := model.QuestionScore{Feedback: appI18n.T(ctx, "FeedbackNoFeedback")}
		if ev, ok := batch.Find(i + 1); ok {
			qs.TechnicalScore = Round1(clampScore(ev.TechnicalScore))
			qs.CommunicationScore = Round1(clampScore(ev.CommunicationScore))
			if ev.Feedback != "" {
				qs.Feedback = ev.Feedback
			}
		}
		per[i] = qs
	}
	res := Aggregate(per)

	var parts []string
	if batch.Strengths != "" {
		parts = append(parts, appI18n.Td(ctx, "SummaryStrengths", map[string]any{"Text": batch.Strengths}))
	}
	if batch.Improvements != "" {
		parts = append(parts, appI18n.Td(ctx, "SummaryImprovements", map[string]any{"Text": batch.Improvements}))
	}
	if len(batch.RecommendedTopics) > 0 {
		parts = append(parts, appI18n.Td(ctx, "SummaryTopics", map[string]any{"Topics": strings.Join(batch.RecommendedTopics, ", ")}))
	}
	parts = append(parts, questionLines(ctx, pairs, per)...)

	return res, strings.Join(parts, "\n\n")
}

// RuleBased scores answers deterministically from word counts and
// question/answer word overlap.
func RuleBased(ctx context.Context, pairs []model.QA) (model.ScoreResult, string) {
	per := make([]model.QuestionScore, len(pairs))
	answered := 0
	for i, p := range pairs {
		answer := strings.TrimSpace(p.Answer)
		if answer == "" {
			per[i] = model.QuestionScore{Feedback: appI18n.T(ctx, "FeedbackNoAnswer")}
			continue
		}
		answered++
		per[i] = model.QuestionScore{
			TechnicalScore:     Round1(TechnicalScore(p.Question, answer)),
			CommunicationScore: Round1(CommunicationScore(answer)),
			Feedback:           lengthFeedback(ctx, WordCount(answer)),
		}
	}
	res := Aggregate(per)

	summary := appI18n.Td(ctx, "SummaryAnswered", map[string]any{"Answered": answered, "Total": len(pairs)})
	if res.Technical < 40 {
		summary += "\n" + appI18n.T(ctx, "SummaryLowTechnical")
	}
	if res.Communication < 40 {
		summary += "\n" + appI18n.T(ctx, "SummaryLowCommunication")
	}

	parts := append([]string{summary}, questionLines(ctx, pairs, per)...)
	return res, strings.Join(parts, "\n\n")
}

func lengthFeedback(ctx context.Context, words int) string {
	switch {
	case words < 5:
		return appI18n.T(ctx, "FeedbackVeryBrief")
	case words < 20:
		return appI18n.T(ctx, "FeedbackNeedsDepth")
	case words < 50:
		return appI18n.T(ctx, "FeedbackAddExample")
	default:
		return appI18n.T(ctx, "FeedbackWellElaborated")
	}
}

func questionLines(ctx context.Context, pairs []model.QA, per []model.QuestionScore) []string {
	lines := make([]string, len(per))
	for i, qs := range per {
		status := appI18n.T(ctx, "QuestionNotAnswered")
		if !isBlank(pairs[i].Answer) {
			status = appI18n.Td(ctx, "QuestionScores", map[string]any{
				"Technical":     formatScore(qs.TechnicalScore),
				"Communication": formatScore(qs.CommunicationScore),
			})
		}
		lines[i] = appI18n.Td(ctx, "QuestionLine", map[string]any{
			"N":        i + 1,
			"Status":   status,
			"Feedback": qs.Feedback,
		})
	}
	return lines
}
