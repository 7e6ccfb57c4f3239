package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/smarthire/internal/model"
)

// ExportResults builds export-ready rows for every interview, oldest
// candidates first and each candidate's interviews in start order.
func (s *Store) ExportResults(ctx context.Context) ([]model.CandidateResult, error) {
	candidates, err := s.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	var results []model.CandidateResult
	for _, c := range candidates {
		interviews, err := s.ListInterviews(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list interviews for %s: %w", c.ID, err)
		}
		// ListInterviews is newest first.
		for i := len(interviews) - 1; i >= 0; i-- {
			iv := interviews[i]
			var questions []model.QuestionItem
			for j, q := range iv.Questions {
				item := model.QuestionItem{Text: q.Text, Answer: q.Answer}
				if j < len(iv.Scores.PerQuestion) {
					ps := iv.Scores.PerQuestion[j]
					item.TechnicalScore = ps.TechnicalScore
					item.CommunicationScore = ps.CommunicationScore
					item.Feedback = ps.Feedback
				}
				questions = append(questions, item)
			}

			results = append(results, model.CandidateResult{
				Name:            c.Name,
				Email:           c.Email,
				InterviewID:     iv.ID,
				Date:            iv.StartedAt,
				Type:            iv.Type,
				Technical:       iv.Scores.Technical,
				Communication:   iv.Scores.Communication,
				Overall:         iv.Scores.Overall,
				Result:          iv.Result,
				DurationSeconds: iv.DurationSeconds,
				Questions:       questions,
			})
		}
	}
	return results, nil
}
