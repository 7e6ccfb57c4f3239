package evaluator

import (
	"math"
	"strconv"
	"strings"

	"github.com/pavelanni/smarthire/internal/model"
)

const (
	// TechnicalWeight and CommunicationWeight blend the aggregates into the
	// overall score.
	TechnicalWeight     = 0.6
	CommunicationWeight = 0.4

	communicationPerWord = 3
	technicalPerOverlap  = 15
	maxScore             = 100
)

// Round1 rounds f to one decimal place, resolving exact ties to even, which
// matches decimal rounding of the float's exact binary value.
func Round1(f float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 1, 64), 64)
	if err != nil {
		return math.Round(f*10) / 10
	}
	return r
}

// Overall blends technical and communication scores with the fixed weights.
func Overall(technical, communication float64) float64 {
	return Round1(TechnicalWeight*technical + CommunicationWeight*communication)
}

// Aggregate computes the ScoreResult aggregates from per-question scores.
// An empty slice yields all zeros.
func Aggregate(per []model.QuestionScore) model.ScoreResult {
	res := model.ScoreResult{PerQuestion: per}
	if len(per) == 0 {
		res.PerQuestion = []model.QuestionScore{}
		return res
	}
	var tech, comm float64
	for _, q := range per {
		tech += q.TechnicalScore
		comm += q.CommunicationScore
	}
	n := float64(len(per))
	res.Technical = Round1(tech / n)
	res.Communication = Round1(comm / n)
	res.Overall = Overall(res.Technical, res.Communication)
	return res
}

// WordCount counts whitespace-delimited tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// CommunicationScore awards three points per word, capped at 100.
func CommunicationScore(answer string) float64 {
	return float64(min(maxScore, WordCount(answer)*communicationPerWord))
}

// TechnicalScore awards fifteen points per distinct lower-cased word shared by
// question and answer, capped at 100.
func TechnicalScore(question, answer string) float64 {
	qWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(question)) {
		qWords[w] = struct{}{}
	}
	seen := make(map[string]struct{})
	overlap := 0
	for _, w := range strings.Fields(strings.ToLower(answer)) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := qWords[w]; ok {
			overlap++
		}
	}
	return float64(min(maxScore, overlap*technicalPerOverlap))
}

func clampScore(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(maxScore, f))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
