package model

import "time"

// ResultsExport is the top-level JSON structure for interview result export.
type ResultsExport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Results     []CandidateResult `json:"results"`
}

// CandidateResult holds one interview's data for export.
type CandidateResult struct {
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	InterviewID     string         `json:"interview_id"`
	Date            time.Time      `json:"date"`
	Type            InterviewType  `json:"type"`
	Technical       float64        `json:"technical"`
	Communication   float64        `json:"communication"`
	Overall         float64        `json:"overall"`
	Result          Verdict        `json:"result"`
	DurationSeconds int            `json:"duration_seconds"`
	Questions       []QuestionItem `json:"questions"`
}

// QuestionItem holds per-question data for export.
type QuestionItem struct {
	Text               string  `json:"text"`
	Answer             string  `json:"answer"`
	TechnicalScore     float64 `json:"technical_score"`
	CommunicationScore float64 `json:"communication_score"`
	Feedback           string  `json:"feedback"`
}

// CSVHeader lists the columns of the CSV results export.
var CSVHeader = []string{
	"Name", "Email", "Interview Date", "Type",
	"Technical Score", "Communication Score", "Overall Score",
	"Result", "Duration (min)",
}
