package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

const (
	// MaxSkills is how many skills are listed in a generation prompt.
	MaxSkills = 8
	// MaxExcluded is how many already-used questions are listed.
	MaxExcluded = 20
	// MaxAnswerRunes caps an answer before it is embedded in a prompt.
	MaxAnswerRunes = 10000

	noAnswer = "[No answer provided]"
)

var candidateAnswerRegex = regexp.MustCompile(`(?i)</?\s*candidate-answer\b[^>]*>`)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	loadOnce      sync.Once
	loadErr       error
	questionsTmpl *template.Template
	evalTmpl      *template.Template
)

// QuestionData holds template data for question generation prompts.
type QuestionData struct {
	Skills  []string
	Type    string
	Count   int
	Exclude []string
}

// QAItem is one numbered question/answer pair in an evaluation prompt.
type QAItem struct {
	Index    int
	Question string
	Answer   string
}

type evalData struct {
	Items []QAItem
}

func load() error {
	loadOnce.Do(func() {
		funcs := template.FuncMap{"join": strings.Join}
		questionsTmpl, loadErr = template.New("questions.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/questions.tmpl")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse questions template: %w", loadErr)
			return
		}
		evalTmpl, loadErr = template.New("evaluation.tmpl").ParseFS(templateFS, "templates/evaluation.tmpl")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse evaluation template: %w", loadErr)
		}
	})
	return loadErr
}

// BuildQuestionPrompt renders the generation prompt. Skills and excluded
// questions are capped at MaxSkills and MaxExcluded.
func BuildQuestionPrompt(d QuestionData) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	if len(d.Skills) > MaxSkills {
		d.Skills = d.Skills[:MaxSkills]
	}
	if len(d.Exclude) > MaxExcluded {
		d.Exclude = d.Exclude[:MaxExcluded]
	}
	if d.Type == "" {
		d.Type = "technical"
	}

	var buf bytes.Buffer
	if err := questionsTmpl.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildEvaluationPrompt renders the batch evaluation prompt.
func BuildEvaluationPrompt(items []QAItem) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	clean := make([]QAItem, len(items))
	for i, it := range items {
		clean[i] = QAItem{Index: it.Index, Question: it.Question, Answer: SanitizeAnswer(it.Answer)}
	}

	var buf bytes.Buffer
	if err := evalTmpl.Execute(&buf, evalData{Items: clean}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeAnswer removes delimiter tags, trims, and truncates an answer.
func SanitizeAnswer(answer string) string {
	answer = candidateAnswerRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return noAnswer
	}

	if utf8.RuneCountInString(answer) > MaxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:MaxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
