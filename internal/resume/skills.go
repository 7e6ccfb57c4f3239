// Package resume turns résumé documents into the skill tokens the question
// selector consumes.
package resume

import (
	"regexp"
	"strings"
)

// KnownSkills is the catalog ExtractSkills matches against, in output order.
var KnownSkills = []string{
	// Languages
	"python", "java", "javascript", "typescript", "c", "c++", "c#", "ruby", "go", "rust",
	"kotlin", "swift", "php", "r", "scala", "dart", "perl",
	// Web
	"html", "css", "react", "angular", "vue", "node", "nodejs", "express", "django",
	"flask", "spring", "spring boot", "bootstrap", "tailwind", "jquery", "sass",
	// Data
	"sql", "mysql", "postgresql", "mongodb", "redis", "sqlite", "oracle", "nosql",
	// ML
	"machine learning", "deep learning", "tensorflow", "pytorch", "pandas", "numpy",
	"scikit", "keras", "data structures", "algorithms",
	// Cloud and DevOps
	"aws", "azure", "gcp", "docker", "kubernetes", "git", "github", "linux", "ci/cd",
	// Soft skills
	"communication", "leadership", "teamwork", "problem solving", "critical thinking",
	"time management", "presentation",
}

type skillPattern struct {
	name string
	re   *regexp.Regexp
}

var skillPatterns = compileSkills(KnownSkills)

func compileSkills(skills []string) []skillPattern {
	out := make([]skillPattern, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, skillPattern{name: s, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)})
	}
	return out
}

// ExtractSkills returns every known skill that appears in text as a whole
// word, case-insensitively, in catalog order. Skills ending in a symbol
// (c++, c#) only match when followed by a word character, since the
// boundary check is ASCII word based.
func ExtractSkills(text string) []string {
	found := []string{}
	if strings.TrimSpace(text) == "" {
		return found
	}
	lower := strings.ToLower(text)
	for _, p := range skillPatterns {
		if p.re.MatchString(lower) {
			found = append(found, p.name)
		}
	}
	return found
}

// NormalizeSkills lower-cases, trims and deduplicates user-supplied skills,
// keeping first occurrences.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
