package interview

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pavelanni/smarthire/internal/model"
)

// ExportFormat selects the results export encoding.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ParseExportFormat normalizes s. Empty selects CSV.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q (want csv or json)", model.ErrInvalidInput, s)
	}
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Export writes every interview result to w.
func (s *Service) Export(ctx context.Context, w io.Writer, format ExportFormat) error {
	results, err := s.repo.ExportResults(ctx)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	switch format {
	case FormatJSON:
		if results == nil {
			results = []model.CandidateResult{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(model.ResultsExport{GeneratedAt: s.now(), Results: results})
	case FormatCSV:
		return writeCSV(w, results)
	default:
		return fmt.Errorf("%w: unknown export format %q", model.ErrInvalidInput, format)
	}
}

func writeCSV(w io.Writer, results []model.CandidateResult) error {
	titleCase := cases.Title(language.English)
	cw := csv.NewWriter(w)
	if err := cw.Write(model.CSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.Name,
			r.Email,
			r.Date.Format("2006-01-02"),
			titleCase.String(string(r.Type)),
			score(r.Technical),
			score(r.Communication),
			score(r.Overall),
			titleCase.String(string(r.Result)),
			score(float64(r.DurationSeconds) / 60),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func score(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
