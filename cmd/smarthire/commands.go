package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appI18n "github.com/pavelanni/smarthire/internal/i18n"
	"github.com/pavelanni/smarthire/internal/interview"
	"github.com/pavelanni/smarthire/internal/model"
	"github.com/pavelanni/smarthire/internal/resume"
)

func selectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select interview questions for a set of skills",
		RunE:  runSelect,
	}
	f := cmd.Flags()
	f.StringSliceP("skills", "s", nil, "Candidate skills (comma-separated or repeated)")
	f.String("resume", "", "Résumé file (PDF or text) to extract skills from")
	f.StringP("type", "t", string(model.InterviewTechnical), "Interview type (technical, management)")
	f.IntP("count", "c", interview.DefaultQuestions, "Number of questions")
	f.StringSlice("exclude", nil, "Questions already asked")
	addEngineFlags(f)
	addLogFlags(f)
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate [file]",
		Short: "Evaluate question/answer pairs from a JSON file (- or no file for stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEvaluate,
	}
	f := cmd.Flags()
	addEngineFlags(f)
	addLogFlags(f)
	return cmd
}

func skillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills <resume>",
		Short: "Extract known skills from a PDF or text résumé",
		Args:  cobra.ExactArgs(1),
		RunE:  runSkills,
	}
	f := cmd.Flags()
	f.Duration("pdf-timeout", resume.DefaultExtractTimeout, "Timeout for extracting text from a PDF")
	addLogFlags(f)
	return cmd
}

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run an interactive practice interview in the terminal",
		RunE:  runPractice,
	}
	f := cmd.Flags()
	f.StringSliceP("skills", "s", nil, "Your skills (comma-separated or repeated)")
	f.String("resume", "", "Résumé file (PDF or text) to extract skills from")
	f.StringP("type", "t", "", "Interview type (technical, management); prompts when empty")
	f.IntP("count", "c", interview.MinQuestions, "Number of questions")
	addEngineFlags(f)
	addLogFlags(f)
	return cmd
}

type evaluationOutput struct {
	Scores   model.ScoreResult `json:"scores"`
	Feedback string            `json:"feedback"`
}

func runSelect(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	typ, err := model.ParseInterviewType(v.GetString("type"))
	if err != nil {
		return err
	}
	skills, err := skillsFromFlags(cmd, v)
	if err != nil {
		return err
	}
	eng, err := newEngine(ctx, v)
	if err != nil {
		return err
	}

	questions := eng.selector.Select(ctx, skills, typ, v.GetStringSlice("exclude"), v.GetInt("count"))
	return printJSON(cmd.OutOrStdout(), questions)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}
	var pairs []model.QA
	if err := json.NewDecoder(r).Decode(&pairs); err != nil {
		return fmt.Errorf("decode question/answer pairs: %w", err)
	}

	eng, err := newEngine(ctx, v)
	if err != nil {
		return err
	}
	scores, feedback, err := eng.evaluator.Evaluate(appI18n.WithLang(ctx, v.GetString("lang")), pairs)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), evaluationOutput{Scores: scores, Feedback: feedback})
}

func runSkills(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	text, err := readResume(cmd, args[0], v)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resume.ExtractSkills(text))
}

func runPractice(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	skills, err := skillsFromFlags(cmd, v)
	if err != nil {
		return err
	}
	if len(skills) == 0 {
		p := promptui.Prompt{Label: "Skills (comma-separated)"}
		raw, err := p.Run()
		if err != nil {
			return err
		}
		skills = resume.NormalizeSkills(strings.Split(raw, ","))
	}

	typ := model.InterviewType(v.GetString("type"))
	if typ == "" {
		sel := promptui.Select{
			Label: "Interview type",
			Items: []model.InterviewType{model.InterviewTechnical, model.InterviewManagement},
		}
		_, picked, err := sel.Run()
		if err != nil {
			return err
		}
		typ = model.InterviewType(picked)
	}
	if typ, err = model.ParseInterviewType(string(typ)); err != nil {
		return err
	}

	eng, err := newEngine(cmd.Context(), v)
	if err != nil {
		return err
	}
	ctx := appI18n.WithLang(cmd.Context(), v.GetString("lang"))
	out := cmd.OutOrStdout()

	count := interview.ClampCount(v.GetInt("count"), interview.MinQuestions)
	questions := eng.selector.Select(ctx, skills, typ, nil, count)
	if len(questions) == 0 {
		return interview.ErrNoQuestions
	}
	fmt.Fprintln(out, appI18n.Tp(ctx, "QuestionsSelected", len(questions)))

	pairs := make([]model.QA, len(questions))
	for i, q := range questions {
		fmt.Fprintf(out, "\nQ%d. %s\n", i+1, q)
		p := promptui.Prompt{Label: appI18n.T(ctx, "PracticeAnswerPrompt")}
		answer, err := p.Run()
		if errors.Is(err, promptui.ErrInterrupt) {
			return err
		}
		if err != nil && !errors.Is(err, promptui.ErrEOF) {
			return err
		}
		pairs[i] = model.QA{Question: q, Answer: strings.TrimSpace(answer)}
	}

	fmt.Fprintln(out, "\n"+appI18n.T(ctx, "PracticeSubmitting"))
	scores, feedback, err := eng.evaluator.Evaluate(ctx, pairs)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTechnical: %.1f  Communication: %.1f  Overall: %.1f\n\n%s\n",
		scores.Technical, scores.Communication, scores.Overall, feedback)
	return nil
}

// skillsFromFlags merges --skills with skills found in --resume.
func skillsFromFlags(cmd *cobra.Command, v *viper.Viper) ([]string, error) {
	skills := v.GetStringSlice("skills")
	if path := v.GetString("resume"); path != "" {
		text, err := readResume(cmd, path, v)
		if err != nil {
			return nil, err
		}
		skills = append(skills, resume.ExtractSkills(text)...)
	}
	return resume.NormalizeSkills(skills), nil
}

func readResume(cmd *cobra.Command, path string, v *viper.Viper) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open résumé: %w", err)
	}
	defer f.Close()

	var pdfExtractor resume.TextExtractor
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		px, err := resume.NewPDFExtractor(cmd.Context(), v.GetDuration("pdf-timeout"))
		if err != nil {
			return "", err
		}
		pdfExtractor = px
	}
	return resume.ForName(path, pdfExtractor).ExtractText(cmd.Context(), f, filepath.Base(path))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
