package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/smarthire/internal/bank"
	"github.com/pavelanni/smarthire/internal/cache"
	"github.com/pavelanni/smarthire/internal/evaluator"
	"github.com/pavelanni/smarthire/internal/handler"
	appI18n "github.com/pavelanni/smarthire/internal/i18n"
	"github.com/pavelanni/smarthire/internal/interview"
	"github.com/pavelanni/smarthire/internal/llm"
	"github.com/pavelanni/smarthire/internal/model"
	"github.com/pavelanni/smarthire/internal/resume"
	"github.com/pavelanni/smarthire/internal/selector"
	"github.com/pavelanni/smarthire/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "smarthire",
		Short: "Skill-tailored interview question selection and answer evaluation",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), selectCmd(), evaluateCmd(), skillsCmd(), practiceCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `smarthire --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP interview server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "smarthire.db", "SQLite database path")
	f.IntP("num-questions", "n", interview.DefaultQuestions, "Default number of questions per interview (clamped to 5-15)")
	f.Float64("pass-threshold", interview.DefaultPassScore, "Minimum overall score for a \"selected\" verdict")
	f.String("history-backend", "sqlite", "Where asked questions are recorded (sqlite, redis)")
	f.String("redis-addr", "localhost:6379", "Redis address for the redis history backend")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.Duration("pdf-timeout", resume.DefaultExtractTimeout, "Timeout for extracting text from an uploaded PDF")
	addEngineFlags(f)
	addLogFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export interview results as CSV or JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "smarthire.db", "SQLite database path")
	f.StringP("format", "f", "csv", "Output format (csv, json)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

// addEngineFlags registers the flags shared by every command that selects or
// evaluates questions.
func addEngineFlags(f *pflag.FlagSet) {
	f.String("bank", "", "Question bank YAML file (empty = built-in bank)")
	f.StringP("lang", "l", "en", "Feedback language (en, ru)")
	f.String("ai-provider", "none", "Generative backend (none, openai, gemini)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the OpenAI-compatible backend")
	f.String("llm-model", "llama3.2", "Model name for the OpenAI-compatible backend")
	f.Bool("llm-skip-ping", false, "Skip the OpenAI-compatible startup health check")
	f.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	f.String("gemini-model", "gemini-2.0-flash", "Gemini model name")
	f.Duration("ai-timeout", llm.DefaultTimeout, "Timeout for a single generative call")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SMARTHIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("smarthire")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/smarthire")
	v.AddConfigPath("/etc/smarthire")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// engine is the selection and evaluation core shared by all commands.
type engine struct {
	bank      *bank.Bank
	bankHash  string
	gen       llm.GenerativeService
	selector  *selector.Selector
	evaluator *evaluator.Evaluator
}

func newEngine(ctx context.Context, v *viper.Viper) (*engine, error) {
	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	b, hash, err := bank.Load(v.GetString("bank"))
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	slog.Debug("loaded question bank", "path", v.GetString("bank"), "categories", len(b.Tags()), "questions", b.Size())

	provider, err := llm.ParseProvider(v.GetString("ai-provider"))
	if err != nil {
		return nil, err
	}
	geminiKey := v.GetString("gemini-key")
	if geminiKey == "" {
		geminiKey = os.Getenv("GEMINI_API_KEY")
	}
	timeout := v.GetDuration("ai-timeout")
	gen := llm.FromConfig(ctx, llm.Config{
		Provider:    provider,
		BaseURL:     v.GetString("llm-url"),
		APIKey:      v.GetString("llm-key"),
		Model:       v.GetString("llm-model"),
		GeminiKey:   geminiKey,
		GeminiModel: v.GetString("gemini-model"),
		Timeout:     timeout,
		SkipPing:    v.GetBool("llm-skip-ping"),
	})

	return &engine{
		bank:      b,
		bankHash:  hash,
		gen:       gen,
		selector:  selector.New(b, gen, selector.WithTimeout(timeout)),
		evaluator: evaluator.New(gen),
	}, nil
}

// recordBank stores the bank hash and warns when the bank changed since the
// database was last served. Earlier interviews keep their stored questions.
func recordBank(ctx context.Context, db *store.Store, hash string) error {
	stored, err := db.GetMetadata(ctx, "bank_sha256")
	if err != nil {
		return err
	}
	if stored == hash {
		return nil
	}
	if stored != "" {
		slog.Warn("question bank changed since last run; question history still applies", "previous", stored, "current", hash)
	}
	return db.SetMetadata(ctx, "bank_sha256", hash)
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng, err := newEngine(ctx, v)
	if err != nil {
		return err
	}
	if err := recordBank(ctx, db, eng.bankHash); err != nil {
		return fmt.Errorf("record question bank: %w", err)
	}

	var opts []interview.Option
	switch backend := strings.ToLower(v.GetString("history-backend")); backend {
	case "", "sqlite":
	case "redis":
		client, err := cache.Connect(ctx, v.GetString("redis-addr"), v.GetString("redis-password"), v.GetInt("redis-db"))
		if err != nil {
			return fmt.Errorf("connect history backend: %w", err)
		}
		defer client.Close()
		opts = append(opts, interview.WithHistory(cache.NewHistoryCache(client)))
		slog.Info("question history in redis", "addr", v.GetString("redis-addr"))
	default:
		return fmt.Errorf("unknown history backend %q (want sqlite or redis)", backend)
	}

	lang := v.GetString("lang")
	appCfg := model.AppConfig{
		DefaultQuestionCount: interview.ClampCount(v.GetInt("num-questions"), interview.DefaultQuestions),
		PassThreshold:        v.GetFloat64("pass-threshold"),
		Lang:                 lang,
	}
	svc := interview.NewService(db, eng.selector, eng.evaluator, appCfg, opts...)

	var pdfExtractor resume.TextExtractor
	if px, err := resume.NewPDFExtractor(ctx, v.GetDuration("pdf-timeout")); err != nil {
		slog.Warn("PDF résumé uploads disabled", "error", err)
	} else {
		pdfExtractor = px
	}

	h := handler.New(svc, eng.evaluator, pdfExtractor)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"ai", eng.gen.Available(),
		"bank_categories", len(eng.bank.Tags()),
		"num_questions", appCfg.DefaultQuestionCount,
		"pass_threshold", appCfg.PassThreshold,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	format, err := interview.ParseExportFormat(v.GetString("format"))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	svc := interview.NewService(db, nil, nil, model.AppConfig{})

	return writeOutput(v.GetString("output"), func(w io.Writer) error {
		if err := svc.Export(ctx, w, format); err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		return nil
	})
}

// writeOutput runs write against stdout for "" or "-", otherwise against a
// created file whose close error is reported.
func writeOutput(path string, write func(io.Writer) error) (err error) {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
	}()
	return write(f)
}
