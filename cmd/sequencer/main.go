package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/sequencer/internal/handler"
	appI18n "github.com/pavelanni/sequencer/internal/i18n"
	"github.com/pavelanni/sequencer/internal/llm"
	"github.com/pavelanni/sequencer/internal/model"
	"github.com/pavelanni/sequencer/internal/policy"
	"github.com/pavelanni/sequencer/internal/sequencer"
	"github.com/pavelanni/sequencer/internal/stats"
	"github.com/pavelanni/sequencer/internal/store"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sequencer",
		Short:        "Pedagogical sequencer generator powered by LLMs",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("db", "sequencer.db", "SQLite database path")
	pf.String("policy", "", "YAML policy file overriding the built-in tables")
	pf.StringP("lang", "l", appI18n.DefaultLang, "Message language (fr, en)")
	pf.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	pf.String("llm-key", "ollama", "API key for LLM")
	pf.String("llm-model", "llama3.2", "LLM model name")
	pf.Float32("temperature", llm.DefaultTemperature, "Sampling temperature")
	pf.Int("max-tokens", llm.DefaultMaxTokens, "Maximum tokens per completion")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	serve := serveCmd()
	root.AddCommand(
		serve,
		analyzeCmd(),
		validateCmd(),
		generateCmd(),
		importCmd(),
		runsCmd(),
		exportCmd(),
		statsCmd(),
		scriptCmd(),
		sampleCmd(),
		tokenCmd(),
	)

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `sequencer --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /sequencer)")
	f.Bool("strict", false, "Add numbering and week-progression warnings to validation")
	f.String("api-token", "", "Initial API token, stored hashed when no token exists")
	f.Bool("skip-ping", false, "Do not check the LLM endpoint at startup")
	return cmd
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

	v.SetEnvPrefix("SEQUENCER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("sequencer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/sequencer")
	v.AddConfigPath("/etc/sequencer")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// app holds what every pipeline command needs.
type app struct {
	v      *viper.Viper
	db     *store.Store
	policy policy.Policy
	client *llm.Client
	seq    *sequencer.Sequencer
	agg    *stats.Aggregator
}

// newApp sets up logging, i18n, the store, the policy and the LLM client.
func newApp(cmd *cobra.Command) (*app, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	p, err := policy.Load(v.GetString("policy"))
	if err != nil {
		return nil, err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	client := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		llm.WithTemperature(float32(v.GetFloat64("temperature"))),
		llm.WithMaxTokens(v.GetInt("max-tokens")),
	)

	seq, err := sequencer.New(client, p, sequencer.WithStrict(v.GetBool("strict")))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sequencer: %w", err)
	}

	return &app{v: v, db: db, policy: p, client: client, seq: seq, agg: stats.New(p)}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// ctx returns a context carrying the configured message language.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	return appI18n.WithLang(cmd.Context(), a.v.GetString("lang"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	v := a.v

	if err := seedToken(a.db, v.GetString("api-token")); err != nil {
		return fmt.Errorf("seed API token: %w", err)
	}
	if err := recordPolicy(a.db, v.GetString("policy")); err != nil {
		return fmt.Errorf("record policy: %w", err)
	}

	if !v.GetBool("skip-ping") {
		if err := a.client.Ping(context.Background()); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.Config{
		Model:       a.client.Model(),
		Temperature: float32(v.GetFloat64("temperature")),
		MaxTokens:   v.GetInt("max-tokens"),
		Strict:      v.GetBool("strict"),
		BasePath:    basePath,
		Lang:        v.GetString("lang"),
	}

	h, err := handler.New(a.db, a.seq, a.client, a.agg, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", cfg.Model,
		"llm_url", v.GetString("llm-url"),
		"lang", cfg.Lang,
		"strict", cfg.Strict,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

// seedToken stores token under the name "default" when no token exists yet.
func seedToken(db *store.Store, token string) error {
	if token == "" {
		return nil
	}
	count, err := db.TokenCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if err := handler.AddToken(db, "default", token); err != nil {
		return err
	}
	slog.Info("seeded default API token")
	return nil
}

const keyPolicyHash = "policy_hash"

// recordPolicy remembers which policy file the server runs with and warns
// when it changed since the previous start, since stored runs were enriched
// under the old tables.
func recordPolicy(db *store.Store, path string) error {
	hash := "default"
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		hash = sha256sum(data)
	}
	stored, err := db.GetMetadata(keyPolicyHash)
	if err != nil {
		return err
	}
	if stored == hash {
		return nil
	}
	if stored != "" {
		slog.Warn("policy changed since last start, earlier runs used other tables", "path", path)
	}
	return db.SetMetadata(keyPolicyHash, hash)
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
