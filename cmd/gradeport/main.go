package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/gradeport/internal/handler"
	"github.com/pavelanni/gradeport/internal/i18n"
	"github.com/pavelanni/gradeport/internal/identity"
	"github.com/pavelanni/gradeport/internal/portal"
	"github.com/pavelanni/gradeport/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gradeport",
		Short:        "Exam scoring, ranking and report portal for tutoring organizations",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, examsCmd(), importCmd(), exportCmd(), reportCmd(), studentsCmd(), cleanupCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `gradeport --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addCommonFlags registers the flags every command shares.
func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "gradeport.db", "SQLite database path")
	f.StringP("lang", "l", "ko", "Feedback language (ko, en)")
	f.String("policy", "keep-target", "Merge conflict policy (keep-target, keep-most-recent, keep-highest-score)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP report API",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	cmd.Flags().StringP("addr", "a", ":8080", "HTTP listen address")
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

	v.SetEnvPrefix("GRADEPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gradeport")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gradeport")
	v.AddConfigPath("/etc/gradeport")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// app is an opened database with the service built on it.
type app struct {
	db      *store.Store
	catalog *i18n.Catalog
	svc     *portal.Service
}

func openApp(v *viper.Viper) (*app, error) {
	policyName := v.GetString("policy")
	policy, ok := identity.PolicyByName(policyName)
	if !ok {
		return nil, fmt.Errorf("unknown merge policy %q", policyName)
	}

	catalog, err := i18n.Load(v.GetString("lang"))
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	svc := portal.New(db, catalog, slog.Default(), identity.WithPolicy(policy))
	return &app{db: db, catalog: catalog, svc: svc}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	a, err := openApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handler.New(a.svc, a.catalog).Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", v.GetString("lang"),
		"policy", v.GetString("policy"),
	)
	return http.ListenAndServe(addr, r)
}

// openOutput returns stdout for "" or "-", otherwise a created file.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

// openInput returns stdin for "" or "-", otherwise the opened file.
func openInput(path string) (io.Reader, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input file: %w", err)
	}
	return f, f.Close, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
