// Package main provides the CLI entrypoint for madrasa.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/madrasa/internal/api"
	"github.com/verte-zerg/madrasa/internal/config"
	"github.com/verte-zerg/madrasa/internal/logging"
	"github.com/verte-zerg/madrasa/internal/model"
	"github.com/verte-zerg/madrasa/internal/progress"
	"github.com/verte-zerg/madrasa/internal/store"
)

const (
	defaultBaseURL     = "http://localhost:5000"
	defaultTimeout     = api.DefaultTimeout
	defaultRefreshSkew = time.Minute
	defaultFallback    = "zero"
)

var (
	rootBaseURL     string
	rootTimeout     time.Duration
	rootRefreshSkew time.Duration
	rootFallback    string
	rootLogLevel    string
)

var errNotSignedIn = errors.New("not signed in")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logErrf("Error: %v\n", err)
		if hint := loginHint(err); hint != "" {
			logErrln(hint)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "madrasa",
		Short:         "Terminal client for the madrasa learning platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootBaseURL, "base-url", defaultBaseURL, "backend base URL")
	flags.DurationVar(&rootTimeout, "timeout", defaultTimeout, "request timeout")
	flags.DurationVar(&rootRefreshSkew, "refresh-skew", defaultRefreshSkew, "refresh the access token this long before it expires")
	flags.StringVar(&rootFallback, "fallback", defaultFallback, "progress of courses without attendance data (zero|completion)")
	flags.StringVar(&rootLogLevel, "log-level", logging.DefaultLevel, "log level (debug|info|warn|error)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newCoursesCmd())
	rootCmd.AddCommand(newEnrollCmd())
	rootCmd.AddCommand(newDropCmd())
	rootCmd.AddCommand(newEnrollmentsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newDashboardCmd())
	rootCmd.AddCommand(newChildrenCmd())
	rootCmd.AddCommand(newChildProgressCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newRSVPCmd())
	rootCmd.AddCommand(newTeacherCmd())

	return rootCmd
}

// app bundles what a command needs to talk to the backend.
type app struct {
	cfg    model.Config
	policy progress.Policy
	logger *log.Logger
	store  *store.Store
	client *api.Client
}

func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "base-url", &rootBaseURL, fileCfg.API.BaseURL)
	applyDurationConfig(cmd, "timeout", &rootTimeout, fileCfg.API.Timeout)
	applyDurationConfig(cmd, "refresh-skew", &rootRefreshSkew, fileCfg.API.RefreshSkew)
	applyStringConfig(cmd, "fallback", &rootFallback, fileCfg.Progress.Fallback)
	applyStringConfig(cmd, "log-level", &rootLogLevel, fileCfg.Log.Level)

	cfg := model.Config{
		BaseURL:     strings.TrimRight(strings.TrimSpace(rootBaseURL), "/"),
		Timeout:     rootTimeout,
		RefreshSkew: rootRefreshSkew,
		Fallback:    rootFallback,
		LogLevel:    rootLogLevel,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	policy, err := progress.ParsePolicy(cfg.Fallback)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	storePath := config.DefaultDBPath()
	st, err := store.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	sess := api.NewSession(st, cfg.RefreshSkew)
	if err := sess.Load(cmd.Context()); err != nil {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("failed to close db", "err", cerr)
		}
		return nil, err
	}
	client := api.New(api.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Logger:  logger,
	}, sess)
	logger.Debug("client ready", "base_url", cfg.BaseURL, "db", storePath, "signed_in", sess.SignedIn())

	return &app{cfg: cfg, policy: policy, logger: logger, store: st, client: client}, nil
}

func (a *app) Close() {
	if cerr := a.store.Close(); cerr != nil {
		a.logger.Warn("failed to close db", "err", cerr)
	}
}

// requireSignedIn fails fast when no session is stored, before any request is sent.
func (a *app) requireSignedIn() error {
	if !a.client.Session().SignedIn() {
		return errNotSignedIn
	}
	return nil
}

func loginHint(err error) string {
	if errors.Is(err, errNotSignedIn) || errors.Is(err, api.ErrUnauthorized) {
		return "Run: madrasa login"
	}
	return ""
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# madrasa configuration
# Uncomment a value to enable it. CLI flags override config values.

[api]
# base-url = %q   # Backend base URL
# timeout = %q             # Request timeout
# refresh-skew = %q         # Refresh the access token this long before expiry

[progress]
# fallback = %q            # Progress of courses without attendance data: zero|completion

[log]
# level = %q                # debug|info|warn|error
`,
		defaultBaseURL,
		defaultTimeout.String(),
		defaultRefreshSkew.String(),
		defaultFallback,
		logging.DefaultLevel,
	)
}

func validateConfig(cfg model.Config) error {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("--base-url must be an http(s) URL, got %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	if cfg.RefreshSkew < 0 {
		return fmt.Errorf("--refresh-skew must be >= 0")
	}
	if _, err := progress.ParsePolicy(cfg.Fallback); err != nil {
		return fmt.Errorf("--fallback: %w", err)
	}
	if _, err := logging.New(io.Discard, cfg.LogLevel); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	return nil
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
