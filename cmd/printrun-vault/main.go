package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/aryannaik/printrun-vault/internal/backend"
	"github.com/aryannaik/printrun-vault/internal/index"
	"github.com/aryannaik/printrun-vault/internal/metrics"
	"github.com/aryannaik/printrun-vault/internal/render"
	"github.com/aryannaik/printrun-vault/internal/server"
	"github.com/aryannaik/printrun-vault/internal/tui"
	"github.com/aryannaik/printrun-vault/internal/vault"
)

var (
	cfgPath string
	debug   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "printrun-vault",
		Short:         "Look up trading-card print runs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(serveCmd(), suggestCmd(), lookupCmd(), refreshCmd(), tuiCmd())
	return root
}

func newLogger(debug bool, outputs ...string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if len(outputs) > 0 {
		config.OutputPaths = outputs
		config.ErrorOutputPaths = outputs
	}
	return config.Build()
}

// app is everything a command needs, built from config.
type app struct {
	cfg     config
	logger  *zap.Logger
	metrics *metrics.Metrics
	client  *backend.Client
	cache   *index.Cache
	lookup  *vault.Lookup
	closers []func() error
}

func newApp(ctx context.Context, logOutputs ...string) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Debug || debug, logOutputs...)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.client = backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, logger, a.metrics)
	a.cache = index.NewCache(store, a.client, logger, a.metrics)
	reporter := vault.NewReporter(a.client, logger)
	a.lookup = vault.NewLookup(a.client, cfg.BackendTimeout, reporter, a.metrics, logger)
	a.closers = append(a.closers, func() error {
		a.lookup.Wait()
		return nil
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context) (index.Store, error) {
	switch a.cfg.StoreDriver {
	case "sqlite":
		s, err := index.OpenSQLiteStore(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		a.logger.Debug("Using sqlite index store", zap.String("path", a.cfg.SQLitePath))
		return s, nil
	case "redis":
		client, err := index.DialRedis(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Debug("Using redis index store", zap.String("addr", a.cfg.RedisAddr))
		return index.NewRedisStore(client, a.cfg.RedisPrefix), nil
	default:
		s := index.NewFileStore(a.cfg.DataDir)
		a.logger.Debug("Using file index store", zap.String("path", s.Path()))
		return s, nil
	}
}

func (a *app) newSession() *vault.Session {
	return vault.NewSession(vault.NewCatalogs(a.cache), a.lookup, a.logger)
}

// Close runs closers in reverse order and flushes the logger.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and static front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	// Cached index first so the API answers before the backend does.
	a.cache.Load(ctx)

	refreshFn := func(force bool) {
		go a.cache.EnsureFresh(ctx, force)
	}

	srv := server.New(server.Options{
		Port:      a.cfg.Port,
		StaticDir: a.cfg.StaticDir,
		Cache:     a.cache,
		Lookup:    a.lookup,
		Health:    a.client.IsHealthy,
		Refresh:   refreshFn,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.cache.EnsureFresh(gctx, false)
		if a.cfg.RefreshInterval <= 0 {
			return nil
		}
		ticker := time.NewTicker(a.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				a.logger.Debug("Periodic index check")
				a.cache.EnsureFresh(gctx, false)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("Goodbye")
	return err
}

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <query>",
		Short: "List products matching a query, in index order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			a.cache.EnsureFresh(cmd.Context(), false)
			hits := a.newSession().Type(strings.Join(args, " "))
			writeSuggestions(cmd.OutOrStdout(), hits)
			return nil
		},
	}
}

func writeSuggestions(w io.Writer, hits []index.Entry) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No suggestions.")
		return
	}
	for _, e := range hits {
		line := fmt.Sprintf("%-12s %s", e.Code, e.DisplayName)
		if f := render.Facets(e.Year.String(), e.Sport.String(), e.Manufacturer.String()); f != "" {
			line += "  (" + f + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func lookupCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "lookup [query]",
		Short: "Resolve a query to one product and print its print runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if query == "" && code == "" {
				return errors.New("give a query or --code")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			a.cache.EnsureFresh(cmd.Context(), false)
			if a.cache.Len() == 0 {
				a.logger.Warn("Searching an empty index", zap.Error(vault.ErrIndexUnavailable))
			}

			session := a.newSession()
			if code != "" {
				if _, err := session.Pick(code); err != nil {
					return fmt.Errorf("%w: code %s", err, code)
				}
			} else {
				session.Type(query)
			}

			rows, err := session.Search(cmd.Context())
			if err != nil {
				if vault.IsRetryable(err) {
					return fmt.Errorf("%w (try again)", err)
				}
				return fmt.Errorf("%w for %q", err, query)
			}
			return render.Table(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "look up an exact product code instead of a query")
	return cmd
}

func refreshCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Check the backend index version and refetch if it moved",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.cache.EnsureFresh(cmd.Context(), force)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d products (version %q)\n", out.Status, out.Entries, out.Version)
			if out.Status == index.StatusUnavailable {
				return vault.ErrIndexUnavailable
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "refetch the full index even if the version is unchanged")
	return cmd
}

func tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive typeahead lookup",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The terminal belongs to the UI; logs go to a file.
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			a, err := newApp(ctx, filepath.Join(cfg.DataDir, "tui.log"))
			if err != nil {
				return err
			}
			defer a.Close()

			a.cache.Load(ctx)
			session := a.newSession()
			defer session.Close()

			p := tea.NewProgram(tui.New(ctx, session, a.cache), tea.WithAltScreen(), tea.WithContext(ctx))
			_, err = p.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
}
