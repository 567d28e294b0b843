package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/toolgate"
	"github.com/hupe1980/toolgate/config"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/store"
	"github.com/hupe1980/toolgate/store/postgres"
	"github.com/hupe1980/toolgate/tool"
	"github.com/hupe1980/toolgate/tool/builtin"
)

// ---- serve ----

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if debug {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.LoggerConfig())

	logger.Info("toolgate.starting",
		"version", version,
		"commit", commit,
		"config", configPath,
		"addr", cfg.Server.Addr,
		"provider", cfg.Model.Provider,
		"store", cfg.Store.Driver,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := toolgate.Open(ctx, cfg, func(o *toolgate.Options) {
		o.Logger = logger
	})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("toolgate.listening", "addr", cfg.Server.Addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	logger.Info("toolgate.shutdown", "timeout", cfg.Server.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("toolgate.stopped")

	return nil
}

// ---- migrate ----

func openPostgres(ctx context.Context, configPath string) (*postgres.Store, logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Store.Driver != config.DriverPostgres {
		return nil, nil, fmt.Errorf("migrations only apply to the postgres driver, configured driver is %q", cfg.Store.Driver)
	}

	if cfg.Store.DSN == "" {
		return nil, nil, fmt.Errorf("database url is required")
	}

	logger := logging.New(cfg.LoggerConfig())

	st, err := postgres.New(ctx, cfg.Store.DSN, func(o *postgres.Options) {
		o.Logger = logger
	})
	if err != nil {
		return nil, nil, err
	}

	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	return st, logger, nil
}

func runMigrateUp(cmd *cobra.Command, configPath string) error {
	st, logger, err := openPostgres(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(cmd.Context()); err != nil {
		return err
	}

	logger.Info("migrate.completed")

	return nil
}

func runMigrateStatus(cmd *cobra.Command, configPath string) error {
	st, _, err := openPostgres(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	statuses, err := st.Status(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT")

	for _, s := range statuses {
		state, at := "pending", "-"
		if s.Applied {
			state = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, state, at)
	}

	return w.Flush()
}

// ---- config ----

func runConfigValidate(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid (provider=%s, store=%s, addr=%s)\n",
		cfg.Model.Provider, cfg.Store.Driver, cfg.Server.Addr)

	return nil
}

// ---- tools ----

func runTools(cmd *cobra.Command, withCatalog bool) error {
	reg := tool.NewRegistry()

	var (
		catalog  store.Catalog
		sessions store.Store
	)

	if withCatalog {
		mem := store.NewMemoryStore()
		catalog, sessions = mem, mem
	}

	if err := builtin.Register(reg, catalog, sessions); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLOCALITY\tVISIBILITY")

	for _, d := range reg.ListDeclarations(nil) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Locality, d.Visibility)
	}

	return w.Flush()
}
