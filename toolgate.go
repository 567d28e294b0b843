// Package toolgate assembles a tool-calling chat service from a config.Config:
// the store, the tool registry, the model backend, the conversion client,
// the engine and the HTTP surface.
//
// Most applications only need Open:
//
//	app, err := toolgate.Open(ctx, cfg)
//	if err != nil { ... }
//	defer app.Close()
//	http.ListenAndServe(cfg.Server.Addr, app.Handler)
//
// Options override individual components, which is how tests swap in a
// mock model or a prepared store.
package toolgate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/toolgate/api"
	"github.com/hupe1980/toolgate/config"
	"github.com/hupe1980/toolgate/convert"
	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/engine"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/model"
	anthropicmodel "github.com/hupe1980/toolgate/model/anthropic"
	"github.com/hupe1980/toolgate/model/gemini"
	openaimodel "github.com/hupe1980/toolgate/model/openai"
	"github.com/hupe1980/toolgate/store"
	"github.com/hupe1980/toolgate/store/postgres"
	"github.com/hupe1980/toolgate/store/sqlite"
	"github.com/hupe1980/toolgate/tool"
	"github.com/hupe1980/toolgate/tool/builtin"
)

// Options overrides components Open would otherwise build from the config.
type Options struct {
	// Model replaces the provider adapter selected by cfg.Model.Provider.
	Model model.Model

	// Store replaces the driver selected by cfg.Store.Driver. Open does not
	// close a supplied store.
	Store store.Store

	// Converter replaces the client built from cfg.Converter.
	Converter convert.Converter

	// Registry receives the engine metrics and backs /metrics. Defaults to
	// a fresh registry.
	Registry *prometheus.Registry

	Logger    logging.Logger
	Callbacks *engine.CallbackManager
}

// App is an assembled service.
type App struct {
	Engine   *engine.Engine
	Store    store.Store
	Tools    *tool.Registry
	Metrics  *prometheus.Registry
	Handler  http.Handler
	closeFns []func() error
}

// Open builds an App from cfg. cfg is validated first unless a model
// override makes the API key irrelevant.
func Open(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*App, error) {
	var opts Options

	for _, fn := range optFns {
		fn(&opts)
	}

	if cfg == nil {
		cfg = config.Default()
	}

	if opts.Model == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if opts.Logger == nil {
		opts.Logger = logging.New(cfg.LoggerConfig())
	}

	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	app := &App{Metrics: opts.Registry}

	st := opts.Store
	if st == nil {
		var err error

		st, err = openStore(ctx, cfg.Store, opts.Logger)
		if err != nil {
			return nil, err
		}

		app.closeFns = append(app.closeFns, st.Close)
	}

	app.Store = st

	m := opts.Model
	if m == nil {
		var err error

		m, err = openModel(ctx, cfg.Model)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	conv := opts.Converter
	if conv == nil && cfg.Converter.URL != "" {
		client, err := convert.New(cfg.Converter.URL, func(o *convert.Options) {
			o.HTTPClient = &http.Client{Timeout: cfg.Converter.Timeout}
			o.Logger = opts.Logger
		})
		if err != nil {
			_ = app.Close()
			return nil, err
		}

		conv = client
	}

	app.Tools = tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Logger = opts.Logger
	})

	catalog, _ := st.(store.Catalog)
	if err := builtin.Register(app.Tools, catalog, st); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	app.Engine = engine.New(st, app.Tools, model.NewBackend(m), func(o *engine.Options) {
		o.SystemInstruction = cfg.Engine.SystemInstruction
		o.ScopeInstruction = cfg.Engine.ScopeInstruction
		o.MaxAutoDenyRounds = cfg.Engine.MaxAutoDenyRounds
		o.Callbacks = opts.Callbacks
		o.Registerer = opts.Registry
		o.Logger = opts.Logger

		if conv != nil {
			o.Converter = conv
		}
	})

	app.Handler = api.New(app.Engine, st, func(o *api.Options) {
		o.Catalog = catalog
		o.Gatherer = opts.Registry
		o.Logger = opts.Logger
		o.MaxBodyBytes = cfg.Server.MaxBodyBytes
	}).Handler()

	opts.Logger.Info("toolgate.opened",
		"store", cfg.Store.Driver,
		"model", m.Info().Name,
		"tools", app.Tools.Len(),
		"catalog", catalog != nil,
		"converter", conv != nil,
	)

	return app, nil
}

// StartTurn forwards to the engine.
func (a *App) StartTurn(ctx context.Context, sessionID int64, parts []core.Part) (*core.TurnOutcome, error) {
	return a.Engine.StartTurn(ctx, sessionID, parts)
}

// ResolvePendingBatch forwards to the engine.
func (a *App) ResolvePendingBatch(
	ctx context.Context,
	sessionID int64,
	approved bool,
	results []core.FrontendResult,
) (*core.TurnOutcome, error) {
	return a.Engine.ResolvePendingBatch(ctx, sessionID, approved, results)
}

// Close releases the components Open created.
func (a *App) Close() error {
	var errs []error

	for i := len(a.closeFns) - 1; i >= 0; i-- {
		if err := a.closeFns[i](); err != nil {
			errs = append(errs, err)
		}
	}

	a.closeFns = nil

	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger logging.Logger) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return store.NewMemoryStore(), nil
	case config.DriverSQLite:
		return sqlite.New(func(o *sqlite.Options) {
			o.Path = cfg.Path
			o.Logger = logger
		})
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DSN, func(o *postgres.Options) {
			o.Logger = logger
			o.AutoMigrate = cfg.AutoMigrate
		})
	default:
		return nil, &core.ConfigurationError{Field: "store.driver", Reason: fmt.Sprintf("unknown driver %q", cfg.Driver)}
	}
}

func openModel(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			o.APIKey = cfg.APIKey
			if cfg.Name != "" {
				o.Model = cfg.Name
			}

			if cfg.Temperature != nil {
				t := float32(*cfg.Temperature)
				o.Temperature = &t
			}
		})
	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, &core.ConfigurationError{Field: "model.api_key", Reason: "required"}
		}

		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.APIKey = cfg.APIKey
			if cfg.Name != "" {
				o.Model = anthropic.Model(cfg.Name)
			}

			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
		}), nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, &core.ConfigurationError{Field: "model.api_key", Reason: "required"}
		}

		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.APIKey = cfg.APIKey
			if cfg.Name != "" {
				o.Model = cfg.Name
			}

			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
		}), nil
	default:
		return nil, &core.ConfigurationError{Field: "model.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
}
