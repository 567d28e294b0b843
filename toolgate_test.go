package toolgate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/config"
	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/model"
	"github.com/hupe1980/toolgate/store"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.SystemInstruction = "You manage repositories."

	return cfg
}

func openWithMock(t *testing.T, cfg *config.Config, m *model.MockModel) *App {
	t.Helper()

	app, err := Open(context.Background(), cfg, func(o *Options) {
		o.Model = m
		o.Logger = logging.NoOpLogger{}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	return app
}

func TestOpen_MemoryStore(t *testing.T) {
	m := model.NewMockModel("mock").Reply("hello")
	app := openWithMock(t, testConfig(), m)

	_, isCatalog := app.Store.(store.Catalog)
	assert.True(t, isCatalog)
	assert.Equal(t, 25, app.Tools.Len())

	sess, err := app.Store.CreateSession(context.Background(), nil, "General Chat")
	require.NoError(t, err)

	out, err := app.StartTurn(context.Background(), sess.ID, []core.Part{core.TextPart{Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Reply)

	req, ok := m.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "You manage repositories.", req.Instructions)
}

func TestOpen_ApprovalRoundTrip(t *testing.T) {
	m := model.NewMockModel("mock").
		Call(core.FunctionCall{ID: "c1", Name: "repo_list"}).
		Reply("no repositories")
	app := openWithMock(t, testConfig(), m)

	sess, err := app.Store.CreateSession(context.Background(), nil, "General Chat")
	require.NoError(t, err)

	out, err := app.StartTurn(context.Background(), sess.ID, []core.Part{core.TextPart{Text: "list"}})
	require.NoError(t, err)
	require.Equal(t, core.OutcomeToolCalls, out.Kind())

	out, err = app.ResolvePendingBatch(context.Background(), sess.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "no repositories", out.Reply)
	require.Len(t, out.Executions, 1)
	assert.Equal(t, "repo_list", out.Executions[0].Name)
}

func TestOpen_SQLiteStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.Path = filepath.Join(t.TempDir(), "toolgate.db")

	app := openWithMock(t, cfg, model.NewMockModel("mock"))

	_, err := app.Store.CreateSession(context.Background(), nil, "General Chat")
	require.NoError(t, err)
}

func TestOpen_Handler(t *testing.T) {
	app := openWithMock(t, testConfig(), model.NewMockModel("mock"))

	srv := httptest.NewServer(app.Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/repos")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "toolgate_")
}

func TestOpen_SuppliedStoreIsNotClosed(t *testing.T) {
	mem := store.NewMemoryStore()

	app, err := Open(context.Background(), testConfig(), func(o *Options) {
		o.Model = model.NewMockModel("mock")
		o.Store = mem
		o.Logger = logging.NoOpLogger{}
	})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	_, err = mem.CreateSession(context.Background(), nil, "still open")
	assert.NoError(t, err)
}

func TestOpen_ConfigurationErrors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Engine.SystemInstruction = ""

		_, err := Open(context.Background(), cfg)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := openModel(context.Background(), config.ModelConfig{Provider: config.ProviderGemini})

		var cfgErr *core.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := openModel(context.Background(), config.ModelConfig{Provider: "llama", APIKey: "k"})
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := openStore(context.Background(), config.StoreConfig{Driver: "mysql"}, logging.NoOpLogger{})
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}

func TestOpenModel_Providers(t *testing.T) {
	temp := 0.2

	for _, provider := range []string{config.ProviderAnthropic, config.ProviderOpenAI} {
		t.Run(provider, func(t *testing.T) {
			m, err := openModel(context.Background(), config.ModelConfig{
				Provider:    provider,
				APIKey:      "key",
				Temperature: &temp,
			})
			require.NoError(t, err)
			assert.Equal(t, provider, m.Info().Provider)
		})
	}
}
