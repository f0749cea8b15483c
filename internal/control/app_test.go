package control

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/commune/internal/core/config"
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/core/txerr"
	"github.com/vietddude/commune/internal/infra/storage"
	"github.com/vietddude/commune/internal/infra/storage/memory"
	"github.com/vietddude/commune/internal/txcore/encoder"
	"github.com/vietddude/commune/internal/txcore/reconcile"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func testConfig(t *testing.T, key string) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Chain: config.ChainConfig{
			ChainID:           domain.ChainIDBaseSepolia,
			Name:              "base-sepolia",
			CommuneContract:   "0x00000000000000000000000000000000000000c0",
			TokenContract:     "0x00000000000000000000000000000000000000c1",
			CollateralManager: "0x00000000000000000000000000000000000000c2",
			Providers: []config.ProviderConfig{
				{Name: "local", URL: "http://127.0.0.1:1", Timeout: time.Second},
			},
		},
		Session: config.SessionConfig{
			PrivateKey:   key,
			InitialChain: domain.ChainIDBaseSepolia,
			SendTimeout:  time.Second,
		},
		Watcher:     config.WatcherConfig{PollInterval: 10 * time.Millisecond, Timeout: time.Second},
		Reconciler:  config.ReconcilerConfig{DisplayDelay: time.Millisecond, RefetchWindow: time.Hour, RegistryTTL: time.Minute, StuckAfter: time.Minute},
		Preferences: config.PreferencesConfig{Path: filepath.Join(t.TempDir(), "prefs.db")},
	}
}

func TestNewApp_Disconnected(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t, ""))
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.Session().Connected())
	assert.IsType(t, &memory.ActionRepo{}, app.History())
	require.NotNil(t, app.Prefs())

	out := app.Coordinator().Submit(context.Background(), reconcile.Request{
		Kind: domain.ActionJoinCommune,
		Args: encoder.Args{
			encoder.FieldCommuneID: "1",
			encoder.FieldNonce:     "7",
			encoder.FieldSignature: "0x01",
			encoder.FieldUsername:  "ana",
		},
	})
	assert.True(t, out.Failed())
	var notConn *txerr.NotConnectedError
	assert.True(t, errors.As(out.Err, &notConn), "err = %v", out.Err)

	var refetchErr *txerr.NotConnectedError
	assert.True(t, errors.As(app.Coordinator().Refetch(context.Background()), &refetchErr))
}

func TestNewApp_WithKey(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t, "0x"+testKey))
	require.NoError(t, err)
	defer app.Close()

	assert.True(t, app.Session().Connected())
	assert.Equal(t, uint64(domain.ChainIDBaseSepolia), app.Session().ChainID())
	assert.NotEmpty(t, app.Session().Address())
}

func TestNewApp_Errors(t *testing.T) {
	cfg := testConfig(t, "not-hex")
	_, err := NewApp(context.Background(), cfg)
	assert.ErrorContains(t, err, "private_key")

	cfg = testConfig(t, testKey)
	cfg.Session.InitialChain = domain.ChainIDEthereum
	_, err = NewApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewApp_HealthRoutes(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t, ""))
	require.NoError(t, err)
	defer app.Close()

	srv := httptest.NewServer(app.server.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/actions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The node is unreachable so the chain component is not healthy.
	report := app.Monitor().CheckHealth(context.Background())
	assert.NotEqual(t, "healthy", string(report.SystemStatus))
	assert.Contains(t, report.Components, "chain")
	assert.Contains(t, report.Components, "actions")
}

func TestHistoryFallsBackToMemory(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t, ""))
	require.NoError(t, err)
	defer app.Close()

	actions, err := app.History().ListActions(context.Background(), storage.ActionFilter{})
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestNewApp_SponsorRelay(t *testing.T) {
	cfg := testConfig(t, testKey)
	cfg.Chain.SponsorURL = "http://127.0.0.1:1/relay"
	cfg.Session.Sponsor = true

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	require.Contains(t, app.clients, sponsorClientID)
	assert.Len(t, app.clients, 2)
}
