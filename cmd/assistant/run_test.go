package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/shopping-assistant/internal/agent"
	"github.com/ashureev/shopping-assistant/internal/api"
	"github.com/ashureev/shopping-assistant/internal/config"
	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/output"
	"github.com/ashureev/shopping-assistant/internal/store"
	"github.com/ashureev/shopping-assistant/internal/stream"
	"github.com/ashureev/shopping-assistant/internal/transport"
)

func startBackend(t *testing.T, delay time.Duration) string {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	catalog, err := agent.DefaultCatalog()
	require.NoError(t, err)
	hub := stream.NewHub(nil)
	runner := agent.NewRunner(catalog, hub, agent.WithStepDelay(delay), agent.WithRecorder(repo))

	base := api.NewHandler(runner, catalog, repo)
	r := chi.NewRouter()
	api.NewHealthHandler(repo).RegisterHealth(r)
	api.NewAssistantHandler(base).RegisterRoutes(r)
	api.NewShoppingHandler(base).RegisterRoutes(r)
	r.Get("/ws", stream.NewHandler(hub, "*", true).ServeHTTP)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.CloseAll)
	t.Cleanup(runner.Close)
	return srv.URL
}

func testConfig(apiURL string) *config.ClientConfig {
	return &config.ClientConfig{
		APIURL:         apiURL,
		PollInterval:   20 * time.Millisecond,
		PollFailures:   3,
		RequestTimeout: 2 * time.Second,
		ReconnectMode:  "fixed",
		ReconnectDelay: 50 * time.Millisecond,
	}
}

func captureUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := ui
	ui = &output.UI{Out: buf, ErrOut: buf, Location: time.UTC}
	t.Cleanup(func() { ui = prev })
	return buf
}

func TestFollowCompletesRunOverPushAndPoll(t *testing.T) {
	apiURL := startBackend(t, 5*time.Millisecond)
	buf := captureUI(t)
	cfg := testConfig(apiURL)

	c, err := newClients(cfg, slog.Default())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	c.connect(ctx, cfg)
	require.Eventually(t, func() bool { return c.store.Snapshot().Connected }, time.Second, 5*time.Millisecond)

	require.True(t, c.store.Submit("weekly groceries"))
	snap, err := follow(ctx, c.store, 5*time.Second)
	require.NoError(t, err)

	assert.False(t, snap.Processing)
	assert.Equal(t, domain.TaskCompleted, snap.CurrentTask)
	assert.Len(t, snap.ShoppingList, 4)
	assert.Len(t, snap.BrowserHistory, 5)
	assert.Contains(t, buf.String(), "Detected query type: grocery")
	assert.Contains(t, buf.String(), "weekly groceries - Walmart")
}

func TestFollowInterruptStopsRun(t *testing.T) {
	apiURL := startBackend(t, time.Hour)
	buf := captureUI(t)
	cfg := testConfig(apiURL)

	c, err := newClients(cfg, slog.Default())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, c.store.Submit("new laptop"))
	require.Eventually(t, func() bool {
		return c.store.Snapshot().CurrentTask != domain.TaskProcessing
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	snap, err := follow(ctx, c.store, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStoppedByUser, snap.CurrentTask)
	assert.Empty(t, snap.ShoppingList)
	assert.Contains(t, buf.String(), "Interrupted")
}

func TestFollowTimesOut(t *testing.T) {
	apiURL := startBackend(t, time.Hour)
	captureUI(t)
	cfg := testConfig(apiURL)

	c, err := newClients(cfg, slog.Default())
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.store.Submit("hotel in rome"))
	_, err = follow(context.Background(), c.store, 100*time.Millisecond)
	assert.ErrorContains(t, err, "did not finish")
}

func TestCatalogItems(t *testing.T) {
	c := transport.NewClient(startBackend(t, 0))

	items, err := catalogItems(context.Background(), c, "travel")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	saved, err := catalogItems(context.Background(), c, "saved")
	require.NoError(t, err)
	assert.Empty(t, saved)

	_, err = catalogItems(context.Background(), c, "pets")
	assert.Error(t, err)
}
