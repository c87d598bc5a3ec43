package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/viewmodel"
)

func newTestUI(t *testing.T) (*UI, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut, Location: time.UTC}, out, errOut
}

func TestLevels(t *testing.T) {
	u, out, errOut := newTestUI(t)
	u.Info("hello %s", "world")
	u.Success("done %d", 42)
	u.Warning("careful %s", "now")
	u.Error("failed %s", "badly")

	assert.Contains(t, out.String(), "hello world")
	assert.Contains(t, out.String(), "done 42")
	assert.Contains(t, errOut.String(), "careful now")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog(t *testing.T) {
	u, out, _ := newTestUI(t)
	u.VerboseLog("hidden")
	assert.Empty(t, out.String())

	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestLogIncludesTime(t *testing.T) {
	u, out, _ := newTestUI(t)
	ts := time.Date(2024, 5, 1, 14, 3, 9, 0, time.UTC)
	u.Log(domain.LogEntry{Timestamp: float64(ts.Unix()), Type: domain.LogSuccess, Message: "Successfully processed query: milk"})

	assert.Contains(t, out.String(), "14:03:09")
	assert.Contains(t, out.String(), "Successfully processed query: milk")
}

func TestNavigationShowsTitle(t *testing.T) {
	u, out, _ := newTestUI(t)
	u.Navigation("https://www.kroger.com/search?q=oat+milk")
	assert.Contains(t, out.String(), "oat milk - Kroger")
}

func TestResultsTable(t *testing.T) {
	u, out, _ := newTestUI(t)
	items := []domain.ShoppingItem{
		{Name: "Oat Milk", Price: 4.49, Quantity: 2, Unit: "carton", Store: "Kroger", Category: "dairy"},
		{Name: "Quinoa", Price: 6.99, Store: "Whole Foods", Category: "grains"},
	}
	require.NoError(t, u.Results(viewmodel.BuildResults(items, viewmodel.GroupByStore)))

	s := out.String()
	assert.Contains(t, s, "Shopping List")
	assert.Contains(t, s, "Kroger")
	assert.Contains(t, s, "2 carton")
	assert.Contains(t, s, "$8.98")
	assert.Contains(t, s, "$15.97")
	assert.Contains(t, s, "Checkout")
}

func TestResultsEmpty(t *testing.T) {
	u, out, _ := newTestUI(t)
	require.NoError(t, u.Results(viewmodel.BuildResults(nil, viewmodel.GroupByStore)))
	assert.Contains(t, out.String(), "No results")
}

func TestAgentStatusOrder(t *testing.T) {
	u, out, _ := newTestUI(t)
	require.NoError(t, u.AgentStatus(domain.AgentStatusMap{
		"browser":          domain.AgentActive,
		"price_comparison": domain.AgentIdle,
	}))
	s := out.String()
	assert.Less(t, bytes.Index([]byte(s), []byte("Price Comparison")), bytes.Index([]byte(s), []byte("Browser")))
	assert.Contains(t, s, "active")
}

func TestHistoryAndQueries(t *testing.T) {
	u, out, _ := newTestUI(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, u.RecentQueries([]domain.RecentQuery{{Query: "new laptop", Kind: domain.QueryTech, CreatedAt: at}}))
	require.NoError(t, u.History([]domain.HistoryRecord{{URL: "https://www.bestbuy.com/search?q=laptop", Title: "laptop - Bestbuy", VisitedAt: at}}))

	s := out.String()
	assert.Contains(t, s, "2024-05-01 09:00:00")
	assert.Contains(t, s, "new laptop")
	assert.Contains(t, s, "laptop - Bestbuy")
}

func TestTaskColorPlain(t *testing.T) {
	_, _, _ = newTestUI(t)
	assert.Equal(t, domain.TaskCompleted, TaskColor(domain.TaskCompleted))
	assert.Equal(t, "idle", AgentStateColor(domain.AgentIdle))
}
