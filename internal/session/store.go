// Package session holds the client-side state of one assistant session and
// reconciles the HTTP run/poll flow with push-channel updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/transport"
	"github.com/ashureev/shopping-assistant/internal/viewmodel"
)

const (
	// DefaultPollInterval is the delay between status polls during a run.
	DefaultPollInterval = time.Second
	// DefaultMaxPollFailures is how many status polls in a row may fail
	// before the run is abandoned with an error.
	DefaultMaxPollFailures = 3
	defaultRequestTimeout  = 30 * time.Second
)

// API is the subset of the backend the run protocol needs.
// *transport.Client implements it.
type API interface {
	Run(ctx context.Context, query string) (*transport.RunResponse, error)
	Status(ctx context.Context) (*domain.Status, error)
	ShoppingList(ctx context.Context) ([]domain.ShoppingItem, error)
	Stop(ctx context.Context) error
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Version         uint64
	Query           string
	Processing      bool
	Logs            []domain.LogEntry
	AgentStatus     domain.AgentStatusMap
	CurrentTask     string
	ShoppingList    []domain.ShoppingItem
	BrowserActivity *domain.BrowserActivity
	CurrentURL      string
	BrowserHistory  []domain.BrowserHistoryEntry
	Connected       bool
	LastError       error
}

// Store is the only writer of session state. Every update is applied under
// one lock so readers never observe a partially applied event.
type Store struct {
	api            API
	logger         *slog.Logger
	pollInterval   time.Duration
	maxPollFails   int
	requestTimeout time.Duration
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      Snapshot
	generation uint64
	closed     bool
	changes    chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithPollInterval sets the status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithMaxPollFailures sets how many consecutive status poll failures end the
// run with an error.
func WithMaxPollFailures(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxPollFails = n
		}
	}
}

// WithRequestTimeout bounds each backend request made by the store.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an idle session backed by api.
func New(api API, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		api:            api,
		logger:         slog.Default(),
		pollInterval:   DefaultPollInterval,
		maxPollFails:   DefaultMaxPollFailures,
		requestTimeout: defaultRequestTimeout,
		now:            time.Now,
		ctx:            ctx,
		cancel:         cancel,
		changes:        make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Changes signals after state changes. Signals coalesce: one receive may
// stand for several updates, so receivers should read a fresh Snapshot.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state
	snap.Logs = slices.Clone(s.state.Logs)
	snap.AgentStatus = s.state.AgentStatus.Clone()
	snap.ShoppingList = domain.CloneItems(s.state.ShoppingList)
	snap.BrowserHistory = slices.Clone(s.state.BrowserHistory)
	if s.state.BrowserActivity != nil {
		a := *s.state.BrowserActivity
		snap.BrowserActivity = &a
	}
	return snap
}

// Submit starts a run for query. It returns false without touching any state
// when the query is blank or a run is already in flight.
func (s *Store) Submit(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}

	s.mu.Lock()
	if s.closed || s.state.Processing {
		s.mu.Unlock()
		return false
	}
	s.state.Query = query
	s.state.Processing = true
	s.state.Logs = nil
	s.state.ShoppingList = nil
	s.state.BrowserActivity = nil
	s.state.CurrentURL = ""
	s.state.CurrentTask = domain.TaskProcessing
	s.state.LastError = nil
	s.generation++
	gen := s.generation
	s.changedLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(gen, query)
	return true
}

// Stop asks the backend to stop the current run. The run only ends locally
// once the poll loop observes the stopped status.
func (s *Store) Stop(ctx context.Context) error {
	if err := s.api.Stop(ctx); err != nil {
		s.logger.Warn("Stop request failed", "error", err)
		return err
	}
	s.logger.Info("Stop requested")
	return nil
}

// Close stops the poll loop and waits for it to exit. Push channels attached
// with Attach are owned by the caller and must be closed separately.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// SetConnected records the push-channel connection state.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Connected == connected {
		return
	}
	s.state.Connected = connected
	s.changedLocked()
}

// ApplyLog appends a console line.
func (s *Store) ApplyLog(entry domain.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Logs = append(s.state.Logs, entry)
	s.changedLocked()
}

// ApplyAgentStatus replaces the agent status map.
func (s *Store) ApplyAgentStatus(status domain.AgentStatusMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setAgentStatusLocked(status) {
		s.changedLocked()
	}
}

// ApplyCurrentTask replaces the current task label.
func (s *Store) ApplyCurrentTask(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setCurrentTaskLocked(task) {
		s.changedLocked()
	}
}

// ApplyShoppingList replaces the result list.
func (s *Store) ApplyShoppingList(items []domain.ShoppingItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setShoppingListLocked(items) {
		s.changedLocked()
	}
}

// ApplyBrowserActivity records the latest browser event. A navigation also
// moves the current URL and appends to the browser history.
func (s *Store) ApplyBrowserActivity(activity domain.BrowserActivity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.BrowserActivity = &activity
	if activity.IsNavigation() {
		s.state.CurrentURL = activity.URL
		s.state.BrowserHistory = append(s.state.BrowserHistory, domain.BrowserHistoryEntry{
			ID:        newHistoryID(),
			URL:       activity.URL,
			Title:     viewmodel.PageTitle(activity.URL),
			Timestamp: s.now(),
		})
	}
	s.changedLocked()
}

func (s *Store) run(gen uint64, query string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.requestTimeout)
	resp, err := s.api.Run(ctx, query)
	cancel()
	if err != nil {
		s.fail(gen, err)
		return
	}
	s.logger.Info("Run started", "run_id", resp.RunID, "query", query)
	s.poll(gen)
}

func (s *Store) fail(gen uint64, err error) {
	if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
		return
	}
	s.logger.Error("Run failed", "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || !s.state.Processing {
		return
	}
	s.state.Processing = false
	s.state.CurrentTask = domain.ErrorTask(errorMessage(err))
	s.state.LastError = err
	s.changedLocked()
}

// poll fetches the run status every interval until a terminal task is seen,
// then loads the final list exactly once. Too many failed polls in a row end
// the run with an error.
func (s *Store) poll(gen uint64) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(s.ctx, s.requestTimeout)
		status, err := s.api.Status(ctx)
		cancel()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			failures++
			s.logger.Warn("Status poll failed", "error", err, "consecutive", failures)
			if failures >= s.maxPollFails {
				s.fail(gen, fmt.Errorf("status poll: %w", err))
				return
			}
			continue
		}
		failures = 0

		current, terminal := s.applyStatus(gen, status)
		if !current {
			return
		}
		if terminal {
			s.loadFinalList(gen)
			return
		}
	}
}

func (s *Store) applyStatus(gen uint64, status *domain.Status) (current, terminal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || !s.state.Processing {
		return false, false
	}

	changed := s.setCurrentTaskLocked(status.CurrentTask)
	if s.setAgentStatusLocked(status.AgentStatus) {
		changed = true
	}
	terminal = domain.IsTerminalTask(status.CurrentTask)
	if terminal {
		s.state.Processing = false
		changed = true
	}
	if changed {
		s.changedLocked()
	}
	return true, terminal
}

func (s *Store) loadFinalList(gen uint64) {
	ctx, cancel := context.WithTimeout(s.ctx, s.requestTimeout)
	items, err := s.api.ShoppingList(ctx)
	cancel()
	if err != nil {
		s.logger.Warn("Final shopping list fetch failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	if s.setShoppingListLocked(items) {
		s.changedLocked()
	}
	s.logger.Debug("Final shopping list loaded", "items", len(items))
}

func (s *Store) setCurrentTaskLocked(task string) bool {
	if s.state.CurrentTask == task {
		return false
	}
	s.state.CurrentTask = task
	return true
}

func (s *Store) setAgentStatusLocked(status domain.AgentStatusMap) bool {
	if s.state.AgentStatus != nil && maps.Equal(s.state.AgentStatus, status) {
		return false
	}
	s.state.AgentStatus = status.Clone()
	if s.state.AgentStatus == nil {
		s.state.AgentStatus = domain.AgentStatusMap{}
	}
	return true
}

func (s *Store) setShoppingListLocked(items []domain.ShoppingItem) bool {
	if s.state.ShoppingList != nil && slices.Equal(s.state.ShoppingList, items) {
		return false
	}
	s.state.ShoppingList = domain.CloneItems(items)
	if s.state.ShoppingList == nil {
		s.state.ShoppingList = []domain.ShoppingItem{}
	}
	return true
}

func (s *Store) changedLocked() {
	s.state.Version++
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func errorMessage(err error) string {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func newHistoryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
