package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/metrics"
	"github.com/ashureev/shopping-assistant/internal/protocol"
	"github.com/ashureev/shopping-assistant/internal/viewmodel"
)

// DefaultStepDelay is the pause after each agent step and site visit.
const DefaultStepDelay = time.Second

var (
	// ErrEmptyQuery is returned when a run is started without a query.
	ErrEmptyQuery = errors.New("query is required")
	// ErrAlreadyRunning is returned when a run is already in progress.
	ErrAlreadyRunning = errors.New("a query is already being processed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("runner closed")
)

// Publisher broadcasts push frames to connected clients.
type Publisher interface {
	Publish(frame any)
}

// Recorder persists run side effects.
type Recorder interface {
	RecordQuery(ctx context.Context, q domain.RecentQuery) error
	RecordNavigation(ctx context.Context, rec domain.HistoryRecord) error
}

// Runner executes one assistant run at a time and owns the backend's view of
// its progress.
type Runner struct {
	catalog   *Catalog
	pub       Publisher
	rec       Recorder
	logger    *slog.Logger
	stepDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	running     bool
	runID       string
	kind        domain.QueryKind
	startedAt   time.Time
	stopRun     context.CancelFunc
	currentTask string
	agentStatus domain.AgentStatusMap
	logs        []domain.LogEntry
	items       []domain.ShoppingItem
}

// Option configures a Runner.
type Option func(*Runner)

// WithStepDelay sets the pause between steps.
func WithStepDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.stepDelay = d
		}
	}
}

// WithRecorder persists queries and navigations.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.rec = rec }
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates an idle runner.
func NewRunner(catalog *Catalog, pub Publisher, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		catalog:     catalog,
		pub:         pub,
		logger:      slog.Default(),
		stepDelay:   DefaultStepDelay,
		ctx:         ctx,
		cancel:      cancel,
		currentTask: domain.TaskInitializing,
		agentStatus: allAgents(domain.AgentIdle),
		logs:        []domain.LogEntry{},
		items:       []domain.ShoppingItem{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the scenario catalog.
func (r *Runner) Catalog() *Catalog {
	return r.catalog
}

// Start begins a run for query and returns its id.
func (r *Runner) Start(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}
	if r.running {
		metrics.RunConflict()
		return "", ErrAlreadyRunning
	}

	scenario := r.catalog.Classify(query)
	ctx, stop := context.WithCancel(r.ctx)

	r.running = true
	r.runID = ulid.Make().String()
	r.kind = scenario.Kind
	r.startedAt = time.Now()
	r.stopRun = stop
	r.logs = []domain.LogEntry{}
	r.items = []domain.ShoppingItem{}
	r.currentTask = "Processing query: " + query
	r.agentStatus = allAgents(domain.AgentInitializing)

	r.pub.Publish(protocol.NewShoppingList(r.items))
	r.pub.Publish(protocol.NewAgentStatus(r.agentStatus.Clone()))
	r.pub.Publish(protocol.NewCurrentTask(r.currentTask))

	r.wg.Add(1)
	go r.run(ctx, r.runID, query, scenario)

	r.logger.Info("Run started", "run_id", r.runID, "kind", scenario.Kind, "query", query)
	return r.runID, nil
}

// Stop cancels the active run. It reports whether a run was stopped.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return false
	}

	r.stopRun()
	r.running = false
	r.currentTask = domain.TaskStoppedByUser
	r.agentStatus = allAgents(domain.AgentIdle)
	entry := domain.NewLogEntry(domain.LogWarning, "Run stopped by user")
	r.logs = append(r.logs, entry)

	r.pub.Publish(protocol.NewAgentLog(entry))
	r.pub.Publish(protocol.NewAgentStatus(r.agentStatus.Clone()))
	r.pub.Publish(protocol.NewCurrentTask(r.currentTask))

	metrics.RunFinished(string(r.kind), "stopped", time.Since(r.startedAt))
	r.logger.Info("Run stopped", "run_id", r.runID)
	return true
}

// Status returns the current task and agent states.
func (r *Runner) Status() domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Status{
		CurrentTask: r.currentTask,
		AgentStatus: r.agentStatus.Clone(),
	}
}

// RunStatus returns Status plus whether a run is in progress.
func (r *Runner) RunStatus() domain.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RunStatus{
		IsRunning:   r.running,
		CurrentTask: r.currentTask,
		AgentStatus: r.agentStatus.Clone(),
	}
}

// Logs returns the log lines of the latest run.
func (r *Runner) Logs() []domain.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LogEntry, len(r.logs))
	copy(out, r.logs)
	return out
}

// Items returns the result list of the latest run.
func (r *Runner) Items() []domain.ShoppingItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ShoppingItem, len(r.items))
	copy(out, r.items)
	return out
}

// Close cancels any run and waits for it to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, runID, query string, s *Scenario) {
	defer r.wg.Done()

	r.recordQuery(domain.RecentQuery{Query: query, Kind: s.Kind, CreatedAt: time.Now()})

	if !r.log(runID, domain.LogInfo, "Initializing assistant with query: "+query) {
		return
	}
	if !r.log(runID, domain.LogInfo, fmt.Sprintf("Detected query type: %s", s.Kind)) {
		return
	}

	prev := ""
	for _, step := range s.Steps {
		if !r.activate(runID, prev, step.Agent) {
			return
		}
		prev = step.Agent
		if !r.sleep(ctx) {
			return
		}
		if step.Message != "" && !r.log(runID, domain.LogInfo, step.Message) {
			return
		}
	}

	if !r.activate(runID, prev, "browser") {
		return
	}
	for _, site := range s.Browse.Sites {
		target := NavigationURL(site, query)
		ok := r.update(runID, func() []any {
			entry := domain.NewLogEntry(domain.LogInfo, s.BrowseMessage(site))
			r.logs = append(r.logs, entry)
			return []any{protocol.NewAgentLog(entry), protocol.NewNavigation(target)}
		})
		if !ok {
			return
		}
		r.recordNavigation(target)
		if !r.sleep(ctx) {
			return
		}
	}

	items := s.ItemsFor(query)
	ok := r.update(runID, func() []any {
		r.items = items
		entry := domain.NewLogEntry(domain.LogSuccess, "Successfully processed query: "+query)
		r.logs = append(r.logs, entry)
		return []any{protocol.NewShoppingList(domain.CloneItems(items)), protocol.NewAgentLog(entry)}
	})
	if !ok {
		return
	}

	var elapsed time.Duration
	ok = r.update(runID, func() []any {
		r.running = false
		r.stopRun()
		r.currentTask = domain.TaskCompleted
		r.agentStatus = allAgents(domain.AgentIdle)
		elapsed = time.Since(r.startedAt)
		return []any{protocol.NewAgentStatus(r.agentStatus.Clone()), protocol.NewCurrentTask(r.currentTask)}
	})
	if ok {
		metrics.RunFinished(string(s.Kind), "completed", elapsed)
		r.logger.Info("Run completed", "run_id", runID, "kind", s.Kind, "items", len(items), "elapsed", elapsed)
	}
}

// update applies fn and publishes its frames if runID is still the active
// run. Frames are published under the lock so clients see them in order.
func (r *Runner) update(runID string, fn func() []any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || r.runID != runID {
		return false
	}
	for _, frame := range fn() {
		r.pub.Publish(frame)
	}
	return true
}

func (r *Runner) log(runID string, typ domain.LogType, message string) bool {
	return r.update(runID, func() []any {
		entry := domain.NewLogEntry(typ, message)
		r.logs = append(r.logs, entry)
		return []any{protocol.NewAgentLog(entry)}
	})
}

// activate marks agent active and the previous one idle.
func (r *Runner) activate(runID, prev, agent string) bool {
	return r.update(runID, func() []any {
		if prev != "" {
			r.agentStatus[prev] = domain.AgentIdle
		}
		r.agentStatus[agent] = domain.AgentActive
		r.currentTask = fmt.Sprintf("Running %s agent", strings.ReplaceAll(agent, "_", " "))
		return []any{protocol.NewAgentStatus(r.agentStatus.Clone()), protocol.NewCurrentTask(r.currentTask)}
	})
}

func (r *Runner) sleep(ctx context.Context) bool {
	if r.stepDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(r.stepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Runner) recordQuery(q domain.RecentQuery) {
	if r.rec == nil {
		return
	}
	if err := r.rec.RecordQuery(r.ctx, q); err != nil {
		r.logger.Warn("Failed to record query", "error", err)
	}
}

func (r *Runner) recordNavigation(target string) {
	if r.rec == nil {
		return
	}
	rec := domain.HistoryRecord{URL: target, Title: viewmodel.PageTitle(target), VisitedAt: time.Now()}
	if err := r.rec.RecordNavigation(r.ctx, rec); err != nil {
		r.logger.Warn("Failed to record navigation", "url", target, "error", err)
	}
}

func allAgents(state domain.AgentState) domain.AgentStatusMap {
	m := make(domain.AgentStatusMap, len(domain.AgentNames))
	for _, name := range domain.AgentNames {
		m[name] = state
	}
	return m
}
