// Package poller keeps an agent-run snapshot fresh while the run is in
// progress. A Controller owns one run: it fetches, decides whether to keep
// polling, and exposes deterministic cancellation. Snapshots are replaced
// whole; observers never see a partially applied update.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/runwatch/runwatch/internal/models"
)

// ErrNotFound marks a run the backend does not know. It is terminal: polling
// never starts for, and stops on, a missing run.
var ErrNotFound = errors.New("run not found")

// Fetcher retrieves a run snapshot by id. Implementations own their timeout
// behavior; the controller's only timing concern is the polling interval.
type Fetcher interface {
	GetRun(ctx context.Context, id string) (*models.AgentRun, error)
}

type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultInterval is the background refresh cadence.
const DefaultInterval = 3 * time.Second

// Controller is the polling state machine for a single observed run. Each
// view owns its own Controller; there is no shared state across views.
type Controller struct {
	fetcher  Fetcher
	interval time.Duration

	mu       sync.Mutex
	state    State
	runID    string
	snapshot *models.AgentRun
	inFlight bool
	cancel   context.CancelFunc

	updates chan *models.AgentRun
	errs    chan error
	closed  bool
}

func New(fetcher Fetcher, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		fetcher:  fetcher,
		interval: interval,
		updates:  make(chan *models.AgentRun, 1),
		errs:     make(chan error, 4),
	}
}

// Updates delivers applied snapshots, latest wins. The channel closes once
// the controller reaches Stopped.
func (c *Controller) Updates() <-chan *models.AgentRun { return c.updates }

// Errors delivers background poll failures without blocking the poll loop.
// Poll failures never stop polling. The channel closes on Stopped.
func (c *Controller) Errors() <-chan error { return c.errs }

// Snapshot returns the most recently applied run snapshot, or nil.
func (c *Controller) Snapshot() *models.AgentRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start performs the initial foreground fetch. A fetch error is returned and
// the controller stays Idle (callers surface it as a blocking state and may
// retry). A live run starts the background loop; a terminal one goes
// straight to Stopped.
func (c *Controller) Start(ctx context.Context, id string) (*models.AgentRun, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, fmt.Errorf("controller already started (state %s)", c.state)
	}
	c.runID = id
	c.mu.Unlock()

	run, err := c.fetcher.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped { // Stop raced the initial fetch
		return run, nil
	}
	c.snapshot = run
	c.push(run)

	if !run.Status.Active() {
		c.stopLocked()
		return run, nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = StatePolling
	go c.loop(loopCtx)
	return run, nil
}

// Stop cancels polling. Idempotent: stopping a controller that already
// stopped, naturally or not, is a no-op. After Stop returns, no in-flight
// tick can mutate the snapshot or state.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.state == StateStopped {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.state = StateStopped
	if !c.closed {
		c.closed = true
		close(c.updates)
		close(c.errs)
	}
}

// RefreshNow fetches in the foreground, independent of the polling state
// machine: no second timer is started, and it works in any state. A terminal
// status it observes still stops background polling.
func (c *Controller) RefreshNow(ctx context.Context) (*models.AgentRun, error) {
	c.mu.Lock()
	id := c.runID
	c.mu.Unlock()
	if id == "" {
		return nil, errors.New("no run loaded")
	}

	run, err := c.fetcher.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	c.apply(run)
	return run, nil
}

func (c *Controller) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick starts one silent background fetch, unless one is already in flight,
// in which case the tick is skipped rather than queued.
func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	if c.state != StatePolling || c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	id := c.runID
	c.mu.Unlock()

	go func() {
		run, err := c.fetcher.GetRun(ctx, id)

		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()

		if err != nil {
			c.reportError(err)
			return
		}
		c.apply(run)
	}()
}

// apply atomically replaces the snapshot. Whichever fetch completes last
// wins, regardless of issue order. A stopped controller discards the result
// instead of mutating anything.
func (c *Controller) apply(run *models.AgentRun) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return
	}
	c.snapshot = run
	c.push(run)
	if !run.Status.Active() {
		c.stopLocked()
	}
}

func (c *Controller) reportError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return
	}
	if !c.closed {
		select {
		case c.errs <- err:
		default:
		}
	}
	// A vanished run is terminal; transient failures keep polling.
	if errors.Is(err, ErrNotFound) {
		c.stopLocked()
	}
}

// push is a latest-wins, non-blocking send. Callers hold c.mu, which also
// serializes push against the close in stopLocked.
func (c *Controller) push(run *models.AgentRun) {
	if c.closed {
		return
	}
	for {
		select {
		case c.updates <- run:
			return
		default:
			select {
			case <-c.updates:
			default:
			}
		}
	}
}
