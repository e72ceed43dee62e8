// Package cycle advances simulated time. A cycle is a transaction over
// the whole company state: backlog intake, staffing, creative work, a
// bounded batch of worker decisions, then settlement.
package cycle

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autocorp/engine/internal/company"
	"github.com/autocorp/engine/internal/decision"
	"github.com/autocorp/engine/internal/ledger"
	"github.com/autocorp/engine/internal/lifecycle"
	"github.com/autocorp/engine/internal/workforce"
)

// Completer is the slice of the decision gateway the driver needs.
type Completer interface {
	Complete(ctx context.Context, modelRef, prompt string) (string, error)
}

// Observer receives one observation per finished cycle.
type Observer interface {
	ObserveCycle(elapsed time.Duration, balance float64)
}

// Config tunes the driver.
type Config struct {
	// MaxWorkersPerCycle caps how many workers get a decision each
	// cycle. A throughput cap, not a fairness guarantee.
	MaxWorkersPerCycle int
	// Concurrency bounds in-flight decision requests within a cycle.
	Concurrency int
	// DefaultModel is used for workers without a model reference.
	DefaultModel string
}

// CycleResult is what one RunCycle hands back to collaborators: copies
// only, never live pointers into the state.
type CycleResult struct {
	Cycle          int               `json:"cycle"`
	Balance        float64           `json:"balance"`
	BalanceHistory []float64         `json:"balance_history"`
	Events         []company.Event   `json:"events"`
	Workers        []company.Worker  `json:"workers"`
	Tasks          []company.Task    `json:"tasks"`
	Services       []company.Service `json:"services"`
	Ideas          []company.Idea    `json:"ideas"`
}

// Driver owns the cycle loop. RunCycle is not reentrant; callers must
// serialize cycles themselves (the engine loop and the HTTP trigger share
// one mutex).
type Driver struct {
	mu sync.Mutex

	state     *company.State
	gateway   Completer
	lifecycle *lifecycle.Manager
	workforce *workforce.Manager
	settler   *ledger.Settler
	executor  *decision.Executor
	cfg       Config
	rng       *rand.Rand
	observer  Observer
	logger    zerolog.Logger
}

// NewDriver wires the cycle phases together. rng shuffles the per-cycle
// worker selection; observer may be nil.
func NewDriver(state *company.State, gw Completer, lc *lifecycle.Manager, wf *workforce.Manager,
	settler *ledger.Settler, ex *decision.Executor, cfg Config, rng *rand.Rand,
	observer Observer, logger zerolog.Logger) *Driver {
	if cfg.MaxWorkersPerCycle <= 0 {
		cfg.MaxWorkersPerCycle = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Driver{
		state:     state,
		gateway:   gw,
		lifecycle: lc,
		workforce: wf,
		settler:   settler,
		executor:  ex,
		cfg:       cfg,
		rng:       rng,
		observer:  observer,
		logger:    logger.With().Str("component", "cycle").Logger(),
	}
}

// RunCycle advances the simulation by one tick and returns a copy of the
// resulting state. Cancelling ctx aborts in-flight decision requests;
// already-received replies are still applied.
func (d *Driver) RunCycle(ctx context.Context) (CycleResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()

	d.state.Lock()
	d.state.Cycle++
	cycleNum := d.state.Cycle
	d.logger.Info().Int("cycle", cycleNum).Msg("cycle started")

	d.lifecycle.EnsureBacklog()
	d.workforce.Run()
	d.lifecycle.RunIntake(ctx)

	batch := d.selectWorkers()
	prompts := make([]string, len(batch))
	models := make([]string, len(batch))
	for i, w := range batch {
		prompts[i] = decision.BuildPrompt(d.state, w)
		models[i] = w.ModelRef
		if models[i] == "" {
			models[i] = d.cfg.DefaultModel
		}
	}
	d.state.Unlock()

	// Decision requests run outside the lock: they only depend on the
	// prompt snapshots taken above.
	replies := make([]string, len(batch))
	errs := make([]error, len(batch))
	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			replies[i], errs[i] = d.gateway.Complete(ctx, models[i], prompts[i])
		}(i)
	}
	wg.Wait()

	d.state.Lock()
	for i, w := range batch {
		// The batch holds live pointers; a worker dismissed between
		// selection and apply is skipped.
		if _, ok := d.state.Workers[w.Name]; !ok {
			continue
		}
		switch {
		case errs[i] == nil:
			d.executor.Apply(w, replies[i])
		case errors.Is(errs[i], context.Canceled):
			// Aborted call, nothing to record.
		default:
			d.executor.RecordGatewayFailure(w, errs[i])
		}
	}

	d.lifecycle.RunServices()
	net := d.settler.Settle()
	d.state.Unlock()

	result := CycleResult{
		Cycle:          cycleNum,
		Balance:        d.state.LedgerCopy().Balance,
		BalanceHistory: d.state.LedgerCopy().History,
		Events:         d.state.EventsCopy(),
		Workers:        d.state.WorkersCopy(),
		Tasks:          d.state.TasksCopy(),
		Services:       d.state.ServicesCopy(),
		Ideas:          d.state.IdeasCopy(),
	}
	if d.observer != nil {
		d.observer.ObserveCycle(time.Since(start), result.Balance)
	}
	d.logger.Info().Int("cycle", cycleNum).Float64("net", net).
		Float64("balance", result.Balance).Msg("cycle settled")
	return result, ctx.Err()
}

// selectWorkers picks this cycle's bounded, shuffled batch.
func (d *Driver) selectWorkers() []*company.Worker {
	workers := d.state.SortedWorkers()
	d.rng.Shuffle(len(workers), func(i, j int) {
		workers[i], workers[j] = workers[j], workers[i]
	})
	if len(workers) > d.cfg.MaxWorkersPerCycle {
		workers = workers[:d.cfg.MaxWorkersPerCycle]
	}
	return workers
}
