package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/adapter"
	"github.com/astrosearch/api/internal/model"
)

// ErrNoValidParams is returned when no requested source can use the given
// inputs at all.
var ErrNoValidParams = errors.New("no valid search parameters: need at least an object name, a coordinate pair, or a bibcode")

// Executor fans a query out to every admitted source and aggregates the
// independent outcomes. One failing source never aborts its siblings; every
// attempted source appears in the result map exactly once.
type Executor struct {
	registry    *adapter.Registry
	callTimeout time.Duration
	sequential  bool
	log         arbor.ILogger
}

func NewExecutor(registry *adapter.Registry, callTimeout time.Duration, sequential bool, log arbor.ILogger) *Executor {
	return &Executor{
		registry:    registry,
		callTimeout: callTimeout,
		sequential:  sequential,
		log:         log,
	}
}

// Execute runs the query against the requested sources. An empty source list
// means every registered source. Unknown source names are reported as error
// outcomes rather than dropped, so malformed client input stays visible.
func (e *Executor) Execute(ctx context.Context, sources []string, p adapter.Params) (map[string]model.SourceOutcome, error) {
	if len(sources) == 0 {
		sources = e.registry.Names()
	}

	results := make(map[string]model.SourceOutcome)
	var admitted []adapter.Adapter

	for _, name := range sources {
		a, ok := e.registry.Get(name)
		if !ok {
			results[name] = model.Failure(fmt.Sprintf("unknown source %q", name), 0)
			continue
		}
		if !a.Accepts(p) {
			// precondition not satisfiable: the source is not attempted
			continue
		}
		admitted = append(admitted, a)
	}

	if len(admitted) == 0 && len(results) == 0 {
		return nil, ErrNoValidParams
	}

	if e.sequential {
		for _, a := range admitted {
			results[a.Name()] = e.run(ctx, a, p)
		}
		return results, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, a := range admitted {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()
			outcome := e.run(ctx, a, p)
			mu.Lock()
			results[a.Name()] = outcome
			mu.Unlock()
		}(a)
	}
	wg.Wait()

	return results, nil
}

// longRunner is implemented by adapters that run a multi-step protocol with
// their own wait budget instead of the shared per-call timeout.
type longRunner interface {
	MaxWait() time.Duration
}

// run executes a single adapter with its own timeout, converting errors and
// panics into an error outcome for that source alone.
func (e *Executor) run(ctx context.Context, a adapter.Adapter, p adapter.Params) (outcome model.SourceOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("source", a.Name()).Msg(fmt.Sprintf("adapter panicked: %v", r))
			outcome = model.Failure(fmt.Sprintf("internal adapter failure: %v", r), 0)
		}
	}()

	timeout := e.callTimeout
	if lr, ok := a.(longRunner); ok {
		// leave room for the submit and fetch legs around the poll loop
		timeout = lr.MaxWait() + e.callTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := a.Query(callCtx, p)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("source timed out after %v", timeout)
		}
		e.log.Warn().Str("source", a.Name()).Err(err).Msg("source query failed")
		return model.Failure(err.Error(), 0)
	}
	return result
}
