package progress

import (
	"sync"
	"time"

	"github.com/iwvelando/lineup-optimizer/internal/result"
	"go.uber.org/zap"
)

// Sink receives result snapshots. Calls are never concurrent.
type Sink func(result.Result)

// Reporter hands the latest published snapshot to a sink from its own
// goroutine. With a zero interval each Publish wakes the delivery goroutine;
// otherwise the newest snapshot is delivered on each tick. Snapshots the sink
// has not caught up with are replaced by newer ones, so Publish never waits
// on the sink.
type Reporter struct {
	sink     Sink
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	latest   result.Result
	pending  bool
	finished bool

	deliver sync.Mutex
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// NewReporter constructs a Reporter. A nil sink discards snapshots.
func NewReporter(sink Sink, interval time.Duration, logger *zap.Logger) *Reporter {
	if sink == nil {
		sink = func(result.Result) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		sink:     sink,
		interval: interval,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the delivery goroutine.
func (r *Reporter) Start() {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		var tick <-chan time.Time
		if r.interval > 0 {
			ticker := time.NewTicker(r.interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-r.wake:
				if r.interval <= 0 {
					r.flush()
				}
			case <-tick:
				r.flush()
			case <-r.stop:
				return
			}
		}
	}()
}

// Publish records a snapshot.
func (r *Reporter) Publish(res result.Result) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.latest = res
	r.pending = true
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Latest returns the most recently published snapshot.
func (r *Reporter) Latest() result.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

func (r *Reporter) flush() {
	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	if !r.pending || r.finished {
		r.mu.Unlock()
		return
	}
	snapshot := r.latest
	r.pending = false
	r.mu.Unlock()

	r.logger.Debug("optimization progress",
		zap.String("op", "progress.flush"),
		zap.String("runId", snapshot.RunID),
		zap.Int64("completed", snapshot.CountCompleted),
		zap.Int64("total", snapshot.CountTotal),
	)
	r.sink(snapshot)
}

// Finish stops delivery and hands the terminal snapshot to the sink exactly
// once. It waits for an in-flight delivery to return.
func (r *Reporter) Finish(final result.Result) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.latest = final
	r.pending = false
	r.mu.Unlock()

	if r.stop != nil {
		close(r.stop)
		<-r.done
	}

	r.deliver.Lock()
	defer r.deliver.Unlock()
	r.sink(final)
}
