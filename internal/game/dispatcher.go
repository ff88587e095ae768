package game

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Dispatcher serializes all game state access onto a single goroutine.
// Run takes ownership; everything else is safe to call from any goroutine.
type Dispatcher struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped atomic.Bool
	ownerID atomic.Uint64

	log *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		wake: make(chan struct{}, 1),
		log:  log,
	}
}

// Run executes the dispatcher loop on the calling goroutine. Each iteration
// drains the invoke queue in FIFO order, then calls work. When neither the
// queue nor work produced anything, the loop blocks until the next Signal.
// Run returns after Shutdown, at the end of the iteration in progress.
func (d *Dispatcher) Run(work func() bool) {
	d.ownerID.Store(currentGoroutineID())
	defer d.ownerID.Store(0)

	for {
		ran := d.drain()
		worked := work()
		if d.stopped.Load() {
			return
		}
		if !ran && !worked && d.empty() {
			<-d.wake
		}
	}
}

func (d *Dispatcher) drain() bool {
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch) > 0
}

func (d *Dispatcher) empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) == 0
}

// BeginInvoke queues fn to run on the dispatcher goroutine and wakes the
// loop. It never blocks.
func (d *Dispatcher) BeginInvoke(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	d.Signal()
}

// Signal wakes the loop if it is blocked. Redundant signals coalesce.
func (d *Dispatcher) Signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Shutdown requests loop exit. The iteration in progress finishes first.
func (d *Dispatcher) Shutdown() {
	d.stopped.Store(true)
	d.Signal()
}

// CheckAccess reports whether the caller is the dispatcher goroutine.
func (d *Dispatcher) CheckAccess() bool {
	return d.ownerID.Load() == currentGoroutineID()
}

// VerifyAccess panics when called off the dispatcher goroutine.
func (d *Dispatcher) VerifyAccess() {
	if !d.CheckAccess() {
		panic(fmt.Sprintf("dispatcher access from wrong goroutine %d", currentGoroutineID()))
	}
}

var goroutinePrefix = []byte("goroutine ")

func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	i := bytes.IndexByte(line, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(line[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
