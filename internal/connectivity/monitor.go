// package connectivity tracks network reachability and a coarse quality score.
//
// A [Monitor] owns the current [NetworkInfo] snapshot. It is the single writer:
// host callbacks arrive as [Event]s (from a [Source] such as [Prober], or via
// [Monitor.Handle] directly) and each one synchronously recomputes the
// snapshot, which is then fanned out to subscribers without blocking.
package connectivity

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Source delivers host network events until ctx is done, then closes the channel.
type Source interface {
	Events(ctx context.Context) <-chan Event
}

// Monitor publishes connectivity snapshots. Construct with [NewMonitor].
type Monitor struct {
	mu     sync.RWMutex
	info   NetworkInfo
	subs   map[int]chan NetworkInfo
	nextID int
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	logger *log.Logger
}

// NewMonitor creates a Monitor in the disconnected state.
func NewMonitor(logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Monitor{
		info:   Disconnected,
		subs:   make(map[int]chan NetworkInfo),
		logger: logger,
	}
}

// Handle applies one host event.
func (m *Monitor) Handle(ev Event) {
	var next NetworkInfo
	switch ev.Kind {
	case Lost:
		next = Disconnected
	default:
		next = Evaluate(ev.Capabilities)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if next != m.info {
		m.logger.Debug("network state changed",
			"event", ev.Kind, "connected", next.Connected, "type", next.Type, "quality", next.Quality)
	}
	m.info = next

	// a subscriber that is behind has its unread snapshots replaced by next
	for _, ch := range m.subs {
	drain:
		for {
			select {
			case <-ch:
			default:
				break drain
			}
		}
		select {
		case ch <- next:
		default:
		}
	}
}

// Watch consumes events from src in a background goroutine until [Monitor.Unregister] or ctx ends.
func (m *Monitor) Watch(ctx context.Context, src Source) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	events := src.Events(ctx)
	go func() {
		defer close(done)
		for ev := range events {
			m.Handle(ev)
		}
	}()
}

// Snapshot returns the current state.
func (m *Monitor) Snapshot() NetworkInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}

func (m *Monitor) IsConnected() bool            { return m.Snapshot().Connected }
func (m *Monitor) Type() ConnectionType         { return m.Snapshot().Type }
func (m *Monitor) Quality() Quality             { return m.Snapshot().Quality }
func (m *Monitor) IsAvailableForRequests() bool { return m.Snapshot().AvailableForRequests() }
func (m *Monitor) Recommendation() string       { return m.Snapshot().Quality.Recommendation() }

// Subscribe returns a channel receiving every new snapshot (starting with the current one)
// and a function that unsubscribes and closes it.
func (m *Monitor) Subscribe(buffer int) (<-chan NetworkInfo, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan NetworkInfo, buffer)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	ch <- m.info
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Unregister stops any watched source and closes all subscriptions.
func (m *Monitor) Unregister() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	cancel, done := m.cancel, m.done
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
