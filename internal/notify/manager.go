// package notify implements the bounded priority queue feeding error notifications to the UI.
//
// At most [MaxQueueSize] items are queued. Items are ordered by priority
// (arrival order within a priority), shown one at a time no sooner than
// [MinErrorInterval] after they arrive, and repeats of the same message
// within [SameErrorInterval] are dropped.
package notify

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	MaxQueueSize      = 5
	MinErrorInterval  = 3 * time.Second
	SameErrorInterval = 10 * time.Second
)

// Priority orders queued items. Higher values are shown first.
type Priority int

const (
	Info Priority = iota + 1
	Low
	Medium
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	case Info:
		return "info"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Item is a queued notification. Retry, when set, is offered as an action.
type Item struct {
	ID        string
	Key       string
	Message   string
	Priority  Priority
	Retry     func()
	CreatedAt time.Time
	Shown     bool
	ShownAt   time.Time
}

func (it *Item) signature() string {
	return signature(it.Key, it.Priority, it.Message)
}

func signature(key string, p Priority, message string) string {
	h := fnv.New32a()
	h.Write([]byte(message))
	return fmt.Sprintf("%s_%d_%08x", key, p, h.Sum32())
}

// Outcome is the user's response to a displayed notification.
type Outcome int

const (
	Dismissed Outcome = iota
	ActionInvoked
)

// Notifier displays one message at a time and blocks until the user responds.
// actionLabel is empty when the item has no action.
type Notifier interface {
	Display(ctx context.Context, message, actionLabel string) (Outcome, error)
}

// Stats summarizes the queue.
type Stats struct {
	QueueSize    int        `json:"queue_size"`
	ShownCount   int        `json:"shown_count"`
	PendingCount int        `json:"pending_count"`
	Priorities   []Priority `json:"priorities"`
}

// Manager is the process-wide error queue. Construct with [NewManager].
type Manager struct {
	mu         sync.Mutex
	items      []*Item
	lastShown  map[string]time.Time
	shownCount int
	showing    bool
	subs       map[int]chan []Item
	nextSub    int

	minInterval  time.Duration
	sameInterval time.Duration
	actionLabel  string
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *log.Logger
}

// Option configures a [Manager].
type Option func(*Manager)

// WithPacing overrides the display and duplicate intervals. Non-positive values keep the defaults.
func WithPacing(minInterval, sameInterval time.Duration) Option {
	return func(m *Manager) {
		if minInterval > 0 {
			m.minInterval = minInterval
		}
		if sameInterval > 0 {
			m.sameInterval = sameInterval
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithActionLabel sets the label offered for items with a retry action.
func WithActionLabel(label string) Option {
	return func(m *Manager) { m.actionLabel = label }
}

// NewManager creates an empty queue.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		lastShown:    make(map[string]time.Time),
		subs:         make(map[int]chan []Item),
		minInterval:  MinErrorInterval,
		sameInterval: SameErrorInterval,
		actionLabel:  "Retry",
		now:          time.Now,
		sleep:        sleepContext,
		logger:       log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add enqueues message and reports whether it was accepted. It is dropped
// when it repeats a queued or recently shown item, or when the queue is full
// of strictly more important items.
func (m *Manager) Add(message string, p Priority, retry func(), key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	sig := signature(key, p, message)
	if m.duplicate(sig, now) {
		m.logger.Debug("duplicate notification suppressed", "key", key, "priority", p)
		return false
	}

	if len(m.items) >= MaxQueueSize {
		low := m.lowest()
		if m.items[low].Priority > p {
			m.logger.Debug("notification queue full", "dropped", key, "priority", p)
			return false
		}
		m.logger.Debug("notification evicted", "key", m.items[low].Key, "priority", m.items[low].Priority)
		m.items = slices.Delete(m.items, low, low+1)
	}

	item := &Item{
		ID:        fmt.Sprintf("%s_%d", sig, now.Unix()/int64(SameErrorInterval/time.Second)),
		Key:       key,
		Message:   message,
		Priority:  p,
		Retry:     retry,
		CreatedAt: now,
	}

	at := len(m.items)
	for i, it := range m.items {
		if it.Priority < p {
			at = i
			break
		}
	}
	m.items = slices.Insert(m.items, at, item)
	m.publish()
	return true
}

func (m *Manager) duplicate(sig string, now time.Time) bool {
	if t, ok := m.lastShown[sig]; ok && now.Sub(t) < m.sameInterval {
		return true
	}
	for _, it := range m.items {
		if it.signature() == sig && now.Sub(it.CreatedAt) < m.sameInterval {
			return true
		}
	}
	return false
}

// lowest returns the index of the first item with the minimum priority.
func (m *Manager) lowest() int {
	low := 0
	for i, it := range m.items {
		if it.Priority < m.items[low].Priority {
			low = i
		}
	}
	return low
}

// Next marks and returns the first pending item old enough to display.
func (m *Manager) Next() (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, _ := m.next()
	if it == nil {
		return Item{}, false
	}
	return *it, true
}

// next returns the eligible item, or how long until one becomes eligible (0 when none are pending).
func (m *Manager) next() (*Item, time.Duration) {
	now := m.now()
	var wait time.Duration
	for _, it := range m.items {
		if it.Shown {
			continue
		}
		age := now.Sub(it.CreatedAt)
		if age >= m.minInterval {
			it.Shown = true
			it.ShownAt = now
			m.lastShown[it.signature()] = now
			m.shownCount++
			m.publish()
			return it, 0
		}
		if w := m.minInterval - age; wait == 0 || w < wait {
			wait = w
		}
	}
	return nil, wait
}

// RemoveShown purges displayed items.
func (m *Manager) RemoveShown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = slices.DeleteFunc(m.items, func(it *Item) bool { return it.Shown })
	m.publish()
}

// Clear empties the queue and forgets display history.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	m.lastShown = make(map[string]time.Time)
	m.shownCount = 0
	m.publish()
}

// Stats reports queue counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{QueueSize: len(m.items), ShownCount: m.shownCount, Priorities: []Priority{}}
	for _, it := range m.items {
		if !it.Shown {
			s.PendingCount++
		}
		s.Priorities = append(s.Priorities, it.Priority)
	}
	return s
}

// Items returns a snapshot of the queue in display order.
func (m *Manager) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Manager) snapshot() []Item {
	out := make([]Item, len(m.items))
	for i, it := range m.items {
		out[i] = *it
	}
	return out
}

// Subscribe returns a channel receiving queue snapshots (starting with the current one)
// and a function that unsubscribes and closes it. Slow subscribers miss intermediate snapshots.
func (m *Manager) Subscribe() (<-chan []Item, func()) {
	ch := make(chan []Item, 1)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snapshot()
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// publish replaces any unread snapshot with the latest. Callers hold m.mu.
func (m *Manager) publish() {
	if len(m.subs) == 0 {
		return
	}
	snap := m.snapshot()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Show adds message and displays pending items through n until the queue
// drains or ctx ends. If another Show is already displaying, the item is only queued.
func (m *Manager) Show(ctx context.Context, n Notifier, message string, p Priority, retry func(), key string) error {
	m.Add(message, p, retry, key)
	return m.Drain(ctx, n)
}

// Drain displays pending items one at a time, invoking an item's retry action
// when the user chooses it. It returns once no items are pending.
func (m *Manager) Drain(ctx context.Context, n Notifier) error {
	m.mu.Lock()
	if m.showing {
		m.mu.Unlock()
		return nil
	}
	m.showing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.showing = false
		m.mu.Unlock()
	}()

	for {
		m.mu.Lock()
		it, wait := m.next()
		m.mu.Unlock()

		if it == nil {
			if wait == 0 {
				return nil
			}
			if err := m.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		label := ""
		if it.Retry != nil {
			label = m.actionLabel
		}
		outcome, err := n.Display(ctx, it.Message, label)
		if err != nil {
			return err
		}
		if outcome == ActionInvoked && it.Retry != nil {
			it.Retry()
		}
		m.RemoveShown()
	}
}

// Serve runs [Manager.Drain] through n whenever the queue has pending items,
// until ctx ends or n fails.
func (m *Manager) Serve(ctx context.Context, n Notifier) error {
	updates, stop := m.Subscribe()
	defer stop()

	pending := func(it Item) bool { return !it.Shown }
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case items := <-updates:
			if !slices.ContainsFunc(items, pending) {
				continue
			}
			if err := m.Drain(ctx, n); err != nil {
				return err
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
