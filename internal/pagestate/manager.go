package pagestate

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotStarted is the panic value for using a Manager before Start.
	ErrNotStarted = errors.New("pagestate: manager used before Start")
	// ErrClosed is the panic value for using a Manager after Close.
	ErrClosed = errors.New("pagestate: manager used after Close")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("pagestate: manager already started")
)

// Options configure a Manager.
type Options struct {
	Slot            Slot
	Logger          *zap.Logger
	MaxBytes        int           // zero uses DefaultMaxBytes
	MaxAge          time.Duration // zero uses DefaultMaxAge
	CleanupInterval time.Duration // zero uses DefaultCleanupInterval
	Now             func() time.Time

	// VisibilityFlags registers extra flag names per page key before Start,
	// so the boot-time storage repair already knows them.
	VisibilityFlags map[string][]string
}

// Manager owns the page-state cache for one application session.
//
// Mutations commit to memory synchronously and are written to the slot by a
// background persister afterwards; call Flush to wait for the write. The
// reducer is the only path that changes the cache.
type Manager struct {
	ioMu sync.Mutex // serializes slot I/O; acquired before mu

	mu   sync.Mutex
	cond *sync.Cond

	cache        Cache
	reducer      Reducer
	store        *Store
	logger       *zap.Logger
	now          func() time.Time
	cleanupEvery time.Duration

	current string
	flags   map[string]map[string]struct{}

	version    uint64
	persisted  uint64
	repaired   int
	starting   bool
	started    bool
	closed     bool
	persisting bool

	dirty    chan struct{}
	oversize chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a Manager. It fails when no slot is given.
func New(opts Options) (*Manager, error) {
	if opts.Slot == nil {
		return nil, errors.New("pagestate: slot is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	every := opts.CleanupInterval
	if every <= 0 {
		every = DefaultCleanupInterval
	}

	m := &Manager{
		cache:        Cache{},
		reducer:      Reducer{Policy: Policy{MaxAge: opts.MaxAge}},
		logger:       logger,
		now:          now,
		cleanupEvery: every,
		flags:        make(map[string]map[string]struct{}),
		dirty:        make(chan struct{}, 1),
		oversize:     make(chan struct{}, 1),
	}
	m.cond = sync.NewCond(&m.mu)
	for key, names := range opts.VisibilityFlags {
		m.RegisterVisibilityFlags(key, names...)
	}
	m.store = NewStore(opts.Slot, opts.MaxBytes, logger, m.requestCleanup)
	return m, nil
}

// Start repairs visibility flags left open in storage, loads the live
// entries, and launches the persister and the periodic expiry sweep. Both
// stop when ctx is cancelled or Close is called. The manager counts as
// started only once the load has committed; calls made before that panic
// with ErrNotStarted.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.started, m.starting:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.starting = true
	m.mu.Unlock()

	m.ioMu.Lock()
	repaired := m.repairSlot()
	loaded := m.store.Load()
	m.ioMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.starting = false
	if m.closed {
		m.mu.Unlock()
		cancel()
		return ErrClosed
	}
	live := m.reducer.Policy.Sweep(loaded, m.now())
	if dropped := len(loaded) - len(live); dropped > 0 {
		m.logger.Info("dropped expired page state on load", zap.Int("pages", dropped))
	}
	m.commitLocked(LoadFromStorage{Cache: live})
	m.repaired = repaired
	m.started = true
	m.persisting = true
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(2)
	go m.persistLoop(runCtx)
	go m.cleanupLoop(runCtx)
	return nil
}

// Close stops the background goroutines, writes the final state, and closes
// any visibility flags still open in storage. It is safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	if !m.started || m.closed {
		m.closed = true
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	// The persister may have stopped early with its context; anything
	// committed since then is written here.
	m.persistLatest()

	m.ioMu.Lock()
	_ = m.repairSlot()
	m.ioMu.Unlock()
	return nil
}

// GetPageState returns a copy of the page's state, or nil if none is saved.
func (m *Manager) GetPageState(key string) PageState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustRunLocked()
	return m.cache[key].Clone()
}

// SetPageState merges partial into the page's state. Values handed over
// must not be mutated afterwards.
func (m *Manager) SetPageState(key string, partial map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustRunLocked()
	m.commitLocked(SetPageState{Key: key, Partial: partial})
}

// ClearPageState forgets one page.
func (m *Manager) ClearPageState(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustRunLocked()
	m.commitLocked(ClearPageState{Key: key})
}

// ClearAllStates forgets every page and removes the storage slot before
// returning.
func (m *Manager) ClearAllStates() {
	m.ioMu.Lock()
	defer m.ioMu.Unlock()

	m.checkRunning()
	m.mu.Lock()
	m.commitLocked(ClearAllStates{})
	m.persisted = m.version
	m.cond.Broadcast()
	m.mu.Unlock()

	m.store.Clear()
}

// StateSize returns the encoded size in bytes of the in-memory cache.
func (m *Manager) StateSize() int {
	m.checkRunning()
	m.mu.Lock()
	c := m.cache
	m.mu.Unlock()
	return m.store.Size(c)
}

// CleanupExpiredStates drops stale pages now and returns how many went.
func (m *Manager) CleanupExpiredStates() int {
	m.checkRunning()
	return m.cleanup("manual")
}

// Snapshot returns a copy of the whole cache.
func (m *Manager) Snapshot() Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustRunLocked()
	return m.cache.Clone()
}

// RegisterVisibilityFlags marks attribute names of page key as dialog flags
// regardless of their naming. It may be called before Start.
func (m *Manager) RegisterVisibilityFlags(key string, names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.flags[key]
	if set == nil {
		set = make(map[string]struct{}, len(names))
		m.flags[key] = set
	}
	for _, name := range names {
		set[name] = struct{}{}
	}
}

// Navigate records key as the active page. When the page changes, every
// visibility flag left open on the new page is closed in one update; nothing
// is written if none was open.
func (m *Manager) Navigate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustRunLocked()
	if key == m.current {
		return
	}
	m.current = key
	closed := openFlags(m.cache[key], m.flags[key])
	if len(closed) == 0 {
		return
	}
	m.commitLocked(SetPageState{Key: key, Partial: closed})
	m.logger.Debug("closed visibility flags on navigation",
		zap.String("page", key),
		zap.Int("flags", len(closed)),
	)
}

// CurrentPage returns the key last passed to Navigate.
func (m *Manager) CurrentPage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ResetVisibilityFlags closes open flags on every saved page, not only the
// active one, and writes the result before returning. Timestamps are kept.
func (m *Manager) ResetVisibilityFlags() int {
	m.checkRunning()
	m.mu.Lock()
	fixed, changed := CloseVisibilityFlags(m.cache, m.flags)
	if changed > 0 {
		m.commitLocked(LoadFromStorage{Cache: fixed})
	}
	m.mu.Unlock()

	if changed > 0 {
		m.persistLatest()
	}
	return changed
}

// RepairedAtStart reports how many stored pages had dialog flags closed
// by the repair Start ran before loading.
func (m *Manager) RepairedAtStart() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustRunLocked()
	return m.repaired
}

// Flush blocks until the state committed before the call has been handed
// to the slot. Once the persister has stopped, Flush writes it itself.
func (m *Manager) Flush() {
	m.mu.Lock()
	target := m.version
	for m.persisted < target && m.persisting {
		m.cond.Wait()
	}
	pending := m.persisted < target && m.started
	m.mu.Unlock()

	if pending {
		m.persistLatest()
	}
}

func (m *Manager) commitLocked(a Action) bool {
	next := m.reducer.Reduce(m.cache, a, m.now())
	if !changes(m.cache, next, a) {
		return false
	}
	m.cache = next
	m.version++
	select {
	case m.dirty <- struct{}{}:
	default:
	}
	return true
}

func (m *Manager) runErrLocked() error {
	if m.closed {
		return ErrClosed
	}
	if !m.started {
		return ErrNotStarted
	}
	return nil
}

func (m *Manager) checkRunning() {
	m.mu.Lock()
	err := m.runErrLocked()
	m.mu.Unlock()
	if err != nil {
		panic(err)
	}
}

func (m *Manager) mustRunLocked() {
	if err := m.runErrLocked(); err != nil {
		panic(err)
	}
}

func (m *Manager) persistLoop(ctx context.Context) {
	defer m.wg.Done()
	defer func() {
		m.persistLatest()
		m.mu.Lock()
		m.persisting = false
		m.cond.Broadcast()
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.dirty:
			m.persistLatest()
		}
	}
}

// persistLatest writes the newest committed cache if it is not yet in the slot.
func (m *Manager) persistLatest() {
	m.ioMu.Lock()
	defer m.ioMu.Unlock()

	m.mu.Lock()
	if m.persisted >= m.version {
		m.mu.Unlock()
		return
	}
	snapshot, version := m.cache, m.version
	m.mu.Unlock()

	m.store.Persist(snapshot)

	m.mu.Lock()
	if version > m.persisted {
		m.persisted = version
	}
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup("interval")
		case <-m.oversize:
			m.cleanup("oversize")
		}
	}
}

func (m *Manager) cleanup(reason string) int {
	m.mu.Lock()
	before := len(m.cache)
	m.commitLocked(CleanupExpired{})
	removed := before - len(m.cache)
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Info("removed expired page state",
			zap.String("reason", reason),
			zap.Int("pages", removed),
		)
	}
	return removed
}

// requestCleanup is the store's oversize hook. It never blocks because the
// store may call it while locks are held. Signals raised before cleanupLoop
// wakes merge into one sweep; a second sweep over the same cache would
// remove nothing more.
func (m *Manager) requestCleanup() {
	select {
	case m.oversize <- struct{}{}:
	default:
	}
}

// repairSlot closes visibility flags directly in storage. Callers hold ioMu.
func (m *Manager) repairSlot() int {
	loaded := m.store.Load()
	m.mu.Lock()
	fixed, changed := CloseVisibilityFlags(loaded, m.flags)
	m.mu.Unlock()
	if changed == 0 || !m.store.Persist(fixed) {
		return 0
	}
	m.logger.Debug("closed visibility flags in storage", zap.Int("pages", changed))
	return changed
}
