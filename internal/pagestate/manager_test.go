package pagestate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/five82/checklist/internal/slot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, mem *slot.Memory, clock *fakeClock, mutate ...func(*Options)) *Manager {
	t.Helper()
	opts := Options{Slot: mem, Now: clock.Now}
	for _, fn := range mutate {
		fn(&opts)
	}
	m, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func slotCache(t *testing.T, mem *slot.Memory) (Cache, bool) {
	t.Helper()
	value, ok, err := mem.Read()
	require.NoError(t, err)
	if !ok {
		return nil, false
	}
	c, decoded := Decode(value)
	require.True(t, decoded, "slot holds undecodable data: %q", value)
	return c, true
}

func TestManager_MergeSemantics(t *testing.T) {
	clock := &fakeClock{now: epoch}
	m := newTestManager(t, slot.NewMemory(), clock)

	m.SetPageState("k", map[string]any{"a": 1})
	clock.Advance(time.Second)
	m.SetPageState("k", map[string]any{"b": 2})

	assert.Equal(t, PageState{"a": 1, "b": 2, LastUpdatedKey: clock.Now().UnixMilli()}, m.GetPageState("k"))
}

func TestManager_Isolation(t *testing.T) {
	m := newTestManager(t, slot.NewMemory(), &fakeClock{now: epoch})

	m.SetPageState("pageB", map[string]any{"filter": "failed"})
	before := m.GetPageState("pageB")
	m.SetPageState("pageA", map[string]any{"filter": "all"})

	assert.Equal(t, before, m.GetPageState("pageB"))
	assert.Nil(t, m.GetPageState("pageC"))
}

func TestManager_GetReturnsCopy(t *testing.T) {
	m := newTestManager(t, slot.NewMemory(), &fakeClock{now: epoch})
	m.SetPageState("k", map[string]any{"a": 1})

	got := m.GetPageState("k")
	got["a"] = 99
	assert.Equal(t, 1, m.GetPageState("k")["a"])
}

func TestManager_PersistsAfterFlush(t *testing.T) {
	mem := slot.NewMemory()
	m := newTestManager(t, mem, &fakeClock{now: epoch})

	m.SetPageState("/mops", map[string]any{"selected": 4})
	m.Flush()

	c, ok := slotCache(t, mem)
	require.True(t, ok)
	assert.Equal(t, 4, c["/mops"].Int("selected", 0))
}

func TestManager_ClearPageState(t *testing.T) {
	mem := slot.NewMemory()
	m := newTestManager(t, mem, &fakeClock{now: epoch})

	m.SetPageState("a", map[string]any{"x": 1})
	m.SetPageState("b", map[string]any{"y": 2})
	m.ClearPageState("a")
	m.ClearPageState("missing")
	m.Flush()

	assert.Nil(t, m.GetPageState("a"))
	c, ok := slotCache(t, mem)
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, c.Keys())
}

func TestManager_ClearAllStatesRemovesSlot(t *testing.T) {
	mem := slot.NewMemory()
	m := newTestManager(t, mem, &fakeClock{now: epoch})

	m.SetPageState("p1", map[string]any{"x": 1})
	m.SetPageState("p2", map[string]any{"y": 2})
	m.Flush()
	m.ClearAllStates()

	assert.Nil(t, m.GetPageState("p1"))
	assert.Nil(t, m.GetPageState("p2"))
	_, ok := slotCache(t, mem)
	assert.False(t, ok, "slot must be absent right after ClearAllStates")

	m.Flush()
	_, ok = slotCache(t, mem)
	assert.False(t, ok, "persister must not recreate the slot")
}

func TestManager_StaleEntriesDroppedOnLoad(t *testing.T) {
	clock := &fakeClock{now: epoch}
	mem := slot.NewMemory()
	mem.Set(Encode(Cache{
		"/old":     {"x": 1, LastUpdatedKey: epoch.Add(-25 * time.Hour).UnixMilli()},
		"/recent":  {"y": 2, LastUpdatedKey: epoch.Add(-time.Hour).UnixMilli()},
		"/nostamp": {"z": 3},
	}))

	m := newTestManager(t, mem, clock, func(o *Options) { o.MaxAge = 24 * time.Hour })

	assert.Nil(t, m.GetPageState("/old"))
	assert.Nil(t, m.GetPageState("/nostamp"))
	assert.Equal(t, 2, m.GetPageState("/recent").Int("y", 0))

	m.Flush()
	c, ok := slotCache(t, mem)
	require.True(t, ok)
	assert.Equal(t, []string{"/recent"}, c.Keys())
}

func TestManager_CorruptSlotStartsFresh(t *testing.T) {
	mem := slot.NewMemory()
	mem.Set("{not json")
	m := newTestManager(t, mem, &fakeClock{now: epoch})
	assert.Empty(t, m.Snapshot())
}

func TestManager_ModalSweepOnNavigation(t *testing.T) {
	m := newTestManager(t, slot.NewMemory(), &fakeClock{now: epoch})

	m.Navigate("/dashboard")
	m.SetPageState("/dashboard", map[string]any{"showModal": true, "count": 5})
	m.Navigate("/mops")
	m.Navigate("/dashboard")

	ps := m.GetPageState("/dashboard")
	assert.Equal(t, false, ps["showModal"])
	assert.Equal(t, 5, ps.Int("count", 0))
	assert.Equal(t, "/dashboard", m.CurrentPage())
}

func TestManager_NavigationWithoutOpenFlagsDoesNotWrite(t *testing.T) {
	clock := &fakeClock{now: epoch}
	m := newTestManager(t, slot.NewMemory(), clock)

	m.SetPageState("/history", map[string]any{"showDetailsCount": 3, "showHelp": false})
	stamp, _ := m.GetPageState("/history").LastUpdated()

	clock.Advance(time.Minute)
	m.Navigate("/history")

	after, _ := m.GetPageState("/history").LastUpdated()
	assert.Equal(t, stamp, after)
	assert.Equal(t, 3, m.GetPageState("/history").Int("showDetailsCount", 0))
}

func TestManager_NavigateSamePageIsNoop(t *testing.T) {
	m := newTestManager(t, slot.NewMemory(), &fakeClock{now: epoch})

	m.Navigate("/mops")
	m.SetPageState("/mops", map[string]any{"showHelp": true})
	m.Navigate("/mops")

	assert.True(t, m.GetPageState("/mops").Bool("showHelp"), "flag stays open while the page is active")
}

func TestManager_RegisteredFlagsAreSwept(t *testing.T) {
	m := newTestManager(t, slot.NewMemory(), &fakeClock{now: epoch})
	m.RegisterVisibilityFlags("/mops", "confirmOpen")

	m.SetPageState("/mops", map[string]any{"confirmOpen": true, "drawer": true})
	m.Navigate("/mops")

	ps := m.GetPageState("/mops")
	assert.False(t, ps.Bool("confirmOpen"))
	assert.True(t, ps.Bool("drawer"), "unregistered names without modal/show are left alone")
}

func TestManager_ResetVisibilityFlagsCoversEveryPage(t *testing.T) {
	clock := &fakeClock{now: epoch}
	mem := slot.NewMemory()
	m := newTestManager(t, mem, clock)

	m.SetPageState("/a", map[string]any{"showHelp": true})
	m.SetPageState("/b", map[string]any{"filterModal": true, "page": 3})
	stampA, _ := m.GetPageState("/a").LastUpdated()

	clock.Advance(time.Minute)
	assert.Equal(t, 2, m.ResetVisibilityFlags())

	assert.False(t, m.GetPageState("/a").Bool("showHelp"))
	assert.False(t, m.GetPageState("/b").Bool("filterModal"))
	assert.Equal(t, 3, m.GetPageState("/b").Int("page", 0))
	after, _ := m.GetPageState("/a").LastUpdated()
	assert.Equal(t, stampA, after, "storage-wide reset keeps timestamps")

	c, ok := slotCache(t, mem)
	require.True(t, ok)
	assert.False(t, c["/a"].Bool("showHelp"), "reset is written before returning")

	assert.Equal(t, 0, m.ResetVisibilityFlags())
}

func TestManager_StartRepairsFlagsInStorage(t *testing.T) {
	mem := slot.NewMemory()
	mem.Set(Encode(Cache{
		"/mops":    {"showFilterModal": true, "filter": "failed", LastUpdatedKey: epoch.UnixMilli()},
		"/history": {"showHelp": true, LastUpdatedKey: epoch.UnixMilli()},
	}))

	m := newTestManager(t, mem, &fakeClock{now: epoch})

	assert.False(t, m.GetPageState("/mops").Bool("showFilterModal"))
	assert.Equal(t, "failed", m.GetPageState("/mops").String("filter", ""))
	assert.False(t, m.GetPageState("/history").Bool("showHelp"))
}

func TestManager_CloseRepairsFlagsInStorage(t *testing.T) {
	mem := slot.NewMemory()
	m, err := New(Options{Slot: mem, Now: (&fakeClock{now: epoch}).Now})
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))

	m.Navigate("/mops")
	m.SetPageState("/mops", map[string]any{"showHelp": true, "selected": 1})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "second Close is a no-op")

	c, ok := slotCache(t, mem)
	require.True(t, ok)
	assert.False(t, c["/mops"].Bool("showHelp"))
	assert.Equal(t, 1, c["/mops"].Int("selected", 0))
}

func TestManager_StateSize(t *testing.T) {
	m := newTestManager(t, slot.NewMemory(), &fakeClock{now: epoch})
	m.SetPageState("/a", map[string]any{"x": "y"})
	assert.Equal(t, len(Encode(m.Snapshot())), m.StateSize())
}

func TestManager_CleanupExpiredStates(t *testing.T) {
	clock := &fakeClock{now: epoch}
	m := newTestManager(t, slot.NewMemory(), clock, func(o *Options) { o.MaxAge = time.Hour })

	m.SetPageState("/old", map[string]any{"x": 1})
	clock.Advance(50 * time.Minute)
	m.SetPageState("/new", map[string]any{"y": 1})
	clock.Advance(20 * time.Minute)

	assert.Equal(t, 1, m.CleanupExpiredStates())
	assert.Nil(t, m.GetPageState("/old"))
	assert.NotNil(t, m.GetPageState("/new"))
	assert.Equal(t, 0, m.CleanupExpiredStates())
}

func TestManager_PeriodicCleanup(t *testing.T) {
	clock := &fakeClock{now: epoch}
	m := newTestManager(t, slot.NewMemory(), clock, func(o *Options) {
		o.MaxAge = time.Hour
		o.CleanupInterval = 5 * time.Millisecond
	})

	m.SetPageState("/old", map[string]any{"x": 1})
	clock.Advance(2 * time.Hour)

	assert.Eventually(t, func() bool {
		return m.GetPageState("/old") == nil
	}, time.Second, 5*time.Millisecond)
}

func TestManager_OversizeTriggersCleanupAndRetry(t *testing.T) {
	clock := &fakeClock{now: epoch}
	mem := slot.NewMemory()
	m := newTestManager(t, mem, clock, func(o *Options) {
		o.MaxAge = time.Hour
		o.MaxBytes = 1024
	})

	m.SetPageState("/big", map[string]any{"blob": bigCache(1)["/page0"]["blob"]})
	m.Flush()
	_, ok := slotCache(t, mem)
	assert.False(t, ok, "oversized state is never written")

	clock.Advance(2 * time.Hour)
	m.SetPageState("/small", map[string]any{"x": 1})

	assert.Eventually(t, func() bool {
		m.Flush()
		c, ok := slotCache(t, mem)
		if !ok {
			return false
		}
		_, hasBig := c["/big"]
		_, hasSmall := c["/small"]
		return !hasBig && hasSmall
	}, time.Second, 5*time.Millisecond)
}

func TestManager_StorageFailuresAreInvisible(t *testing.T) {
	mem := slot.NewMemory()
	mem.ReadErr = errors.New("access denied")
	mem.WriteErr = errors.New("quota exceeded")
	mem.RemoveErr = errors.New("access denied")

	m := newTestManager(t, mem, &fakeClock{now: epoch})
	require.NotPanics(t, func() {
		m.SetPageState("/a", map[string]any{"x": 1})
		m.Flush()
		m.ClearAllStates()
		m.SetPageState("/a", map[string]any{"x": 2})
	})
	assert.Equal(t, 2, m.GetPageState("/a").Int("x", 0))
}

func TestManager_LifecycleContract(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	m, err := New(Options{Slot: slot.NewMemory()})
	require.NoError(t, err)

	assert.PanicsWithValue(t, ErrNotStarted, func() { m.GetPageState("/a") })
	assert.PanicsWithValue(t, ErrNotStarted, func() { m.SetPageState("/a", nil) })
	assert.PanicsWithValue(t, ErrNotStarted, func() { m.ClearAllStates() })
	assert.NotPanics(t, m.Flush)

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, m.Close())

	assert.PanicsWithValue(t, ErrClosed, func() { m.Navigate("/a") })
	assert.PanicsWithValue(t, ErrClosed, func() { m.StateSize() })
	assert.ErrorIs(t, m.Start(context.Background()), ErrClosed)
}

func TestManager_ContextCancelStopsGoroutines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m, err := New(Options{Slot: slot.NewMemory()})
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))

	m.SetPageState("/a", map[string]any{"x": 1})
	cancel()
	m.Flush()
	require.NoError(t, m.Close())
}

func TestManager_ChangesAfterContextCancelAreWrittenOnClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mem := slot.NewMemory()
	m, err := New(Options{Slot: mem})
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))

	cancel()
	m.SetPageState("/mops", map[string]any{"selected": 7})
	require.NoError(t, m.Close())

	c, ok := slotCache(t, mem)
	require.True(t, ok)
	assert.Equal(t, 7, c["/mops"].Int("selected", 0))
}

func TestManager_FlushAfterContextCancelWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mem := slot.NewMemory()
	m, err := New(Options{Slot: mem})
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))
	t.Cleanup(func() { _ = m.Close() })

	cancel()
	m.SetPageState("/history", map[string]any{"page": 3})
	m.Flush()

	c, ok := slotCache(t, mem)
	require.True(t, ok)
	assert.Equal(t, 3, c["/history"].Int("page", 0))
}

// gatedSlot holds the first Read until release is closed.
type gatedSlot struct {
	*slot.Memory
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedSlot(mem *slot.Memory) *gatedSlot {
	return &gatedSlot{Memory: mem, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSlot) Read() (string, bool, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.Memory.Read()
}

func TestManager_CallsDuringStartupAreRejected(t *testing.T) {
	mem := slot.NewMemory()
	mem.Set(Encode(Cache{"/mops": {"filter": "draft", LastUpdatedKey: time.Now().UnixMilli()}}))
	gate := newGatedSlot(mem)
	m, err := New(Options{Slot: gate})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()
	<-gate.entered

	assert.PanicsWithValue(t, ErrNotStarted, func() {
		m.SetPageState("/mops", map[string]any{"filter": "approved"})
	})
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)

	close(gate.release)
	require.NoError(t, <-done)
	t.Cleanup(func() { _ = m.Close() })
	assert.Equal(t, "draft", m.GetPageState("/mops").String("filter", ""))
}

func TestManager_CloseDuringStartupAbortsStart(t *testing.T) {
	gate := newGatedSlot(slot.NewMemory())
	m, err := New(Options{Slot: gate})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()
	<-gate.entered

	require.NoError(t, m.Close())
	close(gate.release)
	assert.ErrorIs(t, <-done, ErrClosed)
	assert.PanicsWithValue(t, ErrClosed, func() { m.GetPageState("/mops") })
}

func TestManager_OptionFlagsRepairedAtStart(t *testing.T) {
	mem := slot.NewMemory()
	mem.Set(Encode(Cache{"/mops": {"searching": true, LastUpdatedKey: time.Now().UnixMilli()}}))
	m, err := New(Options{
		Slot:            mem,
		VisibilityFlags: map[string][]string{"/mops": {"searching"}},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Close() })

	assert.False(t, m.GetPageState("/mops").Bool("searching"))
	c, ok := slotCache(t, mem)
	require.True(t, ok)
	assert.Equal(t, false, c["/mops"]["searching"])
	assert.Equal(t, 1, m.RepairedAtStart())
}

func TestManager_OversizeSignalsMergeWithoutBlocking(t *testing.T) {
	clock := &fakeClock{now: epoch}
	m := newTestManager(t, slot.NewMemory(), clock, func(o *Options) {
		o.MaxAge = time.Hour
	})
	m.SetPageState("/old", map[string]any{"x": 1})
	clock.Advance(2 * time.Hour)

	for i := 0; i < 10; i++ {
		m.requestCleanup()
	}
	assert.Eventually(t, func() bool {
		return m.GetPageState("/old") == nil
	}, time.Second, 5*time.Millisecond)
}
