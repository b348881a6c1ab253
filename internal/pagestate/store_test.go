package pagestate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/five82/checklist/internal/slot"
)

func TestStore_PersistAndLoad(t *testing.T) {
	mem := slot.NewMemory()
	s := NewStore(mem, 0, nil, nil)

	c := Cache{"/mops": {"selected": 2, LastUpdatedKey: int64(10)}}
	require.True(t, s.Persist(c))

	got := s.Load()
	assert.Equal(t, 2, got["/mops"].Int("selected", 0))
	assert.Equal(t, len(Encode(c)), s.Size(c))
}

func TestStore_OversizeSkipsWriteAndTriggersCleanupOnce(t *testing.T) {
	mem := slot.NewMemory()
	mem.Set("previous")

	calls := 0
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewStore(mem, 1024, zap.New(core), func() { calls++ })

	big := bigCache(2)
	require.Greater(t, s.Size(big), 1024)

	assert.False(t, s.Persist(big))
	assert.Equal(t, 1, calls)
	assert.False(t, s.Persist(big))
	assert.Equal(t, 2, calls, "one cleanup per offending write attempt")

	value, ok, err := mem.Read()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "previous", value, "oversized payload must not be written")
	assert.Equal(t, 2, logs.FilterMessage("page state exceeds storage ceiling, skipping write").Len())
}

func TestStore_SlotFailuresAreSwallowed(t *testing.T) {
	mem := slot.NewMemory()
	mem.WriteErr = errors.New("quota exceeded")
	mem.ReadErr = errors.New("access denied")
	mem.RemoveErr = errors.New("access denied")

	core, logs := observer.New(zapcore.WarnLevel)
	s := NewStore(mem, 0, zap.New(core), nil)

	require.NotPanics(t, func() {
		assert.False(t, s.Persist(Cache{"a": {LastUpdatedKey: int64(1)}}))
		assert.Empty(t, s.Load())
		s.Clear()
	})
	assert.Equal(t, 3, logs.Len())
}

func TestStore_LoadCorruptSlotIsEmpty(t *testing.T) {
	for _, raw := range []string{"{not json", "null", ""} {
		mem := slot.NewMemory()
		mem.Set(raw)
		got := NewStore(mem, 0, nil, nil).Load()
		assert.NotNil(t, got)
		assert.Empty(t, got, "raw=%q", raw)
	}
}

func TestStore_LoadMissingSlotIsEmpty(t *testing.T) {
	got := NewStore(slot.NewMemory(), 0, nil, nil).Load()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_ClearRemovesSlot(t *testing.T) {
	mem := slot.NewMemory()
	s := NewStore(mem, 0, nil, nil)
	require.True(t, s.Persist(Cache{}))

	s.Clear()
	_, ok, err := mem.Read()
	require.NoError(t, err)
	assert.False(t, ok)
}
