package slot

import "sync"

// Memory keeps the value in process memory. The error fields let tests
// simulate a failing host store.
type Memory struct {
	mu      sync.Mutex
	value   string
	present bool
	writes  int

	ReadErr   error
	WriteErr  error
	RemoveErr error
}

// NewMemory returns an empty memory slot.
func NewMemory() *Memory {
	return &Memory{}
}

// Read returns the stored value.
func (m *Memory) Read() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", false, m.ReadErr
	}
	return m.value, m.present, nil
}

// Write replaces the value.
func (m *Memory) Write(value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.value = value
	m.present = true
	m.writes++
	return nil
}

// Remove deletes the value.
func (m *Memory) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.value = ""
	m.present = false
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// Writes returns how many successful writes happened.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Set stores a raw value, bypassing the error fields.
func (m *Memory) Set(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.present = true
}
