// Package checkpoint provides durable stores for loop session state. The
// loop writes at cycle boundaries only, so every stored snapshot is a
// consistent state a session can resume from.
package checkpoint

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/groundcheck/paperagent/agent"
)

var _ agent.CheckpointStore = (*Memory)(nil)

// Memory keeps checkpoints in process memory. Snapshots are stored as JSON
// so a loaded state never aliases the saved one.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{snapshots: make(map[string][]byte)}
}

func (m *Memory) Save(ctx context.Context, sessionID string, state *agent.State) error {
	raw, err := sonic.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.snapshots[sessionID] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(ctx context.Context, sessionID string) (*agent.State, bool, error) {
	m.mu.RLock()
	raw, ok := m.snapshots[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	state := agent.NewState()
	if err := sonic.Unmarshal(raw, state); err != nil {
		return nil, false, err
	}
	return state, true, nil
}

func (m *Memory) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.snapshots, sessionID)
	m.mu.Unlock()
	return nil
}
