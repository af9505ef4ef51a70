package agent

import "context"

// CheckpointStore persists session state between cycles. The loop only
// touches it at cycle boundaries, so a stored state is always consistent: no
// partial verdict is ever persisted as final.
type CheckpointStore interface {
	Save(ctx context.Context, sessionID string, state *State) error
	Load(ctx context.Context, sessionID string) (*State, bool, error)
	Delete(ctx context.Context, sessionID string) error
}
