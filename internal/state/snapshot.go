package state

import (
	"context"
	"encoding/json"
	"fmt"
)

// Keys lists every durable key the store writes.
var Keys = []string{
	KeyMembers, KeyVirtues, KeyReadings, KeyActivities,
	KeyCodes, KeyLinks, KeyPending,
}

// Snapshot returns the persisted value of every durable key. Absent keys are
// left out.
func (s *Store) Snapshot(ctx context.Context) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]json.RawMessage, len(Keys))
	for _, key := range Keys {
		data, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if data != nil {
			out[key] = json.RawMessage(data)
		}
	}
	return out, nil
}
