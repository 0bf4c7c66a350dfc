package memory

import (
	"context"
	"sync"
)

// UserDirectory maps user ids to usernames in memory.
type UserDirectory struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewUserDirectory(names map[string]string) *UserDirectory {
	copied := make(map[string]string, len(names))
	for id, name := range names {
		copied[id] = name
	}
	return &UserDirectory{names: copied}
}

// Register adds or renames a user.
func (d *UserDirectory) Register(_ context.Context, userID, username string) error {
	d.mu.Lock()
	d.names[userID] = username
	d.mu.Unlock()
	return nil
}

func (d *UserDirectory) Usernames(_ context.Context, userIDs []string) (map[string]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := d.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}
