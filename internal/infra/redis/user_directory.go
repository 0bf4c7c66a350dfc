package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"quiz-results-service/internal/domain"
)

const usernamesKey = "users:names"

// UserDirectory keeps usernames in a single hash keyed by user id.
type UserDirectory struct {
	client *redis.Client
}

func NewUserDirectory(client *redis.Client) *UserDirectory {
	return &UserDirectory{client: client}
}

func (d *UserDirectory) Usernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	values, err := d.client.HMGet(ctx, usernamesKey, userIDs...).Result()
	if err != nil {
		return nil, domain.StorageError("resolve usernames", err)
	}
	for i, v := range values {
		if name, ok := v.(string); ok && name != "" {
			out[userIDs[i]] = name
		}
	}
	return out, nil
}

// Register adds or renames a user.
func (d *UserDirectory) Register(ctx context.Context, userID, username string) error {
	if err := d.client.HSet(ctx, usernamesKey, userID, username).Err(); err != nil {
		return domain.StorageError("register user", err)
	}
	return nil
}
