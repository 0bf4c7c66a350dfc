package postgres

import (
	"context"

	"github.com/uptrace/bun"
	"quiz-results-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID       string `bun:"id,pk"`
	Username string `bun:"username,notnull"`
}

// UserDirectory resolves usernames from the users table.
type UserDirectory struct {
	db *bun.DB
}

func NewUserDirectory(db *bun.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) Usernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []userRow
	err := d.db.NewSelect().
		Model(&rows).
		Column("id", "username").
		Where("id IN (?)", bun.In(userIDs)).
		Scan(ctx)
	if err != nil {
		return nil, domain.StorageError("resolve usernames", err)
	}
	for _, row := range rows {
		out[row.ID] = row.Username
	}
	return out, nil
}

// Register inserts a user or renames an existing one.
func (d *UserDirectory) Register(ctx context.Context, userID, username string) error {
	row := &userRow{ID: userID, Username: username}
	_, err := d.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Exec(ctx)
	if err != nil {
		return domain.StorageError("register user", err)
	}
	return nil
}
