package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fixora/tollgate/application/port/outbound"
	"github.com/fixora/tollgate/domain/entity"
)

// UserSourceAdapter reads and writes the client registry table. The gateway
// only reads it once at startup; Upsert exists for the seed command.
type UserSourceAdapter struct {
	db *sql.DB
}

func NewUserSourceAdapter(db *sql.DB) *UserSourceAdapter {
	return &UserSourceAdapter{
		db: db,
	}
}

var _ outbound.UserSource = (*UserSourceAdapter)(nil)

func (r *UserSourceAdapter) LoadAll(ctx context.Context) ([]*entity.User, error) {
	query := `
		SELECT id, trust_level, credential
		FROM gateway_users
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query gateway users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var (
			id         string
			level      int
			credential sql.NullString
		)
		if err := rows.Scan(&id, &level, &credential); err != nil {
			return nil, fmt.Errorf("failed to scan gateway user: %w", err)
		}
		user, err := userFromRow(id, level, credential)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gateway users: %w", err)
	}
	return users, nil
}

func (r *UserSourceAdapter) Upsert(ctx context.Context, user *entity.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	checked, err := entity.NewUser(user.ID, user.TrustLevel, user.Credential)
	if err != nil {
		return fmt.Errorf("user %q: %w", user.ID, err)
	}

	query := `
		INSERT INTO gateway_users (id, trust_level, credential)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			trust_level = EXCLUDED.trust_level,
			credential = EXCLUDED.credential,
			updated_at = NOW()
	`

	credential := sql.NullString{String: checked.Credential, Valid: checked.Credential != ""}
	if _, err := r.db.ExecContext(ctx, query, checked.ID, int(checked.TrustLevel), credential); err != nil {
		return fmt.Errorf("failed to upsert gateway user: %w", err)
	}
	return nil
}

func userFromRow(id string, level int, credential sql.NullString) (*entity.User, error) {
	user, err := entity.NewUser(id, entity.TrustLevel(level), credential.String)
	if err != nil {
		return nil, fmt.Errorf("gateway user %q: %w", id, err)
	}
	return user, nil
}
