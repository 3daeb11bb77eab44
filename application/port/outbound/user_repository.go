package outbound

import (
	"context"
	"errors"

	"github.com/fixora/tollgate/domain/entity"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRegistry is the read-only client registry consulted by the identity
// and credential layers. Lookups must not perform I/O.
type UserRegistry interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	Count() int
}

// UserSource loads registry entries from a backing store at startup.
type UserSource interface {
	LoadAll(ctx context.Context) ([]*entity.User, error)
}
