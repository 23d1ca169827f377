package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solient/storefront/internal/domain/user"
)

const (
	getAddressSQL = `SELECT shipping_address FROM users WHERE id = $1`

	saveAddressSQL = `UPDATE users SET shipping_address = $2 WHERE id = $1`

	insertUserSQL = `INSERT INTO users (email) VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Address returns the user's saved shipping address. A missing user, NULL
// column, or unparseable stored value all yield no address.
func (r *UserRepository) Address(ctx context.Context, userID int64) (*user.Address, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, getAddressSQL, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get address for user %d", userID)
	}

	if addr := unmarshalAddress(raw); addr != nil {
		return addr, nil
	}
	return nil, nil
}

// SaveAddress replaces the user's saved shipping address.
func (r *UserRepository) SaveAddress(ctx context.Context, userID int64, addr user.Address) error {
	raw, err := marshalAddress(&addr)
	if err != nil {
		return errors.Wrap(err, "marshal address")
	}

	tag, err := r.pool.Exec(ctx, saveAddressSQL, userID, raw)
	if err != nil {
		return errors.Wrapf(err, "save address for user %d", userID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("save address: user %d not found", userID)
	}
	return nil
}

// CreateUser inserts a user by email, returning the ID. Used by seed-db.
func (r *UserRepository) CreateUser(ctx context.Context, email string) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, insertUserSQL, email).Scan(&id); err != nil {
		return 0, errors.Wrapf(err, "create user %q", email)
	}
	return id, nil
}
