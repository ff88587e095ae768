package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type PlayerRow struct {
	ID        int32
	Account   string
	Admin     bool
	CreatedAt time.Time
	LastSeen  *time.Time
}

// PlayerRepo stores the persistent player seat rows. The in-memory player
// is authoritative while the server runs; rows exist so player IDs stay
// stable across restarts.
type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// MaxID returns the highest persisted player ID, 0 when there are none.
func (r *PlayerRepo) MaxID(ctx context.Context) (int32, error) {
	var max int32
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM players`,
	).Scan(&max)
	return max, err
}

// LoadByAccount returns the player row for an account or nil.
func (r *PlayerRepo) LoadByAccount(ctx context.Context, account string) (*PlayerRow, error) {
	row := &PlayerRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, account, admin, created_at, last_seen
		 FROM players WHERE account = $1`, account,
	).Scan(&row.ID, &row.Account, &row.Admin, &row.CreatedAt, &row.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *PlayerRepo) Insert(ctx context.Context, id int32, account string, admin bool) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO players (id, account, admin, last_seen)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (id) DO NOTHING`,
		id, account, admin,
	)
	return err
}

func (r *PlayerRepo) TouchLastSeen(ctx context.Context, id int32) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET last_seen = NOW() WHERE id = $1`, id,
	)
	return err
}
