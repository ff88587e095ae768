package persist

import (
	"context"
	"time"
)

type SaveRow struct {
	ID        int64
	Label     string
	Tick      int32
	GameDate  int64
	PlayerID  *int32
	CreatedAt time.Time
}

// SaveRepo records save points requested by players.
type SaveRepo struct {
	db *DB
}

func NewSaveRepo(db *DB) *SaveRepo {
	return &SaveRepo{db: db}
}

func (r *SaveRepo) Insert(ctx context.Context, label string, tick int32, gameDate int64, playerID *int32) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO saves (label, tick, game_date, player_id)
		 VALUES ($1, $2, $3, $4)`,
		label, tick, gameDate, playerID,
	)
	return err
}

// Latest returns the most recent save rows, newest first.
func (r *SaveRepo) Latest(ctx context.Context, limit int) ([]SaveRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, label, tick, game_date, player_id, created_at
		 FROM saves ORDER BY id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaveRow
	for rows.Next() {
		var row SaveRow
		if err := rows.Scan(&row.ID, &row.Label, &row.Tick, &row.GameDate,
			&row.PlayerID, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
