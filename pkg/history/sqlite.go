package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database at path and applies
// the embedded migrations.
func NewSQLiteRepository(ctx context.Context, path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %v", err)
	}
	for _, entry := range entries {
		migration, err := migrations.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", entry.Name(), err)
		}
		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %v", entry.Name(), err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) InsertMatch(ctx context.Context, m *Match) error {
	q := `
	INSERT OR REPLACE INTO matches (room_id, player1_id, player2_id, variant, started_at, rating_change)
	VALUES (?, ?, ?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, m.RoomID, m.Player1ID, m.Player2ID, m.Variant, m.StartedAt, m.RatingChange)
	if err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) FinishMatch(ctx context.Context, roomID, winnerID string, endedAt time.Time) error {
	q := `
	UPDATE matches SET winner_id = ?, ended_at = ?, rating_change = ?
	WHERE room_id = ?;
	`
	res, err := r.db.ExecContext(ctx, q, winnerID, endedAt, RatingIncrement, roomID)
	if err != nil {
		return fmt.Errorf("failed to finish match: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if n == 0 {
		return &ErrNotFound{}
	}
	return nil
}

func (r *SQLiteRepository) GetMatch(ctx context.Context, roomID string) (*Match, error) {
	q := `
	SELECT room_id, player1_id, player2_id, variant, started_at, winner_id, ended_at, rating_change
	FROM matches WHERE room_id = ?;
	`
	var m Match
	var winner sql.NullString
	var ended sql.NullTime
	err := r.db.QueryRowContext(ctx, q, roomID).Scan(
		&m.RoomID, &m.Player1ID, &m.Player2ID, &m.Variant, &m.StartedAt,
		&winner, &ended, &m.RatingChange)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to get match: %v", err)
	}
	if winner.Valid {
		m.WinnerID = winner.String
	}
	if ended.Valid {
		m.EndedAt = ended.Time
	}
	return &m, nil
}
