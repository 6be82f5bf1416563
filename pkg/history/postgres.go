package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to the database at connStr. The schema
// is expected to exist already. The caller is responsible for calling
// Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}
	return &PostgresRepository{
		conn: conn,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) InsertMatch(ctx context.Context, m *Match) error {
	q := `
	INSERT INTO matches (room_id, player1_id, player2_id, variant, started_at, rating_change)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (room_id) DO UPDATE SET
		player1_id = $2, player2_id = $3, variant = $4, started_at = $5, rating_change = $6;
	`
	_, err := r.conn.Exec(ctx, q, m.RoomID, m.Player1ID, m.Player2ID, m.Variant, m.StartedAt, m.RatingChange)
	if err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}
	return nil
}

func (r *PostgresRepository) FinishMatch(ctx context.Context, roomID, winnerID string, endedAt time.Time) error {
	q := `
	UPDATE matches SET winner_id = $1, ended_at = $2, rating_change = $3
	WHERE room_id = $4;
	`
	res, err := r.conn.Exec(ctx, q, winnerID, endedAt, RatingIncrement, roomID)
	if err != nil {
		return fmt.Errorf("failed to finish match: %v", err)
	}
	if res.RowsAffected() == 0 {
		return &ErrNotFound{}
	}
	return nil
}

func (r *PostgresRepository) GetMatch(ctx context.Context, roomID string) (*Match, error) {
	q := `
	SELECT room_id, player1_id, player2_id, variant, started_at, winner_id, ended_at, rating_change
	FROM matches WHERE room_id = $1;
	`
	var m Match
	var winner *string
	var ended *time.Time
	err := r.conn.QueryRow(ctx, q, roomID).Scan(
		&m.RoomID, &m.Player1ID, &m.Player2ID, &m.Variant, &m.StartedAt,
		&winner, &ended, &m.RatingChange)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to get match: %v", err)
	}
	if winner != nil {
		m.WinnerID = *winner
	}
	if ended != nil {
		m.EndedAt = *ended
	}
	return &m, nil
}
