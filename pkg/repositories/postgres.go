package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kmerrick/dropfour/pkg/log"
	"github.com/kmerrick/dropfour/pkg/repositories/models"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to the database at connStr. The caller
// is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	var username string
	var database string
	if err := conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		return nil, fmt.Errorf("failed to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	q := `
	INSERT INTO games (id, session_id, first_ref, first_name, second_ref, second_name, winner_ref, tie, move_count, moves, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err := r.conn.Exec(ctx, q,
		record.ID, record.SessionID,
		record.FirstRef, record.FirstName,
		record.SecondRef, record.SecondName,
		record.WinnerRef, record.Tie,
		record.MoveCount, record.Moves,
		record.StartedAt, record.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game record: %v", err)
	}

	return nil
}

func (r *PostgresRepository) GetGameRecord(ctx context.Context, id string) (*models.GameRecord, error) {
	q := `
	SELECT id, session_id, first_ref, first_name, second_ref, second_name, winner_ref, tie, move_count, moves, started_at, finished_at
	FROM games WHERE id = $1;
	`
	record := &models.GameRecord{}
	err := r.conn.QueryRow(ctx, q, id).Scan(
		&record.ID, &record.SessionID,
		&record.FirstRef, &record.FirstName,
		&record.SecondRef, &record.SecondName,
		&record.WinnerRef, &record.Tie,
		&record.MoveCount, &record.Moves,
		&record.StartedAt, &record.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan game record: %v", err)
	}

	return record, nil
}

func (r *PostgresRepository) ListGameRecords(ctx context.Context, limit int) ([]*models.GameRecord, error) {
	q := `
	SELECT id, session_id, first_ref, first_name, second_ref, second_name, winner_ref, tie, move_count, moves, started_at, finished_at
	FROM games ORDER BY finished_at DESC LIMIT $1;
	`
	rows, err := r.conn.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query game records: %v", err)
	}
	defer rows.Close()

	var records []*models.GameRecord
	for rows.Next() {
		record := &models.GameRecord{}
		if err := rows.Scan(
			&record.ID, &record.SessionID,
			&record.FirstRef, &record.FirstName,
			&record.SecondRef, &record.SecondName,
			&record.WinnerRef, &record.Tie,
			&record.MoveCount, &record.Moves,
			&record.StartedAt, &record.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game record: %v", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}
