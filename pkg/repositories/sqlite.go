package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kmerrick/dropfour/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and applies every
// migration in the migrations directory in name order.
func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	q := `
	INSERT INTO games (id, session_id, first_ref, first_name, second_ref, second_name, winner_ref, tie, move_count, moves, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q,
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

func (r *SQLiteRepository) GetGameRecord(ctx context.Context, id string) (*models.GameRecord, error) {
	q := `
	SELECT id, session_id, first_ref, first_name, second_ref, second_name, winner_ref, tie, move_count, moves, started_at, finished_at
	FROM games WHERE id = ?;
	`
	record := &models.GameRecord{}
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&record.ID, &record.SessionID,
		&record.FirstRef, &record.FirstName,
		&record.SecondRef, &record.SecondName,
		&record.WinnerRef, &record.Tie,
		&record.MoveCount, &record.Moves,
		&record.StartedAt, &record.FinishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan game record: %v", err)
	}

	return record, nil
}

func (r *SQLiteRepository) ListGameRecords(ctx context.Context, limit int) ([]*models.GameRecord, error) {
	q := `
	SELECT id, session_id, first_ref, first_name, second_ref, second_name, winner_ref, tie, move_count, moves, started_at, finished_at
	FROM games ORDER BY finished_at DESC LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
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
