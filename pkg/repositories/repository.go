package repositories

import (
	"context"

	"github.com/kmerrick/dropfour/pkg/repositories/models"
)

type Repository interface {
	Close(ctx context.Context) error
	SaveGameRecord(ctx context.Context, record *models.GameRecord) error
	GetGameRecord(ctx context.Context, id string) (*models.GameRecord, error)
	ListGameRecords(ctx context.Context, limit int) ([]*models.GameRecord, error)
}
