package workers

import (
	"context"

	"github.com/kmerrick/dropfour/pkg/log"
	"github.com/kmerrick/dropfour/pkg/repositories"
	"github.com/kmerrick/dropfour/pkg/repositories/models"
)

// SaveGameRecordWorker persists finished game records emitted by the
// session loops, keeping database writes off the game tick path.
type SaveGameRecordWorker struct {
	repository repositories.Repository
	saveChan   <-chan *models.GameRecord
}

type NewSaveGameRecordWorkerOptions struct {
	Repository repositories.Repository
	SaveChan   <-chan *models.GameRecord
}

// NewSaveGameRecordWorker creates a new SaveGameRecordWorker.
func NewSaveGameRecordWorker(opts NewSaveGameRecordWorkerOptions) *SaveGameRecordWorker {
	return &SaveGameRecordWorker{
		repository: opts.Repository,
		saveChan:   opts.SaveChan,
	}
}

func (w *SaveGameRecordWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-w.saveChan:
			if err := w.repository.SaveGameRecord(ctx, record); err != nil {
				log.Error("Failed to save game record %s: %v", record.ID, err)
				continue
			}
			log.Debug("Saved game record %s for session %s", record.ID, record.SessionID)
		}
	}
}
