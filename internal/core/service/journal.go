package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/metrics"
	"github.com/rl1809/grocery-inventory/internal/port"
)

const journalWriteTimeout = 5 * time.Second

// StartJournal launches workers that persist movements from queue until it
// is closed. Wait on the returned group after closing the queue.
func StartJournal(workers int, queue <-chan domain.Movement, db port.DatabaseRepository, logger *zap.Logger, m *metrics.Metrics) *sync.WaitGroup {
	if logger == nil {
		logger = zap.NewNop()
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			journalLoop(id, queue, db, logger, m)
		}(i)
	}
	return &wg
}

func journalLoop(id int, queue <-chan domain.Movement, db port.DatabaseRepository, logger *zap.Logger, m *metrics.Metrics) {
	for mv := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)

		if err := db.RecordMovement(ctx, mv); err != nil {
			m.JournalFailed()
			logger.Error("failed to journal movement",
				zap.Int("worker", id),
				zap.String("movement", mv.ID),
				zap.String("kind", string(mv.Kind)),
				zap.Error(err))
		} else {
			logger.Debug("journaled movement",
				zap.Int("worker", id),
				zap.String("movement", mv.ID),
				zap.String("kind", string(mv.Kind)))
		}

		cancel()
	}
}
