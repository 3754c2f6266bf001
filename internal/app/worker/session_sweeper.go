package worker

import (
	"context"
	"log"
	"time"

	"novalabs_hub/internal/domain/repository"
)

// SessionSweeper periodically prunes per-user session index entries
// whose backing records have expired and been reclaimed. It is advisory
// cleanup: session reads already evaluate expiry lazily, so the sweeper
// can lag, overlap a concurrent access, or not run at all without
// changing observable behavior.
type SessionSweeper struct {
	sessionRepo repository.SessionRepository
	interval    time.Duration
}

func NewSessionSweeper(sessionRepo repository.SessionRepository, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{sessionRepo: sessionRepo, interval: interval}
}

func (w *SessionSweeper) Start(ctx context.Context) {
	log.Printf("Session sweeper started, interval %s", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Session sweeper stopping...")
			return
		case <-ticker.C:
			pruned, err := w.sessionRepo.PruneDeadIndexEntries(ctx)
			if err != nil {
				log.Printf("ERROR: session sweep failed: %v", err)
				continue
			}
			if pruned > 0 {
				log.Printf("Session sweep pruned %d dead index entries", pruned)
			}
		}
	}
}
