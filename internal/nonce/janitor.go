package nonce

import (
	"context"
	"log"
	"time"
)

// Janitor periodically deletes expired pending nonces.
type Janitor struct {
	manager   *Manager
	interval  time.Duration
	retention time.Duration
}

// NewJanitor returns a Janitor that runs manager.CleanupExpired every interval,
// deleting pending nonces expired more than retention ago.
func NewJanitor(manager *Manager, interval, retention time.Duration) *Janitor {
	return &Janitor{manager: manager, interval: interval, retention: retention}
}

// Run blocks until ctx is canceled, running one cleanup pass per interval.
// Failures are logged and do not stop the loop.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := j.manager.CleanupExpired(ctx, j.retention)
			if err != nil {
				log.Printf("nonce janitor: cleanup failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("nonce janitor: deleted %d expired nonces", n)
			}
		}
	}
}
