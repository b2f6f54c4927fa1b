package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/account-server-go/internal/audit"
	"github.com/openclaw/account-server-go/internal/config"
)

// SessionCleaner is satisfied by *service.SessionService.
type SessionCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupJob deletes stale sessions on a fixed interval.
type CleanupJob struct {
	sessions  SessionCleaner
	retention time.Duration
	interval  time.Duration
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewCleanupJob(sessions SessionCleaner, retention, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessions:  sessions,
		retention: retention,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().
		Dur("interval", j.interval).
		Dur("retention", j.retention).
		Msg("cleanup job started")
}

// Stop waits for an in-flight run to finish. It is safe to call twice.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	_, _ = j.RunOnce(context.Background())

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			_, _ = j.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single cleanup pass and returns the number of deleted
// sessions. Failures are logged and returned.
func (j *CleanupJob) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, config.CleanupRunTimeout)
	defer cancel()

	count, err := j.sessions.Cleanup(ctx, j.retention)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup sessions")
		return 0, err
	}
	if count > 0 {
		audit.Log(ctx, audit.Event{
			Type: audit.EventSessionCleanup,
			Details: map[string]interface{}{
				"deleted":   count,
				"retention": j.retention.String(),
			},
		})
	}
	return count, nil
}
