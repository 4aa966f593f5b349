package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ternary-app/link-server/internal/config"
	"github.com/ternary-app/link-server/internal/repository"
)

// CleanupJob sweeps linking state that has aged out: expired pending links,
// consumed links past their retention, and expired human sessions. Expiry is
// always enforced at read time too; the sweep only reclaims storage.
type CleanupJob struct {
	linkRepo repository.DeviceLinkRepository
	userRepo repository.UserRepository
	interval time.Duration
	done     chan struct{}
}

func NewCleanupJob(
	linkRepo repository.DeviceLinkRepository,
	userRepo repository.UserRepository,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		linkRepo: linkRepo,
		userRepo: userRepo,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "device links", func(ctx context.Context) (int64, error) {
		return j.linkRepo.DeleteExpired(ctx, config.ConsumedLinkRetention)
	})
	j.runCleanup(ctx, "user sessions", j.userRepo.DeleteExpiredSessions)
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
