package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/interviewx/internal/cache"
	"github.com/yoockh/interviewx/internal/models"
	mongorepo "github.com/yoockh/interviewx/internal/repositories/mongo"
	pgrepo "github.com/yoockh/interviewx/internal/repositories/postgres"
	"github.com/yoockh/interviewx/internal/storage"
)

// purger removes everything hanging off a deleted evaluation: media, realtime
// events, analyzer-call rows and the cached status. Best effort.
type purger struct {
	media    storage.MediaStore
	realtime mongorepo.RealtimeEventRepository
	calls    pgrepo.AnalyzerCallRepo
	cache    cache.Cache
	logger   *logrus.Logger
}

func (p purger) purge(ctx context.Context, ev *models.Evaluation) {
	log := p.logger.WithField("evaluation_id", ev.ID)
	for _, path := range []string{ev.VideoPath, ev.AudioPath} {
		if path == "" {
			continue
		}
		if err := p.media.Delete(ctx, path); err != nil {
			log.WithError(err).WithField("path", path).Warn("failed to remove media")
		}
	}
	if p.realtime != nil {
		if err := p.realtime.DeleteByEvaluation(ctx, ev.ID); err != nil {
			log.WithError(err).Warn("failed to remove realtime events")
		}
	}
	if err := p.calls.DeleteByEvaluation(ctx, ev.ID); err != nil {
		log.WithError(err).Warn("failed to remove analyzer calls")
	}
	if err := p.cache.Del(ctx, StatusCacheKey(ev.ID)); err != nil {
		log.WithError(err).Warn("status cache invalidation failed")
	}
}
