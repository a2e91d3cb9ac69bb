// workers/reconcile_worker.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"level-publish-system/docstore"
	"level-publish-system/logger"
	"level-publish-system/models"
	"level-publish-system/monitoring"
	"level-publish-system/services"

	"go.uber.org/zap"
)

// ReconcileStats counts what one pass did.
type ReconcileStats struct {
	Upserted int `json:"upserted"`
	Pruned   int `json:"pruned"`
	Skipped  int `json:"skipped"` // level id owned by another author
	Failed   int `json:"failed"`
}

// ReconcileWorker folds the document store (staging area for submissions)
// into the relational store.
type ReconcileWorker struct {
	docs     *docstore.Repository
	levels   *services.LevelService
	interval time.Duration
}

func NewReconcileWorker(docs *docstore.Repository, levels *services.LevelService, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		docs:     docs,
		levels:   levels,
		interval: interval,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	logger.Log.Info("🔁 [RECONCILE] starting worker (document store → levels)", zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *ReconcileWorker) run(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		logger.Log.Warn("⚠️ [RECONCILE] initial pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				logger.Log.Error("❌ [RECONCILE] pass failed", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Log.Info("⏹️ [RECONCILE] worker stopped")
			return
		}
	}
}

// RunOnce upserts every document entry and prunes submission rows that are
// gone from the document. Only authors present in the document are pruned.
func (w *ReconcileWorker) RunOnce(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	doc, err := w.docs.Load(ctx)
	if err != nil {
		return stats, err
	}

	for _, login := range doc.Usernames() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		user := doc[login]
		present := make(map[string]bool, len(user.Levels))

		for _, entry := range user.Levels {
			id := entry.ID()
			if id == "" {
				continue
			}
			present[id] = true

			m, err := mirrorFromEntry(login, user.Avatar, entry)
			if err == nil {
				err = w.levels.MirrorPublish(ctx, m)
			}
			switch {
			case err == nil:
				stats.Upserted++
				monitoring.ReconciledLevels.WithLabelValues("upsert").Inc()
			case errors.Is(err, services.ErrForbidden):
				stats.Skipped++
				logger.Log.Warn("[RECONCILE] level id owned by another author",
					zap.String("author", login), zap.String("level_id", id))
			default:
				stats.Failed++
				logger.Log.Warn("[RECONCILE] failed to upsert level",
					zap.String("author", login), zap.String("level_id", id), zap.Error(err))
			}
		}

		ids, err := w.levels.ListSubmissionLevelIDs(ctx, login)
		if err != nil {
			stats.Failed++
			logger.Log.Warn("[RECONCILE] failed to list levels", zap.String("author", login), zap.Error(err))
			continue
		}
		for _, id := range ids {
			if present[id] {
				continue
			}
			if err := w.levels.MirrorDelete(ctx, login, id); err != nil {
				stats.Failed++
				logger.Log.Warn("[RECONCILE] failed to prune level",
					zap.String("author", login), zap.String("level_id", id), zap.Error(err))
				continue
			}
			stats.Pruned++
			monitoring.ReconciledLevels.WithLabelValues("prune").Inc()
		}
	}

	logger.Log.Info("✅ [RECONCILE] pass complete",
		zap.Int("upserted", stats.Upserted),
		zap.Int("pruned", stats.Pruned),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func mirrorFromEntry(login, avatar string, entry docstore.LevelEntry) (services.MirrorLevel, error) {
	data, err := json.Marshal(entry.Data())
	if err != nil {
		return services.MirrorLevel{}, err
	}
	updatedAt := entryTime(entry, docstore.FieldUpdatedAt, time.Now())
	return services.MirrorLevel{
		ID:          entry.ID(),
		Author:      login,
		AvatarURL:   avatar,
		Data:        models.JSON(data),
		PublishAt:   entryTime(entry, docstore.FieldPublishAt, updatedAt),
		UpdatedAt:   updatedAt,
		Unpublished: entry.Unpublished(),
	}, nil
}

func entryTime(entry docstore.LevelEntry, key string, fallback time.Time) time.Time {
	if s, ok := entry[key].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return fallback
}
