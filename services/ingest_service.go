package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"level-publish-system/docstore"
	"level-publish-system/logger"
	"level-publish-system/models"
	"level-publish-system/monitoring"
	"level-publish-system/submission"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Submission is one ingestion event: an issue body plus who filed it.
type Submission struct {
	Body      string
	Author    string // issue-tracker login, the document store key
	AvatarURL string
	Number    int64 // issue number, the level id for publishes
}

type IngestResult struct {
	RunID    string          `json:"run_id"`
	Kind     submission.Kind `json:"kind"`
	LevelID  string          `json:"level_id"`
	Replaced bool            `json:"replaced,omitempty"`
	Removed  int             `json:"removed,omitempty"`
	Mirrored bool            `json:"mirrored"`
}

// IngestService runs submissions through parse, validate and apply against
// the document store, then mirrors the change into the relational store.
type IngestService struct {
	Docs      *docstore.Repository
	Validator *submission.Validator
	Levels    *LevelService // nil disables mirroring
	Now       func() time.Time
}

func NewIngestService(docs *docstore.Repository, validator *submission.Validator, levels *LevelService) *IngestService {
	return &IngestService{Docs: docs, Validator: validator, Levels: levels, Now: time.Now}
}

// Decode parses and validates a submission without touching any store.
func (s *IngestService) Decode(sub Submission) (submission.Action, error) {
	if strings.TrimSpace(sub.Author) == "" {
		return nil, &submission.MissingFieldError{Field: "author"}
	}
	action, err := s.Validator.Decode(submission.ParseSections(sub.Body))
	if err != nil {
		return nil, err
	}
	if action.Kind() == submission.KindPublishLevel && sub.Number <= 0 {
		return nil, &submission.ValidationError{Kind: submission.KindPublishLevel, Reason: "submission number must be positive"}
	}
	return action, nil
}

// Process applies one submission. Invalid submissions fail before the
// document store is read.
func (s *IngestService) Process(ctx context.Context, sub Submission) (*IngestResult, error) {
	runID := uuid.NewString()
	log := logger.Log.With(zap.String("run_id", runID), zap.String("author", sub.Author), zap.Int64("number", sub.Number))

	action, err := s.Decode(sub)
	if err != nil {
		monitoring.IngestRuns.WithLabelValues("unknown", "rejected").Inc()
		log.Warn("[INGEST] ❌ submission rejected", zap.Error(err))
		return nil, err
	}

	result := &IngestResult{RunID: runID, Kind: action.Kind()}
	now := s.Now().UTC()
	var mirror *MirrorLevel

	err = s.Docs.Update(ctx, func(doc docstore.Document) error {
		user := doc.EnsureUser(sub.Author)
		if sub.AvatarURL != "" {
			user.Avatar = sub.AvatarURL
		}

		switch a := action.(type) {
		case *submission.PublishLevel:
			entry := publishEntry(a, sub.Number, now)
			result.LevelID = entry.ID()
			result.Replaced = user.Upsert(entry)
			data, err := json.Marshal(entry.Data())
			if err != nil {
				return err
			}
			mirror = &MirrorLevel{
				ID:        result.LevelID,
				Author:    sub.Author,
				AvatarURL: user.Avatar,
				Data:      models.JSON(data),
				PublishAt: now,
				UpdatedAt: now,
			}
		case *submission.DeleteLevel:
			result.LevelID = a.ID
			result.Removed = user.Remove(a.ID)
		default:
			return fmt.Errorf("unhandled action %q", action.Kind())
		}
		return nil
	})
	if err != nil {
		monitoring.IngestRuns.WithLabelValues(string(action.Kind()), "error").Inc()
		log.Error("[INGEST] ❌ document store update failed", zap.Error(err))
		return nil, &StoreError{Op: "apply submission", Err: err}
	}

	result.Mirrored = s.mirror(ctx, log, sub, action, mirror, result)

	monitoring.IngestRuns.WithLabelValues(string(action.Kind()), "applied").Inc()
	log.Info("[INGEST] ✅ submission applied",
		zap.String("kind", string(result.Kind)),
		zap.String("level_id", result.LevelID),
		zap.Bool("replaced", result.Replaced),
		zap.Int("removed", result.Removed),
		zap.Bool("mirrored", result.Mirrored),
	)
	return result, nil
}

// mirror copies the change into the relational store. Failures are logged
// and left for the reconcile worker.
func (s *IngestService) mirror(ctx context.Context, log *zap.Logger, sub Submission, action submission.Action, m *MirrorLevel, result *IngestResult) bool {
	if s.Levels == nil {
		return false
	}

	var err error
	switch action.Kind() {
	case submission.KindPublishLevel:
		err = s.Levels.MirrorPublish(ctx, *m)
	case submission.KindDeleteLevel:
		err = s.Levels.MirrorDelete(ctx, sub.Author, result.LevelID)
	}
	if err != nil {
		log.Warn("[INGEST] ⚠️ relational mirror failed, reconcile will retry", zap.Error(err))
		return false
	}
	return true
}

// publishEntry builds the stored entry: the data fields (or data itself under
// "data" when it is not an object), keyed by the submission number.
func publishEntry(a *submission.PublishLevel, number int64, now time.Time) docstore.LevelEntry {
	entry := docstore.LevelEntry{}
	if fields, ok := a.Fields(); ok {
		for k, v := range fields {
			entry[k] = v
		}
	} else {
		entry["data"] = json.RawMessage(a.Data)
	}

	ts := now.Format(time.RFC3339)
	entry[docstore.FieldID] = strconv.FormatInt(number, 10)
	entry[docstore.FieldPublishAt] = ts
	entry[docstore.FieldUpdatedAt] = ts
	return entry
}
