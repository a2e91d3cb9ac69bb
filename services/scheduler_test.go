package services

import (
	"context"
	"testing"
	"time"

	"level-publish-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartPublishScheduler_PublishesDueLevels(t *testing.T) {
	svc, clock := newTestLevelService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	at := clock.t.Add(time.Hour)
	_, err := svc.Publish(ctx, alice(), "1", PublishInput{Data: models.JSON(`{}`), PublishAt: &at})
	require.NoError(t, err)

	later := at.Add(time.Minute)
	svc.Now = func() time.Time { return later }

	sched, err := svc.StartPublishScheduler(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	defer func() { assert.NoError(t, sched.Shutdown()) }()

	require.Eventually(t, func() bool {
		level, err := svc.Get(ctx, "1")
		return err == nil && level.IsPublished
	}, 2*time.Second, 20*time.Millisecond)
}
