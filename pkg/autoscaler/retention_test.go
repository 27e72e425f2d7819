package autoscaler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPrune struct {
	fakeRecorder
}

func (r *failingPrune) DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, errors.New("mysql unavailable")
}

func TestEventRetentionJob_PrunesOlderThanSevenDays(t *testing.T) {
	recorder := &fakeRecorder{pruneN: 3}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	job := NewEventRetentionJob(recorder, nil)
	job.now = func() time.Time { return now }

	assert.Equal(t, "scaling-event-retention", job.Name())
	assert.Equal(t, time.Hour, job.Interval())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, recorder.pruned, 1)
	assert.Equal(t, now.Add(-7*24*time.Hour), recorder.pruned[0])
}

func TestEventRetentionJob_SkipsWithoutLock(t *testing.T) {
	recorder := &fakeRecorder{}
	job := NewEventRetentionJob(recorder, &stubLock{acquire: false})

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, recorder.pruned)
}

func TestEventRetentionJob_NilRecorder(t *testing.T) {
	job := NewEventRetentionJob(nil, nil)
	assert.NoError(t, job.Run(context.Background()))
}

func TestEventRetentionJob_DeleteErrorSurfaces(t *testing.T) {
	job := NewEventRetentionJob(&failingPrune{}, nil)
	assert.Error(t, job.Run(context.Background()))
}
