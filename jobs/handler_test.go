package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	graceDays int
	err       error
}

func (f *fakeEnqueuer) EnqueueOverdueSweep(ctx context.Context, graceDays int) (*asynq.TaskInfo, error) {
	f.graceDays = graceDays
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func jobsRouter(enqueuer SweepEnqueuer, graceDays int) http.Handler {
	r := chi.NewRouter()
	NewHandler(enqueuer, graceDays, nil).MountRoutes(r)
	return r
}

func TestTriggerSweepEnqueuesWithConfiguredGrace(t *testing.T) {
	fake := &fakeEnqueuer{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/overdue-sweep", nil)

	jobsRouter(fake, 60).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 60, fake.graceDays)
	require.JSONEq(t, `{"taskId":"task-1","queue":"default"}`, rec.Body.String())
}

func TestTriggerSweepReportsQueueOutage(t *testing.T) {
	fake := &fakeEnqueuer{err: errors.New("redis: connection refused")}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/overdue-sweep", nil)

	jobsRouter(fake, 90).ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
