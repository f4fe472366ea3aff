package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inspectorStub struct {
	queues map[string]*asynq.QueueInfo
	err    error
}

func (s inspectorStub) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	info, ok := s.queues[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func serveHealth(t *testing.T, h *Handler) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec
}

func TestHealthReportsEveryQueue(t *testing.T) {
	h := NewHandler(inspectorStub{queues: map[string]*asynq.QueueInfo{
		QueueLedger: {Queue: QueueLedger, Pending: 2, Retry: 1},
	}}, discardLogger())

	rec := serveHealth(t, h)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats []QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats, 2)
	assert.Equal(t, QueueStats{Queue: QueueLedger, Pending: 2, Retry: 1}, stats[0])
	assert.Equal(t, QueueStats{Queue: QueueDefault}, stats[1])
}

func TestHealthUnavailableBackend(t *testing.T) {
	rec := serveHealth(t, NewHandler(inspectorStub{err: errors.New("dial tcp: refused")}, discardLogger()))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthWithoutInspector(t *testing.T) {
	rec := serveHealth(t, NewHandler(nil, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	assert.Error(t, err)
	_, err = NewWorker(WorkerConfig{Handlers: []TaskHandler{{Type: TaskLedgerIntegrity}}})
	assert.Error(t, err)
}
