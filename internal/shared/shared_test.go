package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePeriodTransition(t *testing.T) {
	require.NoError(t, ValidatePeriodTransition("", PeriodStatusClosed, false))
	require.NoError(t, ValidatePeriodTransition(PeriodStatusOpen, PeriodStatusClosed, false))
	require.NoError(t, ValidatePeriodTransition(PeriodStatusClosed, PeriodStatusOpen, true))
	assert.ErrorIs(t, ValidatePeriodTransition(PeriodStatusClosed, PeriodStatusOpen, false), ErrInvalidPeriodTransition)
	assert.ErrorIs(t, ValidatePeriodTransition(PeriodStatusClosed, PeriodStatusClosed, true), ErrInvalidPeriodTransition)
	assert.ErrorIs(t, ValidatePeriodTransition(PeriodStatusOpen, PeriodStatusOpen, true), ErrInvalidPeriodTransition)
}

func TestActorMiddleware(t *testing.T) {
	var seen int64
	h := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), seen)

	for _, raw := range []string{"", "abc", "-3", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(ActorHeader, raw)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, raw)
	}
}

func TestAuditFuncValidates(t *testing.T) {
	var calls int
	fn := AuditFunc(func(context.Context, AuditLog) error {
		calls++
		return nil
	})
	require.Error(t, fn.Record(context.Background(), AuditLog{Action: "journal.post"}))
	require.NoError(t, fn.Record(context.Background(), AuditLog{Action: "journal.post", Entity: "ledger_transaction", EntityID: "1"}))
	assert.Equal(t, 1, calls)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 45)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 20, NewPagination(3, 10, 45).Offset())
}
