package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csbedford/picklematch/internal/adapter/kratos"
	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/policy"
	"github.com/csbedford/picklematch/internal/transport/http/middleware"
)

type staticState struct{}

func (staticState) State() domain.AuthState {
	return domain.AuthState{Phase: domain.AuthPhaseAnonymous}
}

func (staticState) Subscribe(func(domain.AuthState)) func() { return func() {} }

type countingSink struct{ n int }

func (s *countingSink) HandleEvent(context.Context, kratos.Event) error {
	s.n++
	return nil
}

func TestServerProtectsInternalRoutes(t *testing.T) {
	nav, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	sink := &countingSink{}

	e := NewServer(Deps{
		State:         staticState{},
		Nav:           nav,
		Events:        sink,
		WebhookSecret: "webhook-secret",
	}, slog.New(slog.DiscardHandler))

	send := func(secret string) int {
		req := httptest.NewRequest(http.MethodPost, "/internal/identity/events",
			bytes.NewBufferString(`{"type":"session.revoked","session_id":"s1"}`))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set(middleware.InternalAuthHeader, secret)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusForbidden, send("wrong"))
	assert.Equal(t, http.StatusAccepted, send("webhook-secret"))
	assert.Equal(t, 1, sink.n)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"ANONYMOUS"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
