package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/capture"
	"github.com/chg95211/msx-ethernet-audio/internal/session"
	"github.com/chg95211/msx-ethernet-audio/internal/testutil"
)

func newTestRouter(t *testing.T, ptt *capture.Switch, token string) (http.Handler, *session.Registry) {
	t.Helper()
	reg := session.NewRegistry()
	return NewRouter(NewHandlers(reg, ptt, zap.NewNop()), token, zap.NewNop()), reg
}

func do(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t, nil, "")
	rec := do(h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestReadyzWithoutSessions(t *testing.T) {
	h, _ := newTestRouter(t, nil, "")
	rec := do(h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	h, _ := newTestRouter(t, nil, "")
	rec := do(h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "etheraudio_")
}

func TestSessionsEndpoints(t *testing.T) {
	h, reg := newTestRouter(t, nil, "")

	f, _ := audio.ModeFormat(1)
	path := filepath.Join(t.TempDir(), "a.raw")
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o600))
	s, err := session.NewLocalPlay(session.LocalPlayOptions{Format: f, File: path, Sink: &testutil.RecordingSink{}, Logger: zap.NewNop()})
	require.NoError(t, err)
	reg.Add(s)
	require.NoError(t, s.Run(context.Background()))

	rec := do(h, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sessions []session.Status `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, s.ID, list.Sessions[0].ID)
	assert.Equal(t, session.StateStopped, list.Sessions[0].State)

	rec = do(h, http.MethodGet, "/v1/sessions/"+s.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"local-play"`)

	rec = do(h, http.MethodGet, "/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPushToTalk(t *testing.T) {
	var sw capture.Switch
	h, _ := newTestRouter(t, &sw, "")

	rec := do(h, http.MethodPost, "/v1/ptt/on", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"talking":true}`, rec.Body.String())
	assert.True(t, sw.Active())

	rec = do(h, http.MethodPost, "/v1/ptt/toggle", nil)
	assert.JSONEq(t, `{"talking":false}`, rec.Body.String())
	assert.False(t, sw.Active())

	rec = do(h, http.MethodPost, "/v1/ptt/sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPushToTalkWithoutSession(t *testing.T) {
	h, _ := newTestRouter(t, nil, "")
	rec := do(h, http.MethodPost, "/v1/ptt/on", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPushToTalkRequiresToken(t *testing.T) {
	var sw capture.Switch
	h, _ := newTestRouter(t, &sw, "s3cret")

	rec := do(h, http.MethodPost, "/v1/ptt/on", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, sw.Active())

	rec = do(h, http.MethodPost, "/v1/ptt/on", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sw.Active())

	// reads stay open
	rec = do(h, http.MethodGet, "/v1/sessions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
}
