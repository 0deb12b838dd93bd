package sidecar

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, w Waker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r, err := NewRegistry([]Server{{ID: "nas", MAC: "00:11:22:33:44:55"}}, w)
	require.NoError(t, err)

	return NewRouter(r)
}

func do(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Server {
	t.Helper()
	var s Server
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func TestAlive(t *testing.T) {
	router := newTestRouter(t, &fakeWaker{})

	rec := do(router, http.MethodGet, "/alive")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK"}`, rec.Body.String())
}

func TestStatusRoutes(t *testing.T) {
	router := newTestRouter(t, &fakeWaker{})

	rec := do(router, http.MethodGet, "/status/get/nas")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Server{ID: "nas", MAC: "00:11:22:33:44:55", Status: StatusSleep}, decode(t, rec))

	rec = do(router, http.MethodPost, "/status/wake/nas")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusWake, decode(t, rec).Status)

	rec = do(router, http.MethodPost, "/status/sleep/nas")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusSleep, decode(t, rec).Status)

	rec = do(router, http.MethodGet, "/status/get/nas")
	assert.Equal(t, StatusSleep, decode(t, rec).Status)
}

func TestStatusErrors(t *testing.T) {
	router := newTestRouter(t, &fakeWaker{})

	rec := do(router, http.MethodPost, "/status/wake/other")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "server not found", rec.Body.String())

	rec = do(router, http.MethodGet, "/status/get/other")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "server not found", rec.Body.String())

	rec = do(router, http.MethodPost, "/status/hibernate/nas")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoWakesServer(t *testing.T) {
	w := &fakeWaker{}
	router := newTestRouter(t, w)

	rec := do(router, http.MethodGet, "/go/nas")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusWake, decode(t, rec).Status)
	assert.EqualValues(t, 1, w.calls.Load())

	rec = do(router, http.MethodGet, "/go/other")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoWakeFailure(t *testing.T) {
	router := newTestRouter(t, &fakeWaker{err: stderrors.New("boom")})

	rec := do(router, http.MethodGet, "/go/nas")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to wake up", rec.Body.String())

	rec = do(router, http.MethodGet, "/status/get/nas")
	assert.Equal(t, StatusError, decode(t, rec).Status)
}
