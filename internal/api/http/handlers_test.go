package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/cache"
	"github.com/GriffinCanCode/cronograma/backend/internal/providers/cronograma"
)

var testDefaults = cronograma.Query{Programa: "1", Sede: "2", Recurso: "3"}

type fakeSource struct {
	mu      sync.Mutex
	queries []cronograma.Query
	data    any
	err     error
}

func (f *fakeSource) Fetch(_ context.Context, q cronograma.Query) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeSource) calls() []cronograma.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cronograma.Query(nil), f.queries...)
}

func setupRouter(source cronograma.Source) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := cronograma.NewService(source, cache.NewTTL[any](5*time.Minute), zap.NewNop())
	h := NewHandlers(svc, testDefaults, "other", zap.NewNop())

	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.POST("/cronograma", h.GetCronograma)
	return router
}

func postJSON(router http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cronograma", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	source := &fakeSource{}
	router := setupRouter(source)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Empty(t, source.calls())
}

func TestRoot(t *testing.T) {
	router := setupRouter(&fakeSource{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "cronograma", body["service"])
	assert.Equal(t, Version, body["version"])
}

func TestCronogramaMissThenHit(t *testing.T) {
	source := &fakeSource{data: []any{map[string]any{"dia": "lunes"}}}
	router := setupRouter(source)

	first := postJSON(router, `{"programa":"10","sede":"20","recurso":"30"}`)
	require.Equal(t, http.StatusOK, first.Code)
	body := decode(t, first)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, map[string]any{"programa": "10", "sede": "20", "recurso": "30"}, body["params"])
	assert.Equal(t, []any{map[string]any{"dia": "lunes"}}, body["data"])

	second := postJSON(router, `{"programa":"10","sede":"20","recurso":"30"}`)
	require.Equal(t, http.StatusOK, second.Code)
	body = decode(t, second)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, []any{map[string]any{"dia": "lunes"}}, body["data"])

	assert.Len(t, source.calls(), 1)
}

func TestCronogramaFailure(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("attempt 2: %w", cronograma.ErrMissingControl)}
	router := setupRouter(source)

	w := postJSON(router, `{}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "attempt 2: search trigger not found", body["message"])
	assert.Equal(t, "other", body["platform"])
	assert.NotContains(t, body, "data")
}

func TestCronogramaFailureNotCached(t *testing.T) {
	source := &fakeSource{err: cronograma.ErrResponseTimeout}
	router := setupRouter(source)

	postJSON(router, `{}`)
	postJSON(router, `{}`)

	assert.Len(t, source.calls(), 2)
}

func TestCronogramaQueryResolution(t *testing.T) {
	tests := []struct {
		name string
		body string
		want cronograma.Query
	}{
		{"empty object", `{}`, testDefaults},
		{"empty body", ``, testDefaults},
		{"array body", `[1,2,3]`, testDefaults},
		{"numbers are not digit strings", `{"programa":10,"sede":"x","recurso":"7"}`, cronograma.Query{Programa: "1", Sede: "2", Recurso: "7"}},
		{"jornada wins over recurso", `{"jornada":"5","recurso":"6"}`, cronograma.Query{Programa: "1", Sede: "2", Recurso: "5"}},
		{"invalid jornada falls back to recurso", `{"jornada":"a5","recurso":"6"}`, cronograma.Query{Programa: "1", Sede: "2", Recurso: "6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{data: "ok"}
			router := setupRouter(source)

			w := postJSON(router, tt.body)

			require.Equal(t, http.StatusOK, w.Code)
			calls := source.calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, calls[0])
		})
	}
}

func TestCronogramaFormBody(t *testing.T) {
	source := &fakeSource{data: "ok"}
	router := setupRouter(source)

	form := url.Values{"programa": {"44"}, "sede": {"55"}, "jornada": {"66"}}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cronograma", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []cronograma.Query{{Programa: "44", Sede: "55", Recurso: "66"}}, source.calls())
}

func TestCronogramaUnknownContentTypeUsesDefaults(t *testing.T) {
	source := &fakeSource{data: "ok"}
	router := setupRouter(source)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cronograma", strings.NewReader(`programa=9`))
	req.Header.Set("Content-Type", "text/plain")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []cronograma.Query{testDefaults}, source.calls())
}

func TestCronogramaInvalidJSON(t *testing.T) {
	source := &fakeSource{data: "ok"}
	router := setupRouter(source)

	bad := postJSON(router, `{"programa":`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, false, decode(t, bad)["success"])
	assert.Empty(t, source.calls())

	good := postJSON(router, `{"programa":"8"}`)
	assert.Equal(t, http.StatusOK, good.Code)
	assert.Len(t, source.calls(), 1)
}

func TestCronogramaBodyTooLarge(t *testing.T) {
	source := &fakeSource{data: "ok"}
	router := setupRouter(source)

	big := `{"programa":"` + strings.Repeat("1", MaxBodyBytes) + `"}`
	w := postJSON(router, big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, source.calls())
}
