package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedEngine(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	engine := gin.New()
	engine.Use(Recovery(zap.New(core)))
	engine.Use(GinMiddleware(zap.New(core)))
	return engine, logs
}

func perform(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestGinMiddleware_LevelTracksStatus(t *testing.T) {
	engine, logs := newObservedEngine(t)
	engine.GET("/tenants", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/tenants/unknown", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	engine.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	perform(engine, http.MethodGet, "/tenants")
	perform(engine, http.MethodGet, "/tenants/unknown")
	perform(engine, http.MethodGet, "/boom")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "/tenants", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Contains(t, fields, "latency")
}

func TestGinMiddleware_InstallsRequestLogger(t *testing.T) {
	engine, _ := newObservedEngine(t)

	var seen *zap.Logger
	engine.GET("/tickets", func(c *gin.Context) {
		seen = RequestLogger(c)
		c.Status(http.StatusOK)
	})
	perform(engine, http.MethodGet, "/tickets")

	require.NotNil(t, seen)
	assert.NotEqual(t, zap.NewNop(), seen)
}

func TestRequestLogger_OutsideMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, RequestLogger(c))
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	engine, logs := newObservedEngine(t)
	engine.GET("/panic", func(c *gin.Context) { panic("ledger unavailable") })

	w := perform(engine, http.MethodGet, "/panic")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	recovered := logs.FilterMessage("Panic recovered").All()
	require.Len(t, recovered, 1)
	assert.Equal(t, "/panic", recovered[0].ContextMap()["path"])
}
