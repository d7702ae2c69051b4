package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/storage/redis/v3"
	"github.com/mrusme/faasboot/config"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type routeModule struct {
	name string
	err  error
}

func (m routeModule) Name() string {
	return m.name
}

func (m routeModule) Register(router fiber.Router, deps Deps) error {
	if m.err != nil {
		return m.err
	}
	router.Get("/"+m.name, func(c fiber.Ctx) error {
		return c.SendString(m.name)
	})
	router.Get("/"+m.name+"/fail", func(c fiber.Ctx) error {
		return fiber.NewError(fiber.StatusConflict, "already there")
	})
	router.Get("/"+m.name+"/error", func(c fiber.Ctx) error {
		return errors.New("plain error")
	})
	return nil
}

func newConfig(prefix string) *config.Config {
	cfg := &config.Config{APIPrefix: prefix}
	cfg.Server.BodyLimit = 1024
	return cfg
}

func initAPI(t *testing.T, cfg *config.Config, modules ...Module) *API {
	t.Helper()

	a, err := New(cfg, zap.NewNop(), modules...)
	require.NoError(t, err)
	assert.Nil(t, a.Handler())
	require.NoError(t, a.Init(context.Background()))
	assert.NotNil(t, a.Handler())
	return a
}

func do(t *testing.T, a *API, method, path string) (int, string) {
	t.Helper()

	resp, err := a.App().Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestModulesBelowPrefix(t *testing.T) {
	a := initAPI(t, newConfig("/api"), routeModule{name: "orders"})

	status, body := do(t, a, http.MethodGet, "/api/orders")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "orders", body)

	status, _ = do(t, a, http.MethodGet, "/orders")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHealthChecks(t *testing.T) {
	a := initAPI(t, newConfig("/api"))

	status, _ := do(t, a, http.MethodGet, "/api/_internal/livez")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = do(t, a, http.MethodGet, "/api/_internal/readyz")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestModuleRegistrationError(t *testing.T) {
	a, err := New(newConfig(""), zap.NewNop(), routeModule{
		name: "broken",
		err:  errors.New("missing table"),
	})
	require.NoError(t, err)

	err = a.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module broken: missing table")
}

func TestErrorHandler(t *testing.T) {
	a := initAPI(t, newConfig(""), routeModule{name: "orders"})

	status, body := do(t, a, http.MethodGet, "/orders/fail")
	assert.Equal(t, fiber.StatusConflict, status)

	var out struct {
		Errors  []string `json:"errors"`
		Status  int      `json:"status"`
		Request string   `json:"request"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, []string{"already there"}, out.Errors)
	assert.Zero(t, out.Status)
	assert.NotEmpty(t, out.Request)

	status, _ = do(t, a, http.MethodGet, "/orders/error")
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestMemoryLimiter(t *testing.T) {
	cfg := newConfig("")
	cfg.Server.Limiter.Enable = true
	cfg.Server.Limiter.MaxReqests = 2
	cfg.Server.Limiter.PerDurationInSeconds = 60

	a := initAPI(t, cfg, routeModule{name: "orders"})

	for i := 0; i < 2; i++ {
		status, _ := do(t, a, http.MethodGet, "/orders")
		assert.Equal(t, fiber.StatusOK, status)
	}
	status, body := do(t, a, http.MethodGet, "/orders")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Contains(t, body, "Slow down")
}

func TestLimiterStorageRejectsBadConnection(t *testing.T) {
	cfg := newConfig("")
	cfg.Server.Limiter.Enable = true
	cfg.Server.Limiter.UseRedis = true
	cfg.Redis.Connection = "localhost"

	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, a.Init(context.Background()))
}

func TestInitFailureLogsShutdownError(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a, err := New(newConfig(""), zap.New(core), routeModule{
		name: "broken",
		err:  errors.New("missing table"),
	})
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	require.NoError(t, client.Close())
	a.storage = redis.NewFromConnection(client)

	err = a.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module broken: missing table")

	entries := logs.FilterMessage("Releasing resources after failed init").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "limiter")
}
