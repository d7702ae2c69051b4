package health

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/mrusme/faasboot/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	app := fiber.New()
	m := New()
	require.NoError(t, m.Register(app.Group("/v1"), api.Deps{}))
	assert.Equal(t, "health", m.Name())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/v1/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}
