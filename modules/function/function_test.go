package function

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/mrusme/faasboot/api"
	"github.com/mrusme/faasboot/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoOutsideHost(t *testing.T) {
	app := fiber.New()
	m := New()
	require.NoError(t, m.Register(app, api.Deps{Cfg: &config.Config{}}))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/_function", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var info Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.False(t, info.InsideHost)
	assert.False(t, info.Decorated)
	assert.Empty(t, info.AwsRequestID)
	assert.Zero(t, info.RemainingMs)
}
