package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/mrusme/faasboot/fiberadapter"
	"github.com/mrusme/faasboot/fiberzap"
	"go.uber.org/zap"
)

// CORS is the fixed cross-origin policy of the application.
var CORS = cors.Config{
	AllowOrigins:     []string{"*"},
	AllowHeaders:     []string{"*"},
	ExposeHeaders:    []string{"*"},
	AllowCredentials: false,
	AllowMethods: []string{
		fiber.MethodGet,
		fiber.MethodPut,
		fiber.MethodOptions,
		fiber.MethodPost,
		fiber.MethodDelete,
	},
}

// corsHeaders are set on every response that does not carry them already.
var corsHeaders = [][2]string{
	{fiber.HeaderAccessControlAllowOrigin, strings.Join(CORS.AllowOrigins, ", ")},
	{fiber.HeaderAccessControlAllowMethods, strings.Join(CORS.AllowMethods, ", ")},
	{fiber.HeaderAccessControlAllowHeaders, strings.Join(CORS.AllowHeaders, ", ")},
	{fiber.HeaderAccessControlExposeHeaders, strings.Join(CORS.ExposeHeaders, ", ")},
}

func anyOrigin(c fiber.Ctx) error {
	err := c.Next()
	for _, h := range corsHeaders {
		if len(c.Response().Header.Peek(h[0])) == 0 {
			c.Set(h[0], h[1])
		}
	}
	return err
}

func (api *API) LoadMiddlewares() error {
	api.app.Use(anyOrigin)

	if api.cfg.AccessLog() {
		api.app.Use(fiberzap.New(fiberzap.Config{
			Logger: api.log,
		}))
	}

	api.app.Use(requestid.New())
	api.app.Use(cors.New(CORS))

	if api.cfg.Server.Limiter.Enable {
		handler, err := api.limiter()
		if err != nil {
			return err
		}
		api.app.Use(handler)
	}

	return nil
}

func (api *API) attachRoutes() error {
	router := api.app.Group(api.cfg.APIPrefix)

	router.Get("/_internal"+healthcheck.LivenessEndpoint, healthcheck.New())
	router.Get("/_internal"+healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: api.ready,
	}))

	for _, m := range api.modules {
		api.log.Debug("Registering module", zap.String("module", m.Name()))
		if err := m.Register(router, Deps{
			Cfg: api.cfg,
			Log: api.log,
			DB:  api.db,
		}); err != nil {
			return fmt.Errorf("module %s: %w", m.Name(), err)
		}
	}

	return nil
}

func (api *API) ready(c fiber.Ctx) bool {
	if !api.db.Enabled() {
		return true
	}
	if err := api.db.Ping(fiberadapter.ContextFromCtx(c)); err != nil {
		api.log.Warn("Readiness check failed", zap.Error(err))
		return false
	}
	return true
}
