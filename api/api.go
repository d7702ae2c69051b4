package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/storage/redis/v3"
	"github.com/mrusme/faasboot/config"
	"github.com/mrusme/faasboot/database"
	"github.com/mrusme/faasboot/helpers"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Module contributes routes to the application. Every module is mounted
// below the global prefix.
type Module interface {
	Name() string
	Register(router fiber.Router, deps Deps) error
}

// Deps are the shared resources a module may use.
type Deps struct {
	Cfg *config.Config
	Log *zap.Logger
	DB  *database.Database
}

type API struct {
	cfg     *config.Config
	log     *zap.Logger
	app     *fiber.App
	db      *database.Database
	storage *redis.Storage
	modules []Module

	handler fasthttp.RequestHandler
}

func New(cfg *config.Config, log *zap.Logger, modules ...Module) (*API, error) {
	api := new(API)

	api.cfg = cfg
	api.log = log
	api.modules = modules

	api.app = fiber.New(fiber.Config{
		StrictRouting: false,
		CaseSensitive: false,
		BodyLimit:     api.cfg.Server.BodyLimit,
		ServerHeader:  api.cfg.Server.ServerHeader,
		AppName:       "faasboot",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var ferr *fiber.Error
			if errors.As(err, &ferr) {
				code = ferr.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"errors":  []string{err.Error()},
				"status":  0,
				"request": requestid.FromContext(c),
			})
		},
	})

	return api, nil
}

// Init opens the cold-start resources, registers middlewares and routes and
// builds the route tree. The application must not serve requests before Init
// returned without error.
func (api *API) Init(ctx context.Context) error {
	var err error

	if api.db, err = database.New(ctx, api.cfg, api.log); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err = api.LoadMiddlewares(); err != nil {
		api.abort()
		return fmt.Errorf("middlewares: %w", err)
	}

	if err = api.attachRoutes(); err != nil {
		api.abort()
		return fmt.Errorf("routes: %w", err)
	}

	api.handler = api.app.Handler()
	api.log.Debug("Application initialized",
		zap.String("prefix", api.cfg.APIPrefix),
		zap.Bool("accessLog", api.cfg.AccessLog()),
		zap.Int("modules", len(api.modules)),
	)
	return nil
}

// abort releases what a failed Init already opened.
func (api *API) abort() {
	if err := api.Shutdown(); err != nil {
		api.log.Warn("Releasing resources after failed init", zap.Error(err))
	}
}

func (api *API) App() *fiber.App {
	return api.app
}

// Handler returns the request handler resolved by Init, or nil before that.
func (api *API) Handler() fasthttp.RequestHandler {
	return api.handler
}

func (api *API) limiterStorage() (*redis.Storage, error) {
	conn := strings.SplitN(api.cfg.Redis.Connection, ":", 2)
	if len(conn) != 2 {
		return nil, errors.New("Could not parse Redis.Connection into HOST:PORT for Limiter")
	}
	host := conn[0]
	port, err := strconv.Atoi(conn[1])
	if err != nil {
		return nil, err
	}

	if api.cfg.Redis.Cluster {
		return redis.New(redis.Config{
			Addrs:    api.cfg.Redis.Connections,
			Username: api.cfg.Redis.Username,
			Password: api.cfg.Redis.Password,
		}), nil
	}
	if api.cfg.Redis.Failover {
		return redis.New(redis.Config{
			MasterName: api.cfg.Redis.MasterName,
			Addrs:      api.cfg.Redis.Connections,
			Username:   api.cfg.Redis.Username,
			Password:   api.cfg.Redis.Password,
		}), nil
	}
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Username: api.cfg.Redis.Username,
		Password: api.cfg.Redis.Password,
	}), nil
}

func (api *API) limiter() (fiber.Handler, error) {
	limiterCfg := limiter.Config{
		Max: api.cfg.Server.Limiter.MaxReqests,
		Expiration: time.Second *
			time.Duration(api.cfg.Server.Limiter.PerDurationInSeconds),
		SkipFailedRequests:     api.cfg.Server.Limiter.IgnoreFailedRequests,
		SkipSuccessfulRequests: false,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"errors":  []string{"Slow down, cowboy!"},
				"status":  0,
				"request": requestid.FromContext(c),
			})
		},
	}

	// Memory storage only sees one execution environment; Redis is shared
	// by all of them.
	if api.cfg.Server.Limiter.UseRedis {
		storage, err := api.limiterStorage()
		if err != nil {
			return nil, err
		}
		api.storage = storage
		limiterCfg.Storage = storage
	}

	return limiter.New(limiterCfg), nil
}

// Run serves the application on Server.BindIP:Server.Port. It is used when
// the process is not running inside the function host.
func (api *API) Run() error {
	listenAddr := fmt.Sprintf(
		"%s:%s",
		api.cfg.Server.BindIP,
		api.cfg.Server.Port,
	)
	if err := api.app.Listen(listenAddr); err != nil && err != http.ErrServerClosed {
		api.log.Error("Server failed", zap.Error(err))
		return err
	}
	return nil
}

func (api *API) Shutdown() error {
	errs := helpers.Errors{}

	errs.Add("server", api.app.ShutdownWithTimeout(time.Second*5))
	if api.storage != nil {
		errs.Add("limiter", api.storage.Close())
	}
	if api.db != nil {
		errs.Add("database", api.db.Shutdown())
	}

	return helpers.ErrorsToError(errs)
}
