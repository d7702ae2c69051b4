// Originally from https://gl.oddhunters.com/pub/fiberzap
// Copyright (apparently) by Ozgur Boru <boruozgur@yandex.com.tr>
// and "mert" (https://gl.oddhunters.com/mert)
// Updated for Fiber v3 by github.com/mrusme
package fiberzap

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/utils/v2"
	"go.uber.org/zap"
)

// Config defines the config for middleware
type Config struct {
	// Next defines a function to skip this middleware when returned true.
	//
	// Optional. Default: nil
	Next func(c fiber.Ctx) bool

	// Logger defines zap logger instance
	//
	// Optional. Default: zap.NewNop()
	Logger *zap.Logger

	// Message is the log message used for successful requests.
	//
	// Optional. Default: "api.request"
	Message string
}

var ConfigDefault = Config{
	Next:    nil,
	Logger:  zap.NewNop(),
	Message: "api.request",
}

func configDefault(config ...Config) Config {
	if len(config) < 1 {
		return ConfigDefault
	}

	cfg := config[0]
	if cfg.Logger == nil {
		cfg.Logger = ConfigDefault.Logger
	}
	if cfg.Message == "" {
		cfg.Message = ConfigDefault.Message
	}
	return cfg
}

// New creates a new middleware handler
func New(config ...Config) fiber.Handler {
	var (
		once       sync.Once
		errHandler fiber.ErrorHandler
		pid        = strconv.Itoa(os.Getpid())
	)

	cfg := configDefault(config...)

	return func(c fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		once.Do(func() {
			errHandler = c.App().Config().ErrorHandler
		})

		start := time.Now()

		chainErr := c.Next()

		if chainErr != nil {
			if err := errHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		stop := time.Now()

		fields := []zap.Field{
			zap.Namespace("context"),
			zap.String("pid", pid),
			zap.String("time", stop.Sub(start).String()),
			zap.Object("response", Resp(c.Response())),
			zap.Object("request", Req(c)),
		}

		if id := requestid.FromContext(c); id != "" {
			fields = append(fields, zap.String("requestId", utils.CopyString(id)))
		}

		if chainErr != nil {
			formatErr := chainErr.Error()
			fields = append(fields, zap.String("error", formatErr))
			cfg.Logger.With(fields...).Error(formatErr)

			return nil
		}

		cfg.Logger.With(fields...).Info(cfg.Message)

		return nil
	}
}
