package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/mrusme/faasboot/api"
	"github.com/mrusme/faasboot/bootstrap"
	"github.com/mrusme/faasboot/config"
	"github.com/mrusme/faasboot/modules/function"
	"github.com/mrusme/faasboot/modules/health"

	"go.uber.org/zap"
)

func modules() []api.Module {
	return []api.Module{
		health.New(),
		function.New(),
	}
}

func main() {
	cfg, err := config.Cfg()
	if err != nil {
		panic(err)
	}

	logger, err := config.NewLogger(&cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.InLambda() {
		serveLambda(&cfg, logger)
		return
	}

	serveLocal(&cfg, logger)
}

func serveLambda(cfg *config.Config, logger *zap.Logger) {
	handler := bootstrap.NewFromConfig(cfg, logger, modules()...)

	logger.Debug("Starting Lambda handler",
		zap.String("function", cfg.Lambda.FunctionName),
		zap.String("event", cfg.Lambda.Event),
	)

	switch cfg.Lambda.Event {
	case config.EventAPIGateway:
		lambda.Start(handler.Handle)
	case config.EventAPIGatewayV2:
		lambda.Start(handler.HandleV2)
	default:
		lambda.Start(handler.Invoke)
	}
}

func serveLocal(cfg *config.Config, logger *zap.Logger) {
	apiServer, err := api.New(cfg, logger, modules()...)
	if err != nil {
		panic(err)
	}
	if err := apiServer.Init(context.Background()); err != nil {
		logger.Fatal("Initialization failed", zap.Error(err))
	}
	go apiServer.Run()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	if err := apiServer.Shutdown(); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
}
