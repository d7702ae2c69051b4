// Package bootstrap serves function invocations with a lazily built fiber
// application. The application and its event translator are built on the
// first invocation of an execution environment and reused by every following
// invocation of that environment.
package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/mrusme/faasboot/api"
	"github.com/mrusme/faasboot/config"
	"github.com/mrusme/faasboot/fiberadapter"
	"github.com/mrusme/faasboot/warmup"
	"go.uber.org/zap"
)

// Translator turns gateway events into application responses.
type Translator interface {
	ProxyWithContext(
		ctx context.Context,
		req events.APIGatewayProxyRequest,
	) (events.APIGatewayProxyResponse, error)
	ProxyWithContextV2(
		ctx context.Context,
		req events.APIGatewayV2HTTPRequest,
	) (events.APIGatewayV2HTTPResponse, error)
}

// Instance is what a cold start produces: the initialized application and the
// translator bound to it.
type Instance struct {
	API        *api.API
	Translator Translator
}

// Builder constructs a fully initialized Instance.
type Builder func(ctx context.Context) (*Instance, error)

// NewBuilder returns the Builder for the fiber application described by cfg
// and modules.
func NewBuilder(cfg *config.Config, log *zap.Logger, modules ...api.Module) Builder {
	return func(ctx context.Context) (*Instance, error) {
		app, err := api.New(cfg, log, modules...)
		if err != nil {
			return nil, err
		}
		if err := app.Init(ctx); err != nil {
			return nil, err
		}

		return &Instance{
			API: app,
			Translator: fiberadapter.New(app.Handler(), fiberadapter.Config{
				DecorateRequest: cfg.Lambda.DecorateRequest,
			}),
		}, nil
	}
}

var errNoInstance = errors.New("builder returned no instance")

type Handler struct {
	log    *zap.Logger
	build  Builder
	warmer *warmup.Warmer
	cache  slot[Instance]
}

type Option func(*Handler)

// WithWarmer makes Invoke answer warmup events through w.
func WithWarmer(w *warmup.Warmer) Option {
	return func(h *Handler) {
		h.warmer = w
	}
}

func New(build Builder, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		log:   log,
		build: build,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.warmer == nil {
		h.warmer = warmup.New(warmup.Config{}, log)
	}
	return h
}

// NewFromConfig wires the default builder and a warmer configured from cfg.
func NewFromConfig(cfg *config.Config, log *zap.Logger, modules ...api.Module) *Handler {
	wcfg := warmup.Config{
		MaxConcurrency: cfg.Warmup.MaxConcurrency,
		Delay:          time.Duration(cfg.Warmup.DelayMilliseconds) * time.Millisecond,
	}
	if cfg.Warmup.Enable {
		wcfg.FunctionName = cfg.Lambda.FunctionName
	}

	return New(
		NewBuilder(cfg, log, modules...),
		log,
		WithWarmer(warmup.New(wcfg, log)),
	)
}

// Instance returns the cached instance, building it first if this is the
// first invocation of the execution environment.
func (h *Handler) Instance(ctx context.Context) (*Instance, error) {
	return h.cache.get(ctx, func(ctx context.Context) (*Instance, error) {
		start := time.Now()
		h.log.Debug("Cold start, building application")

		inst, err := h.build(ctx)
		if err == nil && inst == nil {
			err = errNoInstance
		}
		if err != nil {
			h.log.Error("Building application failed", zap.Error(err))
			return nil, fmt.Errorf("bootstrap: %w", err)
		}

		h.log.Info("Application ready",
			zap.Duration("took", time.Since(start)))
		return inst, nil
	})
}

// Warm reports whether the execution environment already holds an instance.
func (h *Handler) Warm() bool {
	return h.cache.peek() != nil
}

// Handle serves an API Gateway REST (payload 1.0) event.
func (h *Handler) Handle(
	ctx context.Context,
	req events.APIGatewayProxyRequest,
) (events.APIGatewayProxyResponse, error) {
	inst, err := h.Instance(ctx)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return inst.Translator.ProxyWithContext(ctx, req)
}

// HandleV2 serves an HTTP API or function URL (payload 2.0) event.
func (h *Handler) HandleV2(
	ctx context.Context,
	req events.APIGatewayV2HTTPRequest,
) (events.APIGatewayV2HTTPResponse, error) {
	inst, err := h.Instance(ctx)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}
	return inst.Translator.ProxyWithContextV2(ctx, req)
}

// Invoke accepts any supported payload: warmup events, payload 2.0 and
// payload 1.0 gateway events, in that order of detection.
func (h *Handler) Invoke(ctx context.Context, payload json.RawMessage) (any, error) {
	if ev, ok := warmup.Parse(payload); ok {
		if _, err := h.Instance(ctx); err != nil {
			return nil, err
		}
		return h.warmer.Handle(ctx, ev)
	}

	var envelope struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("bootstrap: decoding event: %w", err)
	}

	if envelope.Version == "2.0" {
		var req events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("bootstrap: decoding event: %w", err)
		}
		return h.HandleV2(ctx, req)
	}

	var req events.APIGatewayProxyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("bootstrap: decoding event: %w", err)
	}
	return h.Handle(ctx, req)
}

// Shutdown releases the cached application, if any.
func (h *Handler) Shutdown() error {
	inst := h.cache.peek()
	if inst == nil || inst.API == nil {
		return nil
	}
	return inst.API.Shutdown()
}
