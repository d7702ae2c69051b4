// Package fiberadapter translates API Gateway events into requests served by
// a fiber v3 application and turns the application's answers back into
// gateway responses.
package fiberadapter

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/utils/v2"
	"github.com/valyala/fasthttp"
)

type Config struct {
	// DecorateRequest attaches the gateway event, the invocation context and
	// the Lambda context to every request before it reaches the application.
	DecorateRequest bool

	// StripBasePath removes a custom-domain base path mapping from incoming
	// paths. Optional.
	StripBasePath string
}

// FiberLambda proxies API Gateway REST (v1) and HTTP API (v2) events into a
// fasthttp request handler, usually the one returned by (*fiber.App).Handler.
type FiberLambda struct {
	v1      core.RequestAccessor
	v2      core.RequestAccessorV2
	cfg     Config
	handler fasthttp.RequestHandler
}

func New(handler fasthttp.RequestHandler, cfg Config) *FiberLambda {
	f := &FiberLambda{
		cfg:     cfg,
		handler: handler,
	}
	if cfg.StripBasePath != "" {
		f.v1.StripBasePath(cfg.StripBasePath)
		f.v2.StripBasePath(cfg.StripBasePath)
	}
	return f
}

// NewApp is a shorthand for New(app.Handler(), cfg).
func NewApp(app *fiber.App, cfg Config) *FiberLambda {
	return New(app.Handler(), cfg)
}

// ProxyWithContext serves a REST API (payload 1.0) event.
func (f *FiberLambda) ProxyWithContext(
	ctx context.Context,
	req events.APIGatewayProxyRequest,
) (events.APIGatewayProxyResponse, error) {
	httpReq, err := f.v1.EventToRequestWithContext(ctx, req)
	if err != nil {
		return core.GatewayTimeout(),
			core.NewLoggedError("Could not convert proxy event to request: %v", err)
	}

	var deco *decoration
	if f.cfg.DecorateRequest {
		deco = newDecoration(ctx, req, req.RequestContext.RequestID)
	}

	resp := core.NewProxyResponseWriter()
	f.serve(resp, httpReq, req.RequestContext.Identity.SourceIP, deco)

	proxyResponse, err := resp.GetProxyResponse()
	if err != nil {
		return core.GatewayTimeout(),
			core.NewLoggedError("Error while generating proxy response: %v", err)
	}
	return proxyResponse, nil
}

// ProxyWithContextV2 serves an HTTP API or function URL (payload 2.0) event.
func (f *FiberLambda) ProxyWithContextV2(
	ctx context.Context,
	req events.APIGatewayV2HTTPRequest,
) (events.APIGatewayV2HTTPResponse, error) {
	httpReq, err := f.v2.EventToRequestWithContext(ctx, req)
	if err != nil {
		return core.GatewayTimeoutV2(),
			core.NewLoggedError("Could not convert proxy event to request: %v", err)
	}

	var deco *decoration
	if f.cfg.DecorateRequest {
		deco = newDecoration(ctx, req, req.RequestContext.RequestID)
	}

	resp := core.NewProxyResponseWriterV2()
	f.serve(resp, httpReq, req.RequestContext.HTTP.SourceIP, deco)

	proxyResponse, err := resp.GetProxyResponse()
	if err != nil {
		return core.GatewayTimeoutV2(),
			core.NewLoggedError("Error while generating proxy response: %v", err)
	}
	return proxyResponse, nil
}

func (f *FiberLambda) serve(
	w http.ResponseWriter,
	r *http.Request,
	sourceIP string,
	deco *decoration,
) {
	defer func() { _ = r.Body.Close() }()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, utils.StatusMessage(fiber.StatusInternalServerError),
			fiber.StatusInternalServerError)
		return
	}
	req.Header.SetContentLength(len(body))
	_, _ = req.BodyWriter().Write(body)

	req.Header.SetMethod(r.Method)
	req.SetRequestURI(r.URL.RequestURI())
	req.SetHost(r.Host)
	for key, val := range r.Header {
		for _, v := range val {
			switch key {
			case fiber.HeaderHost,
				fiber.HeaderContentType,
				fiber.HeaderUserAgent,
				fiber.HeaderContentLength,
				fiber.HeaderConnection:
				req.Header.Set(key, v)
			default:
				req.Header.Add(key, v)
			}
		}
	}

	if deco != nil && deco.requestID != "" &&
		len(req.Header.Peek(fiber.HeaderXRequestID)) == 0 {
		req.Header.Set(fiber.HeaderXRequestID, deco.requestID)
	}

	if sourceIP == "" {
		sourceIP = r.RemoteAddr
	}

	var fctx fasthttp.RequestCtx
	fctx.Init(req, remoteAddr(sourceIP), nil)
	if deco != nil {
		deco.apply(&fctx)
	}

	f.handler(&fctx)

	fctx.Response.Header.VisitAll(func(k, v []byte) {
		w.Header().Add(utils.UnsafeString(k), utils.UnsafeString(v))
	})
	w.WriteHeader(fctx.Response.StatusCode())
	_, _ = w.Write(fctx.Response.Body())
}

// remoteAddr accepts both "ip:port" and the bare source IP API Gateway
// reports.
func remoteAddr(addr string) net.Addr {
	if host, port, err := net.SplitHostPort(addr); err == nil {
		if tcp, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, port)); err == nil {
			return tcp
		}
	}
	if ip := net.ParseIP(addr); ip != nil {
		return &net.TCPAddr{IP: ip}
	}
	return &net.TCPAddr{IP: net.IPv4zero}
}
