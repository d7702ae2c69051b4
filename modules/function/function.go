// Package function exposes what the function host told the application
// about the current invocation.
package function

import (
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/mrusme/faasboot/api"
	"github.com/mrusme/faasboot/fiberadapter"
)

type Info struct {
	FunctionName string `json:"functionName,omitempty"`
	RequestID    string `json:"requestId"`
	AwsRequestID string `json:"awsRequestId,omitempty"`
	RemainingMs  int64  `json:"remainingMs,omitempty"`
	EventVersion string `json:"eventVersion,omitempty"`
	Stage        string `json:"stage,omitempty"`
	SourceIP     string `json:"sourceIp,omitempty"`
	InsideHost   bool   `json:"insideHost"`
	Decorated    bool   `json:"decorated"`
}

type Module struct {
	functionName string
}

func New() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "function"
}

func (m *Module) Register(router fiber.Router, deps api.Deps) error {
	m.functionName = deps.Cfg.Lambda.FunctionName
	router.Get("/_function", m.info)
	return nil
}

func (m *Module) info(c fiber.Ctx) error {
	info := Info{
		FunctionName: m.functionName,
		RequestID:    requestid.FromContext(c),
		InsideHost:   m.functionName != "",
	}

	if lc, ok := fiberadapter.LambdaContextFromCtx(c); ok {
		info.AwsRequestID = lc.AwsRequestID
	}
	if deadline, ok := fiberadapter.ContextFromCtx(c).Deadline(); ok {
		info.RemainingMs = time.Until(deadline).Milliseconds()
	}

	if event, ok := fiberadapter.EventFromCtx(c); ok {
		info.Decorated = true
		switch e := event.(type) {
		case events.APIGatewayProxyRequest:
			info.EventVersion = "1.0"
			info.Stage = e.RequestContext.Stage
			info.SourceIP = e.RequestContext.Identity.SourceIP
		case events.APIGatewayV2HTTPRequest:
			info.EventVersion = e.Version
			info.Stage = e.RequestContext.Stage
			info.SourceIP = e.RequestContext.HTTP.SourceIP
		}
	}

	return c.JSON(info)
}
