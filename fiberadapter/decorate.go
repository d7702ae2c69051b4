package fiberadapter

import (
	"context"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"
)

type localsKey int

const (
	eventKey localsKey = iota
	contextKey
	lambdaContextKey
)

type decoration struct {
	ctx       context.Context
	event     any
	lc        *lambdacontext.LambdaContext
	requestID string
}

func newDecoration(ctx context.Context, event any, gatewayRequestID string) *decoration {
	d := &decoration{
		ctx:       ctx,
		event:     event,
		requestID: gatewayRequestID,
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		d.lc = lc
		if lc.AwsRequestID != "" {
			d.requestID = lc.AwsRequestID
		}
	}
	return d
}

func (d *decoration) apply(fctx *fasthttp.RequestCtx) {
	fctx.SetUserValue(eventKey, d.event)
	fctx.SetUserValue(contextKey, d.ctx)
	if d.lc != nil {
		fctx.SetUserValue(lambdaContextKey, d.lc)
	}
}

// EventFromCtx returns the gateway event the request was built from. The
// value is either an events.APIGatewayProxyRequest or an
// events.APIGatewayV2HTTPRequest. ok is false when the adapter was not
// configured to decorate requests.
func EventFromCtx(c fiber.Ctx) (event any, ok bool) {
	event = c.Locals(eventKey)
	return event, event != nil
}

// ContextFromCtx returns the invocation context, carrying the host's
// deadline, or context.Background when the request is not decorated.
func ContextFromCtx(c fiber.Ctx) context.Context {
	if ctx, ok := c.Locals(contextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}

// LambdaContextFromCtx returns the Lambda runtime metadata of the invocation.
func LambdaContextFromCtx(c fiber.Ctx) (*lambdacontext.LambdaContext, bool) {
	lc, ok := c.Locals(lambdaContextKey).(*lambdacontext.LambdaContext)
	return lc, ok && lc != nil
}
