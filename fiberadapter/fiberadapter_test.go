package fiberadapter

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp() *fiber.App {
	app := fiber.New()
	app.Get("/hello", func(c fiber.Ctx) error {
		c.Set("X-Greeting", "hi")
		return c.SendString("hello " + c.Query("name"))
	})
	app.Post("/echo", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, c.Get(fiber.HeaderContentType))
		return c.Status(fiber.StatusCreated).Send(c.Body())
	})
	app.Get("/meta", func(c fiber.Ctx) error {
		_, decorated := EventFromCtx(c)
		lc, hasLC := LambdaContextFromCtx(c)
		id := ""
		if hasLC {
			id = lc.AwsRequestID
		}
		return c.JSON(fiber.Map{
			"decorated": decorated,
			"lambda":    id,
			"requestId": c.Get(fiber.HeaderXRequestID),
			"ip":        c.IP(),
		})
	})
	return app
}

func lambdaCtx(id string) context.Context {
	return lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{
		AwsRequestID: id,
	})
}

func TestProxyV1(t *testing.T) {
	f := NewApp(testApp(), Config{})

	resp, err := f.ProxyWithContext(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            "GET",
		Path:                  "/hello",
		QueryStringParameters: map[string]string{"name": "gopher"},
	})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello gopher", resp.Body)
	assert.Equal(t, "hi", http.Header(resp.MultiValueHeaders).Get("X-Greeting"))
}

func TestProxyV1Base64Body(t *testing.T) {
	f := NewApp(testApp(), Config{})

	resp, err := f.ProxyWithContext(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      "POST",
		Path:            "/echo",
		Headers:         map[string]string{"Content-Type": "text/plain"},
		Body:            base64.StdEncoding.EncodeToString([]byte("payload")),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "payload", resp.Body)
}

func TestProxyV1NotFound(t *testing.T) {
	f := NewApp(testApp(), Config{})

	resp, err := f.ProxyWithContext(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		Path:       "/missing",
	})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestProxyV2(t *testing.T) {
	f := NewApp(testApp(), Config{})

	req := events.APIGatewayV2HTTPRequest{
		Version:        "2.0",
		RawPath:        "/hello",
		RawQueryString: "name=v2",
	}
	req.RequestContext.HTTP.Method = "GET"
	req.RequestContext.HTTP.Path = "/hello"

	resp, err := f.ProxyWithContextV2(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello v2", resp.Body)
}

func TestDecorateRequest(t *testing.T) {
	f := NewApp(testApp(), Config{DecorateRequest: true})

	req := events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		Path:       "/meta",
	}
	req.RequestContext.Identity.SourceIP = "203.0.113.7"

	resp, err := f.ProxyWithContext(lambdaCtx("aws-req-1"), req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t,
		`{"decorated":true,"lambda":"aws-req-1","requestId":"aws-req-1","ip":"203.0.113.7"}`,
		resp.Body)
}

func TestDecorateKeepsClientRequestID(t *testing.T) {
	f := NewApp(testApp(), Config{DecorateRequest: true})

	resp, err := f.ProxyWithContext(lambdaCtx("aws-req-2"), events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		Path:       "/meta",
		Headers:    map[string]string{"X-Request-ID": "client-id"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Body, `"requestId":"client-id"`)
}

func TestNoDecoration(t *testing.T) {
	f := NewApp(testApp(), Config{})

	resp, err := f.ProxyWithContext(lambdaCtx("aws-req-3"), events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		Path:       "/meta",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Body, `"decorated":false`)
	assert.Contains(t, resp.Body, `"lambda":""`)
}

func TestRemoteAddr(t *testing.T) {
	assert.Equal(t, "198.51.100.1:8080", remoteAddr("198.51.100.1:8080").String())
	assert.Equal(t, net.ParseIP("198.51.100.2").String(),
		remoteAddr("198.51.100.2").(*net.TCPAddr).IP.String())
	assert.True(t, remoteAddr("").(*net.TCPAddr).IP.Equal(net.IPv4zero))
}
