package fiberzap

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/utils/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap/zapcore"
)

// Request is a copy of the logged request fields. fiber recycles its
// contexts once the handler returns, so nothing here may point into them.
type Request struct {
	Method    string
	Path      string
	Route     string
	IP        string
	UserAgent string
	BodySize  int
	Query     string
}

// Req copies the request side of c for structured logging.
func Req(c fiber.Ctx) Request {
	return Request{
		Method:    utils.CopyString(c.Method()),
		Path:      utils.CopyString(c.Path()),
		Route:     utils.CopyString(c.Route().Path),
		IP:        utils.CopyString(c.IP()),
		UserAgent: utils.CopyString(c.Get(fiber.HeaderUserAgent)),
		BodySize:  len(c.Request().Body()),
		Query:     string(c.Request().URI().QueryString()),
	}
}

func (r Request) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("method", r.Method)
	enc.AddString("path", r.Path)
	enc.AddString("route", r.Route)
	enc.AddString("ip", r.IP)
	enc.AddString("userAgent", r.UserAgent)
	enc.AddInt("bodySize", r.BodySize)
	if r.Query != "" {
		enc.AddString("query", r.Query)
	}
	return nil
}

type Response struct {
	Status      int
	BodySize    int
	ContentType string
}

// Resp copies the logged fields of a fasthttp response.
func Resp(r *fasthttp.Response) Response {
	return Response{
		Status:      r.StatusCode(),
		BodySize:    len(r.Body()),
		ContentType: string(r.Header.ContentType()),
	}
}

func (r Response) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("status", r.Status)
	enc.AddInt("bodySize", r.BodySize)
	enc.AddString("contentType", r.ContentType)
	return nil
}
