package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/api/transport"
	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/pkg/httpcontext"
)

// OwnerHeader carries the opaque conversation id on HTTP requests.
const OwnerHeader = "X-Owner-ID"

// Owner resolves the owner id from OwnerHeader and stores it as a request user value.
// There is no authentication; the id is trusted as given.
func Owner(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			raw := strings.TrimSpace(string(ctx.Request.Header.Peek(OwnerHeader)))
			owner, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				logger.Debug("rejected request without owner", zap.String("header", raw))
				reject(ctx)
				return
			}
			ctx.SetUserValue(string(httpcontext.KeyOwnerID), owner)
			next(ctx)
		}
	}
}

func reject(ctx *fasthttp.RequestCtx) {
	body := transport.NewError(string(domain.ErrCodeInvalid), domain.ErrInvalidOwner.Message, nil)
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(http.StatusBadRequest)
	ctx.SetBodyString(body.String())
}
