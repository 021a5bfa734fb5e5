package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/goodfinds-backend/internal/reqctx"
)

// RequestContext copies the echo request id, and the :id route param when present, into the
// request context so services can tag their logs.
func RequestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		if rid == "" {
			rid = req.Header.Get(echo.HeaderXRequestID)
		}
		ctx := reqctx.WithRID(req.Context(), rid)
		if id := c.Param("id"); id != "" {
			ctx = reqctx.WithListingID(ctx, id)
		}
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}
