package http

import (
	"github.com/labstack/echo/v4"

	"rwa-lending-gateway/internal/adapter/middleware"
)

// Router wires handlers to routes. Idempotency is optional and guards the
// mutating origination routes when set.
type Router struct {
	Handler     *Handler
	Origination *OriginationHandler
	Submissions *SubmissionHandler
	Idempotency echo.MiddlewareFunc
}

func (r Router) Register(e *echo.Echo) {
	e.GET("/health", r.Handler.Health)
	e.GET("/docs", r.Handler.Docs)
	e.GET("/origination/guide", r.Origination.Guide)

	mw := []echo.MiddlewareFunc{middleware.RequireAccount()}
	if r.Idempotency != nil {
		mw = append(mw, r.Idempotency)
	}
	g := e.Group("/origination", mw...)
	g.POST("", r.Origination.Open)
	g.GET("", r.Origination.View)
	g.DELETE("", r.Origination.Close)
	g.PUT("/selection", r.Origination.Select)
	g.PUT("/amount", r.Origination.SetAmount)
	g.POST("/lock", r.Origination.Lock)
	g.POST("/loan", r.Origination.TakeLoan)
	g.DELETE("/valuation", r.Origination.DismissValuation)

	e.GET("/accounts/:address/collateral", r.Origination.Collateral)
	e.GET("/accounts/:address/notifications", r.Origination.Notifications)
	e.GET("/accounts/:address/submissions", r.Submissions.ListByAccount)
	e.GET("/submissions/:submission_id", r.Submissions.Get)
}
