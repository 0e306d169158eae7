// Package httpapi is the echo-based HTTP transport (C8): the full route
// table of spec.md §6, JSON camelCase wire bodies, SSE notifications, and
// the mediator as its sole path into governed state. Grounded on
// api/rest.go's StartWithApiKey bootstrap idiom (echo.New -> middleware ->
// routes -> e.Logger.Fatal(e.Start(addr))), generalized from that file's
// single health route to the full table.
package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"ctxstore.dev/governed-context/ctxauth"
	"ctxstore.dev/governed-context/eventbus"
	"ctxstore.dev/governed-context/mediator"
)

// Server bundles the echo instance with the collaborators its handlers
// close over.
type Server struct {
	Echo     *echo.Echo
	Mediator *mediator.Mediator
	Bus      *eventbus.Bus
	Verifier *ctxauth.Verifier
	Logger   *logrus.Logger
}

// New builds the full route table against m, bus, and verifier.
func New(m *mediator.Mediator, bus *eventbus.Bus, verifier *ctxauth.Verifier, logger *logrus.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = jsonErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	s := &Server{Echo: e, Mediator: m, Bus: bus, Verifier: verifier, Logger: logger}
	s.registerAuth()
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.Echo

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.GET("/events", s.handleEvents, requireRole(ctxauth.RoleReader))

	e.GET("/nodes", s.handleQueryNodes, requireRole(ctxauth.RoleReader))
	e.GET("/nodes/:id", s.handleGetNode, requireRole(ctxauth.RoleReader))
	e.GET("/nodes/:id/provenance", s.handleNodeProvenance, requireRole(ctxauth.RoleReader))

	e.GET("/proposals", s.handleQueryProposals, requireRole(ctxauth.RoleReader))
	e.POST("/proposals", s.handleCreateProposal, requireRole(ctxauth.RoleContributor))
	e.GET("/proposals/:id", s.handleGetProposal, requireRole(ctxauth.RoleReader))
	e.PATCH("/proposals/:id", s.handleUpdateProposal, requireRole(ctxauth.RoleContributor))
	e.GET("/proposals/:id/reviews", s.handleGetReviews, requireRole(ctxauth.RoleReader))
	e.POST("/proposals/:id/review", s.handleSubmitReview, requireRole(ctxauth.RoleReviewer))
	e.POST("/proposals/:id/apply", s.handleApplyProposal, requireRole(ctxauth.RoleApplier))
	e.POST("/proposals/:id/withdraw", s.handleWithdrawProposal, requireRole(ctxauth.RoleContributor))
	e.GET("/proposals/:id/comments", s.handleGetComments, requireRole(ctxauth.RoleReader))
	e.POST("/proposals/:id/comments", s.handleAddComment, requireRole(ctxauth.RoleContributor))

	e.POST("/reset", s.handleReset, requireRole(ctxauth.RoleAdmin))

	e.GET("/audit", s.handleQueryAudit, requireRole(ctxauth.RoleAdmin))
	e.GET("/audit/export", s.handleExportAudit, requireRole(ctxauth.RoleAdmin))

	e.GET("/admin/dsar/export", s.handleDSARExport, requireRole(ctxauth.RoleAdmin))
	e.POST("/admin/dsar/erase", s.handleDSARErase, requireRole(ctxauth.RoleAdmin))
}

func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.WithFields(logrus.Fields{
				"method":   c.Request().Method,
				"path":     c.Path(),
				"status":   c.Response().Status,
				"duration": time.Since(start).String(),
			}).Debug("request handled")
			return err
		}
	}
}

// Start runs the server, blocking until it exits. Matches the teacher's
// e.Logger.Fatal(e.Start(addr)) idiom, but returns the error instead of
// calling Fatal directly so cmd/server can coordinate graceful shutdown.
func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}
