// Package healthsrv serves the operator-facing /health and /ready probes on
// their own bind address, separate from the game's TCP/UDP ports. Grounded
// on server/internal/httpapi/server.go's Echo setup (middleware, request
// logging, graceful Run/Shutdown), trimmed to the two probe routes spec.md
// calls for.
package healthsrv

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Checker reports whether the server is accepting new work. ServerLoop
// reports Healthy whenever it is running and Ready once it has completed its
// first tick.
type Checker interface {
	Healthy() bool
	Ready() bool
}

// Server is the Echo application serving /health and /ready.
type Server struct {
	echo    *echo.Echo
	checker Checker
}

// New constructs the health HTTP app bound to checker.
func New(checker Checker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, checker: checker}
	e.GET("/health", s.handleHealth)
	e.GET("/ready", s.handleReady)
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			slog.Debug("healthsrv request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	if !s.checker.Healthy() {
		return c.String(http.StatusServiceUnavailable, "Unavailable")
	}
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleReady(c echo.Context) error {
	if !s.checker.Ready() {
		return c.String(http.StatusServiceUnavailable, "Not Ready")
	}
	return c.String(http.StatusOK, "Ready")
}

// Run starts the Echo server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}
