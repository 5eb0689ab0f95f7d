// Package replay serves recorded run snapshots over the same HTTP API shape
// as the live backend, so the watcher (or anything else speaking that API)
// can be pointed at a recording.
package replay

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/runwatch/runwatch/internal/poller"
	"github.com/runwatch/runwatch/internal/store"
)

type Server struct {
	store *store.Store
	log   *log.Logger
}

func New(st *store.Store, logger *log.Logger) *Server {
	return &Server{store: st, log: logger}
}

// Echo builds the HTTP server with the backend's route shape.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/api/agents", s.listRuns)
	e.GET("/api/agents/:id", s.getRun)

	return e
}

// GET /api/agents?repository=owner/repo
func (s *Server) listRuns(c echo.Context) error {
	ctx := c.Request().Context()

	runs, err := s.store.ListRuns(ctx, c.QueryParam("repository"))
	if err != nil {
		s.log.Error("list recorded runs", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "failed to list runs"})
	}

	return c.JSON(http.StatusOK, runs)
}

// GET /api/agents/:id
func (s *Server) getRun(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid run id"})
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, poller.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "Agent run not found."})
		}
		s.log.Error("load recorded run", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "failed to load run"})
	}

	return c.JSON(http.StatusOK, run)
}
