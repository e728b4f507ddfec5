// Package httpapi is the optional HTTP control surface around
// AgentOrchestrator: a health/status endpoint pair and a
// trigger-one-issue-run endpoint, plus a live event-stream WebSocket.
// The router is gin (gin.Default, gin.H JSON responses); the live
// stream upgrades through coder/websocket and fans out through a Hub
// that snapshots the subscriber set under a lock and sends outside it.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/forgeswarm/coordinator/pkg/archive"
	"github.com/forgeswarm/coordinator/pkg/collab"
	"github.com/forgeswarm/coordinator/pkg/eventbus"
	"github.com/forgeswarm/coordinator/pkg/orchestrator"
	"github.com/forgeswarm/coordinator/pkg/statestore"
	"github.com/forgeswarm/coordinator/pkg/version"
	"github.com/gin-gonic/gin"
)

// Server bundles an AgentOrchestrator with the tracker it claims
// issues through and the bus it streams events from.
type Server struct {
	Orc        *orchestrator.AgentOrchestrator
	Tracker    collab.IssueTracker
	Bus        *eventbus.Bus
	Archive    *archive.Store    // optional; nil disables the /health archive check
	StateStore *statestore.Store // optional; nil disables the /health state store check

	hub    *Hub
	router *gin.Engine
}

// New builds a Server and wires its routes. ginMode mirrors the
// GIN_MODE env var (gin.DebugMode/gin.ReleaseMode/gin.TestMode);
// callers pass gin.Default()-equivalent behavior by leaving it empty.
// archiveStore may be nil when no event-archive mirror is configured.
func New(orc *orchestrator.AgentOrchestrator, tracker collab.IssueTracker, bus *eventbus.Bus, archiveStore *archive.Store, ginMode string) *Server {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	s := &Server{
		Orc:     orc,
		Tracker: tracker,
		Bus:     bus,
		Archive: archiveStore,
		hub:     NewHub(bus, 5*time.Second),
	}
	s.router = gin.Default()
	s.routes()
	return s
}

// WithStateStore attaches the state store /health pings, returning s
// for chaining at construction time.
func (s *Server) WithStateStore(store *statestore.Store) *Server {
	s.StateStore = store
	return s
}

// Router exposes the underlying gin.Engine, e.g. for httptest.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) routes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/status", s.statusHandler)
	s.router.POST("/issues/:id/run", s.runIssueHandler)
	s.router.GET("/ws/events", s.wsHandler)
}

// Run starts the HTTP server on addr, blocking until it returns an
// error (http.ErrServerClosed on a clean Shutdown).
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// healthHandler handles GET /health: always reports the event bus,
// pings the state store (load-bearing) when one is configured, and
// pings the archive mirror (best-effort analytics) when one is
// configured.
func (s *Server) healthHandler(c *gin.Context) {
	httpStatus := http.StatusOK
	status := "healthy"
	checks := gin.H{
		"event_bus": "healthy",
	}

	if s.StateStore != nil {
		if err := s.StateStore.Ping(); err != nil {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			checks["state_store"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			checks["state_store"] = "healthy"
		}
	}

	if s.Archive != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.Archive.Ping(ctx); err != nil {
			// The archive mirror is best-effort analytics, not load-bearing
			// for liveness: a degraded archive never turns /health into a
			// 503 the way a state store failure does.
			if status == "healthy" {
				status = "degraded"
			}
			checks["archive"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			checks["archive"] = "healthy"
		}
	}

	c.JSON(httpStatus, gin.H{"status": status, "version": version.Full(), "checks": checks})
}

// statusHandler handles GET /status: operational counters an operator
// or dashboard polls between WebSocket events.
func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active_connections": s.hub.ActiveConnections(),
		"bus_subscribers":    s.Bus.SubscriberCount(),
	})
}

// runRequest is the POST /issues/:id/run body: the tracker interface
// has no GetByID, so the caller supplies the issue metadata that would
// otherwise come from a lookup.
type runRequest struct {
	Title    string `json:"title" binding:"required"`
	Priority string `json:"priority"`
	Type     string `json:"type"`
}

// runIssueHandler handles POST /issues/:id/run: synchronously drives
// one issue through AgentOrchestrator.ProcessIssueDetailed and reports
// its Summary. Synchronous because a run's own iteration budget already
// bounds its duration (config.Config.MaxIterations), and callers watch
// progress over the /ws stream rather than polling this endpoint.
func (s *Server) runIssueHandler(c *gin.Context) {
	id := c.Param("id")
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issue := collab.Issue{
		ID:       id,
		Title:    req.Title,
		Status:   collab.IssueOpen,
		Priority: req.Priority,
		Type:     req.Type,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Minute)
	defer cancel()

	result, err := s.Orc.ProcessIssueDetailed(ctx, issue)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "summary": result.Summary()})
		return
	}
	c.JSON(http.StatusOK, result.Summary())
}
