// internal/httpapi/server.go
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tamzrod/ufsdiag/internal/diag"
	"github.com/tamzrod/ufsdiag/internal/sink"
	"github.com/tamzrod/ufsdiag/internal/status"
)

// Options carries the per-host extras the manager does not own.
type Options struct {
	CORSOrigins []string
	Trackers    map[string]*status.Tracker // host -> health, from the watcher
	Rings       map[string]*sink.Ring      // host -> retained dump lines
	Logger      *slog.Logger
}

// Server exposes a diag.Manager over HTTP.
type Server struct {
	mgr      *diag.Manager
	trackers map[string]*status.Tracker
	rings    map[string]*sink.Ring
	log      *slog.Logger
	origins  []string
}

func New(mgr *diag.Manager, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		mgr:      mgr,
		trackers: opts.Trackers,
		rings:    opts.Rings,
		log:      log,
		origins:  opts.CORSOrigins,
	}
}

// Router builds the gin engine. gin.SetMode is the caller's job.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if len(s.origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  s.origins,
			AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{DumpIDHeader},
		}))
	}

	router.GET("/healthz", s.healthz)

	hosts := router.Group("/hosts/:host", s.resolveHost)
	{
		hosts.POST("/commands", s.startCommand)
		hosts.GET("/commands", s.listCommands)
		hosts.POST("/commands/:tag/complete", s.completeCommand)
		hosts.POST("/events", s.recordEvent)
		hosts.POST("/hibern8", s.countHibern8)
		hosts.POST("/dump", s.dump)
		hosts.GET("/dumps", s.retainedDumps)
		hosts.PUT("/lanes", s.setLanes)
		hosts.GET("/status", s.status)
	}

	return router
}

// healthz reports liveness and the attached host count.
// GET /healthz
func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"hosts":  len(s.mgr.Handles()),
	})
}

const unitKey = "ufsdiag.unit"

// resolveHost maps :host to an attached unit or answers 404.
func (s *Server) resolveHost(c *gin.Context) {
	name := c.Param("host")
	h, ok := s.mgr.Lookup(name)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "host not attached"})
		return
	}
	u := s.mgr.Unit(h)
	if u == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "host not attached"})
		return
	}
	c.Set(unitKey, u)
	c.Next()
}

func unitOf(c *gin.Context) *diag.Unit {
	return c.MustGet(unitKey).(*diag.Unit)
}
