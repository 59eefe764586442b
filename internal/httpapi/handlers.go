// internal/httpapi/handlers.go
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tamzrod/ufsdiag/internal/cmdlog"
	"github.com/tamzrod/ufsdiag/internal/diag"
	"github.com/tamzrod/ufsdiag/internal/evthist"
	"github.com/tamzrod/ufsdiag/internal/sink"
	"github.com/tamzrod/ufsdiag/internal/snapshot"
	"github.com/tamzrod/ufsdiag/internal/status"
)

// DumpIDHeader carries the id of a dump triggered over HTTP.
const DumpIDHeader = "X-Dump-ID"

// ---- command log ----

// startCommand records a submitted command.
// POST /hosts/:host/commands
func (s *Server) startCommand(c *gin.Context) {
	u := unitOf(c)

	var req cmdlog.Command
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Tag < 0 || req.Tag >= u.MaxTags() {
		c.JSON(http.StatusBadRequest, gin.H{"error": cmdlog.ErrTagRange.Error()})
		return
	}

	u.RecordCommandStart(req)
	c.JSON(http.StatusAccepted, gin.H{"total": u.Status().Commands})
}

// completeCommand stamps a command completion.
// POST /hosts/:host/commands/:tag/complete
func (s *Server) completeCommand(c *gin.Context) {
	u := unitOf(c)

	tag, err := strconv.Atoi(c.Param("tag"))
	if err != nil || tag < 0 || tag >= u.MaxTags() {
		c.JSON(http.StatusBadRequest, gin.H{"error": cmdlog.ErrTagRange.Error()})
		return
	}

	u.RecordCommandEnd(tag)
	c.Status(http.StatusAccepted)
}

// listCommands returns the retained command log, oldest first.
// GET /hosts/:host/commands?limit=N
func (s *Server) listCommands(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": unitOf(c).Commands(limit)})
}

// ---- events ----

type eventRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Value uint32 `json:"value"`
}

// recordEvent appends to a kind's history.
// POST /hosts/:host/events
func (s *Server) recordEvent(c *gin.Context) {
	u := unitOf(c)

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	k, err := evthist.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u.RecordEvent(k, req.Value)
	c.JSON(http.StatusAccepted, gin.H{"kind": k.String(), "count": u.EventCount(k)})
}

type hibern8Request struct {
	Enter bool `json:"enter"`
}

// countHibern8 counts an auto-hibern8 enter or exit.
// POST /hosts/:host/hibern8
func (s *Server) countHibern8(c *gin.Context) {
	var req hibern8Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unitOf(c).CountHibern8(req.Enter)
	c.Status(http.StatusAccepted)
}

// ---- dump ----

// dump renders the host to its sinks and returns the text.
// POST /hosts/:host/dump?trigger=...
func (s *Server) dump(c *gin.Context) {
	u := unitOf(c)

	id := uuid.NewString()
	trigger := c.DefaultQuery("trigger", "http")
	trigger = trigger + " " + id[:8]

	var buf sink.Buffer
	res := u.DumpTo(trigger, &buf)
	c.Header(DumpIDHeader, id)

	if res.Skipped != "" {
		c.JSON(http.StatusConflict, gin.H{"id": id, "skipped": res.Skipped})
		return
	}

	s.log.Info("dump served", "host", u.Name(), "id", id, "read_errors", res.ReadErrors)
	c.String(http.StatusOK, buf.String())
}

// retainedDumps returns the host's in-memory dump log.
// GET /hosts/:host/dumps
func (s *Server) retainedDumps(c *gin.Context) {
	ring := s.rings[unitOf(c).Name()]
	if ring == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no dump ring configured"})
		return
	}
	lines := ring.Lines()
	if len(lines) == 0 {
		c.String(http.StatusOK, "")
		return
	}
	c.String(http.StatusOK, strings.Join(lines, "\n")+"\n")
}

// ---- configuration ----

type lanesRequest struct {
	Lanes int `json:"lanes" binding:"required"`
}

// setLanes changes the PHY lanes dumped.
// PUT /hosts/:host/lanes
func (s *Server) setLanes(c *gin.Context) {
	var req lanesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := unitOf(c).SetLaneCount(req.Lanes); err != nil {
		if errors.Is(err, snapshot.ErrLaneCount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lanes": req.Lanes})
}

// ---- status ----

type statusResponse struct {
	Unit   diag.Status       `json:"unit"`
	Health *status.Snapshot  `json:"health,omitempty"`
	Events map[string]uint64 `json:"events"`
}

// status reports the unit summary, watcher health and event counts.
// GET /hosts/:host/status
func (s *Server) status(c *gin.Context) {
	u := unitOf(c)

	resp := statusResponse{
		Unit:   u.Status(),
		Events: make(map[string]uint64, evthist.NumKinds),
	}
	if tr := s.trackers[u.Name()]; tr != nil {
		snap := tr.Snapshot()
		resp.Health = &snap
	}
	for k := evthist.Kind(0); k < evthist.NumKinds; k++ {
		resp.Events[k.String()] = u.EventCount(k)
	}

	c.JSON(http.StatusOK, resp)
}
