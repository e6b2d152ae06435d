// Package api wires up the Gin router for the node's admin surface: health,
// metrics, and a read-only cluster snapshot. It never accepts a mutation —
// the framed TCP protocol in internal/server is the only write path, so
// this package only ever reads from the store and the coordinator.
package api

import (
	"net/http"

	"github.com/MariamHany01/key-valueDB/internal/cluster"
	"github.com/MariamHany01/key-valueDB/internal/store"
	"github.com/gin-gonic/gin"
)

// Handler holds the dependencies the admin routes read from.
type Handler struct {
	store       *store.Store
	coordinator *cluster.Coordinator
	selfID      string
}

// NewHandler creates a Handler.
func NewHandler(s *store.Store, c *cluster.Coordinator, selfID string) *Handler {
	return &Handler{store: s, coordinator: c, selfID: selfID}
}

// Register mounts the admin routes on r. Prometheus's /metrics is mounted
// separately by the caller, since it's served by promhttp.Handler rather
// than a Handler method.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.GET("/cluster", h.ClusterState)
}

// Healthz reports liveness plus the node's current role and term — enough
// for a load balancer or orchestrator readiness probe to tell a healthy
// secondary from a stuck one.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"node":   h.selfID,
		"status": "ok",
		"role":   h.coordinator.Role().String(),
		"term":   h.coordinator.Term(),
		"keys":   len(h.store.Snapshot()),
	})
}

// ClusterState reports this node's view of cluster state: its own role and
// term, and who it currently believes is primary. There is no cluster-wide
// view to report — each node only knows its own local belief.
func (h *Handler) ClusterState(c *gin.Context) {
	resp := gin.H{
		"node": h.selfID,
		"role": h.coordinator.Role().String(),
		"term": h.coordinator.Term(),
	}
	if primary := h.coordinator.PrimaryAddr(); primary != nil {
		resp["primary"] = gin.H{"host": primary.Host, "port": primary.Port}
	}
	c.JSON(http.StatusOK, resp)
}
