package server

import (
	"net/http"
	"time"

	"github.com/MariamHany01/key-valueDB/internal/api"
	"github.com/MariamHany01/key-valueDB/internal/cluster"
	"github.com/MariamHany01/key-valueDB/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminServer is the read-only observability surface: health, Prometheus
// metrics, and a cluster-state snapshot. It never accepts a mutation — the
// client wire protocol on Server is the only write path.
type AdminServer struct {
	httpServer *http.Server
}

// NewAdminServer builds the admin HTTP server bound to addr.
func NewAdminServer(addr string, s *store.Store, c *cluster.Coordinator, selfID string) *AdminServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery())

	h := api.NewHandler(s, c, selfID)
	h.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &AdminServer{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Serve blocks serving the admin surface until Shutdown is called.
func (a *AdminServer) Serve() error {
	err := a.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (a *AdminServer) Shutdown() error {
	return a.httpServer.Close()
}
