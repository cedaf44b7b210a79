package server

import (
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/liorwn/openclaw-cloudflare/internal/admin"
	"github.com/liorwn/openclaw-cloudflare/internal/metrics"
)

// Router provides embeddable HTTP handlers for the admin operations.
// Endpoints:
//
//	GET  {basePath}/devices           list pending and paired devices
//	POST {basePath}/devices/approve   body: {"ids": [...]}; empty approves all pending
//	GET  {basePath}/storage/status    credential presence + last sync
//	POST {basePath}/sync              trigger a sync pass
//	POST {basePath}/restart           bounce the gateway
//	POST {basePath}/cleanup           reconcile stray sandbox processes
//	GET  {basePath}/healthz
//	GET  /metrics                     when metrics are enabled
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	facade      *admin.Facade
	basePath    string
	withMetrics bool
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(facade *admin.Facade, basePath string, withMetrics bool) *Router {
	return &Router{facade: facade, basePath: sanitizeBase(basePath), withMetrics: withMetrics}
}

// sanitizeBase normalizes a mount prefix: one leading slash, no trailing
// one, empty for root.
func sanitizeBase(bp string) string {
	bp = strings.Trim(strings.TrimSpace(bp), "/")
	if bp == "" {
		return ""
	}
	return "/" + bp
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/devices", r.handleListDevices)
	group.POST("/devices/approve", r.handleApproveDevices)
	group.GET("/storage/status", r.handleStorageStatus)
	group.POST("/sync", r.handleSync)
	group.POST("/restart", r.handleRestart)
	group.POST("/cleanup", r.handleCleanup)
	group.GET("/healthz", r.handleHealthz)
	if r.withMetrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// A non-nil tlsConf serves HTTPS using its certificates.
func NewServer(addr, basePath string, withMetrics bool, tlsConf *tls.Config, facade *admin.Facade) (*http.Server, error) {
	r := NewRouter(facade, basePath, withMetrics)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		TLSConfig:         tlsConf,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if tlsConf != nil {
		go func() { _ = server.ListenAndServeTLS("", "") }()
	} else {
		go func() { _ = server.ListenAndServe() }()
	}
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type cleanupResp struct {
	Killed int `json:"killed"`
}

func (r *Router) handleListDevices(c *gin.Context) {
	list, err := r.facade.ListDevices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

type approveReq struct {
	IDs []string `json:"ids"`
}

func (r *Router) handleApproveDevices(c *gin.Context) {
	var req approveReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}

	var res admin.ApproveResult
	var err error
	if len(req.IDs) == 0 {
		res, err = r.facade.ApprovePending(c.Request.Context())
	} else {
		res, err = r.facade.ApproveDevices(c.Request.Context(), req.IDs)
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleStorageStatus(c *gin.Context) {
	status, err := r.facade.StorageStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (r *Router) handleSync(c *gin.Context) {
	status, err := r.facade.Sync(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (r *Router) handleRestart(c *gin.Context) {
	status, err := r.facade.Restart(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (r *Router) handleCleanup(c *gin.Context) {
	n, err := r.facade.Cleanup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, cleanupResp{Killed: n})
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, okResp{OK: true})
}
