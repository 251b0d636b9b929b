// Package api exposes the HTTP surface: item creation, batch creation,
// retrieval with reconciled relationships, permission management and
// graph materialization.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jacentio/specimen/creation"
	"github.com/jacentio/specimen/graph"
	"github.com/jacentio/specimen/logger"
	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

// Server wires the engines behind the HTTP routes.
type Server struct {
	store   *store.Store
	engine  *creation.Engine
	builder *graph.Builder
	logger  *zap.Logger
}

// NewServer creates an API server.
func NewServer(st *store.Store, engine *creation.Engine, builder *graph.Builder) *Server {
	return &Server{
		store:   st,
		engine:  engine,
		builder: builder,
		logger:  logger.Get(),
	}
}

// Router builds the gin router with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(s.logger))
	router.Use(gin.Recovery())
	router.Use(principalFromHeaders())

	router.GET("/healthcheck/is_ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	router.POST("/new-sample/", s.createItem)
	router.POST("/new-samples/", s.createItems)
	router.POST("/delete-sample/", s.deleteItem)
	router.POST("/save-item/", s.saveItem)

	router.GET("/get-item-data/:item_id", s.getItemData)
	router.GET("/items/:refcode", s.getItemByRefcode)
	router.PATCH("/items/:refcode/permissions", s.updatePermissions)

	router.GET("/item-graph", s.itemGraph)
	router.GET("/item-graph/:item_id", s.itemGraph)

	router.GET("/samples/", s.listItemsOf(model.TypeSamples, model.TypeCells))
	router.GET("/starting-materials/", s.listItemsOf(model.TypeStartingMaterials))
	router.GET("/equipment/", s.listItemsOf(model.TypeEquipment))

	return router
}

// principalFromHeaders resolves the acting principal from the identity
// headers set by the authenticating proxy. Requests without an identity
// run as the anonymous public principal.
func principalFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := store.Principal{
			UserID: c.GetHeader("X-Specimen-User"),
			Admin:  c.GetHeader("X-Specimen-Role") == "admin",
		}
		if p.UserID == "" {
			p.UserID = store.PublicUserID
			p.Admin = false
		}
		c.Set("principal", p)
		c.Next()
	}
}

func principal(c *gin.Context) store.Principal {
	if v, ok := c.Get("principal"); ok {
		if p, ok := v.(store.Principal); ok {
			return p
		}
	}
	return store.Principal{UserID: store.PublicUserID}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
