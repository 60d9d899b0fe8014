package transport

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/wqfan/roomrelay/internal/log"
	"github.com/wqfan/roomrelay/internal/validation"
	"github.com/wqfan/roomrelay/rooms"
)

// Router serves the read-only operational API over the coordinator
type Router struct {
	coordinator *rooms.Coordinator
	engine      *gin.Engine
	logger      *log.Logger
}

func NewRouter(coordinator *rooms.Coordinator, logger *log.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// Add OpenTelemetry middleware for automatic HTTP tracing
	engine.Use(otelgin.Middleware("roomrelay"))

	// Configure CORS for dashboards
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))

	r := &Router{
		coordinator: coordinator,
		engine:      engine,
		logger:      logger,
	}

	r.setupRoutes()
	return r
}

func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)
	r.engine.GET("/v1/rooms", r.listRooms)
	r.engine.GET("/v1/rooms/:room", r.getRoom)
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func (r *Router) listRooms(c *gin.Context) {
	stats := r.coordinator.Stats()
	c.JSON(http.StatusOK, gin.H{
		"rooms": stats,
		"count": len(stats),
	})
}

func (r *Router) getRoom(c *gin.Context) {
	var req GetRoomRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Validation failed",
			"details": validation.FormatValidationError(err),
		})
		return
	}

	users := r.coordinator.Roster(req.Room)
	if users == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "room not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":  req.Room,
		"users": users,
	})
}
