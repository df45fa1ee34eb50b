// Package api provides the REST API server for pianodaw
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/pianodaw/pkg/session"
)

// @title pianodaw API
// @version 1.0
// @description Edit the clips, notes and transport of an open pianodaw project
// @host localhost:8080
// @BasePath /api/v1

// Server serves one session over HTTP.
type Server struct {
	session *session.Session
	router  *gin.Engine
}

// NewServer builds the router for s.
func NewServer(s *session.Session) *Server {
	srv := &Server{session: s, router: gin.Default()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	r := s.router

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)

		v1.GET("/project", s.getProject)
		v1.POST("/project/save", s.saveProject)
		v1.GET("/tracks", s.listTracks)
		v1.PUT("/tracks/:track", s.updateTrack)

		clips := v1.Group("/clips")
		clips.GET("", s.listClips)
		clips.GET("/:clip/notes", s.listNotes)
		clips.POST("/:clip/notes", s.addNote)
		clips.PATCH("/:clip/notes/:id", s.moveNote)
		clips.DELETE("/:clip/notes/:id", s.deleteNote)
		clips.POST("/:clip/cc", s.addCC)
		clips.POST("/:clip/quantize", s.quantizeClip)
		clips.POST("/:clip/transform", s.transformClip)
		clips.POST("/:clip/script", s.runScript)
		clips.GET("/:clip/export", s.exportClip)

		v1.GET("/history", s.getHistory)
		v1.POST("/undo", s.undo)
		v1.POST("/redo", s.redo)

		tr := v1.Group("/transport")
		tr.GET("", s.getTransport)
		tr.POST("/play", s.play)
		tr.POST("/stop", s.stop)
		tr.PUT("/tempo", s.setTempo)
		tr.PUT("/position", s.setPosition)
		tr.PUT("/loop", s.setLoop)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on port until the server fails.
func (s *Server) Run(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// StartServer starts the API server for sess on the specified port
func StartServer(sess *session.Session, port int) error {
	return NewServer(sess).Run(port)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pianodaw",
	})
}
