package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/api/v1"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/config"
)

// Server serveur HTTP
type Server struct {
	router     *gin.Engine
	components *Components
	v1         *v1.Handler
	httpServer *http.Server
}

// NewServer crée le serveur à partir de services déjà assemblés
func NewServer(cfg *config.AppConfig, c *Components) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := v1.NewHandler(v1.Deps{
		Imports:        c.Imports,
		Stats:          c.Stats,
		Wizards:        c.Wizards,
		Exporter:       c.Exporter,
		Logs:           c.Repo,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Status:         c.Status,
	})

	s := &Server{
		router:     gin.Default(),
		components: c,
		v1:         handler,
	}
	s.setupRoutes()
	return s
}

// setupRoutes enregistre les middlewares et les routes
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+v1.OwnerHeader)
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		s.v1.RegisterRoutes(api)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, v1.Response{Code: http.StatusNotFound, Message: "Ressource introuvable"})
	})
}

// Handler routeur HTTP (utilisé par les tests)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run démarre le serveur ; retourne nil après Shutdown
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown arrête d'accepter les requêtes, puis enregistre les brouillons et ferme les backends
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.components.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
