package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
	"github.com/mikan-dev/tech-kawaraban/internal/logger"
	"github.com/mikan-dev/tech-kawaraban/internal/pipeline"
	"github.com/mikan-dev/tech-kawaraban/internal/store"
)

// Runner triggers one curation run; satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context) (pipeline.RunResult, error)
}

// Server exposes the read endpoints and the authenticated cron trigger.
type Server struct {
	store  store.Store
	runner Runner
	secret string
	log    logger.Logger
}

// New builds the HTTP surface. secret guards the cron trigger; when empty,
// the trigger is open (local development).
func New(st store.Store, runner Runner, secret string, log logger.Logger) *Server {
	return &Server{
		store:  st,
		runner: runner,
		secret: secret,
		log:    logger.Ensure(log),
	}
}

// Register attaches all routes to the gin engine.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/news", s.listNews)
		api.GET("/last-updated", s.lastUpdated)
		api.GET("/cron/fetch-news", s.fetchNews)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listNews returns the persisted curated list, optionally filtered by
// category ("all" or absent means no filter).
func (s *Server) listNews(c *gin.Context) {
	category := c.DefaultQuery("category", "all")
	if category != "all" && !domain.ValidCategory(domain.Category(category)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
		return
	}

	set, err := s.store.LoadCurated(c.Request.Context())
	if err != nil {
		s.log.ErrorObj("loading curated set failed", "list_news_error", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load news"})
		return
	}

	articles := set.Articles
	if category != "all" {
		filtered := make([]domain.Article, 0, len(articles))
		for _, art := range articles {
			if art.Category == domain.Category(category) {
				filtered = append(filtered, art)
			}
		}
		articles = filtered
	}
	if articles == nil {
		articles = []domain.Article{}
	}

	c.JSON(http.StatusOK, articles)
}

func (s *Server) lastUpdated(c *gin.Context) {
	updatedAt, present, err := s.store.LastUpdated(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load last-updated"})
		return
	}
	if !present {
		c.JSON(http.StatusOK, gin.H{"lastUpdated": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lastUpdated": updatedAt.UTC().Format(time.RFC3339)})
}

// fetchNews is the cron trigger: shared-secret bearer check first, then one
// full pipeline run. Unauthorized calls are rejected before any fetch work.
func (s *Server) fetchNews(c *gin.Context) {
	if s.secret != "" && c.GetHeader("Authorization") != "Bearer "+s.secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := s.runner.Run(c.Request.Context())
	if err != nil {
		s.log.ErrorObj("curation run failed", "run_error", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"count":     result.Count,
		"timestamp": result.Timestamp.UTC().Format(time.RFC3339),
	})
}
