// Package api exposes listing runs over http so a dashboard can trigger
// them per account and poll their outcome.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/theeshop/listingbot/internal/product"
	"github.com/theeshop/listingbot/internal/runner"
	"github.com/theeshop/listingbot/internal/storage"
	"github.com/theeshop/listingbot/internal/types"
)

// Starter starts a run in the background and returns its id. Active lists
// the accounts with an open browser session.
type Starter interface {
	Start(ctx context.Context, account string, in product.Input) (string, error)
	Active() []string
}

type Store interface {
	Run(ctx context.Context, id string) (types.RunRecord, error)
	ListRuns(ctx context.Context, account string, limit int) ([]types.RunRecord, error)
	ListAccounts(ctx context.Context) ([]types.Account, error)
}

type Server struct {
	runs   Starter
	store  Store
	logger *slog.Logger
}

func NewServer(runs Starter, store Store) *Server {
	return &Server{
		runs:   runs,
		store:  store,
		logger: slog.With(slog.String("component", "api")),
	}
}

// Router returns the gin engine serving all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.runs.Active()})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/accounts", s.listAccounts)
		v1.POST("/accounts/:account/runs", s.startRun)
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
	}
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info(fmt.Sprintf("listening on %s", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(fmt.Sprintf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond)))
	}
}

func (s *Server) startRun(c *gin.Context) {
	account := c.Param("account")
	var in product.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid product: %v", err)})
		return
	}
	if err := in.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.runs.Start(c.Request.Context(), account, in)
	if errors.Is(err, runner.ErrAccountBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error(fmt.Sprintf("failed to start run for %s: %v", account, err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start run"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"runId": id, "account": account})
}

func (s *Server) getRun(c *gin.Context) {
	r, err := s.store.Run(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch run"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) listRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	runs, err := s.store.ListRuns(c.Request.Context(), c.Query("account"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch runs"})
		return
	}
	if runs == nil {
		runs = []types.RunRecord{}
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.store.ListAccounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch accounts"})
		return
	}
	if accounts == nil {
		accounts = []types.Account{}
	}
	c.JSON(http.StatusOK, accounts)
}
