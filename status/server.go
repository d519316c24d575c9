package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupRouter serves the board and metrics.
//
//	GET /healthz        liveness
//	GET /world          latest snapshot as JSON
//	GET /grid           latest snapshot as a text grid
//	GET /tanks/:player  one player's tank
//	GET /metrics        counters
func SetupRouter(board *Board, metrics *Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", healthHandler)
	r.GET("/world", worldHandler(board))
	r.GET("/grid", gridHandler(board))
	r.GET("/tanks/:player", tankHandler(board))
	r.GET("/metrics", metricsHandler(metrics))

	return r
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func worldHandler(board *Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := board.View()
		if v.World == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no world yet", "session_id": v.SessionID})
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func gridHandler(board *Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		w := board.World()
		if w == nil {
			c.String(http.StatusServiceUnavailable, "no world yet\n")
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(w.Render()))
	}
}

func tankHandler(board *Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		player, err := strconv.Atoi(c.Param("player"))
		if err != nil || player < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "player must be a non-negative number"})
			return
		}
		t, ok := board.Tank(player)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such tank", "player": player})
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func metricsHandler(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Snapshot())
	}
}

// Serve runs the HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
