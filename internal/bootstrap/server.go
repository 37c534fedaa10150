package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kitcasinillo/backend-server/api"
	"github.com/kitcasinillo/backend-server/config"
	"github.com/kitcasinillo/backend-server/internal/service/booking"
)

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, bookingSvc booking.BookingUseCase, sched api.Scheduler, dispatcher api.EventSender) error {
	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: newRouter(bookingSvc, sched, dispatcher),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newRouter(bookingSvc booking.BookingUseCase, sched api.Scheduler, dispatcher api.EventSender) *gin.Engine {
	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.NewBookingHandler(bookingSvc).Register(router.Group("/bookings"))
	api.NewSchedulerHandler(sched, dispatcher).Register(router.Group("/"))
	return router
}
