package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kitcasinillo/backend-server/internal/dispatch"
	"github.com/kitcasinillo/backend-server/internal/notify"
	"github.com/kitcasinillo/backend-server/internal/reminder"
	"github.com/kitcasinillo/backend-server/internal/scheduler"
)

type Scheduler interface {
	Start()
	Stop()
	Status() scheduler.Status
	RunNotifications(ctx context.Context) notify.Result
	RunReminders(ctx context.Context) reminder.Result
}

type EventSender interface {
	Send(ctx context.Context, event string, payload map[string]any, opts *dispatch.SendOptions) (*dispatch.Result, error)
	Ping(ctx context.Context) (*dispatch.Result, error)
}

// SchedulerHandler exposes the scheduler controls and the manual triggers
// the operators use to run a sweep or verify the webhook receiver.
type SchedulerHandler struct {
	scheduler  Scheduler
	dispatcher EventSender
}

type schedulerActionRequest struct {
	Action string `json:"action" binding:"required"`
}

type testEventRequest struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

func NewSchedulerHandler(sched Scheduler, dispatcher EventSender) *SchedulerHandler {
	return &SchedulerHandler{scheduler: sched, dispatcher: dispatcher}
}

func (h *SchedulerHandler) Register(router *gin.RouterGroup) {
	router.GET("/scheduler/status", h.status)
	router.POST("/scheduler", h.control)
	router.POST("/notifications/trigger", h.triggerNotifications)
	router.POST("/reminders/run", h.runReminders)
	router.POST("/events/test", h.testEvent)
}

func (h *SchedulerHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}

func (h *SchedulerHandler) control(c *gin.Context) {
	var req schedulerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Action {
	case "start":
		h.scheduler.Start()
	case "stop":
		h.scheduler.Stop()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be start or stop"})
		return
	}
	c.JSON(http.StatusOK, h.scheduler.Status())
}

func (h *SchedulerHandler) triggerNotifications(c *gin.Context) {
	result := h.scheduler.RunNotifications(c.Request.Context())
	if !result.Success {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SchedulerHandler) runReminders(c *gin.Context) {
	result := h.scheduler.RunReminders(c.Request.Context())
	if !result.Success {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// testEvent sends a one-off event through the dispatcher. With no body it
// falls back to a system.ping.
func (h *SchedulerHandler) testEvent(c *gin.Context) {
	var req testEventRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var result *dispatch.Result
	var err error
	if req.Event == "" {
		result, err = h.dispatcher.Ping(c.Request.Context())
	} else {
		result, err = h.dispatcher.Send(c.Request.Context(), req.Event, req.Payload, nil)
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
