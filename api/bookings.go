package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kitcasinillo/backend-server/internal/commission"
	"github.com/kitcasinillo/backend-server/internal/dedup"
	"github.com/kitcasinillo/backend-server/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	ListingID       string `json:"listing_id"`
	ListingTitle    string `json:"listing_title"`
	HealerID        string `json:"healer_id"`
	HealerName      string `json:"healer_name"`
	HealerEmail     string `json:"healer_email"`
	SeekerID        string `json:"seeker_id"`
	SeekerName      string `json:"seeker_name"`
	SeekerEmail     string `json:"seeker_email"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	SessionLength   string `json:"session_length"`
	Format          string `json:"format"`
	Modality        string `json:"modality"`
	PaymentIntentID string `json:"payment_intent_id"`
	SessionDate     string `json:"session_date"`
	SessionTime     string `json:"session_time"`
	Timezone        string `json:"timezone"`
}

type bookingResponse struct {
	ID              string                `json:"id"`
	ListingTitle    string                `json:"listing_title"`
	HealerName      string                `json:"healer_name"`
	SeekerName      string                `json:"seeker_name"`
	Amount          int64                 `json:"amount"`
	Currency        string                `json:"currency"`
	PaymentIntentID string                `json:"payment_intent_id"`
	PaymentStatus   string                `json:"payment_status"`
	SessionDate     string                `json:"session_date,omitempty"`
	Breakdown       *commission.Breakdown `json:"breakdown,omitempty"`
	AlreadyExists   bool                  `json:"already_exists"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := booking.CreateBookingInput{
		ListingID:       req.ListingID,
		ListingTitle:    req.ListingTitle,
		HealerID:        req.HealerID,
		HealerName:      req.HealerName,
		HealerEmail:     req.HealerEmail,
		SeekerID:        req.SeekerID,
		SeekerName:      req.SeekerName,
		SeekerEmail:     req.SeekerEmail,
		Amount:          req.Amount,
		Currency:        req.Currency,
		SessionLength:   req.SessionLength,
		Format:          req.Format,
		Modality:        req.Modality,
		PaymentIntentID: req.PaymentIntentID,
		SessionTime:     req.SessionTime,
		Timezone:        req.Timezone,
	}
	if req.SessionDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.SessionDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_date must be RFC3339"})
			return
		}
		input.SessionDate = parsed
	}

	result, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, dedup.ErrAlreadyInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, booking.ErrMissingPaymentIntent),
			errors.Is(err, booking.ErrMissingParties),
			errors.Is(err, commission.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	status := http.StatusCreated
	if result.AlreadyExists {
		status = http.StatusOK
	}
	c.JSON(status, toBookingResponse(result))
}

func toBookingResponse(result *booking.CreateBookingResult) bookingResponse {
	b := result.Booking
	resp := bookingResponse{
		ID:              b.ID,
		ListingTitle:    b.ListingTitle,
		HealerName:      b.HealerName,
		SeekerName:      b.SeekerName,
		Amount:          b.Amount,
		Currency:        b.Currency,
		PaymentIntentID: b.PaymentIntentID,
		PaymentStatus:   b.PaymentStatus,
		Breakdown:       result.Breakdown,
		AlreadyExists:   result.AlreadyExists,
	}
	if !b.SessionDate.IsZero() {
		resp.SessionDate = b.SessionDate.UTC().Format(time.RFC3339)
	}
	return resp
}
