package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kitcasinillo/backend-server/internal/commission"
	"github.com/kitcasinillo/backend-server/internal/dedup"
	"github.com/kitcasinillo/backend-server/internal/domain"
	"github.com/kitcasinillo/backend-server/internal/service/booking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) Create(ctx context.Context, input booking.CreateBookingInput) (*booking.CreateBookingResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.CreateBookingResult), args.Error(1)
}

func newCreateContext(t *testing.T, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	data, err := json.Marshal(body)
	assert.NoError(t, err)
	c.Request = httptest.NewRequest("POST", "/bookings", bytes.NewReader(data))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := newCreateContext(t, createBookingRequest{
		HealerID:        "healer-1",
		SeekerID:        "seeker-1",
		Amount:          10000,
		PaymentIntentID: "pi_123",
	})

	result := &booking.CreateBookingResult{
		Booking: &domain.Booking{
			ID:              "bk-1",
			ListingTitle:    "Untitled Service",
			PaymentIntentID: "pi_123",
			PaymentStatus:   "succeeded",
			Amount:          10000,
			Currency:        "USD",
		},
		Breakdown: &commission.Breakdown{BaseAmount: 10000, TotalAmount: 10835},
	}
	mockService.On("Create", c.Request.Context(), mock.Anything).Return(result, nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response bookingResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "bk-1", response.ID)
	assert.Equal(t, int64(10835), response.Breakdown.TotalAmount)
	assert.False(t, response.AlreadyExists)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_create_existing(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := newCreateContext(t, createBookingRequest{
		HealerID:        "healer-1",
		SeekerID:        "seeker-1",
		Amount:          10000,
		PaymentIntentID: "pi_123",
	})

	result := &booking.CreateBookingResult{
		Booking:       &domain.Booking{ID: "bk-existing", PaymentIntentID: "pi_123"},
		AlreadyExists: true,
	}
	mockService.On("Create", c.Request.Context(), mock.Anything).Return(result, nil)

	handler.create(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response bookingResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "bk-existing", response.ID)
	assert.True(t, response.AlreadyExists)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_create_conflict(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := newCreateContext(t, createBookingRequest{
		HealerID:        "healer-1",
		SeekerID:        "seeker-1",
		Amount:          10000,
		PaymentIntentID: "pi_123",
	})
	mockService.On("Create", c.Request.Context(), mock.Anything).
		Return(nil, dedup.ErrAlreadyInProgress)

	handler.create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_create_validation(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := newCreateContext(t, createBookingRequest{Amount: 10000, PaymentIntentID: "pi_123"})
	mockService.On("Create", c.Request.Context(), mock.Anything).
		Return(nil, booking.ErrMissingParties)

	handler.create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandler_create_badSessionDate(t *testing.T) {
	handler := NewBookingHandler(&MockBookingUseCase{})

	c, w := newCreateContext(t, createBookingRequest{
		HealerID:        "healer-1",
		SeekerID:        "seeker-1",
		Amount:          10000,
		PaymentIntentID: "pi_123",
		SessionDate:     "next tuesday",
	})

	handler.create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
