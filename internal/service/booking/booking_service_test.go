package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kitcasinillo/backend-server/config"
	"github.com/kitcasinillo/backend-server/internal/commission"
	"github.com/kitcasinillo/backend-server/internal/dedup"
	"github.com/kitcasinillo/backend-server/internal/dispatch"
	"github.com/kitcasinillo/backend-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Booking, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockRepository) SetStatusFlag(ctx context.Context, bookingID, flag string, value bool) error {
	args := m.Called(ctx, bookingID, flag, value)
	return args.Error(0)
}

type MockPaymentLocker struct {
	mock.Mock
}

func (m *MockPaymentLocker) AcquirePaymentLock(ctx context.Context, paymentIntentID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, paymentIntentID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentLocker) ReleasePaymentLock(ctx context.Context, paymentIntentID string) error {
	args := m.Called(ctx, paymentIntentID)
	return args.Error(0)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, event string, payload map[string]any, opts *dispatch.SendOptions) (*dispatch.Result, error) {
	args := m.Called(ctx, event, payload, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatch.Result), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func testConfig() config.Config {
	return config.Config{
		Commission: config.CommissionConfig{
			HealerCommissionPercent: 10,
			SeekerFeePercent:        5,
			ProcessingFeePercent:    2.9,
			ProcessingFeeFixed:      30,
		},
		Booking: config.BookingConfig{PaymentLockTTLSeconds: 60},
		Kafka:   config.KafkaConfig{BookingEventsTopic: "booking-events"},
	}
}

func validInput() CreateBookingInput {
	return CreateBookingInput{
		ListingTitle:    "Reiki Session",
		HealerID:        "healer-1",
		HealerName:      "Avery",
		HealerEmail:     "healer@example.com",
		SeekerID:        "seeker-1",
		SeekerName:      "Blake",
		SeekerEmail:     "seeker@example.com",
		Amount:          10000,
		PaymentIntentID: "pi_123",
		SessionDate:     time.Now().Add(48 * time.Hour),
	}
}

func newService(repo Repository, opts ...Option) *BookingService {
	calc := commission.NewCalculator(testConfig().Commission)
	return NewBookingService(repo, calc, dedup.NewInFlight(), testConfig(), opts...)
}

func TestCreate_Success(t *testing.T) {
	repo := &MockRepository{}
	repo.On("GetByPaymentIntent", mock.Anything, "pi_123").Return(nil, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	service := newService(repo)
	result, err := service.Create(context.Background(), validInput())

	assert.NoError(t, err)
	assert.False(t, result.AlreadyExists)
	assert.NotEmpty(t, result.Booking.ID)
	assert.Equal(t, "pi_123", result.Booking.PaymentIntentID)
	assert.Equal(t, "succeeded", result.Booking.PaymentStatus)
	assert.Equal(t, "USD", result.Booking.Currency)
	assert.False(t, result.Booking.Status[domain.StatusInviteEmailToHealer])
	assert.Equal(t, int64(10835), result.Breakdown.TotalAmount)
	repo.AssertExpectations(t)
}

func TestCreate_AppliesDefaults(t *testing.T) {
	repo := &MockRepository{}
	repo.On("GetByPaymentIntent", mock.Anything, "pi_123").Return(nil, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	input := validInput()
	input.ListingTitle = ""
	input.HealerName = ""
	input.SeekerName = ""

	service := newService(repo)
	result, err := service.Create(context.Background(), input)

	assert.NoError(t, err)
	assert.Equal(t, "Untitled Service", result.Booking.ListingTitle)
	assert.Equal(t, "Unknown Healer", result.Booking.HealerName)
	assert.Equal(t, "Unknown User", result.Booking.SeekerName)
	assert.Equal(t, "60 min", result.Booking.SessionLength)
	assert.Equal(t, "Remote", result.Booking.Format)
}

func TestCreate_Validation(t *testing.T) {
	service := newService(&MockRepository{})

	input := validInput()
	input.PaymentIntentID = ""
	_, err := service.Create(context.Background(), input)
	assert.ErrorIs(t, err, ErrMissingPaymentIntent)

	input = validInput()
	input.HealerID = ""
	_, err = service.Create(context.Background(), input)
	assert.ErrorIs(t, err, ErrMissingParties)

	input = validInput()
	input.Amount = 0
	_, err = service.Create(context.Background(), input)
	assert.ErrorIs(t, err, commission.ErrInvalidAmount)
}

func TestCreate_ExistingBookingReturned(t *testing.T) {
	existing := &domain.Booking{ID: "bk-existing", PaymentIntentID: "pi_123", Amount: 10000}
	repo := &MockRepository{}
	repo.On("GetByPaymentIntent", mock.Anything, "pi_123").Return(existing, nil)

	service := newService(repo)
	result, err := service.Create(context.Background(), validInput())

	assert.NoError(t, err)
	assert.True(t, result.AlreadyExists)
	assert.Equal(t, "bk-existing", result.Booking.ID)
	assert.Equal(t, int64(10835), result.Breakdown.TotalAmount)
	repo.AssertNotCalled(t, "Create")
}

func TestCreate_ConcurrentDuplicatesCollapse(t *testing.T) {
	repo := &MockRepository{}
	release := make(chan struct{})
	repo.On("GetByPaymentIntent", mock.Anything, "pi_123").
		Run(func(mock.Arguments) { <-release }).
		Return(nil, nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	service := newService(repo)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var conflicts, successes int
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Create(context.Background(), validInput())
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, dedup.ErrAlreadyInProgress) {
				conflicts++
				close(release)
				return
			}
			if err == nil {
				successes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
}

func TestCreate_PaymentLockHeldElsewhere(t *testing.T) {
	repo := &MockRepository{}
	locker := &MockPaymentLocker{}
	locker.On("AcquirePaymentLock", mock.Anything, "pi_123", time.Minute).Return(false, nil)

	service := newService(repo, WithPaymentLocker(locker))
	_, err := service.Create(context.Background(), validInput())

	assert.ErrorIs(t, err, dedup.ErrAlreadyInProgress)
	repo.AssertNotCalled(t, "GetByPaymentIntent")
	locker.AssertNotCalled(t, "ReleasePaymentLock")
}

func TestCreate_LockBackendDownDoesNotBlock(t *testing.T) {
	repo := &MockRepository{}
	repo.On("GetByPaymentIntent", mock.Anything, "pi_123").Return(nil, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	locker := &MockPaymentLocker{}
	locker.On("AcquirePaymentLock", mock.Anything, "pi_123", time.Minute).
		Return(false, errors.New("connection refused"))

	service := newService(repo, WithPaymentLocker(locker))
	result, err := service.Create(context.Background(), validInput())

	assert.NoError(t, err)
	assert.False(t, result.AlreadyExists)
	locker.AssertNotCalled(t, "ReleasePaymentLock")
}

func TestCreate_RepoErrorReleasesLock(t *testing.T) {
	repo := &MockRepository{}
	repo.On("GetByPaymentIntent", mock.Anything, "pi_123").Return(nil, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))
	locker := &MockPaymentLocker{}
	locker.On("AcquirePaymentLock", mock.Anything, "pi_123", time.Minute).Return(true, nil)
	locker.On("ReleasePaymentLock", mock.Anything, "pi_123").Return(nil).Once()

	service := newService(repo, WithPaymentLocker(locker))
	_, err := service.Create(context.Background(), validInput())

	assert.Error(t, err)
	locker.AssertExpectations(t)
}

func TestCreate_InviteEmailsFlipStatusFlags(t *testing.T) {
	repo := &MockRepository{}
	sender := &MockSender{}
	repo.On("GetByPaymentIntent", mock.Anything, "pi_123").Return(nil, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	sender.On("Send", mock.Anything, "healer@example.com", "New Booking Confirmed", mock.Anything).Return(nil).Once()
	sender.On("Send", mock.Anything, "seeker@example.com", "Your Booking is Confirmed", mock.Anything).Return(nil).Once()
	repo.On("SetStatusFlag", mock.Anything, mock.Anything, domain.StatusInviteEmailToHealer, true).Return(nil).Once()
	repo.On("SetStatusFlag", mock.Anything, mock.Anything, domain.StatusInviteEmailToSeeker, true).Return(nil).Once()

	service := newService(repo, WithEmailSender(sender))
	_, err := service.Create(context.Background(), validInput())

	assert.NoError(t, err)
	repo.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestCreate_InviteEmailFailureIsNonFatal(t *testing.T) {
	repo := &MockRepository{}
	sender := &MockSender{}
	repo.On("GetByPaymentIntent", mock.Anything, "pi_123").Return(nil, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp refused"))

	service := newService(repo, WithEmailSender(sender))
	result, err := service.Create(context.Background(), validInput())

	assert.NoError(t, err)
	assert.False(t, result.AlreadyExists)
	repo.AssertNotCalled(t, "SetStatusFlag")
}

func TestCreate_DispatchesCreatedEvent(t *testing.T) {
	repo := &MockRepository{}
	dispatcher := &MockDispatcher{}
	repo.On("GetByPaymentIntent", mock.Anything, "pi_123").Return(nil, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	var gotPayload map[string]any
	dispatcher.On("Send", mock.Anything, "booking.created", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { gotPayload = args.Get(2).(map[string]any) }).
		Return(&dispatch.Result{Sent: true, Status: 200}, nil).Once()

	service := newService(repo, WithDispatcher(dispatcher))
	result, err := service.Create(context.Background(), validInput())

	assert.NoError(t, err)
	assert.Equal(t, result.Booking.ID, gotPayload["bookingId"])
	assert.Equal(t, "pi_123", gotPayload["paymentIntentId"])
	assert.Equal(t, result.Breakdown, gotPayload["breakdown"])
	dispatcher.AssertExpectations(t)
}
