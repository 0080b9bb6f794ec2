package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-turf-reservation/internal/application"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/payment"
)

// MockPaymentService はPaymentServiceInterfaceのモック
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateOrder(ctx context.Context, bookingID, userID string) (*payment.Order, error) {
	args := m.Called(ctx, bookingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

func (m *MockPaymentService) VerifyPayment(ctx context.Context, input application.VerifyPaymentInput) (*booking.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockPaymentService) HandlePaymentFailure(ctx context.Context, bookingID, gatewayOrderID, reason string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID, gatewayOrderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func TestPaymentHandler_CreateOrder(t *testing.T) {
	e := NewTestEcho()

	newContext := func(userID string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-123/payment-order", nil)
		if userID != "" {
			req.Header.Set("X-User-ID", userID)
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("booking-123")
		return c, rec
	}

	t.Run("正常に注文を作成できる", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CreateOrder", mock.Anything, "booking-123", "user-123").
			Return(&payment.Order{
				BookingID:      "booking-123",
				GatewayOrderID: "order_abc123",
				Amount:         3150,
				Currency:       "INR",
			}, nil)

		handler := NewPaymentHandler(mockService)
		c, rec := newContext("user-123")

		err := handler.CreateOrder(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp PaymentOrderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "order_abc123", resp.GatewayOrderID)
		assert.Equal(t, 3150, resp.Amount)
		assert.Equal(t, "INR", resp.Currency)
	})

	t.Run("ユーザーIDがない場合401", func(t *testing.T) {
		mockService := new(MockPaymentService)
		handler := NewPaymentHandler(mockService)
		c, _ := newContext("")

		err := handler.CreateOrder(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
		mockService.AssertNotCalled(t, "CreateOrder")
	})

	t.Run("支払いできる状態ではない場合422", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CreateOrder", mock.Anything, "booking-123", "user-123").
			Return(nil, payment.ErrBookingNotPayable)

		handler := NewPaymentHandler(mockService)
		c, _ := newContext("user-123")

		err := handler.CreateOrder(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, he.Code)
	})

	t.Run("ゲートウェイ接続失敗は502", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CreateOrder", mock.Anything, "booking-123", "user-123").
			Return(nil, payment.ErrGatewayUnavailable)

		handler := NewPaymentHandler(mockService)
		c, _ := newContext("user-123")

		err := handler.CreateOrder(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadGateway, he.Code)
	})

	t.Run("存在しない予約は404", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CreateOrder", mock.Anything, "booking-123", "user-123").
			Return(nil, booking.ErrBookingNotFound)

		handler := NewPaymentHandler(mockService)
		c, _ := newContext("user-123")

		err := handler.CreateOrder(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}

func TestPaymentHandler_Verify(t *testing.T) {
	e := NewTestEcho()

	newContext := func(body string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodPost, "/payments/verify", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec), rec
	}

	validBody := `{"booking_id": "booking-123", "gateway_order_id": "order_abc123", "gateway_payment_id": "pay-1", "signature": "sig"}`

	t.Run("正常に検証して予約を確定できる", func(t *testing.T) {
		mockService := new(MockPaymentService)
		confirmed := testBooking()
		confirmed.Status = booking.StatusConfirmed
		confirmed.PaymentStatus = booking.PaymentStatusSuccess
		paymentID := "pay-1"
		confirmed.PaymentID = &paymentID
		mockService.On("VerifyPayment", mock.Anything, application.VerifyPaymentInput{
			BookingID:        "booking-123",
			GatewayOrderID:   "order_abc123",
			GatewayPaymentID: "pay-1",
			Signature:        "sig",
		}).Return(confirmed, nil)

		handler := NewPaymentHandler(mockService)
		c, rec := newContext(validBody)

		err := handler.Verify(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp VerifyPaymentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "confirmed", resp.Status)
		assert.Equal(t, "success", resp.PaymentStatus)
		require.NotNil(t, resp.PaymentID)
		assert.Equal(t, "pay-1", *resp.PaymentID)
	})

	t.Run("署名不正は詳細を伏せて400", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("VerifyPayment", mock.Anything, mock.AnythingOfType("application.VerifyPaymentInput")).
			Return(nil, payment.ErrSignatureMismatch)

		handler := NewPaymentHandler(mockService)
		c, _ := newContext(validBody)

		err := handler.Verify(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		assert.Equal(t, "検証に失敗しました", he.Message)
	})

	t.Run("確定済みの予約は409", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("VerifyPayment", mock.Anything, mock.AnythingOfType("application.VerifyPaymentInput")).
			Return(nil, booking.ErrBookingAlreadyFinalized)

		handler := NewPaymentHandler(mockService)
		c, _ := newContext(validBody)

		err := handler.Verify(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)
	})

	t.Run("期限切れの予約は409", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("VerifyPayment", mock.Anything, mock.AnythingOfType("application.VerifyPaymentInput")).
			Return(nil, booking.ErrBookingExpired)

		handler := NewPaymentHandler(mockService)
		c, _ := newContext(validBody)

		err := handler.Verify(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)
	})

	t.Run("必須フィールド欠落は検証エラー", func(t *testing.T) {
		mockService := new(MockPaymentService)
		handler := NewPaymentHandler(mockService)
		c, _ := newContext(`{"booking_id": "booking-123"}`)

		err := handler.Verify(c)

		require.Error(t, err)
		mockService.AssertNotCalled(t, "VerifyPayment")
	})
}

func TestPaymentHandler_Failed(t *testing.T) {
	e := NewTestEcho()

	newContext := func(body string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodPost, "/payments/failed", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec), rec
	}

	t.Run("失敗通知で予約を終了できる", func(t *testing.T) {
		mockService := new(MockPaymentService)
		failed := testBooking()
		failed.Status = booking.StatusPaymentFailed
		failed.PaymentStatus = booking.PaymentStatusFailed
		mockService.On("HandlePaymentFailure", mock.Anything, "booking-123", "order_abc123", "card_declined").
			Return(failed, nil)

		handler := NewPaymentHandler(mockService)
		c, rec := newContext(`{"booking_id": "booking-123", "gateway_order_id": "order_abc123", "reason": "card_declined"}`)

		err := handler.Failed(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp VerifyPaymentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "payment_failed", resp.Status)
		assert.Equal(t, "failed", resp.PaymentStatus)
	})

	t.Run("注文IDが一致しない場合400", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandlePaymentFailure", mock.Anything, "booking-123", "order_other", "").
			Return(nil, payment.ErrOrderMismatch)

		handler := NewPaymentHandler(mockService)
		c, _ := newContext(`{"booking_id": "booking-123", "gateway_order_id": "order_other"}`)

		err := handler.Failed(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})

	t.Run("確定済みの予約は409", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandlePaymentFailure", mock.Anything, "booking-123", "order_abc123", "").
			Return(nil, booking.ErrBookingAlreadyFinalized)

		handler := NewPaymentHandler(mockService)
		c, _ := newContext(`{"booking_id": "booking-123", "gateway_order_id": "order_abc123"}`)

		err := handler.Failed(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)
	})
}
