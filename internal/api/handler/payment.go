package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-turf-reservation/internal/application"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/payment"
)

type PaymentHandler struct {
	service PaymentServiceInterface
}

func NewPaymentHandler(s PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type PaymentOrderResponse struct {
	BookingID      string `json:"booking_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int    `json:"amount"`
	Currency       string `json:"currency"`
}

// CreateOrder godoc
// @Summary ゲートウェイ注文を作成
// @Description 支払い待ちの予約に対する決済ゲートウェイの注文を作成します
// @Description 予約の状態は変更しないため何度呼んでも安全です
// @Tags payments
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} PaymentOrderResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse "支払いできる状態ではない"
// @Failure 502 {object} api.ErrorResponse "ゲートウェイ接続失敗（リトライ可）"
// @Router /bookings/{id}/payment-order [post]
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}

	order, err := h.service.CreateOrder(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, booking.ErrNotBookingOwner):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, payment.ErrBookingNotPayable):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, payment.ErrGatewayUnavailable):
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, PaymentOrderResponse{
		BookingID:      order.BookingID,
		GatewayOrderID: order.GatewayOrderID,
		Amount:         order.Amount,
		Currency:       order.Currency,
	})
}

type VerifyPaymentRequest struct {
	BookingID        string `json:"booking_id" validate:"required"`
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

type VerifyPaymentResponse struct {
	BookingID     string  `json:"booking_id"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	PaymentID     *string `json:"payment_id,omitempty"`
}

// Verify godoc
// @Summary 決済コールバックを検証
// @Description 署名を検証し、予約を確定します。同じコールバックを二度受けても
// @Description 二度目は 409 を返すだけで状態は変わりません
// @Tags payments
// @Accept json
// @Produce json
// @Param request body VerifyPaymentRequest true "ゲートウェイコールバック"
// @Success 200 {object} VerifyPaymentResponse
// @Failure 400 {object} api.ErrorResponse "署名不正"
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "確定済み・期限切れ"
// @Router /payments/verify [post]
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b, err := h.service.VerifyPayment(c.Request().Context(), application.VerifyPaymentInput{
		BookingID:        req.BookingID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrSignatureMismatch):
			// 詳細を返さない
			return echo.NewHTTPError(http.StatusBadRequest, "検証に失敗しました")
		case errors.Is(err, booking.ErrBookingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, payment.ErrOrderMismatch):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, booking.ErrBookingAlreadyFinalized),
			errors.Is(err, booking.ErrBookingExpired):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, VerifyPaymentResponse{
		BookingID:     b.ID,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		PaymentID:     b.PaymentID,
	})
}

type PaymentFailedRequest struct {
	BookingID      string `json:"booking_id" validate:"required"`
	GatewayOrderID string `json:"gateway_order_id" validate:"required"`
	Reason         string `json:"reason"`
}

// Failed godoc
// @Summary 決済失敗通知を処理
// @Description ゲートウェイが失敗を通知した予約を終了し、スロットを解放します
// @Tags payments
// @Accept json
// @Produce json
// @Param request body PaymentFailedRequest true "失敗通知"
// @Success 200 {object} VerifyPaymentResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /payments/failed [post]
func (h *PaymentHandler) Failed(c echo.Context) error {
	var req PaymentFailedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b, err := h.service.HandlePaymentFailure(c.Request().Context(), req.BookingID, req.GatewayOrderID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, payment.ErrOrderMismatch):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, booking.ErrBookingAlreadyFinalized):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, VerifyPaymentResponse{
		BookingID:     b.ID,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		PaymentID:     b.PaymentID,
	})
}
