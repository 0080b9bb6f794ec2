package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-turf-reservation/internal/api"
	"github.com/sanosuguru/go-turf-reservation/internal/application"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/slot"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type CreateBookingRequest struct {
	TurfID  string   `json:"turf_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	SlotIDs []string `json:"slot_ids" validate:"required,min=1" example:"slot-1,slot-2"`
}

type BookingResponse struct {
	ID             string     `json:"id"`
	TurfID         string     `json:"turf_id"`
	UserID         string     `json:"user_id"`
	SlotIDs        []string   `json:"slot_ids"`
	SlotDate       string     `json:"slot_date"`
	SlotTotal      int        `json:"slot_total"`
	PlatformFee    int        `json:"platform_fee"`
	Amount         int        `json:"amount"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"payment_status"`
	PaymentID      *string    `json:"payment_id,omitempty"`
	GatewayOrderID *string    `json:"gateway_order_id,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy    *string    `json:"cancelled_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID: b.ID, TurfID: b.TurfID, UserID: b.UserID,
		SlotIDs: b.SlotIDs, SlotDate: b.SlotDate.Format("2006-01-02"),
		SlotTotal: b.SlotTotal, PlatformFee: b.PlatformFee, Amount: b.Amount,
		Status: string(b.Status), PaymentStatus: string(b.PaymentStatus),
		PaymentID: b.PaymentID, GatewayOrderID: b.GatewayOrderID,
		ExpiresAt: b.ExpiresAt, ConfirmedAt: b.ConfirmedAt,
		CancelledAt: b.CancelledAt, CancelledBy: b.CancelledBy,
		CreatedAt: b.CreatedAt,
	}
}

// Create godoc
// @Summary 予約を作成
// @Description スロットを仮押さえします（支払い期限つき）
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "スロットが既に予約済み"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		TurfID: req.TurfID, UserID: userID, SlotIDs: req.SlotIDs,
	})
	if err != nil {
		var unavailable *application.SlotsUnavailableError
		if errors.As(err, &unavailable) {
			// 競合したスロットを明示して「選び直し」を促す
			return echo.NewHTTPError(http.StatusConflict, &api.ErrorResponse{
				Error:   unavailable.Error(),
				SlotIDs: unavailable.SlotIDs,
			})
		}
		if errors.Is(err, slot.ErrSlotNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	id := c.Param("id")
	b, err := h.service.GetBooking(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetUserBookings godoc
// @Summary ユーザーの予約一覧を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /bookings [get]
func (h *BookingHandler) GetUserBookings(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.service.GetUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

type CancelBookingRequest struct {
	Actor string `json:"actor" validate:"omitempty,oneof=customer owner admin"`
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 開始時刻までの猶予が残っている予約をキャンセルし、スロットを解放します
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse "キャンセル期限超過"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CancelBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	actor := booking.CancelActor(req.Actor)
	if req.Actor == "" {
		actor = booking.ActorCustomer
	}

	b, err := h.service.CancelBooking(c.Request().Context(), c.Param("id"), userID, actor)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, booking.ErrNotBookingOwner):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, booking.ErrTooLateToCancel),
			errors.Is(err, booking.ErrBookingNotCancellable):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, booking.ErrBookingStateChanged):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

type SettlementBookingResponse struct {
	BookingID   string    `json:"booking_id"`
	TurfID      string    `json:"turf_id"`
	OwnerID     string    `json:"owner_id"`
	UserID      string    `json:"user_id"`
	SlotTotal   int       `json:"slot_total"`
	PlatformFee int       `json:"platform_fee"`
	Amount      int       `json:"amount"`
	Status      string    `json:"status"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// ListSettlements godoc
// @Summary 精算対象の確定予約一覧を取得
// @Description 下流の精算処理が読み取る確定・完了予約のフィード
// @Tags settlements
// @Produce json
// @Param from query string true "開始日 (YYYY-MM-DD)"
// @Param to query string true "終了日 (YYYY-MM-DD)"
// @Success 200 {array} SettlementBookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /settlements/bookings [get]
func (h *BookingHandler) ListSettlements(c echo.Context) error {
	from, err := time.Parse("2006-01-02", c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from の形式が不正です")
	}
	to, err := time.Parse("2006-01-02", c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to の形式が不正です")
	}

	entries, err := h.service.ListSettlementBookings(c.Request().Context(), from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]SettlementBookingResponse, len(entries))
	for i, e := range entries {
		resp[i] = SettlementBookingResponse{
			BookingID: e.BookingID, TurfID: e.TurfID, OwnerID: e.OwnerID,
			UserID: e.UserID, SlotTotal: e.SlotTotal, PlatformFee: e.PlatformFee,
			Amount: e.Amount, Status: string(e.Status), ConfirmedAt: e.ConfirmedAt,
		}
	}
	return c.JSON(http.StatusOK, resp)
}
