package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-turf-reservation/internal/application"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/turf"
)

type TurfHandler struct {
	service TurfServiceInterface
}

func NewTurfHandler(s TurfServiceInterface) *TurfHandler {
	return &TurfHandler{service: s}
}

type CreateTurfRequest struct {
	Name      string `json:"name" validate:"required"`
	OwnerID   string `json:"owner_id" validate:"required"`
	Location  string `json:"location"`
	OpenTime  string `json:"open_time" validate:"required,hhmm"`
	CloseTime string `json:"close_time" validate:"required,hhmm"`
}

type TurfResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
	Location  string `json:"location"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

func toTurfResponse(t *turf.Turf) TurfResponse {
	return TurfResponse{
		ID: t.ID, Name: t.Name, OwnerID: t.OwnerID, Location: t.Location,
		OpenTime: t.OpenTime, CloseTime: t.CloseTime,
	}
}

// Create godoc
// @Summary ターフを作成
// @Tags turfs
// @Accept json
// @Produce json
// @Param request body CreateTurfRequest true "ターフ情報"
// @Success 201 {object} TurfResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /turfs [post]
func (h *TurfHandler) Create(c echo.Context) error {
	var req CreateTurfRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	t, err := h.service.CreateTurf(c.Request().Context(), application.CreateTurfInput{
		Name: req.Name, OwnerID: req.OwnerID, Location: req.Location,
		OpenTime: req.OpenTime, CloseTime: req.CloseTime,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, toTurfResponse(t))
}

// GetByID godoc
// @Summary ターフを取得
// @Tags turfs
// @Produce json
// @Param id path string true "ターフID"
// @Success 200 {object} TurfResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /turfs/{id} [get]
func (h *TurfHandler) GetByID(c echo.Context) error {
	t, err := h.service.GetTurf(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, turf.ErrTurfNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toTurfResponse(t))
}

// List godoc
// @Summary ターフ一覧を取得
// @Tags turfs
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} TurfResponse
// @Router /turfs [get]
func (h *TurfHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	turfs, err := h.service.ListTurfs(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]TurfResponse, len(turfs))
	for i, t := range turfs {
		resp[i] = toTurfResponse(t)
	}
	return c.JSON(http.StatusOK, resp)
}

type GenerateSlotsRequest struct {
	Date  string `json:"date" validate:"required"`
	Price int    `json:"price" validate:"required,min=0"`
}

type SlotResponse struct {
	ID        string `json:"id"`
	TurfID    string `json:"turf_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
	Price     int    `json:"price"`
}

func toSlotResponse(s *slot.Slot) SlotResponse {
	return SlotResponse{
		ID: s.ID, TurfID: s.TurfID, Date: s.Date.Format("2006-01-02"),
		StartTime: s.StartTime, EndTime: s.EndTime,
		Status: string(s.Status), Price: s.Price,
	}
}

// GenerateSlots godoc
// @Summary 1日分のスロットを一括作成
// @Description ターフの営業時間に沿って1時間刻みのスロットを作成します
// @Tags turfs
// @Accept json
// @Produce json
// @Param id path string true "ターフID"
// @Param request body GenerateSlotsRequest true "スロット情報"
// @Success 201 {array} SlotResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /turfs/{id}/slots [post]
func (h *TurfHandler) GenerateSlots(c echo.Context) error {
	var req GenerateSlotsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date の形式が不正です")
	}
	slots, err := h.service.GenerateDailySlots(c.Request().Context(), application.GenerateSlotsInput{
		TurfID: c.Param("id"), Date: date, Price: req.Price,
	})
	if err != nil {
		if errors.Is(err, turf.ErrTurfNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp := make([]SlotResponse, len(slots))
	for i, s := range slots {
		resp[i] = toSlotResponse(s)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetSlots godoc
// @Summary ターフのスロット一覧を取得
// @Tags turfs
// @Produce json
// @Param id path string true "ターフID"
// @Param date query string true "日付 (YYYY-MM-DD)"
// @Param available query bool false "空きスロットのみ"
// @Success 200 {array} SlotResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /turfs/{id}/slots [get]
func (h *TurfHandler) GetSlots(c echo.Context) error {
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date の形式が不正です")
	}

	var slots []*slot.Slot
	if c.QueryParam("available") == "true" {
		slots, err = h.service.GetAvailableSlots(c.Request().Context(), c.Param("id"), date)
	} else {
		slots, err = h.service.GetSlots(c.Request().Context(), c.Param("id"), date)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]SlotResponse, len(slots))
	for i, s := range slots {
		resp[i] = toSlotResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}

// CountAvailable godoc
// @Summary 空きスロット数を取得
// @Description 表示用のスナップショットです（予約処理はこの値を信頼しません）
// @Tags turfs
// @Produce json
// @Param id path string true "ターフID"
// @Param date query string true "日付 (YYYY-MM-DD)"
// @Success 200 {object} map[string]int
// @Failure 400 {object} api.ErrorResponse
// @Router /turfs/{id}/slots/available-count [get]
func (h *TurfHandler) CountAvailable(c echo.Context) error {
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date の形式が不正です")
	}
	count, err := h.service.CountAvailableSlots(c.Request().Context(), c.Param("id"), date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"available_count": count})
}
