package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-turf-reservation/internal/application"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/turf"
)

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error)
	CancelBooking(ctx context.Context, id, userID string, actor booking.CancelActor) (*booking.Booking, error)
	ListSettlementBookings(ctx context.Context, from, to time.Time) ([]*booking.SettlementEntry, error)
}

// PaymentServiceInterface は決済サービスのインターフェース
type PaymentServiceInterface interface {
	CreateOrder(ctx context.Context, bookingID, userID string) (*payment.Order, error)
	VerifyPayment(ctx context.Context, input application.VerifyPaymentInput) (*booking.Booking, error)
	HandlePaymentFailure(ctx context.Context, bookingID, gatewayOrderID, reason string) (*booking.Booking, error)
}

// TurfServiceInterface はターフサービスのインターフェース
type TurfServiceInterface interface {
	CreateTurf(ctx context.Context, input application.CreateTurfInput) (*turf.Turf, error)
	GetTurf(ctx context.Context, id string) (*turf.Turf, error)
	ListTurfs(ctx context.Context, limit, offset int) ([]*turf.Turf, error)
	GenerateDailySlots(ctx context.Context, input application.GenerateSlotsInput) ([]*slot.Slot, error)
	GetSlots(ctx context.Context, turfID string, date time.Time) ([]*slot.Slot, error)
	GetAvailableSlots(ctx context.Context, turfID string, date time.Time) ([]*slot.Slot, error)
	CountAvailableSlots(ctx context.Context, turfID string, date time.Time) (int, error)
}
