package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourlink-backend/internal/commission"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
)

const moneyPlaces = 2

// ResellerDTO is the public shape of a reseller node.
type ResellerDTO struct {
	ID                   uuid.UUID  `json:"id"`
	ReferralCode         string     `json:"referral_code"`
	SponsorID            *uuid.UUID `json:"sponsor_id,omitempty"`
	GroupRootID          uuid.UUID  `json:"group_root_id"`
	OwnCommissionRate    string     `json:"own_commission_rate"`
	UplineCommissionRate string     `json:"upline_commission_rate"`
	Status               string     `json:"status"`
	DirectDownlineCount  int        `json:"direct_downline_count"`
	CreatedAt            time.Time  `json:"created_at"`
}

func resellerDTO(n *models.ResellerNode) ResellerDTO {
	return ResellerDTO{
		ID:                   n.ID,
		ReferralCode:         n.ReferralCode,
		SponsorID:            n.SponsorID,
		GroupRootID:          n.GroupRootID,
		OwnCommissionRate:    n.OwnCommissionRate.String(),
		UplineCommissionRate: n.UplineCommissionRate.String(),
		Status:               n.Status.String(),
		DirectDownlineCount:  n.DirectDownlineCount,
		CreatedAt:            n.CreatedAt,
	}
}

func resellerDTOs(nodes []models.ResellerNode) []ResellerDTO {
	out := make([]ResellerDTO, 0, len(nodes))
	for i := range nodes {
		out = append(out, resellerDTO(&nodes[i]))
	}
	return out
}

// PackageDTO is a tour package with its commission policy.
type PackageDTO struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Currency        string    `json:"currency"`
	CommissionType  string    `json:"commission_type"`
	CommissionRate  string    `json:"commission_rate"`
	FixedAmount     string    `json:"fixed_amount"`
	MaxLevels       int       `json:"max_levels"`
	CommissionNotes *string   `json:"commission_notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func packageDTO(p *models.TourPackage) PackageDTO {
	return PackageDTO{
		ID:              p.ID,
		Name:            p.Name,
		Currency:        p.Currency.String(),
		CommissionType:  p.Policy.CommissionType.String(),
		CommissionRate:  p.Policy.CommissionRate.String(),
		FixedAmount:     money(p.Policy.FixedAmount),
		MaxLevels:       p.Policy.MaxLevels,
		CommissionNotes: p.Policy.CommissionNotes,
		CreatedAt:       p.CreatedAt,
	}
}

// TourDateDTO is one departure and, when known, its remaining seats.
type TourDateDTO struct {
	ID             uuid.UUID `json:"id"`
	PackageID      uuid.UUID `json:"package_id"`
	DepartureDate  time.Time `json:"departure_date"`
	Price          string    `json:"price"`
	TotalSeats     int       `json:"total_seats"`
	RemainingSeats *int      `json:"remaining_seats,omitempty"`
}

func tourDateDTO(d *models.TourDate) TourDateDTO {
	return TourDateDTO{
		ID:            d.ID,
		PackageID:     d.PackageID,
		DepartureDate: d.DepartureDate,
		Price:         money(d.Price),
		TotalSeats:    d.TotalSeats,
	}
}

// BookingDTO is the public shape of a booking.
type BookingDTO struct {
	ID            uuid.UUID   `json:"id"`
	ResellerID    uuid.UUID   `json:"reseller_id"`
	TourDateID    uuid.UUID   `json:"tour_date_id"`
	SeatCount     int         `json:"seat_count"`
	Status        string      `json:"status"`
	SeatSlotIDs   []uuid.UUID `json:"seat_slot_ids"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail *string     `json:"customer_email,omitempty"`
	CustomerPhone *string     `json:"customer_phone,omitempty"`
	ConfirmedAt   *time.Time  `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time  `json:"cancelled_at,omitempty"`
	CancelReason  *string     `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func bookingDTO(b *models.Booking) BookingDTO {
	slots := make([]uuid.UUID, 0, len(b.SeatSlotIDs))
	slots = append(slots, b.SeatSlotIDs...)
	return BookingDTO{
		ID:            b.ID,
		ResellerID:    b.ResellerID,
		TourDateID:    b.TourDateID,
		SeatCount:     b.SeatCount,
		Status:        string(b.Status),
		SeatSlotIDs:   slots,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		CustomerPhone: b.CustomerPhone,
		ConfirmedAt:   b.ConfirmedAt,
		CancelledAt:   b.CancelledAt,
		CancelReason:  b.CancelReason,
		CreatedAt:     b.CreatedAt,
	}
}

// CommissionDTO is one level of a booking's payout.
type CommissionDTO struct {
	ID                    uuid.UUID  `json:"id"`
	BookingID             uuid.UUID  `json:"booking_id"`
	BeneficiaryResellerID uuid.UUID  `json:"beneficiary_reseller_id"`
	Level                 int        `json:"level"`
	Rate                  string     `json:"rate"`
	BaseAmount            string     `json:"base_amount"`
	Amount                string     `json:"amount"`
	Currency              string     `json:"currency"`
	Status                string     `json:"status"`
	VoidedAt              *time.Time `json:"voided_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

func commissionDTOs(records []models.CommissionRecord) []CommissionDTO {
	out := make([]CommissionDTO, 0, len(records))
	for _, r := range records {
		out = append(out, CommissionDTO{
			ID:                    r.ID,
			BookingID:             r.BookingID,
			BeneficiaryResellerID: r.BeneficiaryResellerID,
			Level:                 r.Level,
			Rate:                  r.Rate.String(),
			BaseAmount:            money(r.BaseAmount),
			Amount:                money(r.Amount),
			Currency:              r.Currency.String(),
			Status:                r.Status.String(),
			VoidedAt:              r.VoidedAt,
			CreatedAt:             r.CreatedAt,
		})
	}
	return out
}

// CommissionPageDTO is one page of a beneficiary's history.
type CommissionPageDTO struct {
	Items      []CommissionDTO `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func commissionPageDTO(page *commission.BeneficiaryPage) CommissionPageDTO {
	if page == nil {
		return CommissionPageDTO{Items: []CommissionDTO{}}
	}
	return CommissionPageDTO{Items: commissionDTOs(page.Items), NextCursor: page.NextCursor}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}
