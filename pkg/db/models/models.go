package models

// All lists every persisted model, in dependency order, for schema bootstrap
// in tests and tooling.
func All() []any {
	return []any{
		&ResellerNode{},
		&ReferralCode{},
		&TourPackage{},
		&TourDate{},
		&SeatSlot{},
		&Booking{},
		&CommissionRecord{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
