package model

import "time"

// Product is a sellable membership: the entitlement lasts DurationMonths
// from its start date.
type Product struct {
	ID             string // UUID
	Name           string
	DurationMonths int
	PriceCents     int64
	Currency       string
	CreatedAt      time.Time
}

// Extension prolongs an existing membership by Months calendar months.
type Extension struct {
	ID         string // UUID
	Name       string
	Months     int
	PriceCents int64
	Currency   string
	CreatedAt  time.Time
}
