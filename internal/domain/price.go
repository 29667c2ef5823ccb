package domain

import "time"

// PriceRecord is a cached USD price for a mint.
type PriceRecord struct {
	Mint       string
	Price      float64
	ObservedAt time.Time
}

// Fresh reports whether the record is no older than ttl at now.
func (r PriceRecord) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.ObservedAt) <= ttl
}
