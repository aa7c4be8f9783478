package feeagreement

import "time"

// TrackingDate rolls a signing timestamp forward to the next business day.
// Deals signed over a weekend are tracked against the following Monday.
func TrackingDate(signed time.Time) time.Time {
	switch signed.Weekday() {
	case time.Saturday:
		return signed.AddDate(0, 0, 2)
	case time.Sunday:
		return signed.AddDate(0, 0, 1)
	default:
		return signed
	}
}
