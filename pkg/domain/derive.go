package domain

import (
	"math"
	"time"
)

// NearExpiryDays is the window in which an item counts as near expiry.
const NearExpiryDays = 30

// DaysUntilExpiry returns whole days from now until expiry, rounding partial days up.
// The result is zero or negative once the expiry instant has passed.
func DaysUntilExpiry(expiry, now time.Time) int {
	if expiry.IsZero() {
		return math.MaxInt32
	}
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

// DeriveStatus classifies an item from its stock levels and days until expiry.
// Stock conditions take precedence over expiry conditions.
func DeriveStatus(currentStock, minimumStock, daysUntilExpiry int) ItemStatus {
	switch {
	case currentStock <= 0:
		return StatusOutOfStock
	case currentStock <= minimumStock:
		return StatusLowStock
	case daysUntilExpiry <= 0:
		return StatusExpired
	case daysUntilExpiry <= NearExpiryDays:
		return StatusNearExpiry
	default:
		return StatusInStock
	}
}

// DeriveExpiry computes the derived expiry fields at now.
func DeriveExpiry(expiry, now time.Time) ExpiryInfo {
	days := DaysUntilExpiry(expiry, now)
	return ExpiryInfo{
		ExpiryDate:      expiry,
		DaysUntilExpiry: days,
		IsExpired:       days <= 0,
		IsNearExpiry:    days > 0 && days <= NearExpiryDays,
	}
}

// Refresh recomputes every derived field of the item at now.
func (i *InventoryItem) Refresh(now time.Time) {
	i.Expiry = DeriveExpiry(i.Expiry.ExpiryDate, now)
	i.Status = DeriveStatus(i.Stock.CurrentStock, i.Stock.MinimumStock, i.Expiry.DaysUntilExpiry)
}

// AgeAt returns completed years between dob and now.
func AgeAt(dob, now time.Time) int {
	if dob.IsZero() || now.Before(dob) {
		return 0
	}
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// IsBirthday reports whether now falls on the anniversary of dob. A 29 February
// birthday is observed on 28 February in non-leap years.
func IsBirthday(dob, now time.Time) bool {
	if dob.IsZero() {
		return false
	}
	if dob.Month() == time.February && dob.Day() == 29 && !isLeap(now.Year()) {
		return now.Month() == time.February && now.Day() == 28
	}
	return dob.Month() == now.Month() && dob.Day() == now.Day()
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// SameDay reports whether two instants fall on the same calendar date in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
