package services

import (
	"strings"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/shopspring/decimal"
)

// LegacyMajorUnitThreshold is the magnitude below which an untagged legacy amount is read
// as major units (dollars, gourdes) rather than cents.
const LegacyMajorUnitThreshold = 5000

// NormalizeAmount returns amount in minor units. Tagged amounts are converted by their
// unit. Untagged legacy amounts use the magnitude rule: a positive value below
// LegacyMajorUnitThreshold is major units.
func NormalizeAmount(amount int64, unit string) int64 {
	switch unit {
	case models.AmountUnitMinor:
		return amount
	case models.AmountUnitMajor:
		return amount * 100
	}
	if amount > 0 && amount < LegacyMajorUnitThreshold {
		return amount * 100
	}
	return amount
}

// FormatMinor renders minor units as a decimal amount with the currency code.
func FormatMinor(amount int64, currency string) string {
	s := decimal.New(amount, -2).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + strings.ToUpper(currency)
}

// earningsFactor is the multiplier that brings every amount of an earnings row to minor
// units. Untagged rows are judged once by their net amount so all fields scale together.
func earningsFactor(e models.EventEarnings) int64 {
	switch e.AmountUnit {
	case models.AmountUnitMinor:
		return 1
	case models.AmountUnitMajor:
		return 100
	}
	if NormalizeAmount(e.NetAmount, "") != e.NetAmount {
		return 100
	}
	return 1
}

// availableMinor is the row's AvailableToWithdraw in minor units.
func availableMinor(e models.EventEarnings) int64 {
	return e.AvailableToWithdraw * earningsFactor(e)
}

// toMinorUnits rewrites an earnings row in minor units. Every write path converts the
// row first so withdrawn amounts are always added in the unit they are stored in.
func toMinorUnits(e *models.EventEarnings) {
	factor := earningsFactor(*e)
	e.AmountUnit = models.AmountUnitMinor
	if factor == 1 {
		return
	}
	e.GrossAmount *= factor
	e.PlatformFee *= factor
	e.NetAmount *= factor
	e.WithdrawnAmount *= factor
	e.Recalculate()
}
