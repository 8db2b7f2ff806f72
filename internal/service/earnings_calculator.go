package service

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
)

var (
	clientChargeMultiplier = decimal.RequireFromString("1.10")
	providerNetMultiplier  = decimal.RequireFromString("0.95")
	feeWaiverMinHours      = decimal.NewFromInt(1400)
)

const feeWaiverMinEngagements = 3

// CalculateEarnings splits gross pay into the client's charge and the provider's
// payout. Both multipliers apply to the same gross amount.
func CalculateEarnings(totalHours, hourlyRate decimal.Decimal, feeWaived bool) (models.Earnings, error) {
	if totalHours.IsNegative() {
		return models.Earnings{}, appErrors.Clone(appErrors.ErrValidation, "totalHours must not be negative")
	}
	if hourlyRate.IsNegative() {
		return models.Earnings{}, appErrors.Clone(appErrors.ErrValidation, "hourlyRate must not be negative")
	}

	gross := totalHours.Mul(hourlyRate).Round(2)
	clientCharge := gross.Mul(clientChargeMultiplier).Round(2)
	providerNet := gross
	if !feeWaived {
		providerNet = gross.Mul(providerNetMultiplier).Round(2)
	}

	return models.Earnings{
		TotalHours:   totalHours,
		HourlyRate:   hourlyRate,
		Gross:        gross,
		ClientCharge: clientCharge,
		ProviderNet:  providerNet,
		PlatformFee:  clientCharge.Sub(providerNet),
		FeeWaived:    feeWaived,
	}, nil
}

// FeeWaiverEligible reports whether a provider's history removes the provider-side fee.
func FeeWaiverEligible(stats models.ProviderStats) bool {
	return stats.ApprovedHours.GreaterThanOrEqual(feeWaiverMinHours) &&
		stats.CompletedEngagements >= feeWaiverMinEngagements
}
