package domain

import (
	"math"

	"referral_network_backend/platform/apperr"
)

// CalculateCommission returns the commission owed to the referrer for a won
// job: jobValue * rate / 100, rounded to cents. The rate is a percentage
// (10 means 10%). Pure and deterministic.
func CalculateCommission(jobValue, rate float64) (float64, error) {
	if jobValue < 0 {
		return 0, apperr.Validation("job value must not be negative")
	}
	if rate < 0 || rate > 100 {
		return 0, apperr.Validation("commission rate must be between 0 and 100")
	}

	amount := jobValue * rate / 100
	return math.Round(amount*100) / 100, nil
}
