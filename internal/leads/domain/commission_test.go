package domain

import (
	"testing"

	"referral_network_backend/platform/apperr"
)

func TestCalculateCommission(t *testing.T) {
	tests := []struct {
		jobValue float64
		rate     float64
		want     float64
	}{
		{4500, 10, 450.00},
		{0, 10, 0},
		{4500, 0, 0},
		{100, 100, 100},
		{333.33, 10, 33.33},
		{19.99, 7.5, 1.50},
		{1000.005, 10, 100.00},
	}

	for _, tc := range tests {
		got, err := CalculateCommission(tc.jobValue, tc.rate)
		if err != nil {
			t.Errorf("CalculateCommission(%v, %v) unexpected error: %v", tc.jobValue, tc.rate, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CalculateCommission(%v, %v) = %v, want %v", tc.jobValue, tc.rate, got, tc.want)
		}
	}
}

func TestCalculateCommissionRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		jobValue float64
		rate     float64
	}{
		{"negative job value", -1, 10},
		{"negative rate", 100, -0.01},
		{"rate above 100", 100, 100.01},
	}

	for _, tc := range tests {
		_, err := CalculateCommission(tc.jobValue, tc.rate)
		if err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
			continue
		}
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}
