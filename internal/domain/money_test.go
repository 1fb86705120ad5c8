package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateMoney(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr error
	}{
		{"whole rupiah", "150000", nil},
		{"two places", "100.05", nil},
		{"trailing zero beyond scale", "100.500", nil},
		{"negative delta", "-2500.25", nil},
		{"largest storable", "9999999999999999.99", nil},
		{"three places", "100.005", ErrAmountPrecision},
		{"tiny fraction", "0.001", ErrAmountPrecision},
		{"too many digits", "10000000000000000", ErrAmountOutOfRange},
		{"too many digits negative", "-10000000000000000", ErrAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMoney("amount", decimal.RequireFromString(tt.amount))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected a validation error, got %v", err)
			}
		})
	}
}

func TestValidatePositiveMoney(t *testing.T) {
	if err := ValidatePositiveMoney("amount", decimal.Zero); !errors.Is(err, ErrAmountNotPositive) {
		t.Errorf("Expected ErrAmountNotPositive for zero, got %v", err)
	}
	if err := ValidatePositiveMoney("amount", decimal.RequireFromString("0.005")); !errors.Is(err, ErrAmountPrecision) {
		t.Errorf("Expected ErrAmountPrecision, got %v", err)
	}
	if err := ValidatePositiveMoney("amount", decimal.RequireFromString("0.01")); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
