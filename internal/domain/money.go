package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places stored for every amount
const MoneyScale = 2

// maxMoney is the smallest magnitude that no longer fits NUMERIC(18, 2)
var maxMoney = decimal.New(1, 18-MoneyScale)

// ValidateMoney rejects an amount the ledger cannot store exactly. field names
// the input in the error details.
func ValidateMoney(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(MoneyScale)) {
		return NewValidationError(ErrAmountPrecision, field+" "+amount.String())
	}
	if amount.Abs().GreaterThanOrEqual(maxMoney) {
		return NewValidationError(ErrAmountOutOfRange, field+" "+amount.String())
	}
	return nil
}

// ValidatePositiveMoney is ValidateMoney for amounts that must be above zero
func ValidatePositiveMoney(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError(ErrAmountNotPositive, field+" "+amount.String())
	}
	return ValidateMoney(field, amount)
}
