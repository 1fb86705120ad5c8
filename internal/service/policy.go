package service

import (
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerPolicy holds the configurable money rules shared by the services
type LedgerPolicy struct {
	// NoOverdraftTypes lists account types whose balance may never go below zero
	NoOverdraftTypes []domain.AccountType
	// AllowOverdraft lets a transfer drain the source account below zero
	AllowOverdraft bool
	// MinTransferAmount rejects smaller transfers; zero disables the check
	MinTransferAmount decimal.Decimal
	// AdvanceRepaymentCreditsAccount makes repayments return cash to the funding account
	AdvanceRepaymentCreditsAccount bool
}

// DefaultLedgerPolicy returns the policy used when nothing is configured
func DefaultLedgerPolicy() LedgerPolicy {
	return LedgerPolicy{
		AllowOverdraft:                 false,
		MinTransferAmount:              decimal.Zero,
		AdvanceRepaymentCreditsAccount: true,
	}
}

// GuardFor returns the balance guard for ordinary debits on account
func (p LedgerPolicy) GuardFor(account *domain.Account) domain.BalanceGuard {
	for _, t := range p.NoOverdraftTypes {
		if t == account.Type {
			return domain.BalanceGuard{NoOverdraft: true}
		}
	}
	return domain.BalanceGuard{}
}

// TransferGuard returns the balance guard for the debit leg of a transfer
func (p LedgerPolicy) TransferGuard(from *domain.Account) domain.BalanceGuard {
	if !p.AllowOverdraft {
		return domain.BalanceGuard{NoOverdraft: true}
	}
	return p.GuardFor(from)
}
