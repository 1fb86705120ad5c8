package service

import (
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

var (
	cashier = domain.Actor{ID: "u-cashier", Name: "Sari", Role: domain.RoleCashier}
	admin   = domain.Actor{ID: "u-admin", Name: "Budi", Role: domain.RoleAdmin}
	owner   = domain.Actor{ID: "u-owner", Name: "Wati", Role: domain.RoleOwner}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedAccount adds an account with a matching opening posting
func seedAccount(ledger *testutil.MockLedger, id, name string, balance string, at time.Time) *domain.Account {
	account := &domain.Account{
		ID:               id,
		Name:             name,
		Type:             domain.AccountTypeAsset,
		Balance:          dec(balance),
		IsPaymentAccount: true,
	}
	ledger.AddAccount(account)
	if !account.Balance.IsZero() {
		ledger.AddPosting(&domain.Posting{
			AccountID: id,
			Amount:    dec(balance),
			Kind:      domain.PostingKindOpening,
			PostedAt:  at,
		})
	}
	return account
}

// journalTotal sums every posting of an account
func journalTotal(ledger *testutil.MockLedger, accountID string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range ledger.PostingsFor(accountID) {
		total = total.Add(p.Amount)
	}
	return total
}
