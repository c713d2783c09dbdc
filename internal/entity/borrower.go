package entity

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Borrower is one account with outstanding debt against a market.
// BorrowBalance and Collateral amounts are normalized to whole token units.
// Derived fields are filled by the health calculator; LiquidationPrice is set
// only when the account holds exactly one collateral type.
type Borrower struct {
	Account       common.Address             `json:"account"`
	BorrowBalance decimal.Decimal            `json:"borrow_balance"`
	Collateral    map[string]decimal.Decimal `json:"collateral"`

	BorrowLimit          decimal.Decimal  `json:"borrow_limit"`
	LiquidationLimit     decimal.Decimal  `json:"liquidation_limit"`
	PercentToLiquidation decimal.Decimal  `json:"percent_to_liquidation"`
	LiquidationPrice     *decimal.Decimal `json:"liquidation_price,omitempty"`
}

// Clone returns a deep copy of the borrower.
func (b Borrower) Clone() Borrower {
	if b.Collateral != nil {
		collateral := make(map[string]decimal.Decimal, len(b.Collateral))
		for sym, amount := range b.Collateral {
			collateral[sym] = amount
		}
		b.Collateral = collateral
	}
	if b.LiquidationPrice != nil {
		p := *b.LiquidationPrice
		b.LiquidationPrice = &p
	}
	return b
}
