package stablecoin

import "fmt"

// withDeposit returns v with collateral then debt added. Collateral is applied
// first so a failure on the debt leg never leaves a half-updated copy behind;
// the receiver is never mutated.
func (v Vault) withDeposit(collateral, debt uint64) (Vault, error) {
	next := v
	var err error
	if next.Collateral, err = checkedAdd(v.Collateral, collateral, "vault collateral"); err != nil {
		return v, err
	}
	if next.Debt, err = checkedAdd(v.Debt, debt, "vault debt"); err != nil {
		return v, err
	}
	return next, nil
}

// withWithdrawal returns v with collateral and debt removed, failing with the
// matching vault error when either balance is too small.
func (v Vault) withWithdrawal(collateral, debt uint64) (Vault, error) {
	if collateral > v.Collateral {
		return v, fmt.Errorf("%w: have %d, requested %d", ErrInsufficientCollateral, v.Collateral, collateral)
	}
	if debt > v.Debt {
		return v, fmt.Errorf("%w: owed %d, requested %d", ErrInsufficientDebt, v.Debt, debt)
	}
	next := v
	var err error
	if next.Collateral, err = checkedSub(v.Collateral, collateral, "vault collateral"); err != nil {
		return v, err
	}
	if next.Debt, err = checkedSub(v.Debt, debt, "vault debt"); err != nil {
		return v, err
	}
	return next, nil
}
