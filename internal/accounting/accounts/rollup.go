package accounts

import "github.com/shopspring/decimal"

// Rollup returns the balance of every account: leaves take their own value
// from leafBalances, parents the sum of all descendant leaves.
func Rollup(accounts []Account, leafBalances map[int64]decimal.Decimal) map[int64]decimal.Decimal {
	byID := make(map[int64]Account, len(accounts))
	out := make(map[int64]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
		out[a.ID] = decimal.Zero
	}
	for _, a := range accounts {
		if !a.IsLeaf {
			continue
		}
		amount, ok := leafBalances[a.ID]
		if !ok || amount.IsZero() {
			continue
		}
		current := a
		for depth := 0; depth <= maxDepth; depth++ {
			out[current.ID] = out[current.ID].Add(amount)
			if current.ParentID == nil {
				break
			}
			parent, ok := byID[*current.ParentID]
			if !ok {
				break
			}
			current = parent
		}
	}
	return out
}

// Children indexes accounts by parent id; roots are keyed by 0.
func Children(accounts []Account) map[int64][]Account {
	out := make(map[int64][]Account)
	for _, a := range accounts {
		var parent int64
		if a.ParentID != nil {
			parent = *a.ParentID
		}
		out[parent] = append(out[parent], a)
	}
	return out
}
