package ledger

import (
	"cmp"
	"slices"
	"strings"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
)

type Policy string

const (
	FIFO Policy = "FIFO"
	FEFO Policy = "FEFO"
)

func ParsePolicy(raw string) (Policy, bool) {
	switch Policy(strings.ToUpper(strings.TrimSpace(raw))) {
	case FIFO:
		return FIFO, true
	case FEFO:
		return FEFO, true
	}
	return "", false
}

// Order sorts batches in depletion order. FIFO uses the received date only.
// FEFO puts the earliest expiry first and batches without expiry last,
// falling back to the received date. The batch id breaks remaining ties.
func Order(batches []domain.StockBatch, policy Policy) {
	switch policy {
	case FEFO:
		slices.SortStableFunc(batches, compareFEFO)
	default:
		slices.SortStableFunc(batches, compareFIFO)
	}
}

func compareFIFO(a domain.StockBatch, b domain.StockBatch) int {
	if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func compareFEFO(a domain.StockBatch, b domain.StockBatch) int {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate != nil:
		return 1
	case a.ExpiryDate != nil && b.ExpiryDate == nil:
		return -1
	case a.ExpiryDate != nil && b.ExpiryDate != nil:
		if c := a.ExpiryDate.Compare(*b.ExpiryDate); c != 0 {
			return c
		}
	}
	return compareFIFO(a, b)
}
