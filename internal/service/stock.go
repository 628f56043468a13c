package service

import (
	"context"
	"errors"
	"log"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
)

// deductStock lowers stock for every sold line. Items that no longer exist
// are skipped and other failures are logged; the sale stands either way.
func (s *Service) deductStock(ctx context.Context, lines []domain.TransactionLine) {
	for _, line := range lines {
		if line.ItemID == "" || line.Qty < 1 {
			continue
		}
		remaining, err := s.repo.DeductStock(ctx, line.ItemID, line.Qty)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Printf("[service] WARN: failed to deduct stock item=%s qty=%d: %v", line.ItemID, line.Qty, err)
			continue
		}
		if remaining == 0 {
			log.Printf("[service] item %s is out of stock", line.ItemID)
		}
	}
}
