package service

import (
	"context"
	"log"

	"dukaan/backend/internal/domain"
)

// ReceiptPrinter is the collaborator that shows a transaction to the
// operator and sends it to the printer.
type ReceiptPrinter interface {
	Present(ctx context.Context, tx domain.Transaction, docType string) error
	Print(ctx context.Context, txID string) error
}

// LogPrinter writes receipt events to the process log. It stands in for a
// real device on headless deployments.
type LogPrinter struct{}

func (LogPrinter) Present(_ context.Context, tx domain.Transaction, docType string) error {
	log.Printf("[printer] present %s tx=%s total=%s paid=%s", docType, tx.ID, FormatRupees(tx.TotalValuePaise), FormatRupees(tx.AmountPaise))
	return nil
}

func (LogPrinter) Print(_ context.Context, txID string) error {
	log.Printf("[printer] print tx=%s", txID)
	return nil
}
