package xid

import (
	"fmt"

	"github.com/google/uuid"
)

func New(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// Receipt formats a short printable receipt code from a ledger sequence number.
func Receipt(seq int64) string {
	return fmt.Sprintf("R%06d", seq%1000000)
}

// PurchaseOrder formats a purchase order number from a sequence number.
func PurchaseOrder(seq int64) string {
	return fmt.Sprintf("PO-%05d", seq)
}
