package erp

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"veggiemarket/backend/internal/domain"
)

// Adapter mirrors local records into an external bookkeeping system. It never
// changes local state; callers only record the outcome.
type Adapter interface {
	SyncSale(ctx context.Context, sale domain.Sale) SaleResult
	SyncProducts(ctx context.Context, products []domain.Product) BatchResult
	SyncCustomers(ctx context.Context, customers []domain.Customer) BatchResult
	TestConnection(ctx context.Context) ConnectionResult
}

type SaleResult struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type BatchResult struct {
	Success     bool     `json:"success"`
	SyncedCount int      `json:"synced_count"`
	Errors      []string `json:"errors,omitempty"`
}

type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const walkInCustomerID int64 = 1

var paymentModes = map[domain.PaymentMethod]int{
	domain.PaymentCash:         1,
	domain.PaymentCard:         2,
	domain.PaymentUPI:          3,
	domain.PaymentCredit:       4,
	domain.PaymentBankTransfer: 5,
}

func paymentModeID(method domain.PaymentMethod) int {
	if id, ok := paymentModes[method]; ok {
		return id
	}
	return paymentModes[domain.PaymentCash]
}

type invoice struct {
	SocID           int64         `json:"socid"`
	Date            int64         `json:"date"`
	Type            int           `json:"type"`
	Lines           []invoiceLine `json:"lines"`
	NotePrivate     string        `json:"note_private"`
	ModeReglementID int           `json:"mode_reglement_id"`
}

type invoiceLine struct {
	FKProduct    int64           `json:"fk_product,omitempty"`
	ProductRef   string          `json:"product_ref,omitempty"`
	ProductLabel string          `json:"product_label"`
	Qty          decimal.Decimal `json:"qty"`
	Subprice     decimal.Decimal `json:"subprice"`
	TotalHT      decimal.Decimal `json:"total_ht"`
	TotalTTC     decimal.Decimal `json:"total_ttc"`
	TVATx        decimal.Decimal `json:"tva_tx"`
}

// buildInvoice maps a sale to one invoice with a line per cart line. taxPercent
// is applied on top of each line subtotal.
func buildInvoice(sale domain.Sale, taxPercent decimal.Decimal) invoice {
	socID, ok := numericRef(sale.CustomerRef)
	if !ok {
		socID = walkInCustomerID
	}
	factor := decimal.NewFromInt(1).Add(taxPercent.Div(decimal.NewFromInt(100)))

	lines := make([]invoiceLine, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		fk, _ := numericRef(line.Product.ExternalID)
		lines = append(lines, invoiceLine{
			FKProduct:    fk,
			ProductRef:   line.Product.Barcode,
			ProductLabel: line.Product.Name,
			Qty:          line.Quantity,
			Subprice:     line.UnitPrice,
			TotalHT:      line.Subtotal,
			TotalTTC:     line.Subtotal.Mul(factor).Round(2),
			TVATx:        taxPercent,
		})
	}

	return invoice{
		SocID:           socID,
		Date:            sale.CreatedAt.Unix(),
		Type:            0,
		Lines:           lines,
		NotePrivate:     "POS Sale - Receipt: " + sale.ReceiptNumber,
		ModeReglementID: paymentModeID(sale.PaymentMethod),
	}
}

func numericRef(ref string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
