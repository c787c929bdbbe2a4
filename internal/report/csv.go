package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"veggiemarket/backend/internal/state"
)

var csvHeader = []string{"Receipt", "Date", "Customer", "Items", "Total", "Payment", "Cashier"}

// WriteSalesCSV writes the sales inside w, newest first.
func WriteSalesCSV(out io.Writer, st state.State, w Window) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, sale := range SalesIn(st, w) {
		customer := "Walk-in"
		if c, ok := st.Customer(sale.CustomerID); ok {
			customer = c.Name
		}
		record := []string{
			sale.ReceiptNumber,
			sale.CreatedAt.UTC().Format(time.RFC3339),
			customer,
			strconv.Itoa(len(sale.Lines)),
			sale.Total.StringFixed(2),
			string(sale.PaymentMethod),
			sale.Cashier,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
