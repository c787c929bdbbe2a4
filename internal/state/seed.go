package state

import (
	"time"

	"github.com/shopspring/decimal"

	"veggiemarket/backend/internal/domain"
)

// NewSeeded returns a demo market with a small vegetable catalog.
func NewSeeded(firstTabID string, now time.Time) State {
	st := New(firstTabID)

	st.Products = []domain.Product{
		seedProduct("1", "Tomatoes", 67500, domain.UnitKilogram, 150, 20, "1234567890123", "Fresh Farms Ltd"),
		seedProduct("2", "Potatoes", 45000, domain.UnitKilogram, 200, 30, "2345678901234", "Valley Produce"),
		seedProduct("3", "Onions", 37500, domain.UnitKilogram, 180, 25, "3456789012345", "Fresh Farms Ltd"),
		seedProduct("4", "Carrots", 52500, domain.UnitKilogram, 120, 15, "4567890123456", "Garden Fresh Co"),
		seedProduct("5", "Cabbage", 30000, domain.UnitPiece, 80, 10, "5678901234567", "Valley Produce"),
	}

	st.Customers = []domain.Customer{
		{
			ID: "1", Name: "Green Grocers Ltd", Phone: "+1234567890", Email: "orders@greengrocers.com",
			Address: "123 Market Street, Downtown", Type: domain.CustomerWholesale,
			CreditLimit: decimal.NewFromInt(50000), Balance: decimal.NewFromInt(12500), ExternalID: "1",
		},
		{
			ID: "2", Name: "Super Fresh Market", Phone: "+1234567891", Email: "procurement@superfresh.com",
			Address: "456 Commerce Ave, Uptown", Type: domain.CustomerWholesale,
			CreditLimit: decimal.NewFromInt(75000), Balance: decimal.NewFromInt(8200), ExternalID: "2",
		},
		{
			ID: "3", Name: "John Smith", Phone: "+1234567892", Email: "john.smith@email.com",
			Address: "789 Residential St, Suburb", Type: domain.CustomerRetail,
			CreditLimit: decimal.NewFromInt(1000), Balance: decimal.Zero, ExternalID: "3",
		},
	}

	st.Suppliers = []domain.Supplier{
		{
			ID: "1", Name: "Fresh Farms Ltd", ContactPerson: "Ahmed Hassan", Phone: "+961-1-234567",
			Email: "ahmed@freshfarms.lb", Address: "Bekaa Valley, Lebanon", PaymentTerms: "Net 30",
			CreditLimit: decimal.NewFromInt(500000), Balance: decimal.NewFromInt(125000),
			Status: domain.SupplierActive, CreatedAt: now,
		},
		{
			ID: "2", Name: "Valley Produce", ContactPerson: "Fatima Al-Zahra", Phone: "+961-1-345678",
			Email: "fatima@valleyproduce.lb", Address: "South Lebanon", PaymentTerms: "Net 15",
			CreditLimit: decimal.NewFromInt(300000), Balance: decimal.NewFromInt(82000),
			Status: domain.SupplierActive, CreatedAt: now,
		},
	}

	return st
}

func seedProduct(id, name string, price int64, unit domain.Unit, stock, minStock int64, barcode, supplier string) domain.Product {
	return domain.Product{
		ID:         id,
		Name:       name,
		Category:   "Vegetables",
		Price:      decimal.NewFromInt(price),
		Unit:       unit,
		Stock:      decimal.NewFromInt(stock),
		MinStock:   decimal.NewFromInt(minStock),
		Barcode:    barcode,
		Supplier:   supplier,
		ExternalID: id,
	}
}
