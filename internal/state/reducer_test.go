package state

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veggiemarket/backend/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func testState() State {
	st := New("tab-1")
	st.Products = []domain.Product{
		{ID: "p", Name: "Tomatoes", Category: "Vegetables", Price: dec("100"), Unit: domain.UnitKilogram, Stock: dec("10"), MinStock: dec("2")},
		{ID: "c", Name: "Cabbage", Category: "Vegetables", Price: dec("30"), Unit: domain.UnitPiece, Stock: dec("5"), MinStock: dec("1")},
	}
	st.Customers = []domain.Customer{
		{ID: "cust-1", Name: "Green Grocers Ltd", Type: domain.CustomerWholesale, CreditLimit: dec("5000"), Balance: dec("0")},
	}
	st.Suppliers = []domain.Supplier{
		{ID: "sup-1", Name: "Fresh Farms Ltd", Status: domain.SupplierActive, Balance: dec("0")},
	}
	return st
}

func mustReduce(t *testing.T, st State, cmd Command, policy Policy) State {
	t.Helper()
	next, _, err := Reduce(st, cmd, policy)
	require.NoError(t, err, cmd.Name())
	return next
}

func commit(tabID, saleID string, method domain.PaymentMethod, tendered *decimal.Decimal) CommitSale {
	return CommitSale{TabID: tabID, SaleID: saleID, PaymentMethod: method, AmountTendered: tendered, Cashier: "ana", At: testNow}
}

func TestAddTwiceMergesAndCommitDecrementsStock(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("3")}, Policy{})
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("2")}, Policy{})

	tab, _ := st.Tab("tab-1")
	require.Len(t, tab.Lines, 1)
	assertDecimal(t, "5", tab.Lines[0].Quantity)
	assertDecimal(t, "500", tab.Lines[0].Subtotal)
	assertDecimal(t, "500", tab.Total)

	next, events, err := Reduce(st, commit("tab-1", "sale-1", domain.PaymentCash, decPtr("500")), Policy{})
	require.NoError(t, err)

	require.Len(t, next.Sales, 1)
	sale := next.Sales[0]
	assertDecimal(t, "500", sale.Total)
	assertDecimal(t, "0", sale.Change)
	assert.Equal(t, "R000001", sale.ReceiptNumber)
	assert.Equal(t, "ana", sale.Cashier)
	assert.Equal(t, testNow, sale.CreatedAt)

	product, _ := next.Product("p")
	assertDecimal(t, "5", product.Stock)

	tab, _ = next.Tab("tab-1")
	assert.Empty(t, tab.Lines)
	assert.Empty(t, tab.CustomerID)
	assertDecimal(t, "0", tab.Total)

	require.Len(t, events, 1)
	committed, ok := events[0].(SaleCommitted)
	require.True(t, ok)
	assert.Equal(t, "sale-1", committed.Sale.ID)
}

func TestCommitAcrossTabsRejectsOversell(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, CreateTab{TabID: "tab-2"}, Policy{})
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "c", Quantity: dec("4")}, Policy{})
	st = mustReduce(t, st, AddLine{TabID: "tab-2", ProductID: "c", Quantity: dec("4")}, Policy{})

	st = mustReduce(t, st, commit("tab-1", "sale-1", domain.PaymentCard, nil), Policy{})
	product, _ := st.Product("c")
	assertDecimal(t, "1", product.Stock)

	after, _, err := Reduce(st, commit("tab-2", "sale-2", domain.PaymentCard, nil), Policy{})
	require.ErrorIs(t, err, domain.ErrStockConflict)

	var conflict *domain.StockConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Shortages, 1)
	assert.Equal(t, "c", conflict.Shortages[0].ProductID)
	assertDecimal(t, "4", conflict.Shortages[0].Requested)
	assertDecimal(t, "1", conflict.Shortages[0].Available)

	assert.Len(t, after.Sales, 1)
	tab, _ := after.Tab("tab-2")
	assert.Len(t, tab.Lines, 1)
}

func TestCommitFailuresLeaveStateUntouched(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("5")}, Policy{})

	tests := []struct {
		name string
		cmd  CommitSale
		want error
	}{
		{"underpaid cash", commit("tab-1", "s", domain.PaymentCash, decPtr("499.99")), domain.ErrInsufficientPayment},
		{"unknown method", commit("tab-1", "s", "cheque", nil), domain.ErrInvalidInput},
		{"unknown tab", commit("nope", "s", domain.PaymentCash, nil), domain.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, events, err := Reduce(st, tc.cmd, Policy{})
			require.ErrorIs(t, err, tc.want)
			assert.Empty(t, events)
			assert.Empty(t, next.Sales)
			product, _ := next.Product("p")
			assertDecimal(t, "10", product.Stock)
			tab, _ := next.Tab("tab-1")
			assert.Len(t, tab.Lines, 1)
		})
	}
}

func TestCommitEmptyTab(t *testing.T) {
	_, _, err := Reduce(testState(), commit("tab-1", "s", domain.PaymentCash, nil), Policy{})
	require.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCashChangeIsTenderedMinusTotal(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1.25")}, Policy{})
	st = mustReduce(t, st, commit("tab-1", "s", domain.PaymentCash, decPtr("200")), Policy{})

	sale := st.Sales[0]
	assertDecimal(t, "125", sale.Total)
	assertDecimal(t, "200", sale.AmountTendered)
	assertDecimal(t, "75", sale.Change)
}

func TestCashWithoutTenderedIsExactPayment(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("2")}, Policy{})
	st = mustReduce(t, st, commit("tab-1", "s", domain.PaymentCash, nil), Policy{})

	assertDecimal(t, "200", st.Sales[0].AmountTendered)
	assertDecimal(t, "0", st.Sales[0].Change)
}

func TestCommitCommittedCustomerAndLedgerOrder(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1")}, Policy{})
	st = mustReduce(t, st, BindCustomer{TabID: "tab-1", CustomerID: "cust-1"}, Policy{})
	st = mustReduce(t, st, commit("tab-1", "sale-1", domain.PaymentCard, nil), Policy{})
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "c", Quantity: dec("1")}, Policy{})
	st = mustReduce(t, st, commit("tab-1", "sale-2", domain.PaymentUPI, nil), Policy{})

	require.Len(t, st.Sales, 2)
	assert.Equal(t, "sale-2", st.Sales[0].ID)
	assert.Equal(t, "R000002", st.Sales[0].ReceiptNumber)
	assert.Empty(t, st.Sales[0].CustomerID)
	assert.Equal(t, "cust-1", st.Sales[1].CustomerID)
}

func TestAddLineChecks(t *testing.T) {
	st := testState()

	_, _, err := Reduce(st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("10.5")}, Policy{})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, _, err = Reduce(st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("0")}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = Reduce(st, AddLine{TabID: "tab-1", ProductID: "c", Quantity: dec("1.5")}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = Reduce(st, AddLine{TabID: "tab-1", ProductID: "missing", Quantity: dec("1")}, Policy{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = Reduce(st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1"), PriceOverride: decPtr("-1")}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	next := mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("0.75")}, Policy{})
	tab, _ := next.Tab("tab-1")
	assertDecimal(t, "75", tab.Total)
}

func TestAddLineDoesNotModifyPreviousState(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1")}, Policy{})

	_ = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("2")}, Policy{})

	tab, _ := st.Tab("tab-1")
	assertDecimal(t, "1", tab.Lines[0].Quantity)
	assertDecimal(t, "100", tab.Total)
}

func TestPriceOverrideOnMerge(t *testing.T) {
	base := mustReduce(t, testState(), AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1"), PriceOverride: decPtr("80")}, Policy{})
	second := AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1"), PriceOverride: decPtr("90")}

	t.Run("keep first", func(t *testing.T) {
		st := mustReduce(t, base, second, Policy{PriceOverride: KeepFirstPrice})
		tab, _ := st.Tab("tab-1")
		assertDecimal(t, "80", tab.Lines[0].UnitPrice)
		assertDecimal(t, "160", tab.Lines[0].Subtotal)
	})

	t.Run("reject", func(t *testing.T) {
		_, _, err := Reduce(base, second, Policy{PriceOverride: RejectPriceConflict})
		require.ErrorIs(t, err, domain.ErrPriceConflict)
	})

	t.Run("overwrite", func(t *testing.T) {
		st := mustReduce(t, base, second, Policy{PriceOverride: OverwritePrice})
		tab, _ := st.Tab("tab-1")
		assertDecimal(t, "90", tab.Lines[0].UnitPrice)
		assertDecimal(t, "180", tab.Total)
	})

	t.Run("no override keeps line price", func(t *testing.T) {
		st := mustReduce(t, base, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1")}, Policy{PriceOverride: RejectPriceConflict})
		tab, _ := st.Tab("tab-1")
		assertDecimal(t, "160", tab.Total)
	})
}

func TestSetLineQuantityAndRemove(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("2"), PriceOverride: decPtr("90")}, Policy{})
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "c", Quantity: dec("1")}, Policy{})

	st = mustReduce(t, st, SetLineQuantity{TabID: "tab-1", ProductID: "p", Quantity: dec("3")}, Policy{})
	tab, _ := st.Tab("tab-1")
	assertDecimal(t, "270", tab.Lines[0].Subtotal)
	assertDecimal(t, "300", tab.Total)

	st = mustReduce(t, st, SetLineQuantity{TabID: "tab-1", ProductID: "p", Quantity: dec("0")}, Policy{})
	tab, _ = st.Tab("tab-1")
	require.Len(t, tab.Lines, 1)
	assert.Equal(t, "c", tab.Lines[0].Product.ID)

	_, _, err := Reduce(st, SetLineQuantity{TabID: "tab-1", ProductID: "c", Quantity: dec("2.5")}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	st = mustReduce(t, st, RemoveLine{TabID: "tab-1", ProductID: "c"}, Policy{})
	tab, _ = st.Tab("tab-1")
	assert.Empty(t, tab.Lines)
	assertDecimal(t, "0", tab.Total)

	_, _, err = Reduce(st, RemoveLine{TabID: "tab-1", ProductID: "c"}, Policy{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTotalMatchesLinesAfterRandomMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	st := testState()
	st.Products[0].Stock = dec("1000")
	st.Products[1].Stock = dec("1000")
	ids := []string{"p", "c"}

	for i := 0; i < 300; i++ {
		productID := ids[rng.Intn(len(ids))]
		qty := decimal.NewFromInt(int64(rng.Intn(4)))
		var cmd Command
		switch rng.Intn(4) {
		case 0, 1:
			var override *decimal.Decimal
			if rng.Intn(3) == 0 {
				override = decPtr(fmt.Sprintf("%d", 10+rng.Intn(90)))
			}
			cmd = AddLine{TabID: "tab-1", ProductID: productID, Quantity: qty.Add(decimal.NewFromInt(1)), PriceOverride: override}
		case 2:
			cmd = SetLineQuantity{TabID: "tab-1", ProductID: productID, Quantity: qty}
		default:
			cmd = RemoveLine{TabID: "tab-1", ProductID: productID}
		}
		if next, _, err := Reduce(st, cmd, Policy{PriceOverride: OverwritePrice}); err == nil {
			st = next
		}

		tab, _ := st.Tab("tab-1")
		sum := decimal.Zero
		for _, line := range tab.Lines {
			assertDecimal(t, line.Quantity.Mul(line.UnitPrice).String(), line.Subtotal)
			sum = sum.Add(line.Subtotal)
		}
		require.True(t, sum.Equal(tab.Total), "step %d: total %s lines %s", i, tab.Total, sum)
	}
}

func TestTabLifecycle(t *testing.T) {
	st := testState()

	next, _, err := Reduce(st, CloseTab{TabID: "tab-1"}, Policy{})
	require.NoError(t, err)
	assert.Len(t, next.Tabs, 1, "closing the last tab is a no-op")

	next, _, err = Reduce(st, CloseTab{TabID: "ghost"}, Policy{})
	require.NoError(t, err)
	assert.Equal(t, st.Tabs, next.Tabs)
	assert.Equal(t, "tab-1", next.ActiveTabID)

	st = mustReduce(t, st, CreateTab{TabID: "tab-2"}, Policy{})
	st = mustReduce(t, st, CreateTab{TabID: "tab-3"}, Policy{})
	assert.Equal(t, "tab-3", st.ActiveTabID)
	tab3, _ := st.Tab("tab-3")
	assert.Equal(t, "Bill 3", tab3.Name)

	st = mustReduce(t, st, CloseTab{TabID: "tab-3"}, Policy{})
	assert.Equal(t, "tab-1", st.ActiveTabID)

	st = mustReduce(t, st, SetActiveTab{TabID: "tab-2"}, Policy{})
	assert.Equal(t, "tab-2", st.ActiveTabID)
	st = mustReduce(t, st, SetActiveTab{TabID: "gone"}, Policy{})
	assert.Equal(t, "tab-1", st.ActiveTabID)

	st = mustReduce(t, st, CreateTab{TabID: "tab-4"}, Policy{})
	tab4, _ := st.Tab("tab-4")
	assert.Equal(t, "Bill 4", tab4.Name)

	_, _, err = Reduce(st, CreateTab{TabID: "tab-4"}, Policy{})
	require.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestTabsAreIndependent(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, CreateTab{TabID: "tab-2"}, Policy{})
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1")}, Policy{})
	st = mustReduce(t, st, AddLine{TabID: "tab-2", ProductID: "c", Quantity: dec("2")}, Policy{})
	st = mustReduce(t, st, BindCustomer{TabID: "tab-2", CustomerID: "cust-1"}, Policy{})
	st = mustReduce(t, st, ClearTab{TabID: "tab-1"}, Policy{})

	tab1, _ := st.Tab("tab-1")
	tab2, _ := st.Tab("tab-2")
	assert.Empty(t, tab1.Lines)
	assert.Len(t, tab2.Lines, 1)
	assert.Equal(t, "cust-1", tab2.CustomerID)
	assertDecimal(t, "60", tab2.Total)
}

func TestBindCustomerRequiresKnownCustomer(t *testing.T) {
	_, _, err := Reduce(testState(), BindCustomer{TabID: "tab-1", CustomerID: "ghost"}, Policy{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCustomerUnbindsTabs(t *testing.T) {
	st := mustReduce(t, testState(), BindCustomer{TabID: "tab-1", CustomerID: "cust-1"}, Policy{})
	st = mustReduce(t, st, DeleteCustomer{CustomerID: "cust-1"}, Policy{})

	tab, _ := st.Tab("tab-1")
	assert.Empty(t, tab.CustomerID)
	assert.Empty(t, st.Customers)
}

func TestDeletedProductConflictsAtCommit(t *testing.T) {
	st := mustReduce(t, testState(), AddLine{TabID: "tab-1", ProductID: "c", Quantity: dec("1")}, Policy{})
	st = mustReduce(t, st, DeleteProduct{ProductID: "c"}, Policy{})

	_, _, err := Reduce(st, commit("tab-1", "s", domain.PaymentCash, nil), Policy{})
	require.ErrorIs(t, err, domain.ErrStockConflict)
}

func TestCreditSalesBalancePolicy(t *testing.T) {
	st := mustReduce(t, testState(), AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("2")}, Policy{})

	t.Run("disabled", func(t *testing.T) {
		next := mustReduce(t, st, commit("tab-1", "s", domain.PaymentCredit, nil), Policy{})
		customer, _ := next.Customer("cust-1")
		assertDecimal(t, "0", customer.Balance)
	})

	t.Run("enabled", func(t *testing.T) {
		policy := Policy{CreditSalesUpdateBalance: true}
		_, _, err := Reduce(st, commit("tab-1", "s", domain.PaymentCredit, nil), policy)
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		bound := mustReduce(t, st, BindCustomer{TabID: "tab-1", CustomerID: "cust-1"}, policy)
		next := mustReduce(t, bound, commit("tab-1", "s", domain.PaymentCredit, nil), policy)
		customer, _ := next.Customer("cust-1")
		assertDecimal(t, "200", customer.Balance)
	})
}

func TestProductValidation(t *testing.T) {
	st := testState()
	_, _, err := Reduce(st, AddProduct{Product: domain.Product{ID: "p", Name: "Dup", Unit: domain.UnitKilogram}}, Policy{})
	require.ErrorIs(t, err, domain.ErrDuplicate)

	_, _, err = Reduce(st, AddProduct{Product: domain.Product{ID: "n", Name: "Neg", Unit: domain.UnitKilogram, Price: dec("-1")}}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	name := "Nope"
	_, _, err = Reduce(st, UpdateProduct{ProductID: "zz", Patch: domain.ProductUpdateRequest{Name: &name}}, Policy{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = Reduce(st, UpdateProduct{ProductID: "p", Patch: domain.ProductUpdateRequest{Stock: decPtr("-1")}}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdatesPatchTheCurrentRecord(t *testing.T) {
	policy := Policy{CreditSalesUpdateBalance: true}
	st := testState()
	st = mustReduce(t, st, BindCustomer{TabID: "tab-1", CustomerID: "cust-1"}, policy)
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("4")}, policy)

	// Both patches are built from records read before the sale.
	rename := "Roma Tomatoes"
	productPatch := UpdateProduct{ProductID: "p", Patch: domain.ProductUpdateRequest{Name: &rename}}
	phone := "555-0101"
	customerPatch := UpdateCustomer{CustomerID: "cust-1", Patch: domain.CustomerUpdateRequest{Phone: &phone}}

	st = mustReduce(t, st, commit("tab-1", "s1", domain.PaymentCredit, nil), policy)
	st = mustReduce(t, st, productPatch, policy)
	st = mustReduce(t, st, customerPatch, policy)

	product, _ := st.Product("p")
	assert.Equal(t, "Roma Tomatoes", product.Name)
	assertDecimal(t, "6", product.Stock, "sale decrement survives a rename")
	assertDecimal(t, "100", product.Price)

	customer, _ := st.Customer("cust-1")
	assert.Equal(t, "555-0101", customer.Phone)
	assert.Equal(t, "Green Grocers Ltd", customer.Name)
	assertDecimal(t, "400", customer.Balance, "credit sale survives a contact edit")

	blank := " "
	_, _, err := Reduce(st, UpdateCustomer{CustomerID: "cust-1", Patch: domain.CustomerUpdateRequest{Name: &blank}}, policy)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateSupplierKeepsReceivedBalance(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, CreatePurchaseOrder{Order: domain.PurchaseOrder{
		ID: "po-1", SupplierID: "sup-1",
		Items: []domain.PurchaseOrderItem{{ProductID: "c", Quantity: dec("2"), UnitPrice: dec("10")}},
	}}, Policy{})

	terms := "Net 15"
	patch := UpdateSupplier{SupplierID: "sup-1", Patch: domain.SupplierUpdateRequest{PaymentTerms: &terms}}
	st = mustReduce(t, st, ReceivePurchaseOrder{OrderID: "po-1", At: testNow}, Policy{})
	st = mustReduce(t, st, patch, Policy{})

	supplier, _ := st.Supplier("sup-1")
	assert.Equal(t, "Net 15", supplier.PaymentTerms)
	assert.Equal(t, domain.SupplierActive, supplier.Status)
	assertDecimal(t, "20", supplier.Balance)

	_, _, err := Reduce(st, UpdateSupplier{SupplierID: "nope", Patch: patch.Patch}, Policy{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPurchaseOrderReceiveAddsStock(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, CreatePurchaseOrder{Order: domain.PurchaseOrder{
		ID:         "po-1",
		SupplierID: "sup-1",
		OrderDate:  testNow,
		Items:      []domain.PurchaseOrderItem{{ProductID: "p", Quantity: dec("20"), UnitPrice: dec("60")}},
	}}, Policy{})

	po, _ := st.PurchaseOrder("po-1")
	assert.Equal(t, "PO-00001", po.OrderNumber)
	assert.Equal(t, "Tomatoes", po.Items[0].ProductName)
	assertDecimal(t, "1200", po.Total)
	assert.Equal(t, domain.PurchaseOrderPending, po.Status)

	next, events, err := Reduce(st, ReceivePurchaseOrder{OrderID: "po-1", At: testNow}, Policy{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	product, _ := next.Product("p")
	assertDecimal(t, "30", product.Stock)
	supplier, _ := next.Supplier("sup-1")
	assertDecimal(t, "1200", supplier.Balance)
	po, _ = next.PurchaseOrder("po-1")
	assert.Equal(t, domain.PurchaseOrderReceived, po.Status)
	require.NotNil(t, po.ReceivedDate)

	_, _, err = Reduce(next, ReceivePurchaseOrder{OrderID: "po-1", At: testNow}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, _, err = Reduce(next, CancelPurchaseOrder{OrderID: "po-1"}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExpensesAndSuppliers(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, AddExpense{Expense: domain.Expense{ID: "e1", Category: "Rent", Amount: dec("500"), PaymentMethod: domain.PaymentCash, Date: testNow}}, Policy{})
	st = mustReduce(t, st, AddExpense{Expense: domain.Expense{ID: "e2", Category: "Transport", Amount: dec("40"), PaymentMethod: domain.PaymentCash, Date: testNow, SupplierID: "sup-1"}}, Policy{})
	assert.Equal(t, "e2", st.Expenses[0].ID)

	_, _, err := Reduce(st, AddExpense{Expense: domain.Expense{ID: "e3", Category: "Rent", Amount: dec("0")}}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	st = mustReduce(t, st, DeleteExpense{ExpenseID: "e1"}, Policy{})
	assert.Len(t, st.Expenses, 1)

	st = mustReduce(t, st, CreatePurchaseOrder{Order: domain.PurchaseOrder{
		ID: "po-1", SupplierID: "sup-1",
		Items: []domain.PurchaseOrderItem{{ProductID: "c", Quantity: dec("1"), UnitPrice: dec("1")}},
	}}, Policy{})
	_, _, err = Reduce(st, DeleteSupplier{SupplierID: "sup-1"}, Policy{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	st = mustReduce(t, st, CancelPurchaseOrder{OrderID: "po-1"}, Policy{})
	st = mustReduce(t, st, DeleteSupplier{SupplierID: "sup-1"}, Policy{})
	assert.Empty(t, st.Suppliers)
}

func TestDocumentRoundTripStartsFreshSession(t *testing.T) {
	st := testState()
	st = mustReduce(t, st, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1")}, Policy{})
	st = mustReduce(t, st, commit("tab-1", "sale-1", domain.PaymentCash, nil), Policy{})
	st = mustReduce(t, st, CreateTab{TabID: "tab-2"}, Policy{})
	st = mustReduce(t, st, AddLine{TabID: "tab-2", ProductID: "p", Quantity: dec("1")}, Policy{})

	restored := FromDocument(st.Document(testNow), "fresh")

	assert.Equal(t, st.Products, restored.Products)
	assert.Equal(t, st.Sales, restored.Sales)
	assert.Equal(t, int64(1), restored.ReceiptSeq)
	require.Len(t, restored.Tabs, 1)
	assert.Equal(t, "Bill 1", restored.Tabs[0].Name)
	assert.Empty(t, restored.Tabs[0].Lines)
}
