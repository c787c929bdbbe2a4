package state

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/xid"
)

func addSupplier(st State, cmd AddSupplier) (State, error) {
	if cmd.Supplier.ID == "" || cmd.Supplier.Name == "" {
		return st, fmt.Errorf("%w: supplier id and name required", domain.ErrInvalidInput)
	}
	if st.supplierIndex(cmd.Supplier.ID) >= 0 {
		return st, fmt.Errorf("%w: supplier %q", domain.ErrDuplicate, cmd.Supplier.ID)
	}
	next := st
	next.Suppliers = append(slices.Clone(st.Suppliers), cmd.Supplier)
	return next, nil
}

func updateSupplier(st State, cmd UpdateSupplier) (State, error) {
	idx := st.supplierIndex(cmd.SupplierID)
	if idx < 0 {
		return st, notFound("supplier", cmd.SupplierID)
	}
	sup := st.Suppliers[idx]
	patch := cmd.Patch
	setString(&sup.Name, patch.Name)
	setString(&sup.ContactPerson, patch.ContactPerson)
	setString(&sup.Phone, patch.Phone)
	setString(&sup.Email, patch.Email)
	setString(&sup.Address, patch.Address)
	setString(&sup.PaymentTerms, patch.PaymentTerms)
	setDecimal(&sup.CreditLimit, patch.CreditLimit)
	setDecimal(&sup.Balance, patch.Balance)
	if patch.Status != nil {
		sup.Status = *patch.Status
	}
	if sup.Name == "" {
		return st, fmt.Errorf("%w: supplier name required", domain.ErrInvalidInput)
	}

	next := st
	next.Suppliers = slices.Clone(st.Suppliers)
	next.Suppliers[idx] = sup
	return next, nil
}

func deleteSupplier(st State, cmd DeleteSupplier) (State, error) {
	idx := st.supplierIndex(cmd.SupplierID)
	if idx < 0 {
		return st, notFound("supplier", cmd.SupplierID)
	}
	for _, po := range st.PurchaseOrders {
		if po.SupplierID == cmd.SupplierID && po.Status == domain.PurchaseOrderPending {
			return st, fmt.Errorf("%w: supplier has pending purchase order %s", domain.ErrInvalidInput, po.OrderNumber)
		}
	}
	next := st
	next.Suppliers = slices.Delete(slices.Clone(st.Suppliers), idx, idx+1)
	return next, nil
}

func addExpense(st State, cmd AddExpense) (State, error) {
	e := cmd.Expense
	if e.ID == "" || e.Category == "" {
		return st, fmt.Errorf("%w: expense id and category required", domain.ErrInvalidInput)
	}
	if !e.Amount.IsPositive() {
		return st, fmt.Errorf("%w: expense amount must be greater than zero", domain.ErrInvalidInput)
	}
	if st.expenseIndex(e.ID) >= 0 {
		return st, fmt.Errorf("%w: expense %q", domain.ErrDuplicate, e.ID)
	}
	if e.SupplierID != "" && st.supplierIndex(e.SupplierID) < 0 {
		return st, notFound("supplier", e.SupplierID)
	}
	next := st
	next.Expenses = append([]domain.Expense{e}, st.Expenses...)
	return next, nil
}

func deleteExpense(st State, cmd DeleteExpense) (State, error) {
	idx := st.expenseIndex(cmd.ExpenseID)
	if idx < 0 {
		return st, notFound("expense", cmd.ExpenseID)
	}
	next := st
	next.Expenses = slices.Delete(slices.Clone(st.Expenses), idx, idx+1)
	return next, nil
}

func createPurchaseOrder(st State, cmd CreatePurchaseOrder) (State, error) {
	order := cmd.Order
	if order.ID == "" {
		return st, fmt.Errorf("%w: purchase order id required", domain.ErrInvalidInput)
	}
	if st.purchaseOrderIndex(order.ID) >= 0 {
		return st, fmt.Errorf("%w: purchase order %q", domain.ErrDuplicate, order.ID)
	}
	if _, ok := st.Supplier(order.SupplierID); !ok {
		return st, notFound("supplier", order.SupplierID)
	}
	if len(order.Items) == 0 {
		return st, fmt.Errorf("%w: purchase order needs at least one item", domain.ErrInvalidInput)
	}

	items := make([]domain.PurchaseOrderItem, 0, len(order.Items))
	total := decimal.Zero
	for _, item := range order.Items {
		product, ok := st.Product(item.ProductID)
		if !ok {
			return st, notFound("product", item.ProductID)
		}
		if !item.Quantity.IsPositive() || item.UnitPrice.IsNegative() {
			return st, fmt.Errorf("%w: invalid quantity or price for %s", domain.ErrInvalidInput, product.Name)
		}
		item.ProductName = product.Name
		item.Total = item.Quantity.Mul(item.UnitPrice)
		total = total.Add(item.Total)
		items = append(items, item)
	}

	next := st
	next.OrderSeq++
	order.OrderNumber = xid.PurchaseOrder(next.OrderSeq)
	order.Items = items
	order.Total = total
	order.Status = domain.PurchaseOrderPending
	next.PurchaseOrders = append([]domain.PurchaseOrder{order}, st.PurchaseOrders...)
	return next, nil
}

// receivePurchaseOrder books the ordered quantities into stock and adds the
// order total to what is owed to the supplier.
func receivePurchaseOrder(st State, cmd ReceivePurchaseOrder) (State, []Event, error) {
	idx := st.purchaseOrderIndex(cmd.OrderID)
	if idx < 0 {
		return st, nil, notFound("purchase order", cmd.OrderID)
	}
	order := st.PurchaseOrders[idx]
	if order.Status != domain.PurchaseOrderPending {
		return st, nil, fmt.Errorf("%w: purchase order %s is %s", domain.ErrInvalidInput, order.OrderNumber, order.Status)
	}

	next := st
	next.Products = slices.Clone(st.Products)
	for _, item := range order.Items {
		pi := next.productIndex(item.ProductID)
		if pi < 0 {
			return st, nil, notFound("product", item.ProductID)
		}
		next.Products[pi].Stock = next.Products[pi].Stock.Add(item.Quantity)
	}
	if si := st.supplierIndex(order.SupplierID); si >= 0 {
		next.Suppliers = slices.Clone(st.Suppliers)
		next.Suppliers[si].Balance = next.Suppliers[si].Balance.Add(order.Total)
	}

	received := cmd.At
	order.Status = domain.PurchaseOrderReceived
	order.ReceivedDate = &received
	next.PurchaseOrders = slices.Clone(st.PurchaseOrders)
	next.PurchaseOrders[idx] = order

	return next, []Event{PurchaseOrderReceived{Order: order}}, nil
}

func cancelPurchaseOrder(st State, cmd CancelPurchaseOrder) (State, error) {
	idx := st.purchaseOrderIndex(cmd.OrderID)
	if idx < 0 {
		return st, notFound("purchase order", cmd.OrderID)
	}
	order := st.PurchaseOrders[idx]
	if order.Status != domain.PurchaseOrderPending {
		return st, fmt.Errorf("%w: purchase order %s is %s", domain.ErrInvalidInput, order.OrderNumber, order.Status)
	}
	order.Status = domain.PurchaseOrderCancelled
	next := st
	next.PurchaseOrders = slices.Clone(st.PurchaseOrders)
	next.PurchaseOrders[idx] = order
	return next, nil
}
