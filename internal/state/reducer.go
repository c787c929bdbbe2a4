package state

import (
	"fmt"

	"veggiemarket/backend/internal/domain"
)

// Reduce applies cmd to st and returns the next state. It never modifies st,
// and on error the returned state is st itself.
func Reduce(st State, cmd Command, policy Policy) (State, []Event, error) {
	var (
		next   State
		events []Event
		err    error
	)

	switch c := cmd.(type) {
	case CreateTab:
		next, err = createTab(st, c)
	case CloseTab:
		next, err = closeTab(st, c)
	case SetActiveTab:
		next, err = setActiveTab(st, c)
	case AddLine:
		next, err = addLine(st, c, policy)
	case SetLineQuantity:
		next, err = setLineQuantity(st, c)
	case RemoveLine:
		next, err = removeLine(st, c)
	case ClearTab:
		next, err = clearTab(st, c)
	case BindCustomer:
		next, err = bindCustomer(st, c)
	case CommitSale:
		next, events, err = commitSale(st, c, policy)
	case AddProduct:
		next, err = addProduct(st, c)
	case UpdateProduct:
		next, err = updateProduct(st, c)
	case DeleteProduct:
		next, err = deleteProduct(st, c)
	case AddCustomer:
		next, err = addCustomer(st, c)
	case UpdateCustomer:
		next, err = updateCustomer(st, c)
	case DeleteCustomer:
		next, err = deleteCustomer(st, c)
	case AddSupplier:
		next, err = addSupplier(st, c)
	case UpdateSupplier:
		next, err = updateSupplier(st, c)
	case DeleteSupplier:
		next, err = deleteSupplier(st, c)
	case AddExpense:
		next, err = addExpense(st, c)
	case DeleteExpense:
		next, err = deleteExpense(st, c)
	case CreatePurchaseOrder:
		next, err = createPurchaseOrder(st, c)
	case ReceivePurchaseOrder:
		next, events, err = receivePurchaseOrder(st, c)
	case CancelPurchaseOrder:
		next, err = cancelPurchaseOrder(st, c)
	case LoadData:
		next = st
		next.applyDocument(c.Document)
	case nil:
		err = fmt.Errorf("%w: nil command", domain.ErrInvalidInput)
	default:
		err = fmt.Errorf("%w: unsupported command %s", domain.ErrInvalidInput, cmd.Name())
	}

	if err != nil {
		return st, nil, err
	}
	return next, events, nil
}

func notFound(kind string, id string) error {
	return fmt.Errorf("%w: %s %q", domain.ErrNotFound, kind, id)
}
