package state

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"veggiemarket/backend/internal/domain"
)

func createTab(st State, cmd CreateTab) (State, error) {
	if cmd.TabID == "" {
		return st, fmt.Errorf("%w: tab id required", domain.ErrInvalidInput)
	}
	if st.tabIndex(cmd.TabID) >= 0 {
		return st, fmt.Errorf("%w: tab %q", domain.ErrDuplicate, cmd.TabID)
	}

	next := st
	next.TabSeq++
	next.Tabs = append(slices.Clone(st.Tabs), domain.Tab{
		ID:   cmd.TabID,
		Name: fmt.Sprintf("Bill %d", next.TabSeq),
	})
	next.ActiveTabID = cmd.TabID
	return next, nil
}

// closeTab ignores unknown ids. The register always keeps one open tab.
func closeTab(st State, cmd CloseTab) (State, error) {
	idx := st.tabIndex(cmd.TabID)
	if idx < 0 || len(st.Tabs) == 1 {
		return st, nil
	}

	next := st
	next.Tabs = slices.Delete(slices.Clone(st.Tabs), idx, idx+1)
	if st.ActiveTabID == cmd.TabID {
		next.ActiveTabID = next.Tabs[0].ID
	}
	return next, nil
}

func setActiveTab(st State, cmd SetActiveTab) (State, error) {
	next := st
	if st.tabIndex(cmd.TabID) >= 0 {
		next.ActiveTabID = cmd.TabID
	} else if len(st.Tabs) > 0 {
		next.ActiveTabID = st.Tabs[0].ID
	}
	return next, nil
}

func addLine(st State, cmd AddLine, policy Policy) (State, error) {
	idx := st.tabIndex(cmd.TabID)
	if idx < 0 {
		return st, notFound("tab", cmd.TabID)
	}
	product, ok := st.Product(cmd.ProductID)
	if !ok {
		return st, notFound("product", cmd.ProductID)
	}
	if err := checkQuantity(product, cmd.Quantity); err != nil {
		return st, err
	}
	if product.Stock.LessThan(cmd.Quantity) {
		return st, fmt.Errorf("%w: %s has %s %s available", domain.ErrInsufficientStock, product.Name, product.Stock, product.Unit)
	}

	price := product.Price
	if cmd.PriceOverride != nil {
		if cmd.PriceOverride.IsNegative() {
			return st, fmt.Errorf("%w: price override must not be negative", domain.ErrInvalidInput)
		}
		price = *cmd.PriceOverride
	}

	tab := st.Tabs[idx]
	lines := slices.Clone(tab.Lines)
	if i := lineIndex(lines, product.ID); i >= 0 {
		existing := lines[i]
		unitPrice := existing.UnitPrice
		if cmd.PriceOverride != nil && !cmd.PriceOverride.Equal(existing.UnitPrice) {
			switch policy.PriceOverride {
			case RejectPriceConflict:
				return st, fmt.Errorf("%w: %s is already on the bill at %s", domain.ErrPriceConflict, product.Name, existing.UnitPrice)
			case OverwritePrice:
				unitPrice = *cmd.PriceOverride
			}
		}
		lines[i] = domain.NewCartLine(existing.Product, existing.Quantity.Add(cmd.Quantity), unitPrice)
	} else {
		lines = append(lines, domain.NewCartLine(product, cmd.Quantity, price))
	}

	tab.Lines = lines
	return withTab(st, idx, tab), nil
}

func setLineQuantity(st State, cmd SetLineQuantity) (State, error) {
	if !cmd.Quantity.IsPositive() {
		return removeLine(st, RemoveLine{TabID: cmd.TabID, ProductID: cmd.ProductID})
	}

	idx := st.tabIndex(cmd.TabID)
	if idx < 0 {
		return st, notFound("tab", cmd.TabID)
	}
	tab := st.Tabs[idx]
	i := lineIndex(tab.Lines, cmd.ProductID)
	if i < 0 {
		return st, notFound("cart line", cmd.ProductID)
	}
	line := tab.Lines[i]
	if err := checkQuantity(line.Product, cmd.Quantity); err != nil {
		return st, err
	}

	tab.Lines = slices.Clone(tab.Lines)
	tab.Lines[i] = domain.NewCartLine(line.Product, cmd.Quantity, line.UnitPrice)
	return withTab(st, idx, tab), nil
}

func removeLine(st State, cmd RemoveLine) (State, error) {
	idx := st.tabIndex(cmd.TabID)
	if idx < 0 {
		return st, notFound("tab", cmd.TabID)
	}
	tab := st.Tabs[idx]
	i := lineIndex(tab.Lines, cmd.ProductID)
	if i < 0 {
		return st, notFound("cart line", cmd.ProductID)
	}

	tab.Lines = slices.Delete(slices.Clone(tab.Lines), i, i+1)
	return withTab(st, idx, tab), nil
}

func clearTab(st State, cmd ClearTab) (State, error) {
	idx := st.tabIndex(cmd.TabID)
	if idx < 0 {
		return st, notFound("tab", cmd.TabID)
	}
	tab := st.Tabs[idx]
	tab.Lines = nil
	tab.CustomerID = ""
	return withTab(st, idx, tab), nil
}

func bindCustomer(st State, cmd BindCustomer) (State, error) {
	idx := st.tabIndex(cmd.TabID)
	if idx < 0 {
		return st, notFound("tab", cmd.TabID)
	}
	if cmd.CustomerID != "" {
		if _, ok := st.Customer(cmd.CustomerID); !ok {
			return st, notFound("customer", cmd.CustomerID)
		}
	}
	tab := st.Tabs[idx]
	tab.CustomerID = cmd.CustomerID
	return withTab(st, idx, tab), nil
}

// withTab stores tab at idx in a copy of st, recomputing its total.
func withTab(st State, idx int, tab domain.Tab) State {
	tab.Total = domain.LinesTotal(tab.Lines)
	next := st
	next.Tabs = slices.Clone(st.Tabs)
	next.Tabs[idx] = tab
	return next
}

func lineIndex(lines []domain.CartLine, productID string) int {
	return slices.IndexFunc(lines, func(l domain.CartLine) bool { return l.Product.ID == productID })
}

func checkQuantity(product domain.Product, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be greater than zero", domain.ErrInvalidInput)
	}
	if !product.Unit.Fractional() && !quantity.IsInteger() {
		return fmt.Errorf("%w: %s is sold per %s and needs a whole quantity", domain.ErrInvalidInput, product.Name, product.Unit)
	}
	return nil
}
