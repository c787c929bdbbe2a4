package state

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"veggiemarket/backend/internal/domain"
)

func addProduct(st State, cmd AddProduct) (State, error) {
	if err := checkProduct(cmd.Product); err != nil {
		return st, err
	}
	if st.productIndex(cmd.Product.ID) >= 0 {
		return st, fmt.Errorf("%w: product %q", domain.ErrDuplicate, cmd.Product.ID)
	}
	next := st
	next.Products = append(slices.Clone(st.Products), cmd.Product)
	return next, nil
}

func updateProduct(st State, cmd UpdateProduct) (State, error) {
	idx := st.productIndex(cmd.ProductID)
	if idx < 0 {
		return st, notFound("product", cmd.ProductID)
	}
	p := st.Products[idx]
	patch := cmd.Patch
	setString(&p.Name, patch.Name)
	setString(&p.Category, patch.Category)
	setString(&p.Barcode, patch.Barcode)
	setString(&p.Supplier, patch.Supplier)
	setString(&p.ExternalID, patch.ExternalID)
	setDecimal(&p.Price, patch.Price)
	setDecimal(&p.Stock, patch.Stock)
	setDecimal(&p.MinStock, patch.MinStock)
	if patch.Unit != nil {
		p.Unit = *patch.Unit
	}
	if err := checkProduct(p); err != nil {
		return st, err
	}

	next := st
	next.Products = slices.Clone(st.Products)
	next.Products[idx] = p
	return next, nil
}

// deleteProduct leaves open cart lines alone; committing them reports a stock conflict.
func deleteProduct(st State, cmd DeleteProduct) (State, error) {
	idx := st.productIndex(cmd.ProductID)
	if idx < 0 {
		return st, notFound("product", cmd.ProductID)
	}
	next := st
	next.Products = slices.Delete(slices.Clone(st.Products), idx, idx+1)
	return next, nil
}

func checkProduct(p domain.Product) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: product id required", domain.ErrInvalidInput)
	case p.Name == "":
		return fmt.Errorf("%w: product name required", domain.ErrInvalidInput)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: product price must not be negative", domain.ErrInvalidInput)
	case p.Stock.IsNegative():
		return fmt.Errorf("%w: product stock must not be negative", domain.ErrInvalidInput)
	case !p.Unit.Valid():
		return fmt.Errorf("%w: unknown unit %q", domain.ErrInvalidInput, p.Unit)
	}
	return nil
}

func addCustomer(st State, cmd AddCustomer) (State, error) {
	if cmd.Customer.ID == "" || cmd.Customer.Name == "" {
		return st, fmt.Errorf("%w: customer id and name required", domain.ErrInvalidInput)
	}
	if st.customerIndex(cmd.Customer.ID) >= 0 {
		return st, fmt.Errorf("%w: customer %q", domain.ErrDuplicate, cmd.Customer.ID)
	}
	next := st
	next.Customers = append(slices.Clone(st.Customers), cmd.Customer)
	return next, nil
}

func updateCustomer(st State, cmd UpdateCustomer) (State, error) {
	idx := st.customerIndex(cmd.CustomerID)
	if idx < 0 {
		return st, notFound("customer", cmd.CustomerID)
	}
	c := st.Customers[idx]
	patch := cmd.Patch
	setString(&c.Name, patch.Name)
	setString(&c.Phone, patch.Phone)
	setString(&c.Email, patch.Email)
	setString(&c.Address, patch.Address)
	setString(&c.ExternalID, patch.ExternalID)
	setDecimal(&c.CreditLimit, patch.CreditLimit)
	setDecimal(&c.Balance, patch.Balance)
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if c.Name == "" {
		return st, fmt.Errorf("%w: customer name required", domain.ErrInvalidInput)
	}

	next := st
	next.Customers = slices.Clone(st.Customers)
	next.Customers[idx] = c
	return next, nil
}

func deleteCustomer(st State, cmd DeleteCustomer) (State, error) {
	idx := st.customerIndex(cmd.CustomerID)
	if idx < 0 {
		return st, notFound("customer", cmd.CustomerID)
	}
	next := st
	next.Customers = slices.Delete(slices.Clone(st.Customers), idx, idx+1)
	next.Tabs = slices.Clone(st.Tabs)
	for i := range next.Tabs {
		if next.Tabs[i].CustomerID == cmd.CustomerID {
			next.Tabs[i].CustomerID = ""
		}
	}
	return next, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setDecimal(dst *decimal.Decimal, src *decimal.Decimal) {
	if src != nil {
		*dst = *src
	}
}
