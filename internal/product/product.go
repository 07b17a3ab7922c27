package product

import "github.com/shopspring/decimal"

// Product is a catalog entry of a store together with its stock counter.
type Product struct {
	ID        int64            `json:"productId"`
	StoreID   int64            `json:"storeId"`
	Name      string           `json:"productName"`
	SKU       string           `json:"sku"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"salePrice,omitempty"`
	Stock     int              `json:"stock"`
	Active    bool             `json:"active"`
}

// UnitPrice is the price charged per unit: the sale price when one is set
// below the list price, the list price otherwise.
func (p Product) UnitPrice() decimal.Decimal {
	if p.SalePrice != nil && !p.SalePrice.IsNegative() && p.SalePrice.LessThan(p.Price) {
		return *p.SalePrice
	}
	return p.Price
}
