package cart

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrNotFound     = errors.New("cart item not found")
	ErrInvalidOwner = errors.New("cart owner requires a customer or a session")
)

// Owner identifies a cart: the customer's when signed in, the session's for
// guests.
type Owner struct {
	StoreID    int64
	CustomerID *int64
	SessionID  string
}

// Key is the stable storage key of the owner within a store.
func (o Owner) Key() (string, error) {
	if o.CustomerID != nil && *o.CustomerID > 0 {
		return "customer:" + strconv.FormatInt(*o.CustomerID, 10), nil
	}
	if o.SessionID != "" {
		return "session:" + o.SessionID, nil
	}
	return "", ErrInvalidOwner
}

// Item is one cart line. The same product with different variant selections
// forms separate lines.
type Item struct {
	ProductID int64             `json:"productID"`
	Quantity  int               `json:"quantity"`
	Variants  map[string]string `json:"variants,omitempty"`
}

// VariantKey canonicalises variant selections so equal selections compare
// equal regardless of map order.
func VariantKey(v map[string]string) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v[k])
	}
	return b.String()
}
