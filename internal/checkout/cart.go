package checkout

import "sort"

// Item is one requested line before it is priced against the catalog.
type Item struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// Cart is the storefront cart shape: product -> color -> size -> quantity.
type Cart map[string]map[string]map[string]int

// Flatten turns the cart into items ordered by product, color and size.
// Zero quantities are dropped; negative ones are kept so validation rejects them.
func (c Cart) Flatten() []Item {
	var out []Item
	for _, product := range sortedKeys(c) {
		colors := c[product]
		for _, color := range sortedKeys(colors) {
			sizes := colors[color]
			for _, size := range sortedKeys(sizes) {
				if qty := sizes[size]; qty != 0 {
					out = append(out, Item{ProductID: product, Color: color, Size: size, Quantity: qty})
				}
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
