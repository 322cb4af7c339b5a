package pricing

// Item is a product id and quantity, the unit both carts are merged on.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// MergeItems merges incoming into base by product id, summing quantities.
// Order follows first appearance (base first). Items without a product id
// or with a non-positive quantity are ignored, so a merge never shrinks a
// line.
func MergeItems(base, incoming []Item) []Item {
	qty := make(map[string]int, len(base)+len(incoming))
	order := make([]string, 0, len(base)+len(incoming))

	for _, list := range [][]Item{base, incoming} {
		for _, it := range list {
			if it.ProductID == "" || it.Quantity <= 0 {
				continue
			}
			if _, seen := qty[it.ProductID]; !seen {
				order = append(order, it.ProductID)
			}
			qty[it.ProductID] += it.Quantity
		}
	}

	merged := make([]Item, 0, len(order))
	for _, id := range order {
		merged = append(merged, Item{ProductID: id, Quantity: qty[id]})
	}
	return merged
}
