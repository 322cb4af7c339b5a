package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeItemsSumsByProduct(t *testing.T) {
	user := []Item{{ProductID: "apple", Quantity: 2}, {ProductID: "kale", Quantity: 1}}
	guest := []Item{{ProductID: "kale", Quantity: 3}, {ProductID: "oats", Quantity: 1}}

	assert.Equal(t, []Item{
		{ProductID: "apple", Quantity: 2},
		{ProductID: "kale", Quantity: 4},
		{ProductID: "oats", Quantity: 1},
	}, MergeItems(user, guest))
}

func TestMergeItemsCollapsesDuplicatesAndDropsEmpty(t *testing.T) {
	merged := MergeItems(
		[]Item{{ProductID: "milk", Quantity: 1}, {ProductID: "milk", Quantity: 1}, {ProductID: "", Quantity: 5}},
		[]Item{{ProductID: "eggs", Quantity: 0}},
	)
	assert.Equal(t, []Item{{ProductID: "milk", Quantity: 2}}, merged)
}

func TestMergeItemsEmpty(t *testing.T) {
	assert.Empty(t, MergeItems(nil, nil))
}

func TestMergeItemsIgnoresNegativeQuantities(t *testing.T) {
	merged := MergeItems(
		[]Item{{ProductID: "kale", Quantity: 3}, {ProductID: "oats", Quantity: 1}},
		[]Item{{ProductID: "kale", Quantity: -2}, {ProductID: "oats", Quantity: -5}, {ProductID: "plums", Quantity: -1}},
	)
	assert.Equal(t, []Item{{ProductID: "kale", Quantity: 3}, {ProductID: "oats", Quantity: 1}}, merged)
}
