package chatgraph

import (
	"strconv"
	"strings"
)

// ImportPrefix returns "{prefix}-{n}-" for the smallest n >= 0 such that no
// existing item name starts with it. A whole import batch is named under one
// such prefix, so batches never collide with earlier imports of any format.
func ImportPrefix(existing []Item, prefix string) string {
	for n := 0; ; n++ {
		p := prefix + "-" + strconv.Itoa(n) + "-"
		taken := false
		for _, it := range existing {
			if strings.HasPrefix(it.Name, p) {
				taken = true
				break
			}
		}
		if !taken {
			return p
		}
	}
}

// NameBatch names items in place as "{prefix}-{n}-{i}" under a fresh prefix.
func NameBatch(existing []Item, prefix string, items []Item) {
	p := ImportPrefix(existing, prefix)
	for i := range items {
		items[i].Name = p + strconv.Itoa(i)
	}
}
