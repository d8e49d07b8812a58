package facet

import "sort"

// SortValues orders facet values in place according to order.
// RangeDefinitionOrder is a no-op: values are already in declaration order.
func SortValues(values []Value, order Order) {
	switch order {
	case CountAsc:
		sort.SliceStable(values, func(i, j int) bool { return values[i].Count < values[j].Count })
	case CountDesc:
		sort.SliceStable(values, func(i, j int) bool { return values[i].Count > values[j].Count })
	case ValueAsc:
		sort.SliceStable(values, func(i, j int) bool { return values[i].Label < values[j].Label })
	case ValueDesc:
		sort.SliceStable(values, func(i, j int) bool { return values[i].Label > values[j].Label })
	case RangeDefinitionOrder:
	}
}
