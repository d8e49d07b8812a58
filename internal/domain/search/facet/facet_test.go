package facet

import (
	"reflect"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestNewDiscrete_Validation(t *testing.T) {
	tests := []struct {
		name    string
		reqName string
		field   string
		order   Order
		wantErr bool
	}{
		{"valid", "genre", "genre", CountDesc, false},
		{"missing name", "", "genre", CountDesc, true},
		{"missing field", "genre", "", CountDesc, true},
		{"range order on discrete", "genre", "genre", RangeDefinitionOrder, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDiscrete(tc.reqName, tc.field, tc.order, false, 0)
			if (err != nil) != tc.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewRanges_DuplicateID(t *testing.T) {
	r1, err := NewRange("cheap", "", nil, f64(10), false, false)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := NewRange("cheap", "", f64(10), nil, true, false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewRanges("price", "price", RangeDefinitionOrder, false, []Range{r1, r2}); err == nil {
		t.Fatal("expected error for duplicate range ids")
	}
}

func TestNewRanges_RequiresRanges(t *testing.T) {
	if _, err := NewRanges("price", "price", CountDesc, false, nil); err == nil {
		t.Fatal("expected error for empty range list")
	}
}

func TestNewRange_RequiresBound(t *testing.T) {
	if _, err := NewRange("open", "", nil, nil, false, false); err == nil {
		t.Fatal("expected error for unbounded range")
	}
}

func TestNewRange_DefaultLabel(t *testing.T) {
	tests := []struct {
		name     string
		min, max *float64
		incMin   bool
		incMax   bool
		want     string
	}{
		{"closed low open high", f64(0), f64(10), true, false, "[0, 10)"},
		{"open low closed high", f64(0), f64(10), false, true, "(0, 10]"},
		{"unbounded low", nil, f64(10), false, false, "(*, 10)"},
		{"unbounded high", f64(10), nil, true, false, "[10, *)"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRange("r", "", tc.min, tc.max, tc.incMin, tc.incMax)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Label() != tc.want {
				t.Errorf("label = %q, want %q", r.Label(), tc.want)
			}
		})
	}
}

func TestNewRange_ExplicitLabelKept(t *testing.T) {
	r, err := NewRange("cheap", "bargain", nil, f64(10), false, false)
	if err != nil {
		t.Fatal(err)
	}
	if r.Label() != "bargain" {
		t.Errorf("label = %q, want bargain", r.Label())
	}
}

func TestSortValues(t *testing.T) {
	base := []Value{
		{Label: "crime", Count: 3},
		{Label: "scifi", Count: 7},
		{Label: "drama", Count: 1},
	}

	tests := []struct {
		name  string
		order Order
		want  []Value
	}{
		{"count desc", CountDesc, []Value{{"scifi", 7}, {"crime", 3}, {"drama", 1}}},
		{"count asc", CountAsc, []Value{{"drama", 1}, {"crime", 3}, {"scifi", 7}}},
		{"value asc", ValueAsc, []Value{{"crime", 3}, {"drama", 1}, {"scifi", 7}}},
		{"value desc", ValueDesc, []Value{{"scifi", 7}, {"drama", 1}, {"crime", 3}}},
		{"definition order", RangeDefinitionOrder, []Value{{"crime", 3}, {"scifi", 7}, {"drama", 1}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			values := make([]Value, len(base))
			copy(values, base)
			SortValues(values, tc.order)
			if !reflect.DeepEqual(values, tc.want) {
				t.Errorf("got %v, want %v", values, tc.want)
			}
		})
	}
}

func TestSortValues_StableOnTies(t *testing.T) {
	values := []Value{
		{Label: "a", Count: 2},
		{Label: "b", Count: 2},
		{Label: "c", Count: 2},
	}
	SortValues(values, CountDesc)
	if values[0].Label != "a" || values[1].Label != "b" || values[2].Label != "c" {
		t.Errorf("tie order changed: %v", values)
	}
}
