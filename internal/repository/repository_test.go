package repository

import (
	"math"
	"testing"
)

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"zero values", Page{}, Page{Page: DefaultPage, Limit: DefaultLimit}},
		{"negative", Page{Page: -3, Limit: -1}, Page{Page: DefaultPage, Limit: DefaultLimit}},
		{"limit capped", Page{Page: 2, Limit: 500}, Page{Page: 2, Limit: MaxLimit}},
		{"huge page clamped", Page{Page: math.MaxInt, Limit: 10}, Page{Page: MaxPage, Limit: 10}},
		{"in range", Page{Page: 3, Limit: 20}, Page{Page: 3, Limit: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPage_OffsetDoesNotOverflow(t *testing.T) {
	p := Page{Page: math.MaxInt, Limit: MaxLimit}.Normalize()

	if off := p.Offset(); off < 0 {
		t.Fatalf("Offset() = %d, want non-negative", off)
	}
	if off := (Page{Page: 3, Limit: 10}).Offset(); off != 20 {
		t.Errorf("Offset() = %d, want 20", off)
	}
}

func TestPage_TotalPages(t *testing.T) {
	p := Page{Page: 1, Limit: 10}
	for total, want := range map[int]int{0: 0, 1: 1, 10: 1, 11: 2} {
		if got := p.TotalPages(total); got != want {
			t.Errorf("TotalPages(%d) = %d, want %d", total, got, want)
		}
	}
}
