package paging

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, 10},
		{-3, -1, 1, 10},
		{2, 5, 2, 5},
		{1, 1000, 1, MaxLimit},
		{math.MaxInt64 / 10, 100, MaxPage, 100},
	}
	for _, tc := range cases {
		page, limit := Normalize(tc.page, tc.limit)
		if page != tc.wantPage || limit != tc.wantLimit {
			t.Fatalf("Normalize(%d,%d) = (%d,%d), want (%d,%d)", tc.page, tc.limit, page, limit, tc.wantPage, tc.wantLimit)
		}
	}
}

func TestNewMeta(t *testing.T) {
	if m := NewMeta(1, 10, 0); m.Pages != 0 || m.HasNext() || m.HasPrev() {
		t.Fatalf("unexpected empty meta %+v", m)
	}
	m := NewMeta(2, 10, 21)
	if m.Pages != 3 {
		t.Fatalf("expected 3 pages, got %d", m.Pages)
	}
	if !m.HasNext() || !m.HasPrev() {
		t.Fatalf("expected both neighbours for %+v", m)
	}
	if NewMeta(3, 10, 21).HasNext() {
		t.Fatal("last page must not report next")
	}
	if Offset(3, 10) != 20 {
		t.Fatalf("unexpected offset %d", Offset(3, 10))
	}
}

func TestOffset_HugePageStaysPositive(t *testing.T) {
	page, limit := Normalize(math.MaxInt, MaxLimit)
	if off := Offset(page, limit); off <= 0 {
		t.Fatalf("offset overflowed: %d", off)
	}
}
