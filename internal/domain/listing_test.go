package domain

import (
	"testing"
	"time"
)

func listingIDs(listings []*Listing) []string {
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	return ids
}

func TestNewListingTrims(t *testing.T) {
	l := NewListing("id-1", "author-1", "  Plumbing  ", "\tFix leaks \n")

	if l.Name != "Plumbing" {
		t.Errorf("NewListing() Name = %q, want %q", l.Name, "Plumbing")
	}
	if l.Description != "Fix leaks" {
		t.Errorf("NewListing() Description = %q, want %q", l.Description, "Fix leaks")
	}
	if !l.CreatedAt.IsZero() {
		t.Errorf("NewListing() CreatedAt = %v, want zero", l.CreatedAt)
	}
}

func TestDated(t *testing.T) {
	dated := &Listing{ID: "a", CreatedAt: time.Now()}
	undated := &Listing{ID: "b"}

	if !dated.Dated() {
		t.Error("Dated() = false for listing with timestamp, want true")
	}
	if undated.Dated() {
		t.Error("Dated() = true for listing without timestamp, want false")
	}
}

func TestSortByCreationNewestFirst(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	listings := []*Listing{
		{ID: "plumbing", Name: "Plumbing", CreatedAt: base},
		{ID: "electrical", Name: "Electrical", CreatedAt: base.Add(time.Minute)},
		{ID: "painting", Name: "Painting", CreatedAt: base.Add(2 * time.Minute)},
	}

	SortByCreation(listings)

	got := listingIDs(listings)
	want := []string{"painting", "electrical", "plumbing"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortByCreation() order = %v, want %v", got, want)
		}
	}
}

func TestSortByCreationUndatedLast(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		listings []*Listing
		want     []string
	}{
		{
			name: "undated inserted first",
			listings: []*Listing{
				{ID: "pending"},
				{ID: "old", CreatedAt: base},
				{ID: "new", CreatedAt: base.Add(time.Hour)},
			},
			want: []string{"new", "old", "pending"},
		},
		{
			name: "undated inserted last",
			listings: []*Listing{
				{ID: "old", CreatedAt: base},
				{ID: "new", CreatedAt: base.Add(time.Hour)},
				{ID: "pending"},
			},
			want: []string{"new", "old", "pending"},
		},
		{
			name: "undated inserted between",
			listings: []*Listing{
				{ID: "old", CreatedAt: base},
				{ID: "pending"},
				{ID: "new", CreatedAt: base.Add(time.Hour)},
			},
			want: []string{"new", "old", "pending"},
		},
		{
			name: "multiple undated keep deterministic order",
			listings: []*Listing{
				{ID: "pending-b"},
				{ID: "dated", CreatedAt: base},
				{ID: "pending-a"},
			},
			want: []string{"dated", "pending-b", "pending-a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortByCreation(tt.listings)
			got := listingIDs(tt.listings)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("SortByCreation() order = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSortByCreationTieBreak(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	listings := []*Listing{
		{ID: "bravo", CreatedAt: ts},
		{ID: "alpha", CreatedAt: ts},
	}

	SortByCreation(listings)

	got := listingIDs(listings)
	want := []string{"bravo", "alpha"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortByCreation() tie order = %v, want %v", got, want)
		}
	}
}
