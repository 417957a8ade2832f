package model

import "testing"

func TestMatchingStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
		ok     bool
	}{
		{ItemStatusFound, ItemStatusLost, true},
		{ItemStatusLost, ItemStatusFound, true},
		{ItemStatusClaimed, "", false},
		{ItemStatusReturned, "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := MatchingStatus(tt.status)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MatchingStatus(%q) = %q, %v; want %q, %v", tt.status, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidCategory(t *testing.T) {
	if !ValidCategory(CategoryElectronics) {
		t.Error("electronics should be valid")
	}
	if ValidCategory("Electronics") {
		t.Error("categories are case sensitive")
	}
	if ValidCategory("spaceships") {
		t.Error("unknown category should be invalid")
	}
}
