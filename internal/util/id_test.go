package util

import "testing"

func TestNewIDShape(t *testing.T) {
	id := NewID()
	if len(id) != 24 {
		t.Fatalf("expected 24 chars, got %d", len(id))
	}
	if !IsValidID(id) {
		t.Fatalf("generated id %q does not validate", id)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"507f1f77bcf86cd799439011", true},
		{"abcdef123456", true},
		{"", false},
		{"short", false},
		{"507F1F77BCF86CD799439011", false},
		{"507f1f77bcf86cd79943901z", false},
		{"../../../etc/passwd00000", false},
		{"507f1f77bcf86cd799439011507f1f77bcf86cd799439011507f1f77bcf86cd799439011", false},
	}
	for _, tt := range tests {
		if got := IsValidID(tt.id); got != tt.want {
			t.Errorf("IsValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
