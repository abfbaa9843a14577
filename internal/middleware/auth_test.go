package middleware

import (
	"context"
	"testing"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"abc.def.ghi", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}

func TestWithUser(t *testing.T) {
	ctx := context.Background()
	if GetUserID(ctx) != "" || GetEmail(ctx) != "" {
		t.Fatal("Expected empty identity on a bare context")
	}

	ctx = WithUser(ctx, "user-1", "alice@example.com")
	if got := GetUserID(ctx); got != "user-1" {
		t.Errorf("GetUserID = %q, want user-1", got)
	}
	if got := GetEmail(ctx); got != "alice@example.com" {
		t.Errorf("GetEmail = %q, want alice@example.com", got)
	}
}
