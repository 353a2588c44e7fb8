package storage

import (
	"strings"
	"testing"
)

func stringPtr(s string) *string { return &s }

func TestBuildSearchQueryEmptyFilter(t *testing.T) {
	query, args := buildSearchQuery(UserFilter{})
	if query != "SELECT id, name, email, address, image_hosted_link FROM user_info ORDER BY id" {
		t.Fatalf("unexpected query %q", query)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestBuildSearchQuerySingleField(t *testing.T) {
	query, args := buildSearchQuery(UserFilter{Email: stringPtr("a@b.c")})
	if query != "SELECT id, name, email, address, image_hosted_link FROM user_info WHERE email = $1 ORDER BY id" {
		t.Fatalf("unexpected query %q", query)
	}
	if len(args) != 1 || args[0] != "a@b.c" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestBuildSearchQueryConjunction(t *testing.T) {
	query, args := buildSearchQuery(UserFilter{
		Name:    stringPtr("n"),
		Email:   stringPtr("e@d.c"),
		Address: stringPtr("a"),
	})
	expected := "SELECT id, name, email, address, image_hosted_link FROM user_info " +
		"WHERE name = $1 AND email = $2 AND address = $3 ORDER BY id"
	if query != expected {
		t.Fatalf("unexpected query %q", query)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
}

// The filter values must only ever travel as bind parameters; a quote in the
// search term must not reach the statement text.
func TestBuildSearchQueryDoesNotInterpolateValues(t *testing.T) {
	hostile := "x' OR '1'='1"
	query, args := buildSearchQuery(UserFilter{Name: &hostile})
	if len(args) != 1 || args[0] != hostile {
		t.Fatalf("unexpected args %v", args)
	}
	if strings.Contains(query, hostile) {
		t.Fatalf("query %q leaked the filter value", query)
	}
}
