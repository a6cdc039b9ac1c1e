package searchsync

import (
	"errors"
	"testing"
)

func TestIdentifierRoundTrip(t *testing.T) {
	id := NewIdentifier("blog", "post", "42")

	s := id.String()
	if s != "blog.post.42" {
		t.Fatalf("expected blog.post.42, got %s", s)
	}

	parsed, err := ParseIdentifier(s)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip mismatch: %+v != %+v", parsed, id)
	}
}

func TestParseIdentifierRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"blog",
		"blog.post",
		"blog.post.1.extra",
		"blog..1",
		".post.1",
		"blog.post.",
	}
	for _, input := range cases {
		if _, err := ParseIdentifier(input); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("ParseIdentifier(%q): expected ErrInvalidIdentifier, got %v", input, err)
		}
	}
}

func TestIdentifierValidate(t *testing.T) {
	if err := NewIdentifier("blog", "post", "42").Validate(); err != nil {
		t.Errorf("valid identifier rejected: %v", err)
	}

	if err := NewIdentifier("blog", "post", "4.2").Validate(); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("separator in pk should be invalid, got %v", err)
	}

	if err := NewIdentifier("blog", "", "42").Validate(); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("empty name should be invalid, got %v", err)
	}
}

func TestIdentifierType(t *testing.T) {
	id := NewIdentifier("blog", "post", "42")
	if id.Type() != postType {
		t.Errorf("expected %v, got %v", postType, id.Type())
	}
	if id.Type().TypeKey() != "blog.post" {
		t.Errorf("expected blog.post, got %s", id.Type().TypeKey())
	}
}
