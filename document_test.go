package searchsync

import (
	"reflect"
	"testing"
	"time"
)

type priceTag struct {
	cents int
}

func (p priceTag) EncodeSearchValue() interface{} {
	return float64(p.cents) / 100
}

func TestEncodeValue(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	post := newPost("7", "hello")

	cases := []struct {
		name  string
		in    interface{}
		want  interface{}
	}{
		{"nil", nil, nil},
		{"string", "hello", "hello"},
		{"bool", true, true},
		{"int", 42, 42},
		{"time", when, "2024-03-01T12:30:00Z"},
		{"geo point", GeoPoint{Lat: 52.1, Lon: 4.3}, "52.1,4.3"},
		{"identifier", post.Identifier(), "blog.post.7"},
		{"entity", post, "blog.post.7"},
		{"encodable", priceTag{cents: 250}, 2.5},
		{"entity slice", []Entity{post}, []interface{}{"blog.post.7"}},
		{"mixed slice", []interface{}{"a", when}, []interface{}{"a", "2024-03-01T12:30:00Z"}},
	}

	for _, tc := range cases {
		got, err := EncodeValue(tc.in)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: expected %#v, got %#v", tc.name, tc.want, got)
		}
	}
}

func TestEncodeValueRejectsUnknownTypes(t *testing.T) {
	if _, err := EncodeValue(struct{ X int }{X: 1}); err == nil {
		t.Error("expected an error for an unencodable struct")
	}
	if _, err := EncodeValue(make(chan int)); err == nil {
		t.Error("expected an error for a channel")
	}
}

func TestEncodeValuePropagatesNestedErrors(t *testing.T) {
	if _, err := EncodeValue([]interface{}{"ok", make(chan int)}); err == nil {
		t.Error("expected nested encoding error to propagate")
	}
}

func TestGeoPointRoundTrip(t *testing.T) {
	p := GeoPoint{Lat: -33.86, Lon: 151.21}
	parsed, err := ParseGeoPoint(p.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != p {
		t.Errorf("round trip mismatch: %+v != %+v", parsed, p)
	}
}
