package services

import (
	"reflect"
	"testing"
)

func TestStringSlice(t *testing.T) {
	cases := []struct {
		in   any
		want []string
	}{
		{[]string{"vim", "curl"}, []string{"vim", "curl"}},
		{[]any{"vim", "curl"}, []string{"vim", "curl"}},
		{[]any{"vim", 42, "curl"}, []string{"vim", "curl"}},
		{"vim", nil},
		{nil, nil},
	}
	for _, c := range cases {
		if got := stringSlice(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("stringSlice(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestIntValue(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{7, 7},
		{float64(7), 7}, // JSON numbers decode as float64
		{"7", 0},
		{nil, 0},
	}
	for _, c := range cases {
		if got := intValue(c.in); got != c.want {
			t.Errorf("intValue(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestResultDetail(t *testing.T) {
	if got := resultDetail(map[string]any{"detail": "disk full"}); got != "disk full" {
		t.Errorf("resultDetail = %q", got)
	}
	if got := resultDetail(map[string]any{"detail": 42}); got != "" {
		t.Errorf("resultDetail non-string = %q", got)
	}
	if got := resultDetail(nil); got != "" {
		t.Errorf("resultDetail(nil) = %q", got)
	}
}
