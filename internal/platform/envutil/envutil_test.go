package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", 7 * time.Second},
		{"12", 12 * time.Second},
		{"1m30s", 90 * time.Second},
		{"garbage", 7 * time.Second},
	}
	for _, tc := range cases {
		t.Setenv("ENVUTIL_TEST_DURATION", tc.raw)
		if got := Duration("ENVUTIL_TEST_DURATION", 7*time.Second); got != tc.want {
			t.Fatalf("Duration(%q)=%s want %s", tc.raw, got, tc.want)
		}
	}
}

func TestBool(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "yes")
	if !Bool("ENVUTIL_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("ENVUTIL_TEST_BOOL", "off")
	if Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("ENVUTIL_TEST_BOOL", "maybe")
	if !Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("expected default for unparseable value")
	}
}
