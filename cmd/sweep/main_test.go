package main

import "testing"

func TestParseRates(t *testing.T) {
	got, err := parseRates(" 0.01, 0.5 ,1,")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 3 || got[0] != 0.01 || got[2] != 1 {
		t.Fatalf("rates = %v", got)
	}
	for _, bad := range []string{"", "x", "1.5", "-0.1"} {
		if _, err := parseRates(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
