// Copyright 2026 momentics@gmail.com
// License: Apache 2.0

package api

import "testing"

func TestHandlePacking(t *testing.T) {
	h := NewHandle(7, 3)
	if h.Index() != 7 || h.Generation() != 3 {
		t.Fatalf("round trip: index=%d gen=%d", h.Index(), h.Generation())
	}
	if h.IsZero() {
		t.Fatal("packed handle reported zero")
	}
	if !NewHandle(0, 0).IsZero() {
		t.Fatal("zero handle not reported zero")
	}

	// Extremes must not bleed between the two halves.
	h = NewHandle(0xFFFFFFFF, 0)
	if h.Index() != 0xFFFFFFFF || h.Generation() != 0 {
		t.Fatalf("index saturation leaked: %s", h)
	}
	h = NewHandle(0, 0xFFFFFFFF)
	if h.Index() != 0 || h.Generation() != 0xFFFFFFFF {
		t.Fatalf("generation saturation leaked: %s", h)
	}
}

func TestInterestString(t *testing.T) {
	cases := map[Interest]string{
		0:                                                   "none",
		InterestReadable:                                    "r",
		InterestReadable | InterestWritable:                 "rw",
		InterestReadable | InterestWritable | InterestError: "rwe",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Errorf("Interest(%d).String() = %q, want %q", in, got, want)
		}
	}
}

func TestInterestHas(t *testing.T) {
	i := InterestReadable | InterestError
	if !i.Has(InterestReadable) || !i.Has(InterestError) || i.Has(InterestWritable) {
		t.Fatalf("Has misreported on %s", i)
	}
}
