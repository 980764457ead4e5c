package frame

import (
	"errors"
	"testing"

	"github.com/ssargent/primefusion/pkg/fusion"
)

func TestSplitFixed(t *testing.T) {
	tr := mustTrailer(t, nil, []byte("PAY"))
	raw := append([]byte("PAY"), tr[:]...)

	body, trailer, err := SplitFixed(raw)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if string(body) != "PAY" {
		t.Fatalf("body mismatch: %q", body)
	}
	if _, err := fusion.Decode(trailer, testKey, body); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, _, err := SplitFixed([]byte("short")); !errors.Is(err, ErrMissingTrailer) {
		t.Fatalf("expected ErrMissingTrailer, got %v", err)
	}
}

func TestScanTrailerPadded(t *testing.T) {
	tr := mustTrailer(t, nil, []byte("PAY"))
	raw := append([]byte("PAY"), tr[:]...)
	raw = append(raw, 0x00, 0x00)

	body, trailer, err := ScanTrailer(raw)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := fusion.Decode(trailer, testKey, body); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestScanTrailerNoMagic(t *testing.T) {
	if _, _, err := ScanTrailer([]byte("no trailer in here")); !errors.Is(err, ErrMissingTrailer) {
		t.Fatalf("expected ErrMissingTrailer, got %v", err)
	}
}
