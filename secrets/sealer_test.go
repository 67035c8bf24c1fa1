package secrets

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{7}, 32)
}

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := NewSealer(testKey())
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}

	envelope, err := s.Seal([]byte(`{"account_number":"001234567890"}`))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !strings.HasPrefix(envelope, "v1:") {
		t.Fatalf("expected v1 envelope, got %q", envelope)
	}
	if strings.Contains(envelope, "001234567890") {
		t.Fatalf("envelope leaks plaintext")
	}

	got, err := s.Open(envelope)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(got) != `{"account_number":"001234567890"}` {
		t.Fatalf("unexpected plaintext %q", got)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	s, _ := NewSealer(testKey())
	a, _ := s.Seal([]byte("same"))
	b, _ := s.Seal([]byte("same"))
	if a == b {
		t.Fatalf("expected distinct envelopes for the same plaintext")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s, _ := NewSealer(testKey())
	envelope, _ := s.Seal([]byte("secret"))

	last := envelope[len(envelope)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	tampered := envelope[:len(envelope)-1] + string(flipped)
	if _, err := s.Open(tampered); err == nil {
		t.Fatalf("expected tampered envelope to fail")
	}

	other, _ := NewSealer(bytes.Repeat([]byte{9}, 32))
	if _, err := other.Open(envelope); err == nil {
		t.Fatalf("expected open with another key to fail")
	}
}

func TestOpenMalformed(t *testing.T) {
	s, _ := NewSealer(testKey())
	for _, envelope := range []string{"", "v2:abcd", "v1:zz", "v1:00"} {
		if _, err := s.Open(envelope); !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("envelope %q: expected ErrMalformedEnvelope, got %v", envelope, err)
		}
	}
}

func TestNewSealerKeyLength(t *testing.T) {
	if _, err := NewSealer([]byte("short")); !errors.Is(err, ErrKeyLength) {
		t.Fatalf("expected ErrKeyLength, got %v", err)
	}
}
