package storage

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef-sealed"

func newTestSealed(t *testing.T, inner Storage) (*Sealed, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s, err := NewSealed(inner, testSecret, logger)
	if err != nil {
		t.Fatalf("NewSealed error: %v", err)
	}
	return s, &buf
}

func TestSealed_Contract(t *testing.T) {
	s, _ := newTestSealed(t, NewMemoryStorage())
	testStorageContract(t, s)
}

func TestSealed_DoesNotStorePlaintext(t *testing.T) {
	inner := NewMemoryStorage()
	s, _ := newTestSealed(t, inner)

	if err := s.SetItem("HARRYWEB_TOKEN_KEY", "secret-token"); err != nil {
		t.Fatalf("SetItem error: %v", err)
	}

	raw, ok, _ := inner.GetItem("HARRYWEB_TOKEN_KEY")
	if !ok {
		t.Fatal("inner storage should hold the sealed value")
	}
	if strings.Contains(raw, "secret-token") {
		t.Error("sealed value must not contain the plaintext")
	}
}

func TestSealed_TamperedValueIsAbsent(t *testing.T) {
	inner := NewMemoryStorage()
	s, buf := newTestSealed(t, inner)

	if err := s.SetItem("k", "v"); err != nil {
		t.Fatalf("SetItem error: %v", err)
	}
	raw, _, _ := inner.GetItem("k")
	inner.SetItem("k", raw+"tampered")

	if _, ok, err := s.GetItem("k"); ok || err != nil {
		t.Fatalf("tampered value: ok=%v err=%v, want ok=false err=nil", ok, err)
	}
	if !strings.Contains(buf.String(), "discarding unreadable sealed storage item") {
		t.Error("expected a warning log for the tampered value")
	}
}

func TestSealed_ValueMovedToAnotherKeyIsAbsent(t *testing.T) {
	inner := NewMemoryStorage()
	s, _ := newTestSealed(t, inner)

	s.SetItem("a", "v")
	raw, _, _ := inner.GetItem("a")
	inner.SetItem("b", raw)

	if _, ok, _ := s.GetItem("b"); ok {
		t.Error("a sealed value copied under a different key must not decode")
	}
}

func TestNewSealed_ShortSecret(t *testing.T) {
	if _, err := NewSealed(NewMemoryStorage(), "short", nil); err == nil {
		t.Fatal("expected error for short secret")
	}
}
