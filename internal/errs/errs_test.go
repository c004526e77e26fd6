package errs

import (
	"errors"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := New(Dns, "probe.Ping", "could not resolve host")
	wrapped := Wrap(Transport, "probe.send", "write failed", base)

	if KindOf(wrapped) != Transport {
		t.Fatalf("expected outer kind Transport, got %v", KindOf(wrapped))
	}
	if !errors.Is(wrapped, ErrKind(Transport)) {
		t.Fatalf("expected errors.Is to match Transport sentinel")
	}
	if wrapped.Is(ErrKind(Dns)) {
		t.Fatalf("did not expect outer error to match Dns sentinel")
	}

	var inner *Error
	if !errors.As(wrapped, &inner) {
		t.Fatalf("expected errors.As to unwrap to *Error")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Platform:            "platform",
		PrerequisiteMissing: "prerequisite_missing",
		Unknown:             "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
