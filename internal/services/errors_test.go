package services_test

import (
	"errors"
	"testing"

	"shuttle/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := services.Wrap(services.ErrConnection, "remote", "acquire", "host alpha:22", cause)
	if !errors.Is(err, services.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	want := "connection error: remote: acquire: host alpha:22: dial tcp: connection refused"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "remote", "run", "", nil)
	if !errors.Is(err, services.ErrRemoteCommand) {
		t.Fatalf("expected ErrRemoteCommand fallback, got %v", err)
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "", "", "", nil)
	if err.Error() != "validation error: service failure" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
