package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnection marks SSH session establishment or transport failures.
	// Fatal per-operation; never retried automatically.
	ErrConnection = errors.New("connection error")
	// ErrRemoteCommand marks a nonzero exit from a one-shot remote command.
	ErrRemoteCommand = errors.New("remote command error")
	// ErrValidation marks malformed caller input (empty batch, same host, ...).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks unknown transfer or host identifiers.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks unusable configuration values.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrRemoteCommand
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
