package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned by Get for an absent key.
	ErrNotFound = errors.New("persistence: key not found")
	// ErrVersionConflict is returned by CompareAndSet when the stored version moved.
	ErrVersionConflict = errors.New("persistence: version conflict")
	// ErrUnavailable marks a backend failure or timeout. Callers decide retry policy.
	ErrUnavailable = errors.New("persistence: backend unavailable")
	// ErrInvalidValue rejects values that are not JSON documents.
	ErrInvalidValue = errors.New("persistence: value is not valid JSON")
)

// Entry is a stored document and its optimistic version stamp.
type Entry struct {
	Value   []byte
	Version int64
}

// Store is the key/value contract every backend satisfies. Values are JSON
// documents. No multi-key transaction is offered; CompareAndSet is the only
// atomic read-modify-write primitive.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, value []byte) error
	// CompareAndSet writes value only if the stored version equals expected.
	// An expected version of 0 means the key must be absent.
	CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error)
	Delete(ctx context.Context, key string) error
	// Scan returns the keys matching a glob pattern where '*' is the only wildcard, sorted.
	Scan(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnavailable.Error(), e.err)
}

func (e *unavailableError) Unwrap() error { return e.err }

func (e *unavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps a backend failure so errors.Is(err, ErrUnavailable) holds.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return &unavailableError{err: err}
}

// Key schema shared by every backend.
const (
	workspacePrefix = "workspace:"
	ticketPrefix    = "ticket:"
)

// WorkspaceKey is the document key of a workspace.
func WorkspaceKey(workspaceID string) string {
	return workspacePrefix + workspaceID
}

// TicketKey is the key of the denormalized ticket document.
func TicketKey(workspaceID, ticketID string) string {
	return ticketPrefix + workspaceID + ":" + ticketID
}

// WorkspacePattern matches every workspace document.
func WorkspacePattern() string {
	return workspacePrefix + "*"
}

// TicketPattern matches the ticket documents of one workspace.
func TicketPattern(workspaceID string) string {
	return ticketPrefix + workspaceID + ":*"
}

// WorkspaceIDFromKey strips the workspace prefix.
func WorkspaceIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, workspacePrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, workspacePrefix), true
}

// TicketIDFromKey extracts the ticket id of a denormalized ticket key.
func TicketIDFromKey(workspaceID, key string) (string, bool) {
	prefix := ticketPrefix + workspaceID + ":"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, prefix), true
}

// CompilePattern turns a '*'-only glob into an anchored regexp.
func CompilePattern(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

func validateValue(value []byte) error {
	if !json.Valid(value) {
		return ErrInvalidValue
	}
	return nil
}
