// Package storage holds the object storage contract shared by the loopback,
// gcs and memory backends: slot and property types, errors, and the storage
// path rules every backend enforces.
package storage

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindLoopback Kind = "loopback"
	KindGCS      Kind = "gcs"
	KindMemory   Kind = "memory"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLoopback, KindGCS, KindMemory:
		return k, nil
	}
	return "", fmt.Errorf("unknown storage backend %q", s)
}

var (
	ErrInvalidPath     = errors.New("invalid storage path")
	ErrInvalidArgument = errors.New("invalid storage argument")
	ErrObjectNotFound  = errors.New("object not found")
	ErrObjectExists    = errors.New("object already exists")
	// ErrUnavailable wraps transient provider failures.
	ErrUnavailable = errors.New("storage backend unavailable")
)

type (
	UploadSlot struct {
		StoragePath string
		UploadURL   string
		Method      string
		Headers     map[string]string
		ExpiresAt   time.Time
	}

	ObjectProperties struct {
		Size        int64
		ContentType string
		RevisionTag string
	}
)

const OctetStream = "application/octet-stream"
