package linker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotText is returned when a match value cannot be normalized because it is not text.
	ErrNotText = errors.New("value is not text")

	// ErrFieldMissing is returned when a row does not carry a field at all.
	ErrFieldMissing = errors.New("field not found in row")
)

// ConfigurationError reports a missing or invalid configuration value.
type ConfigurationError struct {
	// Key names the missing or invalid configuration key.
	Key     string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "configuration error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "missing required config field: " + e.Key
	}
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", msg, e.Err)
	}
	return "configuration error: " + msg
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransportError wraps a failed remote call (table lookup, row fetch, or row write).
type TransportError struct {
	Op      string
	TableID string
	Err     error
}

func (e *TransportError) Error() string {
	if e == nil || e.Err == nil {
		return "transport error"
	}
	return fmt.Sprintf("transport error: op=%s table=%s: %v", e.Op, e.TableID, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DataShapeError reports a row whose field is missing or cannot be used as a match value.
type DataShapeError struct {
	TableID string
	RowID   int64
	Field   string
	Err     error
}

func (e *DataShapeError) Error() string {
	if e == nil {
		return "data shape error"
	}
	return fmt.Sprintf("data shape error: table=%s row=%d field=%q: %v", e.TableID, e.RowID, e.Field, e.Err)
}

func (e *DataShapeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorKind classifies the error that ended a config.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindConfiguration
	ErrorKindTransport
	ErrorKindDataShape
	ErrorKindCanceled
	ErrorKindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindConfiguration:
		return "configuration"
	case ErrorKindTransport:
		return "transport"
	case ErrorKindDataShape:
		return "data_shape"
	case ErrorKindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindCanceled
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return ErrorKindConfiguration
	}
	var shapeErr *DataShapeError
	if errors.As(err, &shapeErr) {
		return ErrorKindDataShape
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return ErrorKindTransport
	}
	return ErrorKindUnknown
}
