// Package classify sorts row and run failures into the fixed error taxonomy
// and aggregates them into bounded buckets.
package classify

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"

	"datasync/internal/constants"
	"datasync/internal/integration"
	pkgerrors "datasync/pkg/errors"
)

// Error is a failure whose type was decided where it was raised.
type Error struct {
	Type    integration.ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Validation(msg string) *Error {
	return &Error{Type: integration.ErrorValidation, Message: msg}
}

func Required(msg string) *Error {
	return &Error{Type: integration.ErrorRequired, Message: msg}
}

func System(msg string, cause error) *Error {
	return &Error{Type: integration.ErrorSystem, Message: msg, Cause: cause}
}

// Classify picks the bucket type for err.
func Classify(err error) integration.ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	if pkgerrors.IsValidation(err) {
		return integration.ErrorValidation
	}
	if IsDuplicate(err) {
		return integration.ErrorDuplicate
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "required") || strings.Contains(msg, "obrigatório") {
		return integration.ErrorRequired
	}
	if IsInfrastructure(err) {
		return integration.ErrorSystem
	}
	return integration.ErrorProcessing
}

// IsDuplicate reports a unique key conflict from either store.
func IsDuplicate(err error) bool {
	if mongo.IsDuplicateKeyError(err) || pkgerrors.IsConflict(err) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsInfrastructure reports connectivity, timeout and driver failures.
func IsInfrastructure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classifier aggregates failures of one run. Failures with the same
// (truncated) message share a bucket.
type Classifier struct {
	buckets map[string]*integration.ErrorBucket
	order   []string
}

func New() *Classifier {
	return &Classifier{buckets: make(map[string]*integration.ErrorBucket)}
}

// Add records err with an optional example describing the failing record.
func (c *Classifier) Add(err error, example string) integration.ErrorType {
	typ := Classify(err)
	c.Record(typ, err.Error(), example)
	return typ
}

func (c *Classifier) Record(typ integration.ErrorType, message, example string) {
	key := truncate(message, constants.MaxErrorMessageLen)

	b, ok := c.buckets[key]
	if !ok {
		b = &integration.ErrorBucket{Type: typ, Message: key, Examples: []string{}}
		c.buckets[key] = b
		c.order = append(c.order, key)
	}
	b.Count++
	if example != "" && len(b.Examples) < constants.MaxErrorExamples {
		b.Examples = append(b.Examples, truncate(example, constants.MaxExampleLen))
	}
}

// Buckets returns the buckets in first-seen order.
func (c *Classifier) Buckets() []integration.ErrorBucket {
	out := make([]integration.ErrorBucket, 0, len(c.order))
	for _, key := range c.order {
		b := *c.buckets[key]
		b.Examples = append([]string(nil), b.Examples...)
		out = append(out, b)
	}
	return out
}

func (c *Classifier) Len() int {
	return len(c.order)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
