// Package errors derives low-cardinality error classes for metric tags and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/target/repo-analyzer/internal/errors"
)

// Classifier lets an error report its own class.
type Classifier interface {
	ErrorClass() string
}

// Classify returns a snake_case class for err. Context errors and AppErrors map to fixed
// names; errors implementing Classifier name themselves; anything else is named after the
// innermost concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	var c Classifier
	if goerrors.As(err, &c) {
		if class := c.ErrorClass(); class != "" {
			return class
		}
	}
	if code := apperrors.GetCode(err); code != "" {
		return "app_" + string(code)
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
