// Package errors defines the error taxonomy shared by the store, the
// SPARQL pipeline and the outer surfaces. Every failure that crosses a
// package boundary carries a machine-readable Code so callers can branch
// on the kind of failure without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeTermInvalidIRI        Code = "term.construct.invalid_iri"
	CodeTermDatatypeLanguage  Code = "term.construct.datatype_language_conflict"
	CodeTermInvalidPosition   Code = "term.construct.invalid_position"
	CodeTermInvalidBlankNode  Code = "term.construct.invalid_blank_node"

	CodeParseSyntax Code = "sparql.parse.syntax"

	CodeTranslateUnsupported Code = "sparql.translate.unsupported"
	CodeExecUnsupported      Code = "sparql.exec.unsupported"
	CodeExecCancelled        Code = "sparql.exec.cancelled"
	CodeExecUnboundVariable  Code = "sparql.exec.unbound_variable"

	CodeStoreBatchNested   Code = "store.batch.nested"
	CodeStoreBatchInactive Code = "store.batch.inactive"
	CodeStoreClosed        Code = "store.closed"
	CodeStoreEngine        Code = "store.engine.failure"

	CodeConfigReadFailure  Code = "config.load.read_failure"
	CodeConfigParseInvalid Code = "config.parse.invalid_format"
	CodeConfigInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
)

const codeKey = "code"

// E creates an error with the given code and message.
func E(code Code, msg string) error {
	return oops.With(codeKey, code).Errorf("%s", msg)
}

// Errorf creates an error with the given code and formatted message.
func Errorf(code Code, format string, args ...any) error {
	return oops.With(codeKey, code).Errorf(format, args...)
}

// Wrap attaches a code to an existing error, preserving the cause chain.
func Wrap(code Code, err error, msg string) error {
	if err == nil {
		return nil
	}
	return oops.With(codeKey, code).Wrapf(err, "%s", msg)
}

// GetCode extracts the code from an error, walking the wrap chain.
// Returns an empty Code when the error carries none.
func GetCode(err error) Code {
	var o oops.OopsError
	if stderrors.As(err, &o) {
		if v, ok := o.Context()[codeKey]; ok {
			if c, ok := v.(Code); ok {
				return c
			}
		}
	}
	return ""
}

// IsCode reports whether the error carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// HTTPStatus maps an error code to an HTTP response status.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeParseSyntax, CodeTermInvalidIRI, CodeTermDatatypeLanguage,
		CodeTermInvalidPosition, CodeTermInvalidBlankNode, CodeServerRequestInvalid:
		return http.StatusBadRequest
	case CodeTranslateUnsupported, CodeExecUnsupported:
		return http.StatusNotImplemented
	case CodeExecCancelled:
		return 499 // client closed request
	case "":
		if err == nil {
			return http.StatusOK
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Position is a location in query text, attached to syntax errors.
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

const positionKey = "position"

// SyntaxError creates a parse error carrying the offending position.
func SyntaxError(pos Position, format string, args ...any) error {
	return oops.
		With(codeKey, CodeParseSyntax).
		With(positionKey, pos).
		Errorf("%s: %s", pos, fmt.Sprintf(format, args...))
}

// GetPosition extracts the position from a syntax error.
// The second return value reports whether a position was present.
func GetPosition(err error) (Position, bool) {
	var o oops.OopsError
	if stderrors.As(err, &o) {
		if v, ok := o.Context()[positionKey]; ok {
			if p, ok := v.(Position); ok {
				return p, true
			}
		}
	}
	return Position{}, false
}
