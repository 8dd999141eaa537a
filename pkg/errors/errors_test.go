package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeExtraction(t *testing.T) {
	err := E(CodeStoreBatchNested, "a batch is already active")
	if got := GetCode(err); got != CodeStoreBatchNested {
		t.Errorf("GetCode = %q, want %q", got, CodeStoreBatchNested)
	}
	if !IsCode(err, CodeStoreBatchNested) {
		t.Error("IsCode = false for matching code")
	}
	if IsCode(err, CodeParseSyntax) {
		t.Error("IsCode = true for different code")
	}
	if IsCode(nil, CodeParseSyntax) {
		t.Error("IsCode = true for nil error")
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode of plain error = %q, want empty", got)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(CodeConfigInvalidValue, "engine %q unknown", "papyrus")
	if got := err.Error(); got != `engine "papyrus" unknown` {
		t.Errorf("Error() = %q", got)
	}
	if !IsCode(err, CodeConfigInvalidValue) {
		t.Errorf("code = %q", GetCode(err))
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap(CodeStoreEngine, cause, "write failed")
	if !IsCode(err, CodeStoreEngine) {
		t.Errorf("code = %q, want %q", GetCode(err), CodeStoreEngine)
	}
	if !stderrors.Is(err, cause) {
		t.Error("Wrap broke the cause chain")
	}
	if Wrap(CodeStoreEngine, nil, "nothing") != nil {
		t.Error("Wrap(nil) != nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"syntax", E(CodeParseSyntax, "bad"), http.StatusBadRequest},
		{"invalid iri", E(CodeTermInvalidIRI, "bad"), http.StatusBadRequest},
		{"bad request", E(CodeServerRequestInvalid, "bad"), http.StatusBadRequest},
		{"unsupported translate", E(CodeTranslateUnsupported, "no"), http.StatusNotImplemented},
		{"unsupported exec", E(CodeExecUnsupported, "no"), http.StatusNotImplemented},
		{"cancelled", E(CodeExecCancelled, "gone"), 499},
		{"store failure", E(CodeStoreEngine, "broken"), http.StatusInternalServerError},
		{"uncoded", stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSyntaxError(t *testing.T) {
	err := SyntaxError(Position{Line: 3, Column: 14, Offset: 52}, "unexpected %q", "}")
	if !IsCode(err, CodeParseSyntax) {
		t.Fatalf("code = %q, want %q", GetCode(err), CodeParseSyntax)
	}
	pos, ok := GetPosition(err)
	if !ok {
		t.Fatal("GetPosition found no position")
	}
	if pos.Line != 3 || pos.Column != 14 || pos.Offset != 52 {
		t.Errorf("position = %+v", pos)
	}
	want := `line 3, column 14: unexpected "}"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestGetPositionAbsent(t *testing.T) {
	if _, ok := GetPosition(E(CodeParseSyntax, "no position attached")); ok {
		t.Error("GetPosition = true for error without position")
	}
	if _, ok := GetPosition(fmt.Errorf("plain")); ok {
		t.Error("GetPosition = true for plain error")
	}
}

func TestWrapPreservesPosition(t *testing.T) {
	inner := SyntaxError(Position{Line: 1, Column: 5, Offset: 4}, "bad token")
	outer := Wrap(CodeParseSyntax, inner, "parsing query")
	if pos, ok := GetPosition(outer); !ok || pos.Column != 5 {
		t.Errorf("position through wrap = %+v, ok = %t", pos, ok)
	}
}
