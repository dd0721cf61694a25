package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseSpannable,
				Kind:   KindInstantiation,
				Path:   []string{"spannables[2]"},
				Type:   "ns/IPostCommentSpannableData$ThreadLink",
				Member: "(Ljava/lang/String;JJ)V",
				Detail: "constructor failed",
			},
			contains: []string{"[spannable]", "instantiation", "spannables[2]", "$ThreadLink", "(Ljava/lang/String;JJ)V", "constructor failed"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLift,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[lift]", "out_of_bounds"},
		},
		{
			name: "member only",
			err: &Error{
				Phase:  PhaseComment,
				Kind:   KindFieldAssignment,
				Member: "commentTextRaw",
				Detail: "no such field",
			},
			contains: []string{"member commentTextRaw - no such field"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseHost,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[host]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseComment,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseSpannable,
		Kind:  KindTypeResolution,
		Path:  []string{"spannables[0]"},
	}

	if !err.Is(&Error{Phase: PhaseSpannable, Kind: KindTypeResolution}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseComment, Kind: KindTypeResolution}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseSpannable, Kind: KindInstantiation}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseSpannable, Kind: KindTypeResolution}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestIsKind(t *testing.T) {
	hostErr := NotFound(PhaseHost, "class", "a/B")
	wrapped := TypeResolution(PhaseSpannable, nil, "a/B", hostErr)

	if !IsKind(wrapped, KindTypeResolution) {
		t.Error("IsKind should match outer kind")
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Error("IsKind should match kind in cause chain")
	}
	if IsKind(wrapped, KindInstantiation) {
		t.Error("IsKind should not match absent kind")
	}
	if IsKind(errors.New("plain"), KindNotFound) {
		t.Error("IsKind should not match plain errors")
	}
	if IsKind(nil, KindNotFound) {
		t.Error("IsKind(nil) should be false")
	}
	if KindOf(wrapped) != KindTypeResolution {
		t.Errorf("KindOf = %v, want %v", KindOf(wrapped), KindTypeResolution)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf on plain error should be empty")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseSpannable, KindInstantiation).
		Path("spannables[1]").
		Type("a/B").
		Member("()V").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "()V", "(J)V").
		Build()

	if err.Phase != PhaseSpannable {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseSpannable)
	}
	if err.Kind != KindInstantiation {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInstantiation)
	}
	if len(err.Path) != 1 || err.Path[0] != "spannables[1]" {
		t.Errorf("Path = %v, want [spannables[1]]", err.Path)
	}
	if err.Type != "a/B" {
		t.Errorf("Type = %v, want a/B", err.Type)
	}
	if err.Member != "()V" {
		t.Errorf("Member = %v, want ()V", err.Member)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected ()V, got (J)V" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := errors.New("host")

	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"TypeResolution", TypeResolution(PhaseComment, nil, "a/B", cause), KindTypeResolution},
		{"Instantiation", Instantiation(PhaseSpannable, nil, "a/B", "()V", cause), KindInstantiation},
		{"FieldAssignment", FieldAssignment(PhaseComment, nil, "a/B", "f", "J", cause), KindFieldAssignment},
		{"StringAllocation", StringAllocation(PhaseSpannable, nil, 12, cause), KindStringAllocation},
		{"ArrayAllocation", ArrayAllocation(PhaseSpannables, nil, "a/I", 3, cause), KindArrayAllocation},
		{"ElementStore", ElementStore(PhaseSpannables, nil, 1, cause), KindElementStore},
		{"OutOfBounds", OutOfBounds(PhaseHost, nil, 10, 5), KindOutOfBounds},
		{"TypeMismatch", TypeMismatch(PhaseHost, nil, "J", "java/lang/String"), KindTypeMismatch},
		{"AllocationFailed", AllocationFailed(PhaseHost, 1024, 8), KindAllocation},
		{"NotFound", NotFound(PhaseHost, "class", "a/B"), KindNotFound},
		{"InvalidInput", InvalidInput(PhaseComment, "nil env"), KindInvalidInput},
		{"InvalidData", InvalidData(PhaseDecode, nil, "bad"), KindInvalidData},
		{"InvalidDiscriminant", InvalidDiscriminant(PhaseLift, nil, 9, 7), KindInvalidVariant},
		{"Closed", Closed(PhaseHost, "heap"), KindClosed},
		{"Wrap", Wrap(PhaseDecode, KindInvalidData, cause, "json"), KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}

	if got := StringAllocation(PhaseSpannable, nil, 12, nil); !strings.Contains(got.Detail, "12") {
		t.Errorf("Detail = %v, should contain length", got.Detail)
	}
	if got := OutOfBounds(PhaseHost, nil, 10, 5); got.Value != 10 {
		t.Errorf("Value = %v, want 10", got.Value)
	}
}
