// Package errors provides structured error types for the comment bridge.
//
// Errors are categorized by Phase (which mapping stage or host layer failed) and
// Kind (the boundary failure category). The Error type carries the element path,
// the host type name, the field or constructor descriptor involved, and the
// host-side cause.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSpannable, errors.KindInstantiation).
//		Path("spannables[2]").
//		Type("com/example/IPostCommentSpannableData$ThreadLink").
//		Member("(Ljava/lang/String;JJ)V").
//		Cause(hostErr).
//		Build()
//
// Or use convenience constructors for the boundary taxonomy:
//
//	err := errors.TypeResolution(errors.PhaseComment, nil, name, cause)
//	err := errors.StringAllocation(errors.PhaseSpannable, path, len(s), cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// IsKind matches a kind anywhere in the cause chain.
package errors
