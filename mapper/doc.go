// Package mapper rebuilds a parsed comment inside a host runtime.
//
// A single Map call runs one synchronous pass over the comment:
//
//	Map            → resolve PostCommentParsed, construct it with ()V,
//	                 set commentTextRaw and commentTextParsed
//	mapSpannables  → resolve IPostCommentSpannableData, allocate an array
//	                 with one slot per spannable
//	buildSpannable → per spannable, in order: resolve the subtype,
//	                 construct it, store it in its slot
//
// # Variant Table
//
// Each leaf variant maps to exactly one host subtype and constructor:
//
//	Variant     Host class                            Constructor
//	──────────────────────────────────────────────────────────────────────────
//	Quote       IPostCommentSpannableData$Quote       (J)V
//	DeadQuote   IPostCommentSpannableData$DeadQuote   (J)V
//	URLLink     IPostCommentSpannableData$UrlLink     (Ljava/lang/String;)V
//	BoardLink   IPostCommentSpannableData$BoardLink   (Ljava/lang/String;)V
//	SearchLink  IPostCommentSpannableData$SearchLink  (Ljava/lang/String;Ljava/lang/String;)V
//	ThreadLink  IPostCommentSpannableData$ThreadLink  (Ljava/lang/String;JJ)V
//	Spoiler     IPostCommentSpannableData$Spoiler     ()V
//	GreenText   IPostCommentSpannableData$GreenText   ()V
//
// The table is resolved once per Mapper against its namespace.
//
// Post and thread numbers are passed as int64 with the same bit pattern as
// the uint64 source. Strings are copied into host strings.
//
// # Failure
//
// Any host error (missing class, missing constructor, rejected field,
// failed allocation) aborts the call. The error is an *errors.Error naming
// the phase, the spannable index, the host class and the descriptor
// involved, with the host's error as cause. Map never returns a partially
// built graph and never terminates the process; callers decide how to react.
//
// If the host implements host.Releaser, everything allocated by the failed
// call is released before Map returns.
//
// # Thread Safety
//
// Mapper is immutable after construction and safe for concurrent use. Each
// Map call keeps its own session state.
package mapper
