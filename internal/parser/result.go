package parser

// Kind is the variant of a [Result].
type Kind int

const (
	// KindOK means the response held at least one valid record.
	KindOK Kind = iota
	// KindEmpty means the response was well formed but carried nothing.
	KindEmpty
	// KindFailed means the response could not be decoded or failed validation.
	KindFailed
)

// String returns the kind name used in log fields.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// Result is the outcome of parsing one generator response.
//
// Value always holds something usable: the parsed records for [KindOK] and
// the type's empty default otherwise, so a caller that ignores Kind still
// stores a sensible value.
type Result[T any] struct {
	Kind   Kind
	Value  T
	Reason string
}

// OK reports whether the result carries parsed records.
func (r Result[T]) OK() bool {
	return r.Kind == KindOK
}

func ok[T any](v T) Result[T] {
	return Result[T]{Kind: KindOK, Value: v}
}

func empty[T any](zero T, reason string) Result[T] {
	return Result[T]{Kind: KindEmpty, Value: zero, Reason: reason}
}

func failed[T any](zero T, reason string) Result[T] {
	return Result[T]{Kind: KindFailed, Value: zero, Reason: reason}
}
