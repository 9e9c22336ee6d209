package pipeline

// Kind classifies the ways pipeline.Run can fail or degrade, per spec.md
// §7's error-kind table.
type Kind int

const (
	// KindInvalidInput covers shape mismatches, non-finite intrinsics, or
	// an empty mesh — rejected at ingress, before any stage runs.
	KindInvalidInput Kind = iota
	// KindInsufficientData is fewer than 100 valid scene points after
	// BackProject.
	KindInsufficientData
	// KindFitDidNotConverge is a non-fatal warning: ICP hit its iteration
	// cap with fitness below 0.3. Volume is still computed.
	KindFitDidNotConverge
	// KindRayCastDegenerate is a non-fatal warning: the fitted mesh had a
	// zero hit rate over the food mask. Volume is reported as zero.
	KindRayCastDegenerate
	// KindCancelled is a cooperative cancellation via ctx.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindInsufficientData:
		return "InsufficientData"
	case KindFitDidNotConverge:
		return "FitDidNotConverge"
	case KindRayCastDegenerate:
		return "RayCastDegenerate"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the sum type every fatal and non-fatal pipeline condition is
// carried in. Fatal kinds (InvalidInput, InsufficientData, Cancelled) are
// returned directly from Run; non-fatal kinds (FitDidNotConverge,
// RayCastDegenerate) are accumulated into Result.Diagnostics instead.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
