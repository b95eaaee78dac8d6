package market

import "errors"

// ErrorKind classifies why an upstream tier produced nothing usable.
type ErrorKind string

const (
	KindUnavailable  ErrorKind = "upstream_unavailable"
	KindMalformed    ErrorKind = "upstream_malformed"
	KindNoUsableData ErrorKind = "no_usable_data"
)

var (
	// ErrUpstreamUnavailable covers network errors and non-success HTTP statuses.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamMalformed is returned when a payload does not have the expected shape.
	ErrUpstreamMalformed = errors.New("upstream payload malformed")

	// ErrNoUsableData is returned when a payload parsed but nothing survived filtering.
	ErrNoUsableData = errors.New("no usable data")
)

// UpstreamError wraps a tier failure with its kind and the failing operation.
type UpstreamError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + string(e.Kind)
	}
	return e.Op + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same kind.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstreamUnavailable:
		return e.Kind == KindUnavailable
	case ErrUpstreamMalformed:
		return e.Kind == KindMalformed
	case ErrNoUsableData:
		return e.Kind == KindNoUsableData
	}
	return false
}

func Unavailable(op string, err error) *UpstreamError {
	return &UpstreamError{Kind: KindUnavailable, Op: op, Err: err}
}

func Malformed(op string, err error) *UpstreamError {
	return &UpstreamError{Kind: KindMalformed, Op: op, Err: err}
}

func NoData(op string) *UpstreamError {
	return &UpstreamError{Kind: KindNoUsableData, Op: op}
}

// KindOf extracts the error kind; unknown errors count as unavailable.
func KindOf(err error) ErrorKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnavailable
}
