package resolve

import "errors"

// Kind classifies why a resolution produced nothing.
type Kind string

const (
	KindRequestInvalid       Kind = "RequestInvalid"
	KindUpstreamUnresolvable Kind = "UpstreamUnresolvable"
	KindProviderDataMissing  Kind = "ProviderDataMissing"
)

var (
	ErrRequestInvalid       = errors.New("request invalid")
	ErrUpstreamUnresolvable = errors.New("upstream unresolvable")
	ErrProviderDataMissing  = errors.New("provider data missing")
)

// NotFoundError is the single failure a resolution surfaces to callers.
type NotFoundError struct {
	Kind    Kind
	Message string
	Err     error
}

func newNotFound(kind Kind, message string) *NotFoundError {
	return &NotFoundError{Kind: kind, Message: message}
}

func (e *NotFoundError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *NotFoundError) Is(target error) bool {
	switch target {
	case ErrRequestInvalid:
		return e.Kind == KindRequestInvalid
	case ErrUpstreamUnresolvable:
		return e.Kind == KindUpstreamUnresolvable
	case ErrProviderDataMissing:
		return e.Kind == KindProviderDataMissing
	}
	return false
}

// Response is the body text shown to the caller.
func (e *NotFoundError) Response() string {
	if e.Kind == KindProviderDataMissing {
		return "Id Not Found"
	}
	return "Not Found"
}

// AsNotFound unwraps err into a NotFoundError.
func AsNotFound(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}
