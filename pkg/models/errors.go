package models

// InvalidArgumentError reports a precondition violation: an empty required
// field, a duplicate where uniqueness is required, or a malformed value.
// Operations fail with it before any network or filesystem effect, and it is
// never retried.
type InvalidArgumentError struct {
	Msg string
}

func (e InvalidArgumentError) Error() string {
	return e.Msg
}
