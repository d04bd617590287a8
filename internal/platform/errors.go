package platform

import "fmt"

// NotFoundError reports that a platform resource (organization, repository,
// team or user) does not exist, or is invisible to the token.
type NotFoundError struct {
	Msg string
}

func (e NotFoundError) Error() string {
	return e.Msg
}

// BadCredentialsError reports a rejected or insufficient token.
type BadCredentialsError struct {
	Msg    string
	Status int
}

func (e BadCredentialsError) Error() string {
	return e.Msg
}

// ServiceNotFoundError reports that the platform itself could not be
// reached, typically a DNS failure caused by a bad base URL.
type ServiceNotFoundError struct {
	Msg string
}

func (e ServiceNotFoundError) Error() string {
	return e.Msg
}

// APIError reports any other failure the platform itself signalled.
type APIError struct {
	Msg    string
	Status int
}

func (e APIError) Error() string {
	return fmt.Sprintf("platform api error (status %d): %s", e.Status, e.Msg)
}

// UnexpectedError wraps any non-platform failure raised during an API call.
// Nothing is ever silently swallowed: what cannot be classified is surfaced
// as this.
type UnexpectedError struct {
	Err error
}

func (e UnexpectedError) Error() string {
	return fmt.Sprintf("an unexpected error occurred: %v", e.Err)
}

func (e UnexpectedError) Unwrap() error {
	return e.Err
}
