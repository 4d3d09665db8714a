package generation

import (
	"errors"
	"fmt"
)

// Kind classifies why a generation call failed.
type Kind int

const (
	// KindTransport means the request could not complete at the network level.
	KindTransport Kind = iota + 1
	// KindRemoteRejected means the endpoint answered with an error.
	KindRemoteRejected
	// KindMalformedResponse means the endpoint answered successfully but the
	// payload carried no generated text.
	KindMalformedResponse
)

const genericRejection = "API request failed"

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport failure"
	case KindRemoteRejected:
		return "remote rejected"
	case KindMalformedResponse:
		return "malformed response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Failure is the error returned by Generate for every unsuccessful call.
type Failure struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	switch {
	case f.Message != "" && f.Err != nil:
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	case f.Message != "":
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	default:
		return f.Kind.String()
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf reports the failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

func transportFailure(err error) *Failure {
	return &Failure{Kind: KindTransport, Err: err}
}

func remoteRejected(status int, message string) *Failure {
	if message == "" {
		message = genericRejection
	}
	return &Failure{Kind: KindRemoteRejected, Status: status, Message: message}
}

func malformedResponse(message string, err error) *Failure {
	return &Failure{Kind: KindMalformedResponse, Message: message, Err: err}
}
