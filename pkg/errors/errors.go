package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Representation of the errors a toggle can end in. These are divided
// into a small number of categories, essentially distinguished by where
// the operation stopped; i.e., did it fail because:
//   - the provider refused the request outright?
//   - the provider answered, but not with what we asked for?
//   - we ran out of time waiting for the provider to settle?
//   - we could not reach the provider at all?
//   - we could not even build a client?
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
	// HTTP status of the response, for Request errors
	StatusCode int
	// last state observed before giving up, for Timeout errors
	State string
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause lets github.com/pkg/errors see through to the underlying error.
func (e *Error) Cause() error {
	return e.Err
}

type Type string

const (
	// The provider answered with a non-success status
	Request Type = "request"
	// The response was well-formed, but contradicts what we asked for
	Assertion Type = "assertion"
	// The resource did not reach the desired state in time
	Timeout Type = "timeout"
	// The provider could not be reached
	Connection Type = "connection"
	// Credentials or configuration are missing or unreadable
	Config Type = "config"
)

// RequestFailed builds a Request error for a response with the given
// status code.
func RequestFailed(status int, format string, args ...interface{}) *Error {
	return &Error{
		Type:       Request,
		StatusCode: status,
		Err:        fmt.Errorf(format, args...),
	}
}

// TimedOut builds a Timeout error recording the last state seen.
func TimedOut(state string, format string, args ...interface{}) *Error {
	return &Error{
		Type:  Timeout,
		State: state,
		Err:   fmt.Errorf(format+": last state %q", append(args, state)...),
	}
}

func Assertf(format string, args ...interface{}) *Error {
	return &Error{
		Type: Assertion,
		Err:  fmt.Errorf(format, args...),
	}
}

// ConnectionFailed classifies a transport error.
func ConnectionFailed(err error) *Error {
	return &Error{
		Type: Connection,
		Err:  err,
		Help: `The Azure API could not be reached.

Check your network connection, and that the endpoint (--endpoint, or
the environment variable AZURE_RESOURCE_MANAGER_ENDPOINT) is correct.
`,
	}
}

func ConfigInvalid(err error) *Error {
	return &Error{
		Type: Config,
		Err:  err,
		Help: `No usable Azure credentials were found.

Either log in with the Azure CLI ("az login"), or supply a
configuration file (--config, default ~/.azure.ini) containing

    [azure]
    client = <service principal application id>
    secret = <service principal secret>
    tenant = <tenant id>
    sub    = <subscription id>
`,
	}
}

// IsType reports whether any error in err's chain is an *Error of the
// given type.
func IsType(err error, t Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func IsRequest(err error) bool {
	return IsType(err, Request)
}

func IsTimeout(err error) bool {
	return IsType(err, Timeout)
}

func IsConnection(err error) bool {
	return IsType(err, Connection)
}

func IsConfig(err error) bool {
	return IsType(err, Config)
}

// StatusCode returns the HTTP status carried by a Request error, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type       string `json:"type"`
		Help       string `json:"help,omitempty"`
		Err        string `json:"error,omitempty"`
		StatusCode int    `json:"statusCode,omitempty"`
		State      string `json:"state,omitempty"`
	}{
		Type:       string(e.Type),
		Help:       e.Help,
		Err:        errMsg,
		StatusCode: e.StatusCode,
		State:      e.State,
	}
	return json.Marshal(jsonable)
}
