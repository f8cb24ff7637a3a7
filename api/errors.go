package api

import "fmt"

// ErrorCode is a machine readable error identifier.
type ErrorCode string

const (
	ErrCodeNotLoaded      ErrorCode = "not_loaded"
	ErrCodeCapacity       ErrorCode = "capacity_exceeded"
	ErrCodeUnknownSymbol  ErrorCode = "unknown_symbol"
	ErrCodeUnknownTokenID ErrorCode = "unknown_token_id"
	ErrCodeInvalidRequest ErrorCode = "invalid_request"
	ErrCodeGeneral        ErrorCode = "general"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string    `json:"error"`
	Code    ErrorCode `json:"code"`
}

func (e ErrorResponse) Error() string {
	return e.Message
}

// StatusError is an error with an HTTP status code and message,
// it is parsed on the client-side and not returned from the API
type StatusError struct {
	StatusCode   int
	Status       string
	Code         ErrorCode
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the gpt2tok server logs for details"
	}
}
