package endpoint

import "net/http"

// Kind classifies a response by its status code.
type Kind int

const (
	// KindInvalid is any status outside the success and error ranges.
	KindInvalid Kind = iota
	// KindSuccess is a status in [200, 300).
	KindSuccess
	// KindError is a status in [400, 600).
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return "invalid"
	}
}

// Classify maps a status code to its Kind. The status code is the sole
// discriminant.
func Classify(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return KindSuccess
	case status >= 400 && status < 600:
		return KindError
	default:
		return KindInvalid
	}
}

// Response is what a handler returns. Success responses carry Body; error
// responses carry Message and are sent as {"message": Message}.
type Response[R any] struct {
	StatusCode int
	Body       R
	Message    string
}

// Kind classifies the response.
func (r Response[R]) Kind() Kind {
	return Classify(r.StatusCode)
}

// Reply erases the body type for transports.
func (r Response[R]) Reply() Reply {
	if r.Kind() == KindError {
		return Reply{StatusCode: r.StatusCode, Body: ErrorBody{Message: r.Message}}
	}
	return Reply{StatusCode: r.StatusCode, Body: r.Body}
}

// ErrorBody is the wire shape of an error response.
type ErrorBody struct {
	Message string `json:"message"`
}

// Reply is a response with its body type erased.
type Reply struct {
	StatusCode int
	Body       any
}

// OK returns a 200 response.
func OK[R any](body R) Response[R] {
	return Response[R]{StatusCode: http.StatusOK, Body: body}
}

// Created returns a 201 response.
func Created[R any](body R) Response[R] {
	return Response[R]{StatusCode: http.StatusCreated, Body: body}
}

// Status returns a response with an explicit status code.
func Status[R any](code int, body R) Response[R] {
	return Response[R]{StatusCode: code, Body: body}
}

// Fail returns an error response.
func Fail[R any](code int, message string) Response[R] {
	return Response[R]{StatusCode: code, Message: message}
}

// Forbidden is the fixed response produced when authorization is denied.
func Forbidden[R any]() Response[R] {
	return Fail[R](http.StatusForbidden, "Forbidden")
}

// NotFound returns a 404 error response.
func NotFound[R any](message string) Response[R] {
	if message == "" {
		message = "Not Found"
	}
	return Fail[R](http.StatusNotFound, message)
}
