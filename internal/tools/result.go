package tools

import (
	"errors"
	"fmt"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

// Result is the JSON object a tool returns to the model.
type Result map[string]any

const (
	statusSuccess = "success"
	statusError   = "error"
)

// OK reports whether the result carries status "success".
func (r Result) OK() bool {
	return r["status"] == statusSuccess
}

// Message returns the result's message field, if any.
func (r Result) Message() string {
	m, _ := r["message"].(string)
	return m
}

func success(fields map[string]any) Result {
	r := Result{"status": statusSuccess}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func failure(format string, args ...any) Result {
	return Result{"status": statusError, "message": fmt.Sprintf(format, args...)}
}

// failureFrom renders an error for the model, naming the error class when it
// is one the model can act on.
func failureFrom(op string, err error) Result {
	r := Result{"status": statusError, "message": fmt.Sprintf("%s: %v", op, err)}
	if t := domain.TypeOf(err); t != domain.ErrorTypeUpstream {
		r["error_type"] = string(t)
	}
	var te *domain.TimeoutError
	if errors.As(err, &te) {
		r["message"] = fmt.Sprintf("%s: %s", op, te.Error())
	}
	return r
}
