package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Envelope is the error body returned to HTTP clients
type Envelope struct {
	Message   string `json:"message"`
	FullError string `json:"full_error"`
}

// NewEnvelope translates err and returns the status code together with the
// response body. The original error is serialized into FullError.
func NewEnvelope(err error) (int, Envelope) {
	appErr := Transform(err)
	return appErr.Status(), Envelope{
		Message:   appErr.Message,
		FullError: Serialize(err),
	}
}

// Serialize renders an error and its cause chain as a JSON document
func Serialize(err error) string {
	if err == nil {
		return "{}"
	}
	data, marshalErr := json.Marshal(describe(err, 0))
	if marshalErr != nil {
		return fmt.Sprintf(`{"message":%q}`, err.Error())
	}
	return string(data)
}

// maxCauseDepth bounds cause chains that loop back on themselves
const maxCauseDepth = 16

func describe(err error, depth int) map[string]interface{} {
	doc := map[string]interface{}{
		"name":    fmt.Sprintf("%T", err),
		"message": err.Error(),
	}

	var cause error
	if appErr, ok := err.(*AppError); ok {
		doc["code"] = appErr.Code
		doc["message"] = appErr.Message
		doc["status_code"] = appErr.Status()
		if appErr.Field != "" {
			doc["field"] = appErr.Field
		}
		if appErr.Details != "" {
			doc["details"] = appErr.Details
		}
		if appErr.Operation != "" {
			doc["operation"] = appErr.Operation
		}
		cause = appErr.Cause
	} else {
		cause = stderrors.Unwrap(err)
	}

	if cause != nil && depth < maxCauseDepth {
		doc["cause"] = describe(cause, depth+1)
	}
	return doc
}
