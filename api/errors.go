// Package api defines the JSON error body shared by all non-validation
// endpoints.
package api

// Error is the error payload returned with non-2xx statuses. The error
// field carries the taxonomy kind, the description a human-readable hint.
type Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ErrorInvalidRequest signals a malformed or incomplete request
func ErrorInvalidRequest(description string) Error {
	return Error{Error: "invalid_request", ErrorDescription: description}
}

// ErrorUnauthorized signals missing or wrong admin credentials
func ErrorUnauthorized(description string) Error {
	return Error{Error: "unauthorized", ErrorDescription: description}
}

// ErrorInvalidSignature signals a webhook payload that failed
// authenticity verification
func ErrorInvalidSignature(description string) Error {
	return Error{Error: "invalid_signature", ErrorDescription: description}
}

// ErrorNotFound signals that the referenced record does not exist
func ErrorNotFound(description string) Error {
	return Error{Error: "not_found", ErrorDescription: description}
}

// ErrorAlreadyExists signals a uniqueness conflict
func ErrorAlreadyExists(description string) Error {
	return Error{Error: "already_exists", ErrorDescription: description}
}

// ErrorStoreUnavailable signals a transient storage failure; callers may
// retry with backoff
func ErrorStoreUnavailable(description string) Error {
	return Error{Error: "store_unavailable", ErrorDescription: description}
}

// ErrorServerError signals an unexpected internal failure
func ErrorServerError(description string) Error {
	return Error{Error: "server_error", ErrorDescription: description}
}
