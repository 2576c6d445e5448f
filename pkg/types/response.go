package types

// SuccessEnvelope wraps every 2xx JSON body so clients always read
// payloads from a "data" key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failure: a stable machine code, a
// safe human message, and optional structured details.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx JSON body under an "error" key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
