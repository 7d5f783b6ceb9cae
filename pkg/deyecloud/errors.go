package deyecloud

import "fmt"

// AuthError signals that the cloud rejected the configured credentials.
// It is fatal during startup validation and recoverable by saving new
// credentials.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("deye cloud auth failed: %s", e.Message)
}

// APIError is a non-auth rejection returned by the cloud API, e.g. a
// refused work-mode command.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("deye cloud api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("deye cloud api error: %s", e.Message)
}
