package vision

import (
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindAPIDisabled      ErrorKind = "API_DISABLED"
	KindPermissionDenied ErrorKind = "PERMISSION_DENIED"
	KindGeneric          ErrorKind = "GENERIC"
)

// ConfigurationError means the adapter has no usable credential. The operator
// has to fix the deployment.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// UpstreamError wraps a failed provider call.
type UpstreamError struct {
	Kind ErrorKind
	Err  error
}

func NewUpstreamError(err error) *UpstreamError {
	return &UpstreamError{Kind: Classify(err.Error()), Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("vision %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Message is the text shown to the API caller.
func (e *UpstreamError) Message() string {
	switch e.Kind {
	case KindAPIDisabled:
		return "Cloud Vision API is not enabled for this Google Cloud project. Enable it in the Cloud console (APIs & Services > Library > Cloud Vision API) and retry in a few minutes."
	case KindPermissionDenied:
		return "The configured credentials are not allowed to call Cloud Vision. Grant the service account the Cloud Vision API User role, or lift the API key restrictions for the Vision API."
	default:
		return fmt.Sprintf("Vision provider request failed: %v", e.Err)
	}
}

var (
	apiDisabledMarkers = []string{
		"service_disabled",
		"api_disabled",
		"has not been used in project",
		"it is disabled",
		"api is disabled",
	}
	permissionDeniedMarkers = []string{
		"permission_denied",
		"permissiondenied",
		"permission denied",
		"does not have permission",
		"api key not valid",
	}
)

// Classify matches provider error text against known phrasings. The wording
// belongs to Google and can change, so anything unrecognized is GENERIC.
// API_DISABLED is checked first: Google reports it with a PermissionDenied code.
func Classify(message string) ErrorKind {
	m := strings.ToLower(message)
	for _, marker := range apiDisabledMarkers {
		if strings.Contains(m, marker) {
			return KindAPIDisabled
		}
	}
	for _, marker := range permissionDeniedMarkers {
		if strings.Contains(m, marker) {
			return KindPermissionDenied
		}
	}
	return KindGeneric
}
