package kasada

import "fmt"

// Classification is the verdict returned by the Kasada API.
type Classification string

const (
	ClassificationAllowed Classification = "ALLOWED"
	ClassificationBadBot  Classification = "BAD-BOT"
	ClassificationGoodBot Classification = "GOOD-BOT"
	ClassificationHuman   Classification = "HUMAN"
)

func (c Classification) valid() bool {
	switch c {
	case ClassificationAllowed, ClassificationBadBot, ClassificationGoodBot, ClassificationHuman:
		return true
	}
	return false
}

// Mode is the application operating mode configured in the Kasada portal.
type Mode string

const (
	ModeMonitor     Mode = "MONITOR"
	ModeProtect     Mode = "PROTECT"
	ModePassThrough Mode = "PASS_THROUGH"
)

func (m Mode) valid() bool {
	switch m {
	case ModeMonitor, ModeProtect, ModePassThrough:
		return true
	}
	return false
}

// Enforcing reports whether a BAD-BOT verdict should block the request.
func (m Mode) Enforcing() bool { return m == ModeProtect }

// HeaderPair is one header name/value. Duplicate keys are allowed.
type HeaderPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// APIRequest is the payload sent to the classification endpoint.
type APIRequest struct {
	ClientIP    string       `json:"clientIp"`
	Headers     []HeaderPair `json:"headers"`
	Method      string       `json:"method"`
	Protocol    string       `json:"protocol"`
	Path        string       `json:"path"`
	QueryString string       `json:"querystring"`
	Body        *string      `json:"body,omitempty"`
}

// Application describes the Kasada application that handled the request.
type Application struct {
	Mode   Mode   `json:"mode"`
	Domain string `json:"domain"`
}

// APIResponse is the classification result. ClientID is only present when
// Kasada has identified the client; Error is set on service-side failures.
type APIResponse struct {
	RequestID            string         `json:"requestId"`
	ClientID             string         `json:"clientId,omitempty"`
	Classification       Classification `json:"classification"`
	ResponseHeadersToSet []HeaderPair   `json:"responseHeadersToSet"`
	Application          Application    `json:"application"`
	Error                string         `json:"error,omitempty"`
}

// Err returns ErrServiceError wrapped with the reported message, or nil.
func (r *APIResponse) Err() error {
	if r == nil || r.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrServiceError, r.Error)
}

// Blocked reports whether the verdict requires blocking the request.
func (r *APIResponse) Blocked() bool {
	return r.Classification == ClassificationBadBot && r.Application.Mode.Enforcing()
}

func (r *APIResponse) validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("%w: missing requestId", ErrMalformedResponse)
	}
	if !r.Classification.valid() {
		return fmt.Errorf("%w: unknown classification %q", ErrMalformedResponse, r.Classification)
	}
	if !r.Application.Mode.valid() {
		return fmt.Errorf("%w: unknown application mode %q", ErrMalformedResponse, r.Application.Mode)
	}
	return nil
}
