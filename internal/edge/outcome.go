package edge

import (
	"net/http"

	"github.com/veil-waf/veil-edge/internal/kasada"
)

// Outcome is the terminal decision for one inbound request.
type Outcome string

const (
	OutcomeForward            Outcome = "forward"
	OutcomeForwardWithHeaders Outcome = "forward_with_headers"
	OutcomeBlock              Outcome = "block"
	OutcomeForwardWithCORS    Outcome = "forward_with_cors"
)

// BlockStatus is returned to bad bots when the application is enforcing.
const BlockStatus = http.StatusTooManyRequests

// corsHeaderNames are the request headers the Kasada client SDK attaches.
const corsHeaderNames = "x-kpsdk-ct, x-kpsdk-cd, x-kpsdk-h, x-kpsdk-fc, x-kpsdk-v, x-kpsdk-r"

// Decide maps a method and classification result to an Outcome. It is pure:
// the same inputs always produce the same Outcome.
func Decide(method string, resp *kasada.APIResponse, err error) Outcome {
	switch {
	case method == http.MethodOptions:
		return OutcomeForwardWithCORS
	case err != nil || resp == nil || resp.Err() != nil:
		return OutcomeForward
	case resp.Blocked():
		return OutcomeBlock
	default:
		return OutcomeForwardWithHeaders
	}
}

// addKasadaHeaders appends every classifier-supplied header to h.
func addKasadaHeaders(h http.Header, pairs []kasada.HeaderPair) {
	for _, p := range pairs {
		h.Add(p.Key, p.Value)
	}
}

// addCORSHeaders appends the SDK header names to Access-Control-Allow-Headers,
// keeping whatever the origin already set.
func addCORSHeaders(h http.Header) {
	h.Add("Access-Control-Allow-Headers", corsHeaderNames)
}
