// Package sign defines the request-signing capability consumed by the XHS
// client. The algorithm itself is opaque; implementations either compute
// headers in-process or delegate to an external signing service.
package sign

import "strings"

// Headers is the set of per-request headers produced by a Signer. A
// typical set carries x-s, x-s-common, x-t, x-b3-traceid and x-xray-traceid.
type Headers map[string]string

// Standard header names produced by signers
const (
	HeaderSignature = "x-s"
	HeaderCommon    = "x-s-common"
	HeaderTimestamp = "x-t"
	HeaderB3Trace   = "x-b3-traceid"
	HeaderXRayTrace = "x-xray-traceid"
)

// Signer produces signature headers for a single request. Implementations
// must be safe for concurrent use. Errors are returned to the caller of the
// API unchanged.
type Signer interface {
	SignGET(uri string, params map[string]any, cookies map[string]string) (Headers, error)
	SignPOST(uri string, payload map[string]any, cookies map[string]string) (Headers, error)
}

// Funcs adapts a pair of functions to the Signer interface. A nil func
// signs with no headers.
type Funcs struct {
	GET  func(uri string, params map[string]any, cookies map[string]string) (Headers, error)
	POST func(uri string, payload map[string]any, cookies map[string]string) (Headers, error)
}

func (f Funcs) SignGET(uri string, params map[string]any, cookies map[string]string) (Headers, error) {
	if f.GET == nil {
		return Headers{}, nil
	}
	return f.GET(uri, params, cookies)
}

func (f Funcs) SignPOST(uri string, payload map[string]any, cookies map[string]string) (Headers, error) {
	if f.POST == nil {
		return Headers{}, nil
	}
	return f.POST(uri, payload, cookies)
}

// Merge returns signed overlaid with extra. Keys from extra win, compared
// case-insensitively since both end up as HTTP header names.
func Merge(signed Headers, extra map[string]string) Headers {
	out := make(Headers, len(signed)+len(extra))
	for k, v := range signed {
		out[k] = v
	}
	for k, v := range extra {
		for existing := range out {
			if existing != k && strings.EqualFold(existing, k) {
				delete(out, existing)
			}
		}
		out[k] = v
	}
	return out
}
