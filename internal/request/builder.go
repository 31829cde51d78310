// Package request renders the final HTTP method, URL, headers, and body
// for a (profile, event) pair.
package request

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/trafficgate/postback-gateway/internal/macro"
	"github.com/trafficgate/postback-gateway/internal/model"
)

const (
	defaultSignatureParam = "signature"
	redactedPlaceholder   = "***"
)

// ErrMissingEndpoint aborts delivery for the profile before any attempt:
// there is nothing to send to.
var ErrMissingEndpoint = errors.New("profile has no endpoint url")

// Rendered is a fully assembled outbound request. URL and Body hold the
// call-time plaintext; RedactedURL and RedactedBody are the only forms
// allowed into the ledger or operator responses.
type Rendered struct {
	Method       string
	URL          string
	Headers      http.Header
	Body         string
	RedactedURL  string
	RedactedBody string
}

// formBodyTrackers post form-encoded bodies instead of JSON.
var formBodyTrackers = map[string]bool{
	"form":       true,
	"cpatracker": true,
}

// Build renders the request for one profile and one event.
//
// Status translation falls back to the raw event type when the profile's
// status map has no entry for it; that is an explicit pass-through, not an
// error. Template macros that fail to resolve become empty strings inside
// the resolver.
//
// The auth query credential travels with the rendered params: into the
// query string on GET, into the body on POST. Trackers that take
// credentials in the POST body expect them alongside the other params, and
// redaction covers both placements.
func Build(p model.PostbackProfile, e model.Event) (Rendered, error) {
	if strings.TrimSpace(p.Endpoint.URL) == "" {
		return Rendered{}, ErrMissingEndpoint
	}

	status := string(e.Type)
	if mapped, ok := p.StatusMap[string(e.Type)]; ok {
		status = mapped
	}
	extra := map[string]string{
		"status": status,
	}

	// Ordered param names keep rendered URLs deterministic.
	names := make([]string, 0, len(p.Params))
	for name := range p.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make(map[string]string, len(p.Params)+2)
	secretParams := make(map[string]bool, 2)
	for _, name := range names {
		params[name] = macro.Resolve(p.Params[name], e, extra)
	}

	if p.HMAC.Enabled {
		payload := macro.Resolve(p.HMAC.PayloadTemplate, e, extra)
		sigName := p.HMAC.SignatureParam
		if sigName == "" {
			sigName = defaultSignatureParam
		}
		params[sigName] = Sign(p.HMAC.Secret, payload)
		names = insertSorted(names, sigName)
	}

	if p.Auth.QueryKey != "" {
		params[p.Auth.QueryKey] = p.Auth.QueryVal
		secretParams[p.Auth.QueryKey] = true
		names = insertSorted(names, p.Auth.QueryKey)
	}

	headers := make(http.Header)
	if p.Auth.HeaderName != "" {
		headers.Set(p.Auth.HeaderName, p.Auth.HeaderVal)
	}

	baseURL := macro.Resolve(p.Endpoint.URL, e, extra)

	method := strings.ToUpper(p.Endpoint.Method)
	if method != http.MethodPost {
		method = http.MethodGet
	}

	r := Rendered{Method: method, Headers: headers}

	if method == http.MethodGet {
		r.URL = joinQuery(baseURL, encodeQuery(names, params, nil, p.URLEncodeValues))
		r.RedactedURL = joinQuery(baseURL, encodeQuery(names, params, secretParams, p.URLEncodeValues))
		r.RedactedBody = ""
		return r, nil
	}

	r.URL = baseURL
	r.RedactedURL = baseURL
	if formBodyTrackers[strings.ToLower(p.TrackerType)] {
		headers.Set("Content-Type", "application/x-www-form-urlencoded")
		r.Body = encodeQuery(names, params, nil, true)
		r.RedactedBody = encodeQuery(names, params, secretParams, true)
	} else {
		headers.Set("Content-Type", "application/json")
		r.Body = marshalBody(params, nil)
		r.RedactedBody = marshalBody(params, secretParams)
	}
	return r, nil
}

// Sign computes the hex-encoded HMAC-SHA256 of payload under secret.
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodeQuery assembles k=v pairs in the given name order. Values are
// URL-escaped per value only when encode is set; keys are always escaped.
// Names listed in redact are replaced with a placeholder.
func encodeQuery(names []string, params map[string]string, redact map[string]bool, encode bool) string {
	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(name))
		sb.WriteByte('=')
		v := params[name]
		if redact[name] {
			v = redactedPlaceholder
		} else if encode {
			v = url.QueryEscape(v)
		}
		sb.WriteString(v)
	}
	return sb.String()
}

func joinQuery(base, query string) string {
	if query == "" {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query
}

func marshalBody(params map[string]string, redact map[string]bool) string {
	if len(redact) > 0 {
		clone := make(map[string]string, len(params))
		for k, v := range params {
			if redact[k] {
				v = redactedPlaceholder
			}
			clone[k] = v
		}
		params = clone
	}
	// map keys marshal in sorted order, so bodies are deterministic
	b, _ := json.Marshal(params)
	return string(b)
}

// insertSorted keeps names ordered after builder-injected params.
func insertSorted(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names // template already emits this param; overwritten above
		}
	}
	names = append(names, name)
	sort.Strings(names)
	return names
}
