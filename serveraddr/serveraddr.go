// Package serveraddr decides how to reach the HTTP side of a collection server.
package serveraddr

import (
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"time"
)

// localDevelopmentHosts are matched as substrings, not as whole addresses, so
// "127.0.0.1:8080" qualifies (and so does anything else containing them).
var localDevelopmentHosts = []string{
	// the host machine as seen from the Android emulator
	"10.0.2.2",
	// a phone with its port forwarded, e.g. `adb reverse tcp:8080 tcp:8080`
	"127.0.0.1",
}

var ErrTLSRequired = errors.New("plain http is not allowed for this host")

type ConnectionKind int

const (
	TLS ConnectionKind = iota
	Plain
)

func (k ConnectionKind) String() string {
	if k == Plain {
		return "plain"
	}

	return "tls"
}

// Scheme is the URL scheme for the connection kind.
func (k ConnectionKind) Scheme() string {
	if k == Plain {
		return "http"
	}

	return "https"
}

// IsLocalDevelopmentAddress reports whether host points at a development server.
func IsLocalDevelopmentAddress(host string) bool {
	for _, local := range localDevelopmentHosts {
		if strings.Contains(host, local) {
			return true
		}
	}

	return false
}

func SelectConnectionKind(host string) ConnectionKind {
	if IsLocalDevelopmentAddress(host) {
		return Plain
	}

	return TLS
}

// BuildURL joins host and path under the scheme the host calls for.
func BuildURL(host, path string) string {
	return SelectConnectionKind(host).Scheme() + "://" + host + path
}

// NewHTTPClient returns a client for talking to host. Unless host is a local
// development address the client refuses plain http requests.
func NewHTTPClient(host string, timeout time.Duration) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()

	var rt http.RoundTripper = base
	if SelectConnectionKind(host) == TLS {
		base.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		rt = requireTLS{next: base}
	}

	return &http.Client{Transport: rt, Timeout: timeout}
}

type requireTLS struct {
	next http.RoundTripper
}

func (r requireTLS) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, ErrTLSRequired
	}

	return r.next.RoundTrip(req)
}
