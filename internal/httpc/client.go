// Package httpc builds HTTP clients for calls that must never hang a frame
// loop. Use NewClient instead of http.DefaultClient.
package httpc

import (
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultConnectTimeout  = 5 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// A classifier service is called once per frame on a single host, so idle
// connections to it are kept warm.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          8,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: DefaultTimeout,
	}
}

// NewClient returns a client whose requests give up after timeout.
// A zero timeout falls back to DefaultTimeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := newTransport()
	if timeout < t.ResponseHeaderTimeout {
		t.ResponseHeaderTimeout = timeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}
}
