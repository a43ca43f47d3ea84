// Package httpclient builds the pooled HTTP clients shared by the platform
// client and the photo downloader.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Shared returns an HTTP client with connection pooling and an overall
// request timeout.
func Shared(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport(timeout),
	}
}

// Streaming returns a client for long-lived responses. Only connection setup
// and response headers are bounded by timeout; the body may stay open.
func Streaming(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Transport: transport(timeout)}
}

func transport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
