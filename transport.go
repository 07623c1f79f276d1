package staging

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultConnectTO = 10 * time.Second
	defaultRequestTO = 30 * time.Second
)

// newHTTPClient builds an HTTP client with split connect/request timeouts.
// Staging cold-starts (Cloud Run scale-from-zero) make the connect timeout
// the one that actually trips in practice.
func newHTTPClient(connectTO, requestTO time.Duration) *http.Client {
	if connectTO <= 0 {
		connectTO = defaultConnectTO
	}
	if requestTO <= 0 {
		requestTO = defaultRequestTO
	}
	return &http.Client{
		Timeout: requestTO,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTO,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   connectTO,
			ResponseHeaderTimeout: requestTO,
			MaxIdleConnsPerHost:   4,
		},
	}
}
