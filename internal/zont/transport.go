package zont

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// NewHTTPClient builds the client used for cloud calls, routed through
// proxyURL when one is configured. An unparsable proxy is logged and ignored.
func NewHTTPClient(proxyURL string, logger *zap.Logger) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			logger.Warn("invalid proxy URL, connecting directly", zap.String("proxy", proxyURL), zap.Error(err))
		} else {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}
