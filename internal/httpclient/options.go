package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
)

type clientOptions struct {
	client        *http.Client
	meterProvider metric.MeterProvider
	providerName  string
	roundTripper  http.RoundTripper
	timeout       time.Duration
	headers       map[string]string
	baseURL       string
	limiter       Waiter
	errorHandler  ResponseErrorHandler
}

// ClientOption configures the client.
type ClientOption func(*clientOptions)

// ResponseErrorHandler turns a status and body into an error. Returning nil accepts the response.
type ResponseErrorHandler func(statusCode int, body []byte) error

func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.client = c }
}

func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(o *clientOptions) { o.meterProvider = mp }
}

// WithProviderName tags metrics and spans, e.g. "subgraph".
func WithProviderName(name string) ClientOption {
	return func(o *clientOptions) { o.providerName = name }
}

func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.roundTripper = rt }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

func WithHeaders(h map[string]string) ClientOption {
	return func(o *clientOptions) { o.headers = h }
}

func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithLimiter throttles every request through w.
func WithLimiter(w Waiter) ClientOption {
	return func(o *clientOptions) { o.limiter = w }
}

func WithResponseErrorHandler(h ResponseErrorHandler) ClientOption {
	return func(o *clientOptions) { o.errorHandler = h }
}
