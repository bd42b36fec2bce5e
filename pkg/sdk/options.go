package sdk

import (
	"time"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Defaults applied by NewClient.
const (
	DefaultCallTimeout = 30 * time.Second
	DefaultAttempts    = 3
	DefaultRetryDelay  = 500 * time.Millisecond
)

type options struct {
	callTimeout time.Duration
	attempts    int
	retryDelay  time.Duration
	docType     review.DocumentType
	parallelism int
}

// Option tunes a Client.
type Option func(*options)

// WithTimeout bounds each MCP request. Reviews of large documents may need
// more than the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithRetry sets how often a transport failure is retried. Tool errors
// such as an unknown check item are returned at once.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *options) {
		o.attempts = attempts
		o.retryDelay = delay
	}
}

// WithDocumentType is used by RunReview when a request names no type.
func WithDocumentType(t review.DocumentType) Option {
	return func(o *options) { o.docType = t }
}

// WithParallelism is used by RunReview when a request sets none.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

func buildOptions(opts []Option) options {
	o := options{
		callTimeout: DefaultCallTimeout,
		attempts:    DefaultAttempts,
		retryDelay:  DefaultRetryDelay,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.attempts < 1 {
		o.attempts = 1
	}
	return o
}

// withDefaults fills the review request from the client options.
func (o options) withDefaults(req ReviewRequest) ReviewRequest {
	if req.DocumentType == "" && req.Document == nil {
		req.DocumentType = o.docType
	}
	if req.Parallelism <= 0 {
		req.Parallelism = o.parallelism
	}
	return req
}
