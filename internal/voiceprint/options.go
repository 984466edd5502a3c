package voiceprint

import (
	"github.com/okian/voiceprint/internal/adapters/credentials"
	"github.com/okian/voiceprint/internal/adapters/transport"
	"github.com/okian/voiceprint/internal/adapters/upload"
	"github.com/okian/voiceprint/pkg/logger"
)

// Option applies a configuration option to the API.
type Option func(*API)

// WithTransport sets the shared typed client used by the five JSON operations.
func WithTransport(c *transport.Client) Option {
	return func(a *API) {
		if c != nil {
			a.client = c
		}
	}
}

// WithUploader sets the multipart upload primitive.
func WithUploader(u upload.Uploader) Option {
	return func(a *API) {
		if u != nil {
			a.uploader = u
		}
	}
}

// WithResolver sets where uploads resolve the base URL. Defaults to the transport's.
func WithResolver(r transport.Resolver) Option {
	return func(a *API) {
		if r != nil {
			a.resolver = r
		}
	}
}

// WithCredentials sets the token source for uploads.
func WithCredentials(p credentials.Provider) Option {
	return func(a *API) {
		a.credentials = p
	}
}

// WithLogger sets the API logger.
func WithLogger(l logger.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}
