package api

// Route constants for the API endpoints.
const (
	RemixEndpoint         = "/remix"
	PublicKeySetEndpoint  = "/public-key-set"
	EncryptEndpoint       = "/encrypt"
	DecryptShareEndpoint  = "/decrypt-share"
	HammingEndpoint       = "/hamming"
	HealthEndpoint        = "/health"
)

// maxRequestBodyBytes is the hard cap applied to every request body.
const maxRequestBodyBytes = 12 << 20 // 12 MB

// LogExcludedPrefixes defines URL prefixes to exclude from request logging.
var LogExcludedPrefixes = []string{
	HealthEndpoint,
}
