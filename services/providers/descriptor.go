package providers

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AuthKind selects where a provider expects its credential
type AuthKind string

const (
	// AuthNone sends no credential (e.g. a locally hosted model server)
	AuthNone AuthKind = "none"

	// AuthBearer sends "Authorization: Bearer <credential>"
	AuthBearer AuthKind = "bearer"

	// AuthHeader sends "<Name>: <credential>"
	AuthHeader AuthKind = "header"

	// AuthQuery appends "?<Name>=<credential>" to the endpoint URL
	AuthQuery AuthKind = "query"
)

// AuthStrategy describes credential placement for one provider
type AuthStrategy struct {
	Kind AuthKind
	// Name is the header or query parameter name for AuthHeader and AuthQuery
	Name string
}

// NoAuth returns a strategy that never injects a credential
func NoAuth() AuthStrategy { return AuthStrategy{Kind: AuthNone} }

// BearerAuth returns a strategy using the Authorization header
func BearerAuth() AuthStrategy { return AuthStrategy{Kind: AuthBearer} }

// HeaderAuth returns a strategy using a provider-specific header
func HeaderAuth(name string) AuthStrategy { return AuthStrategy{Kind: AuthHeader, Name: name} }

// QueryAuth returns a strategy using a URL query parameter
func QueryAuth(name string) AuthStrategy { return AuthStrategy{Kind: AuthQuery, Name: name} }

// Apply injects credential into req
func (a AuthStrategy) Apply(req *http.Request, credential string) {
	switch a.Kind {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+credential)
	case AuthHeader:
		req.Header.Set(a.Name, credential)
	case AuthQuery:
		q := req.URL.Query()
		q.Set(a.Name, credential)
		req.URL.RawQuery = q.Encode()
	}
}

func (a AuthStrategy) validate() error {
	switch a.Kind {
	case AuthNone, AuthBearer:
		return nil
	case AuthHeader, AuthQuery:
		if a.Name == "" {
			return fmt.Errorf("auth strategy %s requires a name", a.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown auth strategy %q", a.Kind)
	}
}

// RequestBuilder turns a prompt into a provider-specific JSON payload
type RequestBuilder func(model, prompt string) interface{}

// ResponseExtractor pulls the reply text out of a raw provider response body.
// It fails when the expected fields are absent.
type ResponseExtractor func(body []byte) (string, error)

// Descriptor is one row of the provider table: where to send a prompt, how
// to shape it, how to authenticate and how to read the reply back.
type Descriptor struct {
	// Key uniquely identifies the provider (e.g. "openai")
	Key string

	// Endpoint is the full URL receiving the POST
	Endpoint string

	// Model identifier placed into the request payload
	Model string

	// Credential is the static secret, possibly empty
	Credential string

	// RequiresCredential marks providers that cannot be called without one
	RequiresCredential bool

	// Auth places the credential on the request
	Auth AuthStrategy

	// Headers are static extra headers (e.g. API version pins)
	Headers map[string]string

	// Timeout bounds a single call; zero means DefaultTimeout
	Timeout time.Duration

	Build   RequestBuilder
	Extract ResponseExtractor
}

// Configured reports whether the descriptor can be dispatched to
func (d Descriptor) Configured() bool {
	return !d.RequiresCredential || d.Credential != ""
}

// CallTimeout is the deadline applied to a single call
func (d Descriptor) CallTimeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultTimeout
	}
	return d.Timeout
}

// Validate checks the descriptor is usable
func (d Descriptor) Validate() error {
	if d.Key == "" {
		return errors.New("provider key cannot be empty")
	}
	if d.Endpoint == "" {
		return fmt.Errorf("provider %s: endpoint cannot be empty", d.Key)
	}
	if d.Build == nil {
		return fmt.Errorf("provider %s: request builder is required", d.Key)
	}
	if d.Extract == nil {
		return fmt.Errorf("provider %s: response extractor is required", d.Key)
	}
	if err := d.Auth.validate(); err != nil {
		return fmt.Errorf("provider %s: %w", d.Key, err)
	}
	if d.RequiresCredential && d.Auth.Kind == AuthNone {
		return fmt.Errorf("provider %s: requires a credential but has no auth strategy", d.Key)
	}
	if d.Timeout < 0 {
		return fmt.Errorf("provider %s: timeout cannot be negative", d.Key)
	}
	return nil
}

func (d Descriptor) clone() Descriptor {
	if d.Headers != nil {
		headers := make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			headers[k] = v
		}
		d.Headers = headers
	}
	return d
}

// ProviderConfig holds the per-deployment settings of one provider
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// Endpoint overrides the default URL (optional)
	Endpoint string

	// Model overrides the default model (optional)
	Model string

	// Timeout for requests (optional)
	Timeout time.Duration
}
