// Package adapter abstracts protocol-specific listing and fetching of
// remote files behind one capability interface. Adapters never retry
// internally: retry policy is owned by the execution engine so that error
// categorization and backoff stay uniform across protocols.
package adapter

import (
	"context"
	"io"
	"os"
	"time"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
)

// CandidateFile is one remote file returned by a listing.
type CandidateFile struct {
	URL          string
	Filename     string
	Size         *int64
	LastModified *time.Time
}

// SourceAdapter is the capability contract every protocol implements.
// List returns the candidate files matching the already-resolved path and
// filename patterns; a listing with zero matches is a success, not an error.
// Fetch streams a candidate's bytes; the caller owns closing the reader.
// Errors are tagged with models.ErrorCategory via CategorizedError.
type SourceAdapter interface {
	Protocol() models.ProtocolKind
	List(ctx context.Context, resolvedPath, resolvedFilename string) ([]CandidateFile, error)
	Fetch(ctx context.Context, candidate CandidateFile) (io.ReadCloser, int64, error)
}

// Credentials is the resolved credential material for one source.
type Credentials struct {
	Username  string
	Password  string
	AccessKey string
	SecretKey string
	Endpoint  string
	UseSSL    bool
}

// CredentialResolver turns a configuration's credential reference into
// usable credentials. Secrets live outside the configuration store.
type CredentialResolver interface {
	Resolve(ref string) (Credentials, error)
}

// EnvCredentialResolver resolves credential references from environment
// variables: <REF>_USERNAME, <REF>_PASSWORD, <REF>_ACCESS_KEY,
// <REF>_SECRET_KEY, <REF>_ENDPOINT.
type EnvCredentialResolver struct{}

// Resolve reads the environment variables derived from ref. An empty ref
// yields empty credentials, which is valid for anonymous sources.
func (EnvCredentialResolver) Resolve(ref string) (Credentials, error) {
	if ref == "" {
		return Credentials{}, nil
	}
	return Credentials{
		Username:  os.Getenv(ref + "_USERNAME"),
		Password:  os.Getenv(ref + "_PASSWORD"),
		AccessKey: os.Getenv(ref + "_ACCESS_KEY"),
		SecretKey: os.Getenv(ref + "_SECRET_KEY"),
		Endpoint:  os.Getenv(ref + "_ENDPOINT"),
		UseSSL:    os.Getenv(ref+"_DISABLE_SSL") == "",
	}, nil
}

// Factory builds the adapter matching a configuration's protocol kind.
type Factory struct {
	credentials CredentialResolver
	callTimeout time.Duration
	logger      zerolog.Logger
}

// NewFactory creates an adapter factory. callTimeout bounds every remote
// call issued by the adapters it builds.
func NewFactory(credentials CredentialResolver, callTimeout time.Duration, logger zerolog.Logger) *Factory {
	return &Factory{
		credentials: credentials,
		callTimeout: callTimeout,
		logger:      logger.With().Str("component", "AdapterFactory").Logger(),
	}
}

// ForConfiguration returns the adapter for cfg's protocol kind.
func (f *Factory) ForConfiguration(cfg models.Configuration) (SourceAdapter, error) {
	creds, err := f.credentials.Resolve(cfg.Auth.CredentialRef)
	if err != nil {
		return nil, models.NewAuthenticationError(cfg.Auth.CredentialRef, err)
	}

	switch cfg.Protocol {
	case models.ProtocolHTTPS:
		return NewHTTPSAdapter(creds, f.callTimeout, f.logger), nil
	case models.ProtocolFTP:
		return NewFTPAdapter(creds, f.callTimeout, f.logger), nil
	case models.ProtocolBlob:
		return NewBlobAdapter(creds, f.callTimeout, f.logger)
	default:
		return nil, models.NewValidationError("protocol", "unsupported protocol kind: "+string(cfg.Protocol))
	}
}
