package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
)

// HTTPSAdapter reaches file sources exposed over HTTP(S). Most endpoints do
// not support directory listings, so a concrete resolved filename is located
// with a HEAD probe of the full URL: 200 means one candidate, 404 means zero
// candidates. When the resolved filename contains a wildcard the adapter
// instead GETs the resolved path and expects a JSON listing.
type HTTPSAdapter struct {
	client *http.Client
	creds  Credentials
	logger zerolog.Logger
}

// NewHTTPSAdapter creates an HTTPS adapter with a bounded per-call timeout.
func NewHTTPSAdapter(creds Credentials, callTimeout time.Duration, logger zerolog.Logger) *HTTPSAdapter {
	return &HTTPSAdapter{
		client: &http.Client{Timeout: callTimeout},
		creds:  creds,
		logger: logger.With().Str("component", "HTTPSAdapter").Logger(),
	}
}

// Protocol returns the protocol kind this adapter serves.
func (a *HTTPSAdapter) Protocol() models.ProtocolKind {
	return models.ProtocolHTTPS
}

// listingEntry is one element of a JSON directory listing response.
type listingEntry struct {
	Name         string     `json:"name"`
	Size         *int64     `json:"size,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// List locates candidate files under the resolved path.
func (a *HTTPSAdapter) List(ctx context.Context, resolvedPath, resolvedFilename string) ([]CandidateFile, error) {
	if strings.ContainsAny(resolvedFilename, "*?") {
		return a.listDirectory(ctx, resolvedPath, resolvedFilename)
	}
	return a.probe(ctx, resolvedPath, resolvedFilename)
}

// probe issues a HEAD request for the fully resolved file URL.
func (a *HTTPSAdapter) probe(ctx context.Context, resolvedPath, resolvedFilename string) ([]CandidateFile, error) {
	fileURL := joinURL(resolvedPath, resolvedFilename)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fileURL, nil)
	if err != nil {
		return nil, models.NewValidationError("url", fmt.Sprintf("invalid file URL %q: %v", fileURL, err))
	}
	a.applyAuth(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classifyNetworkError(fileURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		candidate := CandidateFile{URL: fileURL, Filename: resolvedFilename}
		if resp.ContentLength >= 0 {
			size := resp.ContentLength
			candidate.Size = &size
		}
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if parsed, parseErr := http.ParseTime(lm); parseErr == nil {
				candidate.LastModified = &parsed
			}
		}
		return []CandidateFile{candidate}, nil
	case resp.StatusCode == http.StatusNotFound:
		// The file is simply not there yet. Zero candidates, not an error.
		a.logger.Debug().Str("url", fileURL).Msg("Probe returned 404, no candidates")
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, models.NewAuthenticationError(fileURL, fmt.Errorf("HTTP %d", resp.StatusCode))
	default:
		return nil, models.NewConnectionError(fileURL, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode))
	}
}

// listDirectory GETs the resolved path and matches the JSON listing against
// the wildcard filename pattern.
func (a *HTTPSAdapter) listDirectory(ctx context.Context, resolvedPath, resolvedFilename string) ([]CandidateFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolvedPath, nil)
	if err != nil {
		return nil, models.NewValidationError("url", fmt.Sprintf("invalid listing URL %q: %v", resolvedPath, err))
	}
	req.Header.Set("Accept", "application/json")
	a.applyAuth(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classifyNetworkError(resolvedPath, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, models.NewAuthenticationError(resolvedPath, fmt.Errorf("HTTP %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, models.NewConnectionError(resolvedPath, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode))
	}

	var entries []listingEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, models.NewConnectionError(resolvedPath, fmt.Errorf("decoding listing response: %w", err))
	}

	var candidates []CandidateFile
	for _, entry := range entries {
		matched, matchErr := path.Match(resolvedFilename, entry.Name)
		if matchErr != nil || !matched {
			continue
		}
		candidates = append(candidates, CandidateFile{
			URL:          joinURL(resolvedPath, entry.Name),
			Filename:     entry.Name,
			Size:         entry.Size,
			LastModified: entry.LastModified,
		})
	}
	return candidates, nil
}

// Fetch streams the candidate's bytes with a GET request.
func (a *HTTPSAdapter) Fetch(ctx context.Context, candidate CandidateFile) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	if err != nil {
		return nil, 0, models.NewValidationError("url", fmt.Sprintf("invalid fetch URL %q: %v", candidate.URL, err))
	}
	a.applyAuth(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, classifyNetworkError(candidate.URL, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, resp.ContentLength, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, 0, models.NewAuthenticationError(candidate.URL, fmt.Errorf("HTTP %d", resp.StatusCode))
	default:
		resp.Body.Close()
		return nil, 0, models.NewConnectionError(candidate.URL, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode))
	}
}

func (a *HTTPSAdapter) applyAuth(req *http.Request) {
	if a.creds.Username != "" {
		req.SetBasicAuth(a.creds.Username, a.creds.Password)
	}
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}
