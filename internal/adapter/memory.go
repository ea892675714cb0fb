package adapter

import (
	"bytes"
	"context"
	"io"
	"path"
	"sync"

	"filesentry/internal/models"
)

// MemoryAdapter is an in-memory SourceAdapter used by tests and local
// development. Files are registered up front; listing and fetch errors can
// be injected to exercise the engine's retry and failure paths.
type MemoryAdapter struct {
	mu         sync.Mutex
	files      map[string][]byte
	listErrs   []error
	fetchErrs  []error
	listCalls  int
	fetchCalls int
}

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{files: make(map[string][]byte)}
}

// Protocol reports HTTPS so the adapter can stand in for a real source in
// wiring tests.
func (a *MemoryAdapter) Protocol() models.ProtocolKind {
	return models.ProtocolHTTPS
}

// AddFile registers a file under the given filename.
func (a *MemoryAdapter) AddFile(filename string, content []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[filename] = content
}

// FailListWith queues errors returned by subsequent List calls, in order.
// Once the queue drains, List succeeds again.
func (a *MemoryAdapter) FailListWith(errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listErrs = append(a.listErrs, errs...)
}

// FailFetchWith queues errors returned by subsequent Fetch calls, in order.
func (a *MemoryAdapter) FailFetchWith(errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetchErrs = append(a.fetchErrs, errs...)
}

// ListCalls returns how many times List has been invoked.
func (a *MemoryAdapter) ListCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listCalls
}

// List returns the registered files whose names match the resolved filename
// pattern (glob wildcards allowed).
func (a *MemoryAdapter) List(ctx context.Context, resolvedPath, resolvedFilename string) ([]CandidateFile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listCalls++

	if len(a.listErrs) > 0 {
		err := a.listErrs[0]
		a.listErrs = a.listErrs[1:]
		return nil, err
	}

	var candidates []CandidateFile
	for name, content := range a.files {
		matched, err := path.Match(resolvedFilename, name)
		if err != nil || (!matched && name != resolvedFilename) {
			continue
		}
		size := int64(len(content))
		candidates = append(candidates, CandidateFile{
			URL:      joinURL(resolvedPath, name),
			Filename: name,
			Size:     &size,
		})
	}
	return candidates, nil
}

// Fetch returns the registered content for the candidate.
func (a *MemoryAdapter) Fetch(ctx context.Context, candidate CandidateFile) (io.ReadCloser, int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetchCalls++

	if len(a.fetchErrs) > 0 {
		err := a.fetchErrs[0]
		a.fetchErrs = a.fetchErrs[1:]
		return nil, 0, err
	}

	content, ok := a.files[candidate.Filename]
	if !ok {
		return nil, 0, models.NewConnectionError(candidate.URL, io.EOF)
	}
	return io.NopCloser(bytes.NewReader(content)), int64(len(content)), nil
}
