package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"filesentry/internal/models"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
)

// FTPAdapter lists and fetches files from FTP servers. Each call dials a
// fresh connection: sources are polled at most once per cron fire, so
// connection pooling buys nothing and idle FTP sessions are routinely
// dropped by servers anyway.
type FTPAdapter struct {
	creds       Credentials
	callTimeout time.Duration
	logger      zerolog.Logger
}

// NewFTPAdapter creates an FTP adapter with a bounded per-call timeout.
func NewFTPAdapter(creds Credentials, callTimeout time.Duration, logger zerolog.Logger) *FTPAdapter {
	return &FTPAdapter{
		creds:       creds,
		callTimeout: callTimeout,
		logger:      logger.With().Str("component", "FTPAdapter").Logger(),
	}
}

// Protocol returns the protocol kind this adapter serves.
func (a *FTPAdapter) Protocol() models.ProtocolKind {
	return models.ProtocolFTP
}

// List connects to the server named in the resolved path, lists the remote
// directory and matches entries against the resolved filename (glob
// wildcards allowed).
func (a *FTPAdapter) List(ctx context.Context, resolvedPath, resolvedFilename string) ([]CandidateFile, error) {
	host, dir, err := splitFTPPath(resolvedPath)
	if err != nil {
		return nil, err
	}

	conn, err := a.connect(ctx, host, resolvedPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Quit() }()

	entries, err := conn.List(dir)
	if err != nil {
		return nil, classifyFTPError(resolvedPath, err)
	}

	var candidates []CandidateFile
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile {
			continue
		}
		matched, matchErr := path.Match(resolvedFilename, entry.Name)
		if matchErr != nil {
			return nil, models.NewValidationError("filename_pattern", fmt.Sprintf("bad glob %q: %v", resolvedFilename, matchErr))
		}
		if !matched {
			continue
		}
		size := int64(entry.Size)
		modified := entry.Time
		candidates = append(candidates, CandidateFile{
			URL:          joinURL(resolvedPath, entry.Name),
			Filename:     entry.Name,
			Size:         &size,
			LastModified: &modified,
		})
	}

	a.logger.Debug().Str("host", host).Str("dir", dir).Int("candidates", len(candidates)).Msg("FTP listing completed")
	return candidates, nil
}

// Fetch retrieves the candidate's bytes. The returned reader keeps the
// control connection open until Close is called.
func (a *FTPAdapter) Fetch(ctx context.Context, candidate CandidateFile) (io.ReadCloser, int64, error) {
	host, remotePath, err := splitFTPPath(candidate.URL)
	if err != nil {
		return nil, 0, err
	}

	conn, err := a.connect(ctx, host, candidate.URL)
	if err != nil {
		return nil, 0, err
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		_ = conn.Quit()
		return nil, 0, classifyFTPError(candidate.URL, err)
	}

	var size int64 = -1
	if candidate.Size != nil {
		size = *candidate.Size
	}
	return &ftpFileReader{response: resp, conn: conn}, size, nil
}

func (a *FTPAdapter) connect(ctx context.Context, host, source string) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(host,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(a.callTimeout),
	)
	if err != nil {
		return nil, classifyNetworkError(source, err)
	}

	username := a.creds.Username
	password := a.creds.Password
	if username == "" {
		username, password = "anonymous", "anonymous"
	}
	if err := conn.Login(username, password); err != nil {
		_ = conn.Quit()
		return nil, models.NewAuthenticationError(source, err)
	}
	return conn, nil
}

// ftpFileReader ties the data stream and its control connection together so
// closing the reader also releases the session.
type ftpFileReader struct {
	response *ftp.Response
	conn     *ftp.ServerConn
}

func (r *ftpFileReader) Read(p []byte) (int, error) {
	return r.response.Read(p)
}

func (r *ftpFileReader) Close() error {
	err := r.response.Close()
	if quitErr := r.conn.Quit(); err == nil {
		err = quitErr
	}
	return err
}

// splitFTPPath splits "ftp://host:port/dir/sub" into the dial address and
// the remote directory path. The scheme is optional and a missing port
// defaults to 21.
func splitFTPPath(raw string) (host string, dir string, err error) {
	if !strings.Contains(raw, "://") {
		raw = "ftp://" + raw
	}
	parsed, parseErr := url.Parse(raw)
	if parseErr != nil || parsed.Host == "" {
		return "", "", models.NewValidationError("path_pattern", fmt.Sprintf("invalid FTP location %q", raw))
	}
	host = parsed.Host
	if parsed.Port() == "" {
		host += ":21"
	}
	dir = strings.TrimPrefix(parsed.Path, "/")
	if dir == "" {
		dir = "."
	}
	return host, dir, nil
}

// classifyFTPError maps FTP protocol replies onto error categories.
// 530 (not logged in) is a credential failure; everything else at the
// protocol level is treated as a connection failure.
func classifyFTPError(source string, err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code == ftp.StatusNotLoggedIn {
		return models.NewAuthenticationError(source, err)
	}
	return classifyNetworkError(source, err)
}
