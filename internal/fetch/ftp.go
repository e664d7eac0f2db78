package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

const ftpDialTimeout = 5 * time.Second

// FTPFetcher retrieves ftp:// URLs with an anonymous login, one
// goroutine per fetch.
type FTPFetcher struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewFTPFetcher creates an FTPFetcher.
func NewFTPFetcher(logger *slog.Logger) *FTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FTPFetcher{logger: logger, timeout: ftpDialTimeout}
}

// Fetch retrieves rawurl in the background and calls done with the
// body on success. Errors are logged and swallowed.
func (f *FTPFetcher) Fetch(ctx context.Context, rawurl string, done func(url string, body []byte)) {
	go func() {
		body, err := f.retrieve(ctx, rawurl)
		if err != nil {
			f.logger.Debug("fetch failed", "url", rawurl, "err", err)
			return
		}
		if done != nil {
			done(rawurl, body)
		}
	}()
}

func (f *FTPFetcher) retrieve(ctx context.Context, rawurl string) ([]byte, error) {
	addr, path, err := splitFTPURL(rawurl)
	if err != nil {
		return nil, err
	}

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(f.timeout))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("retr %s: %w", path, err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}

// splitFTPURL splits an ftp:// URL into a dialable host:port (port 21
// by default) and the file path.
func splitFTPURL(rawurl string) (addr, path string, err error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", "", err
	}
	if !strings.EqualFold(u.Scheme, "ftp") {
		return "", "", fmt.Errorf("not an ftp url: %q", rawurl)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing host: %q", rawurl)
	}
	addr = u.Host
	if _, _, splitErr := net.SplitHostPort(addr); splitErr != nil {
		addr = net.JoinHostPort(addr, "21")
	}
	return addr, u.Path, nil
}
