// Package urlfetch downloads a remote image on behalf of a user and hands the
// body to storage. The host must resolve only to public addresses, and the
// connection is dialed to the address that was checked.
package urlfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/yukikurage/busybee/internal/logging"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/storage"
)

const (
	ConnectTimeout = 5 * time.Second
	ReadTimeout    = 5 * time.Second
	UserAgent      = "busybee/1.0"

	field = "imageUrl"
)

var errBlockedAddress = errors.New("urlfetch: blocked address")

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Streamer stores a body of unknown length; see storage.FileStorage.
type Streamer interface {
	StoreStream(ctx context.Context, body io.Reader, filename, username, contentType string) (string, error)
}

type Fetcher struct {
	store    Streamer
	resolver Resolver
	allowed  func(netip.Addr) bool
	logger   *slog.Logger
}

type Option func(*Fetcher)

func WithResolver(r Resolver) Option {
	return func(f *Fetcher) { f.resolver = r }
}

// WithAddressPolicy replaces IsPublicAddr as the check applied to resolved
// and dialed addresses.
func WithAddressPolicy(allowed func(netip.Addr) bool) Option {
	return func(f *Fetcher) { f.allowed = allowed }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func New(store Streamer, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:    store,
		resolver: net.DefaultResolver,
		allowed:  IsPublicAddr,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DownloadAndStore fetches rawURL and stores the body for username,
// returning the stored handle. Validation failures are *safety.ValidationError
// on the imageUrl field; admission failures come from the Streamer.
func (f *Fetcher) DownloadAndStore(ctx context.Context, rawURL, username string) (string, error) {
	u, err := f.parse(ctx, rawURL, username)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	f.logger.InfoContext(ctx, "url upload attempt",
		"user", logging.SafeValue(username), "scheme", u.Scheme, "host", logging.SafeValue(host))

	addrs, err := f.resolvePublic(ctx, host, username)
	if err != nil {
		return "", err
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", safety.Invalid(field, "invalid")
	}
	req.Header.Set("User-Agent", UserAgent)

	client := f.pinnedClient(addrs, port)
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		f.logger.WarnContext(ctx, "url upload fetch failed",
			"user", logging.SafeValue(username), "host", logging.SafeValue(host), "error", err)
		return "", safety.Invalid(field, "fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		f.logger.WarnContext(ctx, "url upload rejected",
			"reason", "non-OK status", "user", logging.SafeValue(username),
			"host", logging.SafeValue(host), "status", resp.StatusCode)
		return "", safety.Invalid(field, "non-OK status")
	}
	if resp.ContentLength > storage.MaxUploadBytes {
		f.logger.WarnContext(ctx, "url upload rejected",
			"reason", "content-length too large", "user", logging.SafeValue(username),
			"host", logging.SafeValue(host), "length", resp.ContentLength)
		return "", &storage.Rejection{Kind: storage.KindTooLarge, Reason: "file too large"}
	}

	contentType := mediaType(resp.Header.Get("Content-Type"))
	filename := "download" + storage.ExtensionFor(contentType)

	handle, err := f.store.StoreStream(ctx, resp.Body, filename, username, contentType)
	if err != nil {
		f.logger.WarnContext(ctx, "url upload not stored",
			"user", logging.SafeValue(username), "host", logging.SafeValue(host), "error", err)
		return "", err
	}
	f.logger.InfoContext(ctx, "url upload stored",
		"user", logging.SafeValue(username), "host", logging.SafeValue(host), "stored", handle)
	return handle, nil
}

func (f *Fetcher) parse(ctx context.Context, rawURL, username string) (*url.URL, error) {
	reject := func(reason string) error {
		f.logger.WarnContext(ctx, "url upload rejected", "reason", reason, "user", logging.SafeValue(username))
		return safety.Invalid(field, reason)
	}

	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, reject("required")
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Opaque != "" {
		return nil, reject("invalid")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, reject("unsupported protocol")
	}
	if u.User != nil {
		return nil, reject("must not contain credentials")
	}
	if u.Hostname() == "" {
		return nil, reject("missing host")
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, reject("invalid port")
		}
	}
	return u, nil
}

// resolvePublic resolves host and fails unless every address is allowed.
func (f *Fetcher) resolvePublic(ctx context.Context, host, username string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	if ip, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{ip}
	} else {
		addrs, err = f.resolver.LookupNetIP(ctx, "ip", host)
		if err != nil || len(addrs) == 0 {
			f.logger.WarnContext(ctx, "url upload rejected",
				"reason", "dns failure", "user", logging.SafeValue(username), "host", logging.SafeValue(host))
			return nil, safety.Invalid(field, "host resolution failed")
		}
	}

	for i, addr := range addrs {
		addrs[i] = addr.Unmap()
		if !f.allowed(addrs[i]) {
			f.logger.WarnContext(ctx, "url upload rejected",
				"reason", "ssrf blocked", "user", logging.SafeValue(username),
				"host", logging.SafeValue(host), "ip", addrs[i].String())
			return nil, safety.Invalid(field, "blocked host address")
		}
	}
	return addrs, nil
}

// pinnedClient dials only the given addresses, never follows redirects and
// ignores proxy settings from the environment.
func (f *Fetcher) pinnedClient(addrs []netip.Addr, port string) *http.Client {
	dialer := &net.Dialer{
		Timeout: ConnectTimeout,
		Control: func(_, address string, _ syscall.RawConn) error {
			ap, err := netip.ParseAddrPort(address)
			if err != nil {
				return err
			}
			if !f.allowed(ap.Addr().Unmap()) {
				return errBlockedAddress
			}
			return nil
		},
	}

	dial := func(ctx context.Context, network, _ string) (net.Conn, error) {
		var lastErr error
		for _, addr := range addrs {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(addr.String(), port))
			if err != nil {
				lastErr = err
				continue
			}
			return &deadlineConn{Conn: conn, timeout: ReadTimeout}, nil
		}
		return nil, fmt.Errorf("dial pinned address: %w", lastErr)
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                  nil,
			DialContext:            dial,
			TLSHandshakeTimeout:    ConnectTimeout,
			ResponseHeaderTimeout:  ReadTimeout,
			MaxResponseHeaderBytes: 64 << 10,
			DisableKeepAlives:      true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// deadlineConn bounds every read, so a server that trickles bytes cannot
// hold the worker past ReadTimeout per read.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func mediaType(ct string) string {
	ct = strings.TrimSpace(ct)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
