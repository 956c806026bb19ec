package urlfetch

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/sandbox"
	"github.com/yukikurage/busybee/internal/storage"
)

var pngBody = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x01}, 64)...)

type fakeResolver map[string][]netip.Addr

func (r fakeResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	addrs, ok := r[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return append([]netip.Addr(nil), addrs...), nil
}

func loopbackOnly(a netip.Addr) bool { return a.IsLoopback() }

func newTestStorage(t *testing.T) (*storage.FileStorage, *sandbox.Sandbox) {
	t.Helper()
	box, err := sandbox.New(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	t.Cleanup(func() { box.Close() })
	return storage.New(box, storage.WithFreeSpace(func(string) (uint64, error) { return 1 << 40, nil })), box
}

// serve starts a server and returns a URL for it on the host name
// images.example, which only the fake resolver knows.
func serve(t *testing.T, h http.HandlerFunc) (string, fakeResolver) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ap := netip.MustParseAddrPort(strings.TrimPrefix(srv.URL, "http://"))
	base := "http://images.example:" + strconv.Itoa(int(ap.Port()))
	return base, fakeResolver{"images.example": {ap.Addr()}}
}

func requireInvalid(t *testing.T, err error, want string) {
	t.Helper()
	var ve *safety.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, want, ve.Error())
}

func TestDownloadAndStore_PinsResolvedAddress(t *testing.T) {
	var agent atomic.Value
	base, resolver := serve(t, func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.UserAgent())
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBody)
	})
	store, _ := newTestStorage(t)
	f := New(store, WithResolver(resolver), WithAddressPolicy(loopbackOnly))

	handle, err := f.DownloadAndStore(context.Background(), base+"/pic.png", "Ann")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(handle, "Ann/"))
	assert.True(t, strings.HasSuffix(handle, ".png"))
	assert.Equal(t, UserAgent, agent.Load())

	got, err := store.GetBytes(handle)
	require.NoError(t, err)
	assert.Equal(t, pngBody, got)
}

func TestDownloadAndStore_ExtensionFromContentType(t *testing.T) {
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x02}, 32)...)
	base, resolver := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "Image/JPEG; charset=binary")
		w.Write(jpeg)
	})
	store, _ := newTestStorage(t)
	f := New(store, WithResolver(resolver), WithAddressPolicy(loopbackOnly))

	handle, err := f.DownloadAndStore(context.Background(), base+"/anything", "Ann")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(handle, ".jpg"))
}

func TestDownloadAndStore_Validation(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"empty", "  ", "imageUrl: required"},
		{"unparseable", "http://[::1", "imageUrl: invalid"},
		{"opaque", "javascript:alert(1)", "imageUrl: invalid"},
		{"ftp", "ftp://example.com/a.png", "imageUrl: unsupported protocol"},
		{"file", "file:///etc/passwd", "imageUrl: unsupported protocol"},
		{"relative", "/a.png", "imageUrl: unsupported protocol"},
		{"credentials", "http://user:pw@example.com/a.png", "imageUrl: must not contain credentials"},
		{"missing host", "http:///a.png", "imageUrl: missing host"},
		{"port zero", "http://example.com:0/a.png", "imageUrl: invalid port"},
		{"port too big", "http://example.com:70000/a.png", "imageUrl: invalid port"},
	}
	store, _ := newTestStorage(t)
	f := New(store, WithResolver(fakeResolver{}))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.DownloadAndStore(context.Background(), tt.url, "Ann")
			requireInvalid(t, err, tt.want)
		})
	}
}

func TestDownloadAndStore_BlocksNonPublicAddresses(t *testing.T) {
	resolver := fakeResolver{
		"internal.example": {netip.MustParseAddr("10.0.0.7")},
		"mixed.example":    {netip.MustParseAddr("93.184.216.34"), netip.MustParseAddr("192.168.1.1")},
		"mapped.example":   {netip.MustParseAddr("::ffff:127.0.0.1")},
		"meta.example":     {netip.MustParseAddr("169.254.169.254")},
	}
	tests := []string{
		"http://127.0.0.1/x.png",
		"http://127.0.0.1:8080/x.png",
		"http://[::1]/x.png",
		"http://0.0.0.0/x.png",
		"http://[fe80::1]/x.png",
		"http://224.0.0.1/x.png",
		"http://internal.example/x.png",
		"http://mixed.example/x.png",
		"http://mapped.example/x.png",
		"https://meta.example/latest/meta-data",
	}
	store, box := newTestStorage(t)
	f := New(store, WithResolver(resolver))
	for _, u := range tests {
		t.Run(u, func(t *testing.T) {
			_, err := f.DownloadAndStore(context.Background(), u, "Ann")
			requireInvalid(t, err, "imageUrl: blocked host address")
		})
	}
	_, err := box.Stat("Ann")
	assert.Error(t, err)
}

func TestDownloadAndStore_ResolutionFailure(t *testing.T) {
	store, _ := newTestStorage(t)
	f := New(store, WithResolver(fakeResolver{"empty.example": nil}))

	_, err := f.DownloadAndStore(context.Background(), "http://nowhere.example/x.png", "Ann")
	requireInvalid(t, err, "imageUrl: host resolution failed")

	_, err = f.DownloadAndStore(context.Background(), "http://empty.example/x.png", "Ann")
	requireInvalid(t, err, "imageUrl: host resolution failed")
}

func TestDownloadAndStore_NonOKAndRedirect(t *testing.T) {
	var followed atomic.Bool
	base, resolver := serve(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/redirect":
			http.Redirect(w, r, "/target", http.StatusFound)
		case "/target":
			followed.Store(true)
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngBody)
		}
	})
	store, _ := newTestStorage(t)
	f := New(store, WithResolver(resolver), WithAddressPolicy(loopbackOnly))

	_, err := f.DownloadAndStore(context.Background(), base+"/missing", "Ann")
	requireInvalid(t, err, "imageUrl: non-OK status")

	_, err = f.DownloadAndStore(context.Background(), base+"/redirect", "Ann")
	requireInvalid(t, err, "imageUrl: non-OK status")
	assert.False(t, followed.Load())
}

func TestDownloadAndStore_ContentLengthTooLarge(t *testing.T) {
	big := append(append([]byte{}, pngBody...), make([]byte, storage.MaxUploadBytes)...)
	base, resolver := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(big)))
		w.Write(big)
	})
	store, box := newTestStorage(t)
	f := New(store, WithResolver(resolver), WithAddressPolicy(loopbackOnly))

	_, err := f.DownloadAndStore(context.Background(), base+"/big.png", "Ann")
	var rej *storage.Rejection
	require.True(t, errors.As(err, &rej), "got %v", err)
	assert.Equal(t, storage.KindTooLarge, rej.Kind)

	_, err = box.Stat("Ann")
	assert.Error(t, err)
}

func TestDownloadAndStore_BodyMustMatchMagic(t *testing.T) {
	base, resolver := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("<html><script>alert(1)</script></html>"))
	})
	store, box := newTestStorage(t)
	f := New(store, WithResolver(resolver), WithAddressPolicy(loopbackOnly))

	_, err := f.DownloadAndStore(context.Background(), base+"/fake.png", "Ann")
	var rej *storage.Rejection
	require.True(t, errors.As(err, &rej), "got %v", err)
	assert.Equal(t, storage.KindUnsupported, rej.Kind)

	entries, err := box.ReadDir("Ann")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPinnedClient_DialRefusesDisallowedAddress(t *testing.T) {
	base, resolver := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBody)
	})
	store, _ := newTestStorage(t)
	// Resolution passes but the dial-time check refuses every address, as
	// happens when the policy changes between lookup and connect.
	var calls atomic.Int32
	policy := func(a netip.Addr) bool { return calls.Add(1) == 1 }
	f := New(store, WithResolver(resolver), WithAddressPolicy(policy))

	_, err := f.DownloadAndStore(context.Background(), base+"/pic.png", "Ann")
	requireInvalid(t, err, "imageUrl: fetch failed")
}

func TestIsPublicAddr(t *testing.T) {
	tests := map[string]bool{
		"93.184.216.34":        true,
		"8.8.8.8":              true,
		"2606:4700:4700::1111": true,
		"0.0.0.0":              false,
		"0.1.2.3":              false,
		"127.0.0.1":            false,
		"127.255.0.9":          false,
		"10.1.2.3":             false,
		"172.16.0.1":           false,
		"192.168.0.1":          false,
		"169.254.169.254":      false,
		"224.0.0.251":          false,
		"239.255.255.250":      false,
		"::":                   false,
		"::1":                  false,
		"fe80::1":              false,
		"fe80::1%eth0":         false,
		"fec0::1":              false,
		"fd00::1":              false,
		"ff02::1":              false,
		"::ffff:10.0.0.1":      false,
		"::ffff:8.8.8.8":       true,
	}
	for in, want := range tests {
		assert.Equal(t, want, IsPublicAddr(netip.MustParseAddr(in)), in)
	}
	assert.False(t, IsPublicAddr(netip.Addr{}))
}
