package linkpreview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/models"
)

const ogPage = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="Launch day">
<meta property="og:description" content="We shipped it.">
<meta property="og:image" content="/img/cover.png">
<meta name="description" content="plain description">
</head><body><meta property="og:title" content="ignored"></body></html>`

func previewServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/og", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(ogPage))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title> Just a title </title><meta name="description" content="desc"></head></html>`))
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher(t *testing.T) {
	srv := previewServer(t)
	f := NewHTTPFetcher(time.Second, AllowPrivateNetworks())
	ctx := context.Background()

	p, err := f.Fetch(ctx, srv.URL+"/og")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Launch day", p.Title)
	assert.Equal(t, "We shipped it.", p.Description)
	assert.Equal(t, srv.URL+"/img/cover.png", p.Image)
	assert.Equal(t, "127.0.0.1", p.SiteName)

	p, err = f.Fetch(ctx, srv.URL+"/plain")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Just a title", p.Title)
	assert.Equal(t, "desc", p.Description)

	p, err = f.Fetch(ctx, srv.URL+"/json")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.Error(t, err)

	_, err = f.Fetch(ctx, "ftp://example.com/file")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}

func TestHTTPFetcherRefusesInternalAddresses(t *testing.T) {
	srv := previewServer(t)
	f := NewHTTPFetcher(time.Second)
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL+"/og")
	assert.ErrorIs(t, err, ErrForbiddenAddress)

	// names are checked after resolution, not by spelling
	for _, raw := range []string{
		"http://localhost:" + strings.TrimPrefix(srv.URL, "http://127.0.0.1:") + "/og",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/",
		"http://10.0.0.1/",
	} {
		_, err := f.Fetch(ctx, raw)
		assert.ErrorIs(t, err, ErrForbiddenAddress, raw)
	}
}

func TestPublicAddr(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"93.184.216.34", true},
		{"2606:2800:220:1:248:1893:25c8:1946", true},
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"224.0.0.1", false},
		{"::1", false},
		{"fe80::1", false},
		{"fc00::1", false},
		{"::ffff:127.0.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, publicAddr(netip.MustParseAddr(tt.ip)))
		})
	}
}

func TestParseMetaStopsAtBody(t *testing.T) {
	meta := parseMeta(strings.NewReader(ogPage))
	assert.Equal(t, "Launch day", meta.og["og:title"])
	assert.Equal(t, "Fallback title", meta.title)
}

type fakeFetcher struct {
	calls atomic.Int32
	fn    func(url string) (*models.LinkPreview, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*models.LinkPreview, error) {
	f.calls.Add(1)
	return f.fn(url)
}

func TestCachedFetcher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	inner := &fakeFetcher{fn: func(url string) (*models.LinkPreview, error) {
		return &models.LinkPreview{URL: url, Title: "cached"}, nil
	}}
	c := NewCachedFetcher(inner, client, time.Hour, zap.NewNop())

	for i := 0; i < 3; i++ {
		p, err := c.Fetch(context.Background(), "https://example.com/a")
		require.NoError(t, err)
		assert.Equal(t, "cached", p.Title)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.True(t, mr.Exists("linkpreview:https://example.com/a"))

	// cache outage falls through to the inner fetcher
	mr.Close()
	p, err := c.Fetch(context.Background(), "https://example.com/b")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b", p.URL)
}

func TestResolverIsBestEffort(t *testing.T) {
	srv := previewServer(t)
	r := NewResolver(NewHTTPFetcher(5*time.Second, AllowPrivateNetworks()), 300*time.Millisecond, zap.NewNop())

	start := time.Now()
	got := r.Resolve(context.Background(), []string{
		srv.URL + "/og",
		srv.URL + "/missing",
		srv.URL + "/slow",
		srv.URL + "/og",
		"not a url",
		srv.URL + "/plain",
	})
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, got, 2)
	assert.Equal(t, "Launch day", got[0].Title)
	assert.Equal(t, "Just a title", got[1].Title)
}

func TestResolverCapsURLs(t *testing.T) {
	inner := &fakeFetcher{fn: func(url string) (*models.LinkPreview, error) {
		if strings.HasSuffix(url, "3") {
			return nil, errors.New("boom")
		}
		return &models.LinkPreview{URL: url, Title: url}, nil
	}}
	r := NewResolver(inner, time.Second, zap.NewNop())

	urls := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	got := r.Resolve(context.Background(), urls)
	assert.Equal(t, int32(MaxPreviews), inner.calls.Load())
	require.Len(t, got, 4)
	assert.Equal(t, "u1", got[0].URL)
	assert.Equal(t, "u5", got[3].URL)

	assert.Empty(t, r.Resolve(context.Background(), nil))
}
