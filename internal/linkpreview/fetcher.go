// Package linkpreview turns URLs into OpenGraph-style previews.
//
// Everything here is best effort. A URL that cannot be fetched or parsed
// yields no preview; it never fails the message it belongs to.
package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/lalith-99/teamchat/internal/models"
	"golang.org/x/net/html"
)

const maxBodyBytes = 1 << 20

var (
	ErrUnsupportedURL = errors.New("linkpreview: only http and https URLs are supported")
	// ErrForbiddenAddress means the host resolved to an address the server
	// must not fetch from on a user's behalf.
	ErrForbiddenAddress = errors.New("linkpreview: destination address not allowed")
)

// sharedAddressSpace is carrier-grade NAT (RFC 6598), which netip does not
// count as private.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

type Fetcher interface {
	// Fetch returns (nil, nil) when the page has no usable metadata.
	Fetch(ctx context.Context, rawURL string) (*models.LinkPreview, error)
}

// HTTPFetcher fetches pages that users linked to, so every URL is hostile
// input. Connections are only made to public unicast addresses. The check
// runs in the dialer's Control hook, after DNS resolution and once per
// connection, which covers redirects and names that resolve differently on
// a second lookup. The environment's proxy settings are ignored for the
// same reason: a proxy would dial on our behalf without the check.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	allowPrivate bool
}

type Option func(*HTTPFetcher)

// AllowPrivateNetworks lifts the public-address restriction. Only for tests
// and trusted deployments.
func AllowPrivateNetworks() Option {
	return func(f *HTTPFetcher) { f.allowPrivate = true }
}

func NewHTTPFetcher(timeout time.Duration, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{userAgent: "teamchat-linkpreview/1.0"}
	for _, opt := range opts {
		opt(f)
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	if !f.allowPrivate {
		dialer.Control = guardAddress
	}
	f.client = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("too many redirects")
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return ErrUnsupportedURL
			}
			return nil
		},
	}
	return f
}

// guardAddress is a net.Dialer Control hook; address is the resolved
// ip:port about to be connected.
func guardAddress(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	if !publicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, ap.Addr())
	}
	return nil
}

func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case !ip.IsValid(),
		!ip.IsGlobalUnicast(),
		ip.IsPrivate(),
		ip.IsLoopback(),
		ip.IsLinkLocalUnicast(),
		ip.IsUnspecified(),
		sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*models.LinkPreview, error) {
	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, ErrUnsupportedURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", target.Host, resp.StatusCode)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		return nil, nil
	}

	meta := parseMeta(io.LimitReader(resp.Body, maxBodyBytes))
	preview := meta.preview(rawURL, resp.Request.URL)
	if preview.Title == "" && preview.Description == "" && preview.Image == "" {
		return nil, nil
	}
	return preview, nil
}

type pageMeta struct {
	og          map[string]string
	title       string
	description string
}

// parseMeta walks the token stream up to </head>. The body is never needed
// and skipping it keeps large pages cheap.
func parseMeta(r io.Reader) pageMeta {
	meta := pageMeta{og: make(map[string]string)}
	z := html.NewTokenizer(r)
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return meta
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "head":
				return meta
			case "title":
				inTitle = false
			}
		case html.TextToken:
			if inTitle && meta.title == "" {
				meta.title = strings.TrimSpace(string(z.Text()))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "title":
				inTitle = true
			case "body":
				return meta
			case "meta":
				if hasAttr {
					meta.addMeta(z)
				}
			}
		}
	}
}

func (m *pageMeta) addMeta(z *html.Tokenizer) {
	var property, name, content string
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "property":
			property = strings.ToLower(string(val))
		case "name":
			name = strings.ToLower(string(val))
		case "content":
			content = strings.TrimSpace(string(val))
		}
		if !more {
			break
		}
	}
	if content == "" {
		return
	}
	if strings.HasPrefix(property, "og:") {
		if _, seen := m.og[property]; !seen {
			m.og[property] = content
		}
		return
	}
	if name == "description" && m.description == "" {
		m.description = content
	}
}

func (m pageMeta) preview(rawURL string, final *url.URL) *models.LinkPreview {
	p := &models.LinkPreview{
		URL:         rawURL,
		Title:       firstNonEmpty(m.og["og:title"], m.title),
		Description: firstNonEmpty(m.og["og:description"], m.description),
		SiteName:    m.og["og:site_name"],
	}
	if img := m.og["og:image"]; img != "" {
		if ref, err := url.Parse(img); err == nil && final != nil {
			img = final.ResolveReference(ref).String()
		}
		p.Image = img
	}
	if p.SiteName == "" && final != nil {
		p.SiteName = final.Hostname()
	}
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
