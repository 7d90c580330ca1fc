// Package probe performs a lightweight pre-flight reachability check with a
// Chrome TLS fingerprint (utls). The batch scheduler uses it to fail dead
// hosts fast as network errors instead of spending a browser session on them.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	tls2 "github.com/refraction-networking/utls"
	"github.com/pagelens/pagelens/models"
)

// Prober resolves and connects to target hosts without rendering anything.
type Prober struct {
	defaultProxy string
	timeout      time.Duration
}

// New creates a Prober. proxy may be empty.
func New(proxy string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{defaultProxy: proxy, timeout: timeout}
}

// Check issues a HEAD request to the target with a Chrome TLS fingerprint.
// A DNS or connection failure returns a NetworkError; HTTP-level statuses
// (including 4xx/5xx) are NOT failures — the browser may still render them.
func (p *Prober) Check(ctx context.Context, targetURL string) error {
	u, err := url.Parse(targetURL)
	if err != nil {
		return models.NewRenderError(models.ErrKindInvalidInput,
			fmt.Sprintf("unparseable URL %q", targetURL), err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr)
		},
	}
	if p.defaultProxy != "" {
		if proxyURL, perr := url.Parse(p.defaultProxy); perr == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, targetURL, nil)
	if err != nil {
		return models.NewRenderError(models.ErrKindInvalidInput, "failed to build probe request", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return models.NewRenderError(models.ErrKindNetwork,
				fmt.Sprintf("host %s does not resolve", u.Hostname()), err).
				WithSuggestion("verify the hostname is correct and publicly resolvable")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// Slow is not dead; let the renderer take its shot.
			return nil
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return models.NewRenderError(models.ErrKindNetwork,
				fmt.Sprintf("connection to %s failed", u.Host), err)
		}
		// TLS oddities, protocol refusals etc. are inconclusive here.
		return nil
	}
	resp.Body.Close()
	return nil
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
