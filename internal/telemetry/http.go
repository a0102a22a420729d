package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dm/memwatch/internal/model"
)

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	// URL returns a JSON document with heapUsed, heapTotal, external, rss
	// and optionally arrayBuffers, heapLimit and regions. Credentials in the
	// userinfo part are sent as basic auth and stripped from the URL.
	URL                string
	InsecureSkipVerify bool
	RequestTimeout     time.Duration
}

// HTTPSource polls a remote endpoint for memory statistics. It reads the
// shape served by "memwatch serve" at /api/stats and the object a Node.js
// process returns from process.memoryUsage().
type HTTPSource struct {
	http     *http.Client
	url      string
	username string
	password string
}

// remoteStats is the wire form of a remote reading. Sizes are in bytes.
type remoteStats struct {
	HeapUsed     *uint64        `json:"heapUsed"`
	HeapTotal    *uint64        `json:"heapTotal"`
	External     uint64         `json:"external"`
	RSS          uint64         `json:"rss"`
	ArrayBuffers uint64         `json:"arrayBuffers"`
	HeapLimit    uint64         `json:"heapLimit"`
	Regions      []model.Region `json:"regions"`
}

// NewHTTPSource validates cfg and builds the client.
func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	endpoint, username, password, err := parseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	return &HTTPSource{
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		url:      endpoint,
		username: username,
		password: password,
	}, nil
}

// Name implements Source. The URL carries no credentials.
func (s *HTTPSource) Name() string {
	return "http:" + s.url
}

// CurrentMemoryStats implements Source.
func (s *HTTPSource) CurrentMemoryStats(ctx context.Context) (Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.username != "" || s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return Stats{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	const maxResponseBytes = 1 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Stats{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Stats{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var rs remoteStats
	if err := json.Unmarshal(body, &rs); err != nil {
		return Stats{}, fmt.Errorf("decode stats: %w", err)
	}
	if rs.HeapUsed == nil || rs.HeapTotal == nil {
		return Stats{}, fmt.Errorf("decode stats: heapUsed and heapTotal are required")
	}

	st := Stats{
		HeapUsed:     *rs.HeapUsed,
		HeapTotal:    *rs.HeapTotal,
		External:     rs.External,
		RSS:          rs.RSS,
		ArrayBuffers: rs.ArrayBuffers,
		HeapLimit:    rs.HeapLimit,
		Regions:      rs.Regions,
	}
	if st.HeapLimit == 0 {
		st.HeapLimit = st.HeapTotal
	}
	return st, nil
}

// parseEndpoint checks an http(s) URL and splits off its credentials.
func parseEndpoint(raw string) (endpoint, username, password string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", "", fmt.Errorf("unsupported scheme %q (must be http or https)", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", "", "", fmt.Errorf("invalid URL %q: host is required", raw)
	}
	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
		u.User = nil
	}
	u.Fragment = ""
	return u.String(), username, password, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
