package sfsquery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps how much of an API response is read.
const maxResponseBytes = 1 << 20

// Fetcher retrieves the body of an API URL. A Client tries its fetchers in
// order until one succeeds.
type Fetcher interface {
	// Name identifies the fetcher in logs and metrics.
	Name() string
	// Supports reports whether the fetcher can handle u at all.
	Supports(u *url.URL) bool
	// Fetch returns the response body of a GET request for u.
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// DefaultFetchers returns the standard chain: a plain GET on the default
// transport, a client with its own dialer and timeouts, and a raw socket
// request that only handles plaintext HTTP. Each is bounded by DefaultTimeout.
func DefaultFetchers() []Fetcher {
	return []Fetcher{
		NewHTTPGetFetcher(),
		NewHTTPClientFetcher(DefaultTimeout),
		NewSocketFetcher(DefaultTimeout),
	}
}

type httpGetFetcher struct {
	client *http.Client
}

// NewHTTPGetFetcher returns a fetcher on [http.DefaultTransport] whose
// requests are cut off after DefaultTimeout.
func NewHTTPGetFetcher() Fetcher {
	return &httpGetFetcher{
		client: &http.Client{
			Transport: http.DefaultTransport,
			Timeout:   DefaultTimeout,
		},
	}
}

func (f *httpGetFetcher) Name() string { return "http-get" }

func (f *httpGetFetcher) Supports(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

func (f *httpGetFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	return httpGet(ctx, f.client, u)
}

type httpClientFetcher struct {
	client *http.Client
}

// NewHTTPClientFetcher returns a fetcher whose connect timeout and total
// request timeout are both set to timeout.
func NewHTTPClientFetcher(timeout time.Duration) Fetcher {
	dialer := &net.Dialer{Timeout: timeout}
	return &httpClientFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
	}
}

func (f *httpClientFetcher) Name() string { return "http-client" }

func (f *httpClientFetcher) Supports(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

func (f *httpClientFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	return httpGet(ctx, f.client, u)
}

func httpGet(ctx context.Context, client *http.Client, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

type socketFetcher struct {
	timeout time.Duration
}

// NewSocketFetcher returns a fetcher that speaks HTTP/1.0 over a bare TCP
// connection. It cannot do TLS, so it only supports http URLs.
func NewSocketFetcher(timeout time.Duration) Fetcher {
	return &socketFetcher{timeout: timeout}
}

func (f *socketFetcher) Name() string { return "socket" }

func (f *socketFetcher) Supports(u *url.URL) bool {
	return u.Scheme == "http"
}

func (f *socketFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}

	d := net.Dialer{Timeout: f.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(f.timeout)); err != nil {
		return nil, err
	}

	req := "GET " + u.RequestURI() + " HTTP/1.0\r\n" +
		"Host: " + u.Host + "\r\n" +
		"User-Agent: " + UserAgent + "\r\n" +
		"Accept: text/txt,text/html;q=0.9,*/*;q=0.8\r\n" +
		"Connection: close\r\n\r\n"
	if _, err := io.WriteString(conn, req); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(conn, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	return splitHTTPResponse(raw)
}

// splitHTTPResponse checks the status line of a raw HTTP response and returns
// everything after the first blank line.
func splitHTTPResponse(raw []byte) ([]byte, error) {
	head, body, found := bytes.Cut(raw, []byte("\r\n\r\n"))
	if !found {
		return nil, errors.New("malformed HTTP response: missing end of headers")
	}
	statusLine, _, _ := strings.Cut(string(head), "\r\n")
	fields := strings.Fields(statusLine)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return nil, fmt.Errorf("malformed HTTP status line: %q", statusLine)
	}
	if !strings.HasPrefix(fields[1], "2") {
		return nil, fmt.Errorf("unexpected status code: %s", fields[1])
	}
	return body, nil
}
