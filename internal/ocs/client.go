// Package ocs is a client for the files_sharing part of the OCS API
// served by Nextcloud and compatible servers.
package ocs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alexjbarnes/nextcloud-links/internal/credentials"
	"github.com/google/go-querystring/query"
)

// SharesPath is the share collection endpoint, relative to the server URL.
const SharesPath = "/ocs/v2.php/apps/files_sharing/api/v1/shares"

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// DefaultTimeout bounds every request when no custom client is given.
	DefaultTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads. Share listings of a
	// large account stay well below this.
	maxAPIResponseBytes = 1024 * 1024

	// maxErrorBodyLen is the length of the response preview kept in errors.
	maxErrorBodyLen = 256
)

// Client talks to the OCS share API. One Client serves any number of
// servers; the base URL comes with the credentials of each call.
type Client struct {
	httpClient *http.Client
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host, so basic auth credentials are never
// replayed to another domain.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates an API client with the given http.Client. If
// httpClient is nil, a client with the given timeout (DefaultTimeout when
// zero) and a same-host redirect policy is created.
func NewClient(httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}

		httpClient = &http.Client{
			Timeout:       timeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	return &Client{httpClient: httpClient}
}

// ListShares returns the shares on remotePath, including re-shares by
// other users.
func (c *Client) ListShares(ctx context.Context, creds credentials.Credentials, remotePath string) ([]Share, error) {
	body, err := c.do(ctx, creds, http.MethodGet, listQuery{Path: remotePath, Reshares: true})
	if err != nil {
		return nil, fmt.Errorf("listing shares of %s: %w", remotePath, err)
	}

	shares, err := parseShares(body)
	if err != nil {
		return nil, fmt.Errorf("listing shares of %s: %w", remotePath, err)
	}

	return shares, nil
}

// ListAllShares returns every share owned by the account.
func (c *Client) ListAllShares(ctx context.Context, creds credentials.Credentials) ([]Share, error) {
	body, err := c.do(ctx, creds, http.MethodGet, listQuery{})
	if err != nil {
		return nil, fmt.Errorf("listing account shares: %w", err)
	}

	shares, err := parseShares(body)
	if err != nil {
		return nil, fmt.Errorf("listing account shares: %w", err)
	}

	return shares, nil
}

// CreateShare creates a share and returns its public URL.
func (c *Client) CreateShare(ctx context.Context, creds credentials.Credentials, req CreateRequest) (string, error) {
	body, err := c.do(ctx, creds, http.MethodPost, req)
	if err != nil {
		return "", fmt.Errorf("creating share of %s: %w", req.Path, err)
	}

	link, err := extractURL(body)
	if err != nil {
		return "", fmt.Errorf("creating share of %s: %w", req.Path, err)
	}

	return link, nil
}

// do sends an authenticated request. params is encoded into the query
// string for GET and into a form body otherwise. The body of a 2xx
// answer is returned unless its OCS meta block reports a failure.
func (c *Client) do(ctx context.Context, creds credentials.Credentials, method string, params interface{}) ([]byte, error) {
	values, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters: %w", err)
	}

	endpoint := strings.TrimRight(creds.BaseURL, "/") + SharesPath

	var reqBody io.Reader

	if method == http.MethodGet {
		if len(values) > 0 {
			endpoint += "?" + values.Encode()
		}
	} else {
		reqBody = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("OCS-APIRequest", "true")
	req.Header.Set("Accept", "application/json")

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("%s %s: %w", method, redactURL(endpoint), err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: sanitizeResponseBody(respBody)}
	}

	// OCS v1 style servers answer 200 and carry the real outcome in meta.
	if code := metaStatusCode(respBody); code >= 400 {
		return nil, &APIError{StatusCode: code, Body: sanitizeResponseBody(respBody)}
	}

	return respBody, nil
}

// redactURL drops userinfo and the query string for error messages.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return SharesPath
	}

	u.User = nil
	u.RawQuery = ""

	return u.String()
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return strings.TrimSpace(string(clean))
}

// atoi parses an integer field, treating anything unparseable as zero.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}

	return n
}
