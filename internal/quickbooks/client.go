package quickbooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/itayelfasy/nominal-assignment/internal/config"
	"github.com/itayelfasy/nominal-assignment/internal/models"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

const (
	// apiVersion is the QuickBooks minorversion sent with every API call
	apiVersion = "75"

	queryEndpoint     = "/v3/company/%s/query"
	selectAllAccounts = "SELECT * FROM Account"

	contentTypeJSON = "application/json"
	contentTypeText = "application/text"

	retryAfterHeader = "Retry-After"

	defaultMaxRetries = 3
	defaultRetryDelay = 1 * time.Second
)

// Client talks to the QuickBooks OAuth endpoints and the accounting query
// API, applying a uniform retry policy to every outbound call.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom http.Client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithMaxRetries sets the number of attempts per outbound call
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the fallback delay used when the upstream does not
// supply one
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// NewClient creates a QuickBooks client from the application configuration
func NewClient(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthorizationURL builds the consent URL a tenant visits to begin the OAuth
// flow. Pure construction, no network call.
func (c *Client) AuthorizationURL() string {
	params := url.Values{}
	params.Set("client_id", c.cfg.QuickBooksClientID)
	params.Set("response_type", "code")
	params.Set("scope", c.cfg.QuickBooksScope)
	params.Set("redirect_uri", c.cfg.QuickBooksRedirectURI)
	params.Set("state", c.cfg.QuickBooksState)
	params.Set("realmId", c.cfg.QuickBooksRealmID)
	params.Set("minorversion", apiVersion)
	return c.cfg.QuickBooksAuthURL + "?" + params.Encode()
}

// GetTokens exchanges an authorization code for an access/refresh token pair
func (c *Client) GetTokens(authCode string) (*models.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", authCode)
	form.Set("redirect_uri", c.cfg.QuickBooksRedirectURI)
	return c.requestToken(form)
}

// RefreshTokens mints a new token pair from a refresh token
func (c *Client) RefreshTokens(refreshToken string) (*models.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.requestToken(form)
}

func (c *Client) requestToken(form url.Values) (*models.Token, error) {
	resp, err := c.doRequest(http.MethodPost, c.cfg.QuickBooksTokenURL, []byte(form.Encode()), func(req *http.Request) {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", contentTypeJSON)
		req.SetBasicAuth(c.cfg.QuickBooksClientID, c.cfg.QuickBooksClientSecret)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CommunicationError{Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.WithFields(logrus.Fields{
			"status":     resp.StatusCode,
			"grant_type": form.Get("grant_type"),
		}).Error("QuickBooks rejected the token grant")
		return nil, &AuthExchangeError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var token models.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &token, nil
}

// GetAccounts runs the Account query for a realm, optionally narrowed to
// names starting with namePrefix, and returns the raw query-response payload.
func (c *Client) GetAccounts(accessToken, realmID, namePrefix string) (map[string]interface{}, error) {
	query := selectAllAccounts
	if namePrefix != "" {
		query += fmt.Sprintf(" WHERE Name LIKE '%s%%'", escapeQueryLiteral(namePrefix))
	}

	endpoint := strings.TrimRight(c.cfg.QuickBooksSandboxURL, "/") +
		fmt.Sprintf(queryEndpoint, url.PathEscape(realmID)) +
		"?" + url.Values{"minorversion": {apiVersion}}.Encode()

	log.WithFields(logrus.Fields{
		"url":      endpoint,
		"realm_id": realmID,
		"query":    query,
	}).Debug("Sending QuickBooks account query")

	resp, err := c.doRequest(http.MethodPost, endpoint, []byte(query), func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", contentTypeJSON)
		req.Header.Set("Content-Type", contentTypeText)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CommunicationError{Err: err}
	}
	text := string(raw)

	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"realm_id": realmID,
	}).Debug("Received QuickBooks account query response")

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusBadRequest:
		return nil, &BadRequestError{Body: text}
	case http.StatusForbidden:
		return nil, ErrForbidden
	}

	// QuickBooks sometimes answers zero-match queries with an empty body
	if strings.TrimSpace(text) == "" {
		log.Warn("Received empty response from QuickBooks API")
		return map[string]interface{}{
			"QueryResponse": map[string]interface{}{
				"Account": []interface{}{},
			},
		}, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.WithError(err).Error("Failed to decode QuickBooks response body")
		if strings.Contains(strings.ToLower(text), "error") {
			return nil, &UpstreamError{Body: text}
		}
		return nil, &ParseError{Err: err}
	}
	return payload, nil
}

// doRequest performs an HTTP call with the client's retry policy: 429
// responses are retried after the server-supplied delay, transport errors are
// retried after the fallback delay, and 5xx responses fail immediately.
// The request is rebuilt on every attempt so the body can be re-sent.
func (c *Client) doRequest(method, rawURL string, body []byte, configure func(*http.Request)) (*http.Response, error) {
	for retries := 0; retries < c.maxRetries; {
		req, err := http.NewRequest(method, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if configure != nil {
			configure(req)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if retries == c.maxRetries-1 {
				return nil, &CommunicationError{Err: err}
			}
			log.WithError(err).WithField("attempt", retries+1).Warn("Request to QuickBooks failed, retrying")
			time.Sleep(c.retryDelay)
			retries++
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := retryAfterDelay(resp.Header, c.retryDelay)
			log.WithField("retry_after", delay).Warn("Rate limit hit, retrying")
			resp.Body.Close()
			time.Sleep(delay)
			retries++
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return nil, &ServerError{StatusCode: resp.StatusCode}
		}

		return resp, nil
	}

	return nil, &RateLimitError{RetryAfter: c.retryDelay}
}

// retryAfterDelay reads the server-supplied retry delay in seconds, falling
// back to the default when the header is absent or malformed.
func retryAfterDelay(header http.Header, fallback time.Duration) time.Duration {
	value := header.Get(retryAfterHeader)
	if value == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// escapeQueryLiteral doubles single quotes so a name prefix cannot break out
// of the query string literal.
func escapeQueryLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
