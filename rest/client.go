// Package rest implements the REST client used to acquire an access
// token and send authenticated requests to the QQ bot platform: token
// acquisition, gateway URL lookup, and outbound chat message posts.
package rest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/xid"
	"github.com/valyala/fasthttp"
)

const (
	headerAuthorizationKey = "Authorization"
	contentTypeJSON        = "application/json"

	refreshSkew = 30 * time.Second
)

// AuthEndpoint and GatewayEndpoint are the fixed platform base URLs.
// They are package variables rather than constants so tests (and
// hosts pointed at a staging environment) can override them; their
// initial values are the production platform URLs.
var (
	AuthEndpoint    = "https://bots.qq.com/app/getAppAccessToken"
	GatewayEndpoint = "https://api.sgroup.qq.com/gateway"
)

// token is an immutable snapshot of the current access token.
type token struct {
	value     string
	expiresAt time.Time
}

// Client performs authenticated HTTP calls against the QQ bot platform.
// It holds its own fasthttp.Client, safe for concurrent use, and does
// not rate-limit outbound requests.
type Client struct {
	appID        string
	clientSecret string

	httpClient *fasthttp.Client
	timeout    time.Duration

	current atomic.Pointer[token]
}

// New constructs a Client for the given application credentials.
func New(appID, clientSecret string) *Client {
	return &Client{
		appID:        appID,
		clientSecret: clientSecret,
		httpClient:   &fasthttp.Client{},
		timeout:      10 * time.Second,
	}
}

// TokenHeader returns the current "QQBot <token>" value used both as
// the REST Authorization header and the gateway Identify/Resume token
// field. Returns an empty string before the first successful
// Authenticate call.
func (c *Client) TokenHeader() string {
	t := c.current.Load()
	if t == nil {
		return ""
	}

	return "QQBot " + t.value
}

// Authenticate acquires an access token and stores it atomically.
func (c *Client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(struct {
		AppID        string `json:"appId"`
		ClientSecret string `json:"clientSecret"`
	}{AppID: c.appID, ClientSecret: c.clientSecret})
	if err != nil {
		return ErrSerialization{Context: "authenticate request", Err: err}
	}

	var response struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}

	if err := c.send(ctx, fasthttp.MethodPost, AuthEndpoint, body, false, &response); err != nil {
		return AuthFailedError{Err: err}
	}

	expiresIn, _ := time.ParseDuration(response.ExpiresIn + "s")
	if expiresIn == 0 {
		expiresIn = 2 * time.Hour
	}

	c.current.Store(&token{
		value:     response.AccessToken,
		expiresAt: time.Now().Add(expiresIn),
	})

	return nil
}

// GatewayURL fetches the websocket URL to connect the gateway session
// to.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	var response struct {
		URL string `json:"url"`
	}

	if err := c.send(ctx, fasthttp.MethodGet, GatewayEndpoint, nil, true, &response); err != nil {
		return "", GetGatewayFailedError{Err: err}
	}

	return response.URL, nil
}

// RefreshLoop re-authenticates shortly before the current token
// expires, so long-running deployments never fail a POST due to an
// expired token. Intended to run as `go client.RefreshLoop(ctx)`
// alongside the gateway session manager.
func (c *Client) RefreshLoop(ctx context.Context) {
	for {
		t := c.current.Load()
		if t == nil {
			return
		}

		wait := time.Until(t.expiresAt) - refreshSkew
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()

			return
		}

		if err := c.Authenticate(ctx); err != nil {
			Logger.Error().Err(err).Msg("failed to refresh access token")
			// retry on the next loop iteration after a short pause
			// rather than busy-looping on a persistent auth failure.
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

// send performs a single HTTP request and decodes a JSON response body
// into dst on success.
func (c *Client) send(ctx context.Context, method, uri string, body []byte, authorized bool, dst any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	correlationID := xid.New().String()

	req.Header.SetMethod(method)
	req.Header.SetContentType(contentTypeJSON)
	req.Header.Set("X-Correlation-ID", correlationID)

	Logger.Debug().Str(LogCtxCorrelation, correlationID).Str(LogCtxEndpoint, uri).Msg("sending request")

	if authorized {
		req.Header.Set(headerAuthorizationKey, c.TokenHeader())
	}

	req.SetRequestURI(uri)

	if body != nil {
		req.SetBodyRaw(body)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	if err := c.httpClient.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%w", err)
	}

	if status := resp.StatusCode(); status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		return StatusCodeError{Status: status, Body: string(resp.Body())}
	}

	if dst == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), dst); err != nil {
		return ErrSerialization{Context: "response body", Err: err}
	}

	return nil
}
