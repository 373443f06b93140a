// Package kis is a client for the Korea Investment & Securities overseas stock open API.
package kis

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"go.uber.org/zap"
)

const (
	pathToken   = "/oauth2/tokenP"
	pathHashKey = "/uapi/hashkey"

	// Tokens are issued for 24h; refresh a little early.
	tokenRefreshMargin = 10 * time.Minute
	tokenMaxElapsed    = 30 * time.Second
)

// Client talks to the open API. Queries are retried on 429 and 5xx; orders never are,
// because a retried order may be filled twice.
type Client struct {
	cfg    Config
	query  *resty.Client
	orders *resty.Client
	log    *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
	newBackOff  func() backoff.BackOff
}

// NewClient validates cfg and builds a client. No network call is made until first use.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	query := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(defaultRetryWait).
		SetRetryMaxWaitTime(defaultRetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}

			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	orders := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &Client{
		cfg:         cfg,
		query:       query,
		orders:      orders,
		log:         log.Named("kis"),
		mu:          sync.Mutex{},
		token:       "",
		tokenExpiry: time.Time{},
		now:         time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = tokenMaxElapsed

			return b
		},
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate acquires an access token, retrying transient failures with exponential backoff.
// Rejected credentials fail immediately with ErrCodeAuthFailed.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.accessToken(ctx, true)

	return err
}

func (c *Client) accessToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	var resp tokenResponse

	operation := func() error {
		r, err := c.orders.R().
			SetContext(ctx).
			SetBody(tokenRequest{GrantType: "client_credentials", AppKey: c.cfg.AppKey, AppSecret: c.cfg.AppSecret}).
			SetResult(&resp).
			Post(pathToken)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(errors.Wrap(errors.ErrCodeTimeout, "token request cancelled", err))
			}

			return errors.Wrap(errors.ErrCodeTransient, "token request failed", err)
		}

		switch {
		case r.StatusCode() == http.StatusUnauthorized || r.StatusCode() == http.StatusForbidden:
			return backoff.Permanent(errors.Newf(errors.ErrCodeAuthFailed, "credentials rejected: %s", r.String()))
		case r.IsError():
			return errors.Newf(errors.ErrCodeTransient, "token endpoint returned status %d", r.StatusCode())
		case resp.AccessToken == "":
			return backoff.Permanent(errors.New(errors.ErrCodeAuthFailed, "token response has no access_token"))
		}

		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn("Token request failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		if errors.GetCode(err) == errors.ErrCodeTransient {
			return "", errors.Wrap(errors.ErrCodeFatal, "unable to reach brokerage", err)
		}

		return "", err
	}

	expiresIn := time.Duration(resp.ExpiresIn) * time.Second
	if expiresIn <= tokenRefreshMargin {
		expiresIn = 24 * time.Hour
	}

	c.token = resp.AccessToken
	c.tokenExpiry = c.now().Add(expiresIn - tokenRefreshMargin)
	c.log.Info("Access token acquired", zap.Time("expires", c.tokenExpiry))

	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
}

type hashKeyResponse struct {
	Hash string `json:"HASH"`
}

// HashKey signs an order body.
func (c *Client) HashKey(ctx context.Context, body any) (string, error) {
	var out hashKeyResponse

	r, err := c.query.R().
		SetContext(ctx).
		SetHeaders(c.appHeaders()).
		SetBody(body).
		SetResult(&out).
		Post(pathHashKey)
	if err := classify(ctx, r, err, "hashkey"); err != nil {
		return "", err
	}

	if out.Hash == "" {
		return "", errors.New(errors.ErrCodeParseFailed, "hashkey response has no HASH")
	}

	return out.Hash, nil
}

func (c *Client) appHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"appKey":       c.cfg.AppKey,
		"appSecret":    c.cfg.AppSecret,
	}
}

func (c *Client) headers(ctx context.Context, trID string) (map[string]string, error) {
	token, err := c.accessToken(ctx, false)
	if err != nil {
		return nil, err
	}

	h := c.appHeaders()
	h["authorization"] = "Bearer " + token
	h["tr_id"] = trID
	h["custtype"] = "P"

	return h, nil
}

// envelope is the common part of every trading response.
type envelope struct {
	RtCd  string `json:"rt_cd"`
	MsgCd string `json:"msg_cd"`
	Msg1  string `json:"msg1"`
}

func (e envelope) ok() bool {
	return e.RtCd == "" || e.RtCd == "0"
}

func (c *Client) get(ctx context.Context, path, trID string, params map[string]string, out any) error {
	headers, err := c.headers(ctx, trID)
	if err != nil {
		return err
	}

	r, err := c.query.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParams(params).
		SetResult(out).
		Get(path)

	if r != nil && r.StatusCode() == http.StatusUnauthorized {
		c.invalidateToken()
	}

	return classify(ctx, r, err, trID)
}

func (c *Client) postOrder(ctx context.Context, path, trID string, body any, out any) error {
	hash, err := c.HashKey(ctx, body)
	if err != nil {
		return err
	}

	headers, err := c.headers(ctx, trID)
	if err != nil {
		return err
	}

	headers["hashkey"] = hash

	r, err := c.orders.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		SetResult(out).
		Post(path)

	if r != nil && r.StatusCode() == http.StatusUnauthorized {
		c.invalidateToken()
	}

	return classify(ctx, r, err, trID)
}

// classify maps a transport outcome to a coded error.
func classify(ctx context.Context, r *resty.Response, err error, what string) error {
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(errors.ErrCodeTimeout, ctx.Err(), "%s request cancelled", what)
		}

		return errors.Wrapf(errors.ErrCodeTransient, err, "%s request failed", what)
	}

	status := r.StatusCode()

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Newf(errors.ErrCodeAuthFailed, "%s: status %d", what, status)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return errors.Newf(errors.ErrCodeTransient, "%s: status %d", what, status)
	case r.IsError():
		return errors.Newf(errors.ErrCodeDataUnavailable, "%s: status %d: %s", what, status, r.String())
	}

	return nil
}
