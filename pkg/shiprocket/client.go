package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kanakkart/storefront-backend/pkg/config"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://apiv2.shiprocket.in/v1/external"
	defaultTokenTTL            = 216 * time.Hour
	responseBodyReadLimit int64 = 2048
)

var errCredentialsRequired = errors.New("shiprocket email and password are required")

// Client wraps the Shiprocket external API used for shipment creation. The
// auth token is cached until close to expiry and refreshed behind a
// singleflight so concurrent dispatches trigger at most one login.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	email          string
	password       string
	pickupLocation string
	tokenTTL       time.Duration

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	sf  singleflight.Group
	now func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Shiprocket base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Shiprocket client from config.
func NewClient(cfg config.ShiprocketConfig, opts ...Option) (*Client, error) {
	email := strings.TrimSpace(cfg.Email)
	password := strings.TrimSpace(cfg.Password)
	if email == "" || password == "" {
		return nil, errCredentialsRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}

	client := &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        defaultBaseURL,
		email:          email,
		password:       password,
		pickupLocation: strings.TrimSpace(cfg.PickupLocation),
		tokenTTL:       tokenTTL,
		now:            time.Now,
	}
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		client.baseURL = trimmed
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateShipment registers an adhoc order with Shiprocket and returns the
// provider identifiers. A stale cached token is refreshed and the call
// retried once before the error surfaces.
func (c *Client) CreateShipment(ctx context.Context, params ShipmentParams) (*Shipment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprocket client not configured")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	payload := params.toRequest(c.pickupLocation)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal shipment request")
	}

	resp, err := c.doAuthorized(ctx, http.MethodPost, "orders/create/adhoc", body)
	if err != nil {
		return nil, err
	}

	var apiResp struct {
		OrderID     int64  `json:"order_id"`
		ShipmentID  int64  `json:"shipment_id"`
		Status      string `json:"status"`
		AWBCode     string `json:"awb_code"`
		CourierName string `json:"courier_name"`
	}
	if err := json.Unmarshal(resp, &apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shipment response")
	}
	if apiResp.OrderID == 0 && apiResp.ShipmentID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprocket returned no shipment identifiers")
	}

	return &Shipment{
		OrderID:     apiResp.OrderID,
		ShipmentID:  apiResp.ShipmentID,
		Status:      apiResp.Status,
		AWBCode:     apiResp.AWBCode,
		CourierName: apiResp.CourierName,
	}, nil
}

// doAuthorized executes a bearer-authenticated request, refreshing the token
// and retrying once on 401.
func (c *Client) doAuthorized(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.authToken(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), bytes.NewReader(body))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build shiprocket request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute shiprocket request")
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, readErr, "read shiprocket response")
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.invalidateToken()
			continue
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			msg := strings.TrimSpace(string(respBody))
			if len(msg) > int(responseBodyReadLimit) {
				msg = msg[:responseBodyReadLimit]
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, msg), "shiprocket request failed")
		}
		return respBody, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprocket authorization failed after refresh")
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	result, err, _ := c.sf.Do("login", func() (any, error) {
		return c.login(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal login request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("auth/login"), bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute login request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "shiprocket login failed")
	}

	var apiResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode login response")
	}
	if strings.TrimSpace(apiResp.Token) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "shiprocket login returned empty token")
	}

	c.mu.Lock()
	c.token = apiResp.Token
	c.tokenExpiry = c.now().Add(c.tokenTTL)
	c.mu.Unlock()
	return apiResp.Token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
