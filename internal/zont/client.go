package zont

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"zont-sync-backend/internal/device"
)

const (
	DefaultBaseURL    = "https://lk.zont-online.ru/api/widget/v2/"
	DefaultOldURL     = "https://lk.zont-online.ru/api/devices"
	DefaultAuthURL    = "https://lk.zont-online.ru/api/authtoken/get"
	DefaultClientName = "zont-sync"

	devicesListPath = "devices-list"
)

// SchemaVersion selects which upstream payload shape is fetched and parsed.
type SchemaVersion string

const (
	SchemaOld SchemaVersion = "old"
	SchemaV3  SchemaVersion = "v3"
)

// ParseSchemaVersion validates a configured schema name.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	switch SchemaVersion(strings.ToLower(strings.TrimSpace(s))) {
	case SchemaV3, "":
		return SchemaV3, nil
	case SchemaOld:
		return SchemaOld, nil
	}
	return "", fmt.Errorf("unknown schema version %q", s)
}

// ClientConfig holds the endpoints and credentials of one account.
type ClientConfig struct {
	BaseURL           string
	OldURL            string
	AuthURL           string
	Token             string
	ClientID          string
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Response is a raw command reply. Verification is up to the caller.
type Response struct {
	Status int
	Body   []byte
}

// Token is the answer of the token endpoint.
type Token struct {
	Token   string `json:"token"`
	TokenID string `json:"token_id"`
	OK      bool   `json:"ok"`
}

// Client issues authenticated calls against the ZONT cloud API.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client. Per-call deadlines come from the caller's context.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.OldURL == "" {
		cfg.OldURL = DefaultOldURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		token:   cfg.Token,
	}
}

// SetToken replaces the API token, e.g. after GetToken.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// FetchDevices returns the raw devices payload in the requested schema.
func (c *Client) FetchDevices(ctx context.Context, version SchemaVersion) ([]byte, error) {
	var (
		resp *Response
		err  error
	)
	switch version {
	case SchemaOld:
		resp, err = c.do(ctx, http.MethodPost, c.cfg.OldURL, struct{}{})
	case SchemaV3:
		resp, err = c.do(ctx, http.MethodGet, c.endpoint(devicesListPath), nil)
	default:
		return nil, fmt.Errorf("unknown schema version %q", version)
	}
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		if apiErr := decodeAPIError(resp.Status, resp.Body); apiErr != nil {
			return nil, apiErr
		}
		return nil, &TransportError{Op: "fetch devices", Status: resp.Status, Err: fmt.Errorf("%s", truncate(resp.Body, 200))}
	}
	return resp.Body, nil
}

// SetTargetTemperature posts a new target temperature for a circuit.
func (c *Client) SetTargetTemperature(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*Response, error) {
	url := c.endpoint(fmt.Sprintf("devices/%s/circuits/%s/actions/target-temp", deviceID, circuitID))
	return c.do(ctx, http.MethodPost, url, map[string]any{"target_temp": temp})
}

// ActivateMode activates a heating mode. A nil circuit applies it to every
// circuit the mode allows.
func (c *Client) ActivateMode(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*Response, error) {
	url := c.endpoint(fmt.Sprintf("devices/%s/modes/%s/actions/activate", deviceID, modeID))
	var body any
	if circuitID != nil {
		body = map[string]any{"circuit_id": *circuitID}
	}
	return c.do(ctx, http.MethodPost, url, body)
}

// TriggerControl presses a button or switches a toggle button.
func (c *Client) TriggerControl(ctx context.Context, deviceID, controlID device.ID, state bool) (*Response, error) {
	url := c.endpoint(fmt.Sprintf("devices/%s/controls/%s/actions/trigger", deviceID, controlID))
	return c.do(ctx, http.MethodPost, url, map[string]any{"target_state": state})
}

// SetGuardState arms (enable) or disarms a guard zone.
func (c *Client) SetGuardState(ctx context.Context, deviceID, zoneID device.ID, enable bool) (*Response, error) {
	url := c.endpoint(fmt.Sprintf("devices/%s/guard-zones/%s/actions/activate", deviceID, zoneID))
	return c.do(ctx, http.MethodPost, url, map[string]any{"zone_id": zoneID, "enable": enable})
}

// GetToken exchanges login credentials for a long-lived API token.
func (c *Client) GetToken(ctx context.Context, login, password, clientName string) (Token, error) {
	if clientName == "" {
		clientName = DefaultClientName
	}
	jsonBody, err := json.Marshal(map[string]string{"client_name": clientName})
	if err != nil {
		return Token{}, fmt.Errorf("failed to marshal token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, bytes.NewReader(jsonBody))
	if err != nil {
		return Token{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(login, password)
	req.Header.Set("Client-Id", c.cfg.ClientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send(req, "get token")
	if err != nil {
		return Token{}, err
	}
	if resp.Status != http.StatusOK {
		if apiErr := decodeAPIError(resp.Status, resp.Body); apiErr != nil {
			return Token{}, apiErr
		}
		return Token{}, &TransportError{Op: "get token", Status: resp.Status, Err: fmt.Errorf("%s", truncate(resp.Body, 200))}
	}

	var token Token
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return Token{}, &SchemaError{Field: "token", Err: err}
	}
	if !token.OK || token.Token == "" {
		if apiErr := decodeAPIError(resp.Status, resp.Body); apiErr != nil {
			return Token{}, apiErr
		}
		return Token{}, &RemoteAPIError{Status: resp.Status, Code: "no_token"}
	}
	c.logger.Info("obtained api token", zap.String("token_id", token.TokenID))
	return token, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + path
}

func (c *Client) do(ctx context.Context, method, url string, payload any) (*Response, error) {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Auth-Token", c.currentToken())
	req.Header.Set("Client-Id", c.cfg.ClientID)
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, method+" "+url)
}

func (c *Client) send(req *http.Request, op string) (*Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	c.logger.Debug("zont request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
