package openapi

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

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// DefaultBaseURL is the public SwitchBot API endpoint.
const DefaultBaseURL = "https://api.switch-bot.com/v1.0"

const (
	defaultTimeout = 10 * time.Second
	successMessage = "success"
	maxErrorBody   = 512
)

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config holds cloud client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the cloud API.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a client. Empty fields fall back to defaults.
func New(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetLogger sets the logger used for status-code reporting.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	defer c.loggerMu.Unlock()
	c.logger = logger
}

// Configured reports whether a token is set.
func (c *Client) Configured() bool {
	return c.token != ""
}

// envelope is the outer wrapper of every API response.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

// DeviceStatus is the body of a status response. Fields not reported by a
// device type stay nil.
type DeviceStatus struct {
	DeviceID     string `json:"deviceId"`
	DeviceType   string `json:"deviceType"`
	HubDeviceID  string `json:"hubDeviceId"`
	Power        string `json:"power,omitempty"`
	OpenState    string `json:"openState,omitempty"`
	MoveDetected *bool  `json:"moveDetected,omitempty"`
	Brightness   string `json:"brightness,omitempty"`
}

// Reading converts the status into a transport-neutral reading.
// "on"/"off" set power and "open"/"close" set the contact; other values
// leave the field unset.
func (s *DeviceStatus) Reading() device.Reading {
	var r device.Reading
	switch s.Power {
	case "on":
		r.Power = boolPtr(true)
	case "off":
		r.Power = boolPtr(false)
	}
	switch s.OpenState {
	case "open":
		r.Open = boolPtr(true)
	case "close":
		r.Open = boolPtr(false)
	}
	if s.MoveDetected != nil {
		r.Motion = boolPtr(*s.MoveDetected)
	}
	return r
}

// DeviceInfo is one entry of the device list.
type DeviceInfo struct {
	DeviceID           string `json:"deviceId"`
	DeviceName         string `json:"deviceName"`
	DeviceType         string `json:"deviceType"`
	HubDeviceID        string `json:"hubDeviceId"`
	EnableCloudService bool   `json:"enableCloudService"`
}

// Spec converts the entry into a device spec.
func (d DeviceInfo) Spec() device.Spec {
	return device.Spec{
		ID:    d.DeviceID,
		Name:  d.DeviceName,
		Type:  device.Type(d.DeviceType),
		HubID: d.HubDeviceID,
	}
}

type deviceList struct {
	DeviceList []DeviceInfo `json:"deviceList"`
}

// FetchStatus retrieves the current status of a device.
func (c *Client) FetchStatus(ctx context.Context, id string) (*DeviceStatus, error) {
	env, err := c.do(ctx, http.MethodGet, "/devices/"+id+"/status", nil)
	if err != nil {
		return nil, device.NewError(device.KindRemote, id, "fetch_status", err)
	}
	if env.Message != successMessage {
		return nil, device.NewError(device.KindRemote, id, "fetch_status",
			fmt.Errorf("%w: %q (code %d)", device.ErrNotSuccess, env.Message, env.StatusCode))
	}

	var status DeviceStatus
	if err := json.Unmarshal(env.Body, &status); err != nil {
		return nil, device.NewError(device.KindRemote, id, "fetch_status",
			fmt.Errorf("%w: %w", ErrDecode, err))
	}
	return &status, nil
}

// SendCommand posts a command and returns the API status code. The code is
// logged through the status-code mapping; it is never an error by itself.
func (c *Client) SendCommand(ctx context.Context, id string, cmd Command) (StatusCode, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return 0, device.NewError(device.KindRemote, id, "send_command", fmt.Errorf("marshal command: %w", err))
	}

	env, err := c.do(ctx, http.MethodPost, "/devices/"+id+"/commands", payload)
	if err != nil {
		return 0, device.NewError(device.KindRemote, id, "send_command", err)
	}

	code := StatusCode(env.StatusCode)
	c.LogStatusCode(id, code)
	return code, nil
}

// ListDevices enumerates the physical devices on the account.
func (c *Client) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	env, err := c.do(ctx, http.MethodGet, "/devices", nil)
	if err != nil {
		return nil, device.NewError(device.KindRemote, "", "list_devices", err)
	}
	if env.Message != successMessage {
		return nil, device.NewError(device.KindRemote, "", "list_devices",
			fmt.Errorf("%w: %q (code %d)", device.ErrNotSuccess, env.Message, env.StatusCode))
	}

	var list deviceList
	if err := json.Unmarshal(env.Body, &list); err != nil {
		return nil, device.NewError(device.KindRemote, "", "list_devices",
			fmt.Errorf("%w: %w", ErrDecode, err))
	}
	return list.DeviceList, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*envelope, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &env, nil
}

func boolPtr(b bool) *bool { return &b }
