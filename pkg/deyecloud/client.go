package deyecloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Gateway is the device-facing surface of the Deye Cloud API. All calls
// are blocking with a bounded timeout taken from the context or the
// underlying HTTP client.
type Gateway interface {
	// GetBatteryInfo returns the latest battery SoC and power reading.
	GetBatteryInfo(ctx context.Context) (*BatteryInfo, error)
	// GetWorkMode returns the currently active system work mode.
	GetWorkMode(ctx context.Context) (WorkMode, error)
	// SetWorkMode changes the system work mode.
	SetWorkMode(ctx context.Context, mode WorkMode) error
	// GetTOUSettings returns the TOU schedule active on the device.
	GetTOUSettings(ctx context.Context) (*TOUSettings, error)
	// SetTOUPlan writes a full six-period TOU schedule.
	SetTOUPlan(ctx context.Context, plan TOUPlan) error
	// Probe verifies credentials and device serial by fetching latest
	// device data. Used by connection tests and startup validation.
	Probe(ctx context.Context) (*DeviceInfo, error)
}

type ClientParams struct {
	BaseURL   string
	AppID     string
	AppSecret string
	Email     string
	Password  string
	DeviceSN  string
	Timeout   time.Duration
}

// Client talks to the Deye Cloud developer API using the token flow:
// appId/appSecret plus account email and sha256-hashed password buy a
// bearer token that is cached until shortly before expiry.
type Client struct {
	baseURL      string
	appID        string
	appSecret    string
	email        string
	passwordHash string
	deviceSN     string
	http         *http.Client

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
}

// tokenExpiryMargin renews the token this long before the reported
// expiry to avoid racing the server clock.
const tokenExpiryMargin = 5 * time.Minute

func NewClient(params ClientParams) *Client {
	hash := sha256.Sum256([]byte(params.Password))
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(params.BaseURL, "/"),
		appID:        params.AppID,
		appSecret:    params.AppSecret,
		email:        params.Email,
		passwordHash: hex.EncodeToString(hash[:]),
		deviceSN:     params.DeviceSN,
		http:         &http.Client{Timeout: timeout},
	}
}

type apiEnvelope struct {
	Code    json.Number `json:"code"`
	Success bool        `json:"success"`
	Msg     string      `json:"msg"`
}

// ok reports whether the envelope signals success. The API is not
// consistent: some endpoints return code "0", some 1000000, some only
// the success flag.
func (e apiEnvelope) ok() bool {
	switch e.Code.String() {
	case "0", "1000000", "":
		return true
	}
	return e.Success
}

func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiresAt.Add(-tokenExpiryMargin)) {
		return c.token, nil
	}

	payload := map[string]string{
		"appSecret": c.appSecret,
		"email":     c.email,
		"password":  c.passwordHash,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/v1.0/account/token?appId=%s", c.baseURL, c.appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &AuthError{Message: fmt.Sprintf("token request rejected with status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var tok struct {
		apiEnvelope
		AccessToken string      `json:"accessToken"`
		ExpiresIn   json.Number `json:"expiresIn"`
		Data        struct {
			AccessToken string      `json:"accessToken"`
			ExpiresIn   json.Number `json:"expiresIn"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if !tok.ok() {
		return "", &AuthError{Message: tok.Msg}
	}
	token := tok.Data.AccessToken
	expiresIn := tok.Data.ExpiresIn
	if token == "" {
		token = tok.AccessToken
		expiresIn = tok.ExpiresIn
	}
	if token == "" {
		return "", &AuthError{Message: "no access token in response"}
	}
	seconds, err := expiresIn.Int64()
	if err != nil || seconds <= 0 {
		seconds = 86400
	}
	c.token = token
	c.tokenExpiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
	return c.token, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// token may have been revoked server side, force a refresh next call
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return &AuthError{Message: fmt.Sprintf("%s rejected with status 401", endpoint)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed with status %d", endpoint, resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if !env.ok() {
		return &APIError{Code: env.Code.String(), Message: env.Msg}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
	}
	return nil
}

type deviceLatestResponse struct {
	DeviceDataList []struct {
		DeviceSN   string `json:"deviceSn"`
		DeviceName string `json:"deviceName"`
		DataList   []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"dataList"`
	} `json:"deviceDataList"`
}

func (c *Client) GetBatteryInfo(ctx context.Context) (*BatteryInfo, error) {
	var resp deviceLatestResponse
	err := c.post(ctx, "/v1.0/device/latest", map[string]any{
		"deviceList": []string{c.deviceSN},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.DeviceDataList) == 0 {
		return nil, fmt.Errorf("no device data for %s", c.deviceSN)
	}

	info := &BatteryInfo{StateOfCharge: -1}
	for _, item := range resp.DeviceDataList[0].DataList {
		var field *float64
		switch strings.ToUpper(item.Key) {
		case "SOC":
			field = &info.StateOfCharge
		case "BATTERYPOWER":
			field = &info.PowerWatt
		case "RATEDPOWER":
			field = &info.RatedPowerWatt
		default:
			continue
		}
		if _, err := fmt.Sscanf(item.Value, "%f", field); err != nil {
			return nil, fmt.Errorf("parse %s value %q: %w", item.Key, item.Value, err)
		}
	}
	if info.StateOfCharge < 0 {
		return nil, fmt.Errorf("device %s reported no SoC", c.deviceSN)
	}
	return info, nil
}

func (c *Client) GetWorkMode(ctx context.Context) (WorkMode, error) {
	var resp struct {
		SystemWorkMode string `json:"sysWorkMode"`
		SysWorkModeAlt string `json:"systemWorkMode"`
	}
	err := c.post(ctx, "/v1.0/config/system", map[string]string{
		"deviceSn": c.deviceSN,
	}, &resp)
	if err != nil {
		return "", err
	}
	raw := resp.SystemWorkMode
	if raw == "" {
		raw = resp.SysWorkModeAlt
	}
	return ParseWorkMode(raw)
}

func (c *Client) SetWorkMode(ctx context.Context, mode WorkMode) error {
	if !mode.Valid() {
		return fmt.Errorf("refusing to set invalid work mode %q", mode)
	}
	return c.post(ctx, "/v1.0/order/sys/workMode/update", map[string]string{
		"deviceSn":    c.deviceSN,
		"sysWorkMode": string(mode),
	}, nil)
}

func (c *Client) GetTOUSettings(ctx context.Context) (*TOUSettings, error) {
	var resp struct {
		TouAction           string      `json:"touAction"`
		TimeUseSettingItems []TOUPeriod `json:"timeUseSettingItems"`
	}
	err := c.post(ctx, "/v1.0/config/tou", map[string]string{
		"deviceSn": c.deviceSN,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &TOUSettings{
		Action:  resp.TouAction,
		Periods: resp.TimeUseSettingItems,
	}, nil
}

func (c *Client) SetTOUPlan(ctx context.Context, plan TOUPlan) error {
	return c.post(ctx, "/v1.0/order/sys/tou/update", map[string]any{
		"deviceSn":            c.deviceSN,
		"timeUseSettingItems": plan.Periods[:],
	}, nil)
}

func (c *Client) Probe(ctx context.Context) (*DeviceInfo, error) {
	var resp deviceLatestResponse
	err := c.post(ctx, "/v1.0/device/latest", map[string]any{
		"deviceList": []string{c.deviceSN},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.DeviceDataList) == 0 {
		return nil, fmt.Errorf("device %s not found or has no data", c.deviceSN)
	}
	name := resp.DeviceDataList[0].DeviceName
	if name == "" {
		name = c.deviceSN
	}
	return &DeviceInfo{DeviceSN: c.deviceSN, DeviceName: name}, nil
}

// ensure interface compliance
var _ Gateway = (*Client)(nil)
