package deyecloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(ClientParams{
		BaseURL:   srv.URL,
		AppID:     "app-id",
		AppSecret: "app-secret",
		Email:     "user@example.com",
		Password:  "hunter2",
		DeviceSN:  "SN123",
	})
	return srv, client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func tokenResponse() map[string]any {
	return map[string]any{
		"code":        "1000000",
		"success":     true,
		"accessToken": "test-token",
		"expiresIn":   "5184000",
	}
}

func TestGetBatteryInfo(t *testing.T) {
	var tokenCalls int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1.0/account/token":
			atomic.AddInt32(&tokenCalls, 1)
			assert.Equal(t, "app-id", r.URL.Query().Get("appId"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			// sha256("hunter2")
			assert.Equal(t, "f52fbd32b2b3b86ff88ef6c490628285f482af15ddcb29541f94bcf526a3f6c7", body["password"])
			writeJSON(w, tokenResponse())
		case "/v1.0/device/latest":
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			writeJSON(w, map[string]any{
				"code":    "0",
				"success": true,
				"deviceDataList": []map[string]any{{
					"deviceSn": "SN123",
					"dataList": []map[string]string{
						{"key": "SOC", "value": "73.5"},
						{"key": "BatteryPower", "value": "-1200"},
					},
				}},
			})
		default:
			t.Fatalf("unexpected request %s", r.URL.Path)
		}
	})

	info, err := client.GetBatteryInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 73.5, info.StateOfCharge)
	assert.Equal(t, -1200.0, info.PowerWatt)

	// second call reuses the cached token
	_, err = client.GetBatteryInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestGetBatteryInfoMissingSoC(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1.0/account/token" {
			writeJSON(w, tokenResponse())
			return
		}
		writeJSON(w, map[string]any{
			"code":    "0",
			"success": true,
			"deviceDataList": []map[string]any{{
				"deviceSn": "SN123",
				"dataList": []map[string]string{{"key": "BatteryPower", "value": "200"}},
			}},
		})
	})

	_, err := client.GetBatteryInfo(context.Background())
	assert.Error(t, err)
}

func TestGetWorkModeNestedToken(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1.0/account/token":
			writeJSON(w, map[string]any{
				"code":    "0",
				"success": true,
				"data": map[string]any{
					"accessToken": "nested-token",
					"expiresIn":   "86400",
				},
			})
		case "/v1.0/config/system":
			assert.Equal(t, "Bearer nested-token", r.Header.Get("Authorization"))
			writeJSON(w, map[string]any{
				"code":        "0",
				"success":     true,
				"sysWorkMode": "SELLING_FIRST",
			})
		}
	})

	mode, err := client.GetWorkMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WorkModeSellingFirst, mode)
}

func TestSetWorkModeRejectsInvalidMode(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	err := client.SetWorkMode(context.Background(), WorkMode("TURBO"))
	assert.Error(t, err)
}

func TestBadCredentials(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetBatteryInfo(context.Background())
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestAPIErrorEnvelope(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1.0/account/token" {
			writeJSON(w, tokenResponse())
			return
		}
		writeJSON(w, map[string]any{
			"code":    "1002",
			"success": false,
			"msg":     "device offline",
		})
	})

	err := client.SetWorkMode(context.Background(), WorkModeZeroExportToCT)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "1002", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "device offline")
}

func TestGetTOUSettings(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1.0/account/token" {
			writeJSON(w, tokenResponse())
			return
		}
		require.Equal(t, "/v1.0/config/tou", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SN123", body["deviceSn"])
		writeJSON(w, map[string]any{
			"code":      "0",
			"success":   true,
			"touAction": "enable",
			"timeUseSettingItems": []map[string]any{
				{"time": "00:00", "soc": 20, "power": 10000},
				{"time": "17:30", "soc": 50, "power": 10000},
			},
		})
	})

	settings, err := client.GetTOUSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "enable", settings.Action)
	require.Len(t, settings.Periods, 2)
	assert.Equal(t, "17:30", settings.Periods[1].Time)
	assert.Equal(t, 50, settings.Periods[1].SoC)
}

func TestSetTOUPlanSendsSixPeriods(t *testing.T) {
	var got struct {
		DeviceSN string      `json:"deviceSn"`
		Items    []TOUPeriod `json:"timeUseSettingItems"`
	}
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1.0/account/token" {
			writeJSON(w, tokenResponse())
			return
		}
		require.Equal(t, "/v1.0/order/sys/tou/update", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]any{"code": "0", "success": true})
	})

	plan, err := BuildPlan(PlanSpec{
		WindowStart: "17:30",
		WindowEnd:   "19:30",
		WindowSoC:   50,
		ReserveSoC:  20,
		PowerWatt:   10000,
	})
	require.NoError(t, err)
	require.NoError(t, client.SetTOUPlan(context.Background(), plan))

	assert.Equal(t, "SN123", got.DeviceSN)
	assert.Len(t, got.Items, 6)
}
