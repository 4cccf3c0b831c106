package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"zont-sync-backend/config"
	"zont-sync-backend/internal/command"
	"zont-sync-backend/internal/db"
	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/engine"
	"zont-sync-backend/internal/model"
	"zont-sync-backend/internal/registry"
	"zont-sync-backend/internal/store"
	"zont-sync-backend/internal/zont"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const payloadTemplate = `{
  "ok": true,
  "devices": [{
    "id": 1205,
    "name": "Дача",
    "online": true,
    "device_info": {"model": "H2000+"},
    "circuits": [
      {"id": 11, "name": "Тёплый пол", "type": "consumer", "active": true, "actual_temp": 24.1,
       "is_off": false, "target_temp": 27, "current_mode": 2, "in_summer_mode": false},
      {"id": 12, "name": "Гостиная", "type": "consumer", "active": true, "actual_temp": 21,
       "is_off": false, "target_temp": 22, "current_mode": null, "in_summer_mode": false, "min": 10, "max": 30}
    ],
    "modes": [
      {"id": 1, "name": "Комфорт", "can_be_applied": [11, 12]},
      {"id": 2, "name": "Эконом", "can_be_applied": [11]}
    ],
    "sensors": [
      {"id": 6, "name": "Улица", "type": "temperature", "status": "ok", "value": -3.5, "unit": "°C"},
      {"id": 7, "name": "Вход 3", "type": "other", "status": "ok", "triggered": true}
    ],
    "guard_zones": [{"id": 1, "name": "Дом", "state": "%s", "alarm": %t}],
    "controls": {
      "buttons": [{"id": 100, "name": "Сброс ошибки"}],
      "status": [{"id": 103, "name": {"name": "Сеть"}, "active": true}]
    }
  }]
}`

// mockFetcher serves a guard zone whose state the test can change.
type mockFetcher struct {
	mu    sync.Mutex
	state device.GuardState
	alarm bool
	err   error
}

func (m *mockFetcher) FetchDevices(ctx context.Context, version zont.SchemaVersion) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return []byte(fmt.Sprintf(payloadTemplate, m.state, m.alarm)), nil
}

func (m *mockFetcher) set(state device.GuardState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

func (m *mockFetcher) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// mockCommander is a mock implementation of the command.Commander interface.
type mockCommander struct {
	SetTargetTemperatureFunc func(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error)
	ActivateModeFunc         func(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*zont.Response, error)
	TriggerControlFunc       func(ctx context.Context, deviceID, controlID device.ID, state bool) (*zont.Response, error)
	SetGuardStateFunc        func(ctx context.Context, deviceID, zoneID device.ID, enable bool) (*zont.Response, error)
}

func (m *mockCommander) SetTargetTemperature(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error) {
	return m.SetTargetTemperatureFunc(ctx, deviceID, circuitID, temp)
}

func (m *mockCommander) ActivateMode(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*zont.Response, error) {
	return m.ActivateModeFunc(ctx, deviceID, modeID, circuitID)
}

func (m *mockCommander) TriggerControl(ctx context.Context, deviceID, controlID device.ID, state bool) (*zont.Response, error) {
	return m.TriggerControlFunc(ctx, deviceID, controlID, state)
}

func (m *mockCommander) SetGuardState(ctx context.Context, deviceID, zoneID device.ID, enable bool) (*zont.Response, error) {
	return m.SetGuardStateFunc(ctx, deviceID, zoneID, enable)
}

func okReply() (*zont.Response, error) {
	return &zont.Response{Status: http.StatusOK, Body: []byte(`{"ok": true}`)}, nil
}

type testEnv struct {
	router    *gin.Engine
	store     store.Store
	fetcher   *mockFetcher
	commander *mockCommander
	account   *registry.Account
	cache     *cache.Cache
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file:" + name + "?mode=memory&cache=shared"}, logger)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })
	s := store.NewGormStore(gormDB)

	fetcher := &mockFetcher{state: device.GuardDisabled}
	eng := engine.New(engine.Config{AccountID: "home", Interval: time.Hour, MaxRetries: 1}, fetcher, logger)

	commander := &mockCommander{}
	dispatcher := command.NewDispatcher(command.Config{
		AccountID:       "home",
		RefreshInterval: time.Millisecond,
		MaxRefreshes:    3,
	}, commander, eng, logger, command.WithRecorder(s))

	acc := &registry.Account{ID: "home", Engine: eng, Dispatcher: dispatcher}
	reg := registry.New(logger)
	require.NoError(t, reg.Add(acc))

	c := cache.New(time.Minute, time.Minute)
	router := NewRouter(RouterConfig{
		RateLimit:     1000,
		Burst:         1000,
		CacheTTL:      time.Minute,
		Cache:         c,
		WebhookSecret: secret,
	}, reg, s, &webpush.Options{VAPIDPublicKey: "public-key"}, logger)

	return &testEnv{router: router, store: s, fetcher: fetcher, commander: commander, account: acc, cache: c}
}

func (e *testEnv) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, e.account.Engine.Refresh(context.Background()))
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestReads_BeforeFirstSync(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/api/accounts/home/devices", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(http.MethodGet, "/api/accounts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"home","health":{"state":"healthy","consecutive_failures":0,"last_success":"0001-01-01T00:00:00Z"},"devices":0,"stale":false,"updated_at":null}]`, w.Body.String())
}

func TestReads(t *testing.T) {
	env := newTestEnv(t, "")
	env.sync(t)

	testCases := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "devices",
			path:       "/api/accounts/home/devices",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, false, body["stale"])
				assert.Len(t, body["devices"], 1)
			},
		},
		{
			name:       "device",
			path:       "/api/accounts/home/devices/1205",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				dev := body["device"].(map[string]any)
				assert.Equal(t, "Дача", dev["name"])
				sensors := dev["sensors"].([]any)
				require.NotEmpty(t, sensors)
				for _, s := range sensors {
					assert.Contains(t, s.(map[string]any), "binary")
				}
			},
		},
		{
			name:       "sensor",
			path:       "/api/accounts/home/devices/1205/sensors/6",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				sensor := body["sensor"].(map[string]any)
				assert.Equal(t, -3.5, sensor["value"])
				assert.Equal(t, false, sensor["binary"])
			},
		},
		{
			name:       "other sensor with triggered flag is binary",
			path:       "/api/accounts/home/devices/1205/sensors/7",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				sensor := body["sensor"].(map[string]any)
				assert.Equal(t, true, sensor["binary"])
				assert.Equal(t, true, sensor["triggered"])
			},
		},
		{
			name:       "circuit with payload range",
			path:       "/api/accounts/home/devices/1205/circuits/12",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				circuit := body["circuit"].(map[string]any)
				assert.Equal(t, map[string]any{"min": 10.0, "max": 30.0}, circuit["range"])
				assert.Equal(t, "payload", circuit["range_source"])
				assert.Equal(t, []any{"none", "Комфорт"}, circuit["presets"])
				assert.Equal(t, "none", circuit["preset"])
			},
		},
		{
			name:       "circuit with name range",
			path:       "/api/accounts/home/devices/1205/circuits/11",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				circuit := body["circuit"].(map[string]any)
				assert.Equal(t, map[string]any{"min": 15.0, "max": 45.0}, circuit["range"])
				assert.Equal(t, "Эконом", circuit["preset"])
			},
		},
		{
			name:       "guard zone",
			path:       "/api/accounts/home/devices/1205/guard-zones/1",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				zone := body["guard_zone"].(map[string]any)
				assert.Equal(t, "disabled", zone["state"])
				assert.Equal(t, "disarmed", zone["presentation"])
			},
		},
		{
			name:       "control",
			path:       "/api/accounts/home/devices/1205/controls/103",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				control := body["control"].(map[string]any)
				assert.Equal(t, "status", control["kind"])
			},
		},
		{name: "unknown account", path: "/api/accounts/nope/devices", wantStatus: http.StatusNotFound},
		{name: "unknown device", path: "/api/accounts/home/devices/9", wantStatus: http.StatusNotFound},
		{name: "unknown sensor", path: "/api/accounts/home/devices/1205/sensors/99", wantStatus: http.StatusNotFound},
		{name: "unknown circuit", path: "/api/accounts/home/devices/1205/circuits/99", wantStatus: http.StatusNotFound},
		{name: "unknown zone", path: "/api/accounts/home/devices/1205/guard-zones/99", wantStatus: http.StatusNotFound},
		{name: "unknown control", path: "/api/accounts/home/devices/1205/controls/99", wantStatus: http.StatusNotFound},
		{name: "device without car", path: "/api/accounts/home/devices/1205/car", wantStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodGet, tc.path, "")
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			if tc.check != nil {
				tc.check(t, decode(t, w))
			}
		})
	}
}

func TestReads_StaleAndCached(t *testing.T) {
	env := newTestEnv(t, "")
	env.sync(t)

	w := env.do(http.MethodGet, "/api/accounts/home/devices/1205", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))

	w = env.do(http.MethodGet, "/api/accounts/home/devices/1205", "")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	env.fetcher.fail(errors.New("connection refused"))
	assert.Error(t, env.account.Engine.Refresh(context.Background()))
	assert.Equal(t, 1, InvalidateAccount(env.cache, "home"))

	w = env.do(http.MethodGet, "/api/accounts/home/devices/1205", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["stale"], "the last good snapshot is served as stale")
}

func TestReads_NewSnapshotIsNotServedFromCache(t *testing.T) {
	env := newTestEnv(t, "")
	env.sync(t)

	path := "/api/accounts/home/devices/1205/guard-zones/1"
	w := env.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, path, "")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	// No invalidation runs: the test env has no cache listener.
	env.fetcher.set(device.GuardEnabled)
	env.sync(t)

	w = env.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))
	assert.Equal(t, "enabled", decode(t, w)["guard_zone"].(map[string]any)["state"])
}

// staticFetcher always serves the same payload.
type staticFetcher struct {
	payload string
}

func (f staticFetcher) FetchDevices(ctx context.Context, version zont.SchemaVersion) ([]byte, error) {
	return []byte(f.payload), nil
}

func TestGetCar(t *testing.T) {
	logger := zaptest.NewLogger(t)
	eng := engine.New(engine.Config{AccountID: "car", Schema: zont.SchemaOld, Interval: time.Hour}, staticFetcher{payload: `{
  "ok": true,
  "devices": [{
    "id": 501, "name": "Машина", "model": "ZTC-720", "online": true,
    "car_state": {
      "engine_on": false, "autostart": {"available": false, "status": "off"},
      "engine_block": true, "siren": false,
      "door_front_left": false, "door_front_right": false, "door_rear_left": false, "door_rear_right": false,
      "trunk": true, "hood": false, "power_source": "main",
      "car_view": {"model": "suv"},
      "position": {"x": 30.3141, "y": 59.9386, "time": "2026-01-10T08:00:00Z"},
      "address": "Санкт-Петербург"
    }
  }]
}`}, logger)
	require.NoError(t, eng.Refresh(context.Background()))

	reg := registry.New(logger)
	require.NoError(t, reg.Add(&registry.Account{ID: "car", Engine: eng}))
	router := NewRouter(RouterConfig{RateLimit: 1000, Burst: 1000}, reg, nil, &webpush.Options{}, logger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accounts/car/devices/501/car", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	car := decode(t, w)["car"].(map[string]any)
	assert.Equal(t, true, car["engine_block"])
	assert.Equal(t, true, car["trunk"])
	assert.Equal(t, "Санкт-Петербург", car["address"])
	position := car["position"].(map[string]any)
	assert.Equal(t, 59.9386, position["latitude"])
	assert.Equal(t, 30.3141, position["longitude"])
	assert.Equal(t, "2026-01-10T08:00:00Z", position["time"])
}

func TestCommands(t *testing.T) {
	testCases := []struct {
		name       string
		path       string
		body       string
		setup      func(m *mockCommander)
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name: "target temperature",
			path: "/api/accounts/home/devices/1205/circuits/12/target-temperature",
			body: `{"temperature": 23.5}`,
			setup: func(m *mockCommander) {
				m.SetTargetTemperatureFunc = func(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error) {
					assert.Equal(t, 23.5, temp)
					return okReply()
				}
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"outcome": "applied", "value": "23.5"},
		},
		{
			name:       "target temperature out of range",
			path:       "/api/accounts/home/devices/1205/circuits/12/target-temperature",
			body:       `{"temperature": 31}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   map[string]any{"range": map[string]any{"min": 10.0, "max": 30.0}},
		},
		{
			name:       "target temperature missing",
			path:       "/api/accounts/home/devices/1205/circuits/12/target-temperature",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "target temperature rejected upstream",
			path: "/api/accounts/home/devices/1205/circuits/12/target-temperature",
			body: `{"temperature": 20}`,
			setup: func(m *mockCommander) {
				m.SetTargetTemperatureFunc = func(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error) {
					return &zont.Response{Status: http.StatusOK, Body: []byte(`{"ok": false, "error": "device_offline", "error_ui": "Прибор не в сети"}`)}, nil
				}
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   map[string]any{"error": "Прибор не в сети", "code": "device_offline"},
		},
		{
			name: "target temperature unconfirmed",
			path: "/api/accounts/home/devices/1205/circuits/12/target-temperature",
			body: `{"temperature": 20}`,
			setup: func(m *mockCommander) {
				m.SetTargetTemperatureFunc = func(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error) {
					return &zont.Response{Status: http.StatusOK, Body: []byte(`{"ok": false, "error": "timeout"}`)}, nil
				}
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"outcome": "unconfirmed"},
		},
		{
			name: "transport timeout",
			path: "/api/accounts/home/devices/1205/circuits/12/target-temperature",
			body: `{"temperature": 20}`,
			setup: func(m *mockCommander) {
				m.SetTargetTemperatureFunc = func(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error) {
					return nil, &zont.TransportError{Op: "set target temperature", Err: context.DeadlineExceeded}
				}
			},
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name: "mode by name",
			path: "/api/accounts/home/devices/1205/circuits/12/mode",
			body: `{"mode": "Комфорт"}`,
			setup: func(m *mockCommander) {
				m.ActivateModeFunc = func(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*zont.Response, error) {
					assert.Equal(t, device.ID("1"), modeID)
					require.NotNil(t, circuitID)
					assert.Equal(t, device.ID("12"), *circuitID)
					return okReply()
				}
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "mode not applicable",
			path:       "/api/accounts/home/devices/1205/circuits/12/mode",
			body:       `{"mode": "Эконом"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name: "activate mode on all circuits",
			path: "/api/accounts/home/devices/1205/modes/2/activate",
			setup: func(m *mockCommander) {
				m.ActivateModeFunc = func(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*zont.Response, error) {
					assert.Nil(t, circuitID)
					return okReply()
				}
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"value": "Эконом"},
		},
		{
			name: "press button without body",
			path: "/api/accounts/home/devices/1205/controls/100/trigger",
			setup: func(m *mockCommander) {
				m.TriggerControlFunc = func(ctx context.Context, deviceID, controlID device.ID, state bool) (*zont.Response, error) {
					assert.True(t, state)
					return okReply()
				}
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "status control is read-only",
			path:       "/api/accounts/home/devices/1205/controls/103/trigger",
			body:       `{"state": true}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown device",
			path:       "/api/accounts/home/devices/9/controls/100/trigger",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.sync(t)
			if tc.setup != nil {
				tc.setup(env.commander)
			}

			w := env.do(http.MethodPost, tc.path, tc.body)
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			body := decode(t, w)
			for k, v := range tc.wantBody {
				assert.Equal(t, v, body[k], k)
			}
		})
	}
}

func TestSetGuardState(t *testing.T) {
	env := newTestEnv(t, "")
	env.sync(t)

	env.commander.SetGuardStateFunc = func(ctx context.Context, deviceID, zoneID device.ID, enable bool) (*zont.Response, error) {
		assert.True(t, enable)
		env.fetcher.set(device.GuardEnabled)
		return okReply()
	}

	w := env.do(http.MethodPost, "/api/accounts/home/devices/1205/guard-zones/1/state", `{"enable": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["converged"])
	assert.Equal(t, 1.0, body["refreshes"])
	assert.Equal(t, "enabled", body["zone"].(map[string]any)["state"])

	w = env.do(http.MethodGet, "/api/accounts/home/commands", "")
	require.Equal(t, http.StatusOK, w.Code)
	var commands []model.CommandLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &commands))
	require.Len(t, commands, 1)
	assert.Equal(t, "set_guard_state", commands[0].Kind)
	assert.Equal(t, "applied", commands[0].Outcome)
}

func TestWebhook(t *testing.T) {
	testCases := []struct {
		name        string
		secret      string
		header      string
		body        string
		wantStatus  int
		wantTracked bool
		wantStored  bool
	}{
		{
			name:        "tracked device",
			body:        `{"device_id": 1205, "type": "guard", "title": "Тревога", "gps": {"lat": "55.7", "lng": "37.6"}, "additional_info": {"object_id": 1}}`,
			wantStatus:  http.StatusAccepted,
			wantTracked: true,
			wantStored:  true,
		},
		{
			name:       "untracked device",
			body:       `{"device_id": 42, "type": "guard"}`,
			wantStatus: http.StatusOK,
			wantStored: true,
		},
		{
			name:       "missing device id",
			body:       `{"type": "guard"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong secret",
			secret:     "s3cret",
			header:     "nope",
			body:       `{"device_id": 1205}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:        "matching secret",
			secret:      "s3cret",
			header:      "s3cret",
			body:        `{"device_id": 1205}`,
			wantStatus:  http.StatusAccepted,
			wantTracked: true,
			wantStored:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.secret)
			env.sync(t)

			req := httptest.NewRequest(http.MethodPost, "/api/webhook/home", strings.NewReader(tc.body))
			if tc.header != "" {
				req.Header.Set(webhookSecretHeader, tc.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())

			var events []model.WebhookEvent
			require.NoError(t, env.store.DB().Find(&events).Error)
			if !tc.wantStored {
				assert.Empty(t, events)
				return
			}
			require.Len(t, events, 1)
			assert.Equal(t, "home", events[0].AccountID)
			assert.Equal(t, tc.wantTracked, events[0].Tracked)
			assert.JSONEq(t, tc.body, events[0].Payload)
		})
	}
}

func TestRefreshAccount(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/accounts/home/refresh", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = env.do(http.MethodPost, "/api/accounts/nope/refresh", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptions(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPut, "/api/accounts/home/subscriptions", `{"endpoint": "https://push.example.com/1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPut, "/api/accounts/home/subscriptions", `{"endpoint": "https://push.example.com/1", "p256dh": "key", "auth": "auth"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	subs, err := env.store.SubscriptionsForAccount(context.Background(), "home")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "key", subs[0].P256DH)

	w = env.do(http.MethodDelete, "/api/accounts/home/subscriptions", `{"endpoint": "https://push.example.com/1"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	subs, err = env.store.SubscriptionsForAccount(context.Background(), "home")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/api/vapid_public_key", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"public-key"}`, w.Body.String())
}

func TestHistoryLimit(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/api/accounts/home/zone-events?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/accounts/home/zone-events?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
