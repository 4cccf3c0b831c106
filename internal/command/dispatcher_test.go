package command

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/model"
	"zont-sync-backend/internal/snapshot"
	"zont-sync-backend/internal/zont"
)

func ptr[T any](v T) *T { return &v }

func testAccount(zoneState device.GuardState) *device.Account {
	return &device.Account{OK: true, Devices: []device.Device{{
		ID:     "1",
		Name:   "Дача",
		Online: true,
		Circuits: []device.Circuit{
			{ID: "10", Name: "Отопление", Type: device.CircuitConsumer, TargetTemp: ptr(21.0), CurrentMode: ptr(device.ID("100")), Min: ptr(5.0), Max: ptr(35.0)},
			{ID: "11", Name: "ГВС", Type: device.CircuitDHW, TargetTemp: ptr(50.0)},
		},
		Modes: []device.Mode{
			{ID: "100", Name: "Эконом", CanBeApplied: []device.ID{"10"}},
			{ID: "101", Name: "Комфорт", CanBeApplied: []device.ID{"10"}},
		},
		GuardZones: []device.GuardZone{{ID: "1", Name: "Дом", State: zoneState}},
		Controls: device.Controls{
			Buttons:       []device.Button{{ID: "200", Name: "Сброс"}},
			ToggleButtons: []device.ToggleButton{{ID: "201", Name: device.Labels{Name: "Насос", ActiveLabel: "Вкл", InactiveLabel: "Выкл"}, Active: ptr(false)}},
			Statuses:      []device.Status{{ID: "202", Name: device.Labels{Name: "Сеть"}}},
		},
	}}}
}

// mockCommander is a mock implementation of the Commander interface.
type mockCommander struct {
	SetTargetTemperatureFunc func(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error)
	ActivateModeFunc         func(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*zont.Response, error)
	TriggerControlFunc       func(ctx context.Context, deviceID, controlID device.ID, state bool) (*zont.Response, error)
	SetGuardStateFunc        func(ctx context.Context, deviceID, zoneID device.ID, enable bool) (*zont.Response, error)
	calls                    int
}

func (m *mockCommander) SetTargetTemperature(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error) {
	m.calls++
	return m.SetTargetTemperatureFunc(ctx, deviceID, circuitID, temp)
}

func (m *mockCommander) ActivateMode(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*zont.Response, error) {
	m.calls++
	return m.ActivateModeFunc(ctx, deviceID, modeID, circuitID)
}

func (m *mockCommander) TriggerControl(ctx context.Context, deviceID, controlID device.ID, state bool) (*zont.Response, error) {
	m.calls++
	return m.TriggerControlFunc(ctx, deviceID, controlID, state)
}

func (m *mockCommander) SetGuardState(ctx context.Context, deviceID, zoneID device.ID, enable bool) (*zont.Response, error) {
	m.calls++
	return m.SetGuardStateFunc(ctx, deviceID, zoneID, enable)
}

// fakeEngine serves a fixed snapshot and counts refreshes.
type fakeEngine struct {
	snap        *snapshot.Snapshot
	RefreshFunc func(ctx context.Context) error
	refreshes   int
	requested   int
}

func (f *fakeEngine) Snapshot() *snapshot.Snapshot { return f.snap }

func (f *fakeEngine) Refresh(ctx context.Context) error {
	f.refreshes++
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx)
	}
	return nil
}

func (f *fakeEngine) RequestRefresh() { f.requested++ }

type mockRecorder struct {
	entries []*model.CommandLog
}

func (m *mockRecorder) RecordCommand(ctx context.Context, entry *model.CommandLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

func reply(status int, body string) func() (*zont.Response, error) {
	return func() (*zont.Response, error) {
		return &zont.Response{Status: status, Body: []byte(body)}, nil
	}
}

func newTestDispatcher(t *testing.T, client Commander, eng *fakeEngine) (*Dispatcher, *mockRecorder) {
	rec := &mockRecorder{}
	d := NewDispatcher(Config{AccountID: "acc"}, client, eng, zaptest.NewLogger(t), WithRecorder(rec))
	d.newID = func() string { return "cmd-1" }
	return d, rec
}

func TestSetTargetTemperature_LogsRangeFallback(t *testing.T) {
	testCases := []struct {
		name       string
		circuit    device.ID
		temp       float64
		expectWarn bool
	}{
		{name: "payload bounds", circuit: "10", temp: 22},
		{name: "range by name", circuit: "11", temp: 55, expectWarn: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			client := &mockCommander{SetTargetTemperatureFunc: func(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error) {
				return reply(http.StatusOK, `{"ok": true}`)()
			}}
			eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
			d := NewDispatcher(Config{AccountID: "acc"}, client, eng, zap.New(core))

			_, err := d.SetTargetTemperature(context.Background(), "1", tc.circuit, tc.temp)
			require.NoError(t, err)

			fallbacks := logs.FilterMessage("circuit reports no usable bounds, using range by name")
			if !tc.expectWarn {
				assert.Zero(t, fallbacks.Len())
				return
			}
			require.Equal(t, 1, fallbacks.Len())
			fields := fallbacks.All()[0].ContextMap()
			assert.Equal(t, "dhw", fields["source"])
			assert.Equal(t, "11", fields["circuit"])
		})
	}
}

func TestVerify(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		body        string
		expected    Outcome
		expectedErr *RemoteCommandError
	}{
		{name: "applied", status: http.StatusOK, body: `{"ok": true}`, expected: OutcomeApplied},
		{name: "controller timeout is a soft success", status: http.StatusOK, body: `{"ok": false, "error": "timeout", "error_ui": "Устройство не ответило"}`, expected: OutcomeUnconfirmed},
		{
			name:        "other errors surface error_ui",
			status:      http.StatusOK,
			body:        `{"ok": false, "error": "device_offline", "error_ui": "Устройство не в сети"}`,
			expectedErr: &RemoteCommandError{Status: http.StatusOK, Code: "device_offline", Message: "Устройство не в сети"},
		},
		{name: "non-2xx status", status: http.StatusBadGateway, body: `<html>`, expectedErr: &RemoteCommandError{Status: http.StatusBadGateway}},
		{
			name:        "non-2xx status with error body",
			status:      http.StatusForbidden,
			body:        `{"ok": false, "error": "access_denied", "error_ui": "Нет доступа"}`,
			expectedErr: &RemoteCommandError{Status: http.StatusForbidden, Code: "access_denied", Message: "Нет доступа"},
		},
		{name: "malformed ack", status: http.StatusOK, body: `not json`, expectedErr: &RemoteCommandError{Status: http.StatusOK, Code: "invalid_response"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, err := Verify(zaptest.NewLogger(t), &zont.Response{Status: tc.status, Body: []byte(tc.body)}, Change{Device: "Дача", Target: "t"})
			if tc.expectedErr != nil {
				var remote *RemoteCommandError
				require.True(t, errors.As(err, &remote))
				assert.Equal(t, tc.expectedErr, remote)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, outcome)
		})
	}

	err := &RemoteCommandError{Status: 200, Code: "device_offline", Message: "Устройство не в сети"}
	assert.Equal(t, "Устройство не в сети", err.Error())
}

func TestDispatcher_SetTargetTemperature(t *testing.T) {
	testCases := []struct {
		name            string
		circuit         device.ID
		temp            float64
		reply           func() (*zont.Response, error)
		expectedOutcome Outcome
		expectedCalls   int
		checkErr        func(t *testing.T, err error)
	}{
		{
			name:            "applied within payload bounds",
			circuit:         "10",
			temp:            23.5,
			reply:           reply(http.StatusOK, `{"ok": true}`),
			expectedOutcome: OutcomeApplied,
			expectedCalls:   1,
		},
		{
			name:            "dhw range from the circuit name",
			circuit:         "11",
			temp:            60,
			reply:           reply(http.StatusOK, `{"ok": false, "error": "timeout"}`),
			expectedOutcome: OutcomeUnconfirmed,
			expectedCalls:   1,
		},
		{
			name:    "above the payload maximum is rejected locally",
			circuit: "10",
			temp:    35.5,
			checkErr: func(t *testing.T, err error) {
				var rangeErr *TemperatureOutOfRangeError
				require.True(t, errors.As(err, &rangeErr))
				assert.Equal(t, 35.0, rangeErr.Range.Max)
			},
		},
		{
			name:    "below the dhw minimum is rejected locally",
			circuit: "11",
			temp:    20,
			checkErr: func(t *testing.T, err error) {
				var rangeErr *TemperatureOutOfRangeError
				require.True(t, errors.As(err, &rangeErr))
				assert.Equal(t, 25.0, rangeErr.Range.Min)
			},
		},
		{
			name:    "unknown circuit",
			circuit: "99",
			temp:    20,
			checkErr: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.True(t, errors.As(err, &nf))
				assert.Equal(t, "circuit", nf.Kind)
			},
		},
		{
			name:          "remote rejection",
			circuit:       "10",
			temp:          20,
			reply:         reply(http.StatusOK, `{"ok": false, "error": "device_offline", "error_ui": "Устройство не в сети"}`),
			expectedCalls: 1,
			checkErr: func(t *testing.T, err error) {
				var remote *RemoteCommandError
				require.True(t, errors.As(err, &remote))
				assert.Equal(t, "Устройство не в сети", remote.Message)
			},
		},
		{
			name:    "transport failure is not retried",
			circuit: "10",
			temp:    20,
			reply: func() (*zont.Response, error) {
				return nil, &zont.TransportError{Op: "command", Err: errors.New("reset")}
			},
			expectedCalls: 1,
			checkErr: func(t *testing.T, err error) {
				var transErr *zont.TransportError
				assert.True(t, errors.As(err, &transErr))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &mockCommander{
				SetTargetTemperatureFunc: func(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error) {
					assert.Equal(t, device.ID("1"), deviceID)
					assert.Equal(t, tc.circuit, circuitID)
					assert.Equal(t, tc.temp, temp)
					return tc.reply()
				},
			}
			eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
			d, rec := newTestDispatcher(t, client, eng)

			res, err := d.SetTargetTemperature(context.Background(), "1", tc.circuit, tc.temp)

			assert.Equal(t, tc.expectedCalls, client.calls)
			assert.Equal(t, "cmd-1", res.ID)
			if tc.checkErr != nil {
				require.Error(t, err)
				tc.checkErr(t, err)
				assert.Zero(t, eng.requested, "failed commands do not trigger a refresh")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedOutcome, res.Outcome)
			assert.Equal(t, 1, eng.requested)
			require.Len(t, rec.entries, 1)
			assert.Equal(t, string(tc.expectedOutcome), rec.entries[0].Outcome)
			assert.Equal(t, "acc", rec.entries[0].AccountID)
		})
	}
}

func TestDispatcher_SetMode(t *testing.T) {
	ok := reply(http.StatusOK, `{"ok": true}`)

	t.Run("activates the named preset on the circuit", func(t *testing.T) {
		client := &mockCommander{ActivateModeFunc: func(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*zont.Response, error) {
			assert.Equal(t, device.ID("101"), modeID)
			require.NotNil(t, circuitID)
			assert.Equal(t, device.ID("10"), *circuitID)
			return ok()
		}}
		eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
		d, _ := newTestDispatcher(t, client, eng)

		res, err := d.SetMode(context.Background(), "1", "10", "Комфорт")
		require.NoError(t, err)
		assert.Equal(t, OutcomeApplied, res.Outcome)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("none re-sends the current target", func(t *testing.T) {
		client := &mockCommander{SetTargetTemperatureFunc: func(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error) {
			assert.Equal(t, 21.0, temp)
			return ok()
		}}
		eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
		d, _ := newTestDispatcher(t, client, eng)

		_, err := d.SetMode(context.Background(), "1", "10", PresetNone)
		require.NoError(t, err)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("preset not applicable to the circuit", func(t *testing.T) {
		client := &mockCommander{}
		eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
		d, _ := newTestDispatcher(t, client, eng)

		_, err := d.SetMode(context.Background(), "1", "11", "Комфорт")
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "mode", nf.Kind)
		assert.Zero(t, client.calls)
	})
}

func TestDispatcher_ActivateModeAll(t *testing.T) {
	client := &mockCommander{ActivateModeFunc: func(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*zont.Response, error) {
		assert.Equal(t, device.ID("100"), modeID)
		assert.Nil(t, circuitID)
		return &zont.Response{Status: http.StatusOK, Body: []byte(`{"ok": true}`)}, nil
	}}
	eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
	d, _ := newTestDispatcher(t, client, eng)

	res, err := d.ActivateModeAll(context.Background(), "1", "100")
	require.NoError(t, err)
	assert.Equal(t, "Эконом", res.Value)
}

func TestDispatcher_TriggerControl(t *testing.T) {
	testCases := []struct {
		name          string
		control       device.ID
		state         bool
		expectedState bool
		expectedErr   bool
	}{
		{name: "button always sends true", control: "200", state: false, expectedState: true},
		{name: "toggle button sends the requested state", control: "201", state: true, expectedState: true},
		{name: "toggle button off", control: "201", state: false, expectedState: false},
		{name: "status is read-only", control: "202", state: true, expectedErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var sent *bool
			client := &mockCommander{TriggerControlFunc: func(ctx context.Context, deviceID, controlID device.ID, state bool) (*zont.Response, error) {
				assert.Equal(t, tc.control, controlID)
				sent = &state
				return &zont.Response{Status: http.StatusOK, Body: []byte(`{"ok": true}`)}, nil
			}}
			eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
			d, _ := newTestDispatcher(t, client, eng)

			_, err := d.TriggerControl(context.Background(), "1", tc.control, tc.state)
			if tc.expectedErr {
				var unsupported *UnsupportedControlError
				require.True(t, errors.As(err, &unsupported))
				assert.Equal(t, device.ControlStatus, unsupported.Kind)
				assert.Nil(t, sent)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, sent)
			assert.Equal(t, tc.expectedState, *sent)
		})
	}
}

func TestDispatcher_SetGuardState(t *testing.T) {
	okGuard := func(ctx context.Context, deviceID, zoneID device.ID, enable bool) (*zont.Response, error) {
		return &zont.Response{Status: http.StatusOK, Body: []byte(`{"ok": true}`)}, nil
	}

	t.Run("stops as soon as the zone settles", func(t *testing.T) {
		states := []device.GuardState{device.GuardEnabling, device.GuardEnabling, device.GuardEnabled}
		eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
		eng.RefreshFunc = func(ctx context.Context) error {
			eng.snap = snapshot.New(testAccount(states[eng.refreshes-1]), time.Now())
			return nil
		}
		d, rec := newTestDispatcher(t, &mockCommander{SetGuardStateFunc: okGuard}, eng)

		res, err := d.SetGuardState(context.Background(), "1", "1", true)
		require.NoError(t, err)
		assert.Equal(t, 3, eng.refreshes)
		require.NotNil(t, res.Converged)
		assert.True(t, *res.Converged)
		require.NotNil(t, res.Zone)
		assert.Equal(t, device.GuardEnabled, res.Zone.State)
		require.Len(t, rec.entries, 1)
		assert.Equal(t, 3, rec.entries[0].Refreshes)
	})

	t.Run("stuck zone exhausts the budget without error", func(t *testing.T) {
		eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
		eng.RefreshFunc = func(ctx context.Context) error {
			eng.snap = snapshot.New(testAccount(device.GuardEnabling), time.Now())
			return nil
		}
		d, _ := newTestDispatcher(t, &mockCommander{SetGuardStateFunc: okGuard}, eng)

		res, err := d.SetGuardState(context.Background(), "1", "1", true)
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxRefreshes, eng.refreshes)
		assert.Equal(t, DefaultMaxRefreshes, res.Refreshes)
		require.NotNil(t, res.Converged)
		assert.False(t, *res.Converged)
		assert.Equal(t, device.GuardEnabling, res.Zone.State)
	})

	t.Run("refresh failures consume the budget", func(t *testing.T) {
		eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
		eng.RefreshFunc = func(ctx context.Context) error { return errors.New("upstream down") }
		d, _ := newTestDispatcher(t, &mockCommander{SetGuardStateFunc: okGuard}, eng)

		res, err := d.SetGuardState(context.Background(), "1", "1", false)
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxRefreshes, eng.refreshes)
		assert.False(t, *res.Converged)
		assert.Nil(t, res.Zone)
	})

	t.Run("rejected command skips convergence", func(t *testing.T) {
		eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
		client := &mockCommander{SetGuardStateFunc: func(ctx context.Context, deviceID, zoneID device.ID, enable bool) (*zont.Response, error) {
			return &zont.Response{Status: http.StatusOK, Body: []byte(`{"ok": false, "error": "device_offline", "error_ui": "Устройство не в сети"}`)}, nil
		}}
		d, rec := newTestDispatcher(t, client, eng)

		_, err := d.SetGuardState(context.Background(), "1", "1", true)
		var remote *RemoteCommandError
		require.True(t, errors.As(err, &remote))
		assert.Zero(t, eng.refreshes)
		require.Len(t, rec.entries, 1)
		assert.Equal(t, "Устройство не в сети", rec.entries[0].Error)
	})

	t.Run("unknown zone", func(t *testing.T) {
		eng := &fakeEngine{snap: snapshot.New(testAccount(device.GuardDisabled), time.Now())}
		d, _ := newTestDispatcher(t, &mockCommander{}, eng)

		_, err := d.SetGuardState(context.Background(), "1", "9", true)
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
	})

	t.Run("no snapshot yet", func(t *testing.T) {
		d, _ := newTestDispatcher(t, &mockCommander{}, &fakeEngine{})

		_, err := d.SetGuardState(context.Background(), "1", "1", true)
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "device", nf.Kind)
	})
}
