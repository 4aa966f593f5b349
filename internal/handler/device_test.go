package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairDevice runs the code flow end to end and returns the minted raw token
// with its device id.
func pairDevice(t *testing.T, env *testEnv) (token, deviceID string) {
	t.Helper()

	_, initBody := env.do(t, http.MethodPost, "/link/init", "", nil)
	pollingToken := initBody["polling_token"].(string)

	rec, _ := env.do(t, http.MethodPost, "/link/confirm", testSessionToken,
		map[string]string{"code": initBody["code"].(string)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, pollBody := env.do(t, http.MethodPost, "/link/status", "",
		map[string]string{"polling_token": pollingToken})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ = pollBody["token"].(string)
	deviceID, _ = pollBody["device_id"].(string)
	require.NotEmpty(t, token)
	require.NotEmpty(t, deviceID)
	return token, deviceID
}

func TestDeviceList(t *testing.T) {
	t.Run("requires a session", func(t *testing.T) {
		env := newTestEnv(t)
		rec, _ := env.do(t, http.MethodGet, "/devices/list", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no devices is an empty list, not null", func(t *testing.T) {
		env := newTestEnv(t)
		rec, body := env.do(t, http.MethodGet, "/devices/list", testSessionToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		devices, ok := body["devices"].([]any)
		require.True(t, ok, "devices must serialize as an array")
		assert.Empty(t, devices)
	})

	t.Run("lists paired devices", func(t *testing.T) {
		env := newTestEnv(t)
		_, deviceID := pairDevice(t, env)

		rec, body := env.do(t, http.MethodGet, "/devices/list", testSessionToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		devices := body["devices"].([]any)
		require.Len(t, devices, 1)
		assert.Equal(t, deviceID, devices[0].(map[string]any)["id"])
	})
}

func TestDeviceRevoke(t *testing.T) {
	t.Run("requires a session", func(t *testing.T) {
		env := newTestEnv(t)
		rec, _ := env.do(t, http.MethodPost, "/devices/revoke", "",
			map[string]string{"device_id": "d9428888-122b-11e1-b85c-61cd3cbb3210"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects missing and malformed device ids", func(t *testing.T) {
		env := newTestEnv(t)

		rec, body := env.do(t, http.MethodPost, "/devices/revoke", testSessionToken, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "MISSING_REQUIRED", body["code"])

		rec, body = env.do(t, http.MethodPost, "/devices/revoke", testSessionToken,
			map[string]string{"device_id": "not-a-uuid"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", body["code"])
	})

	t.Run("revocation takes effect on the next request", func(t *testing.T) {
		env := newTestEnv(t)
		token, deviceID := pairDevice(t, env)

		rec, _ := env.do(t, http.MethodGet, "/app/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, body := env.do(t, http.MethodPost, "/devices/revoke", testSessionToken,
			map[string]string{"device_id": deviceID})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["ok"])

		rec, body = env.do(t, http.MethodGet, "/app/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", body["code"])
	})

	t.Run("revoking an unknown device succeeds quietly", func(t *testing.T) {
		env := newTestEnv(t)
		rec, body := env.do(t, http.MethodPost, "/devices/revoke", testSessionToken,
			map[string]string{"device_id": "d9428888-122b-11e1-b85c-61cd3cbb3210"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["ok"])
	})
}

func TestAppMe(t *testing.T) {
	t.Run("rejects missing and garbage bearer tokens", func(t *testing.T) {
		env := newTestEnv(t)

		rec, _ := env.do(t, http.MethodGet, "/app/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec, _ = env.do(t, http.MethodGet, "/app/me", "ternary_app_forged", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("session tokens do not work as app tokens", func(t *testing.T) {
		env := newTestEnv(t)
		rec, _ := env.do(t, http.MethodGet, "/app/me", testSessionToken, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
