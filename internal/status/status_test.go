package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-group-bot/internal/supervisor"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/whatsapp"
)

type fakeSession struct {
	connected bool
	loggedIn  bool
	qrImage   string
	qrErr     error
	logoutErr error
	logouts   int
}

func (f *fakeSession) IsConnected() bool          { return f.connected }
func (f *fakeSession) IsLoggedIn() bool           { return f.loggedIn }
func (f *fakeSession) PairingQR() (string, error) { return f.qrImage, f.qrErr }

func (f *fakeSession) Logout(ctx context.Context) error {
	f.logouts++
	return f.logoutErr
}

func newTestApp(session Session) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	sup := supervisor.New(supervisor.DefaultPolicy(), func() error { return nil })
	handler := NewHandler(session, sup)

	app.Get("/health", handler.Health)
	app.Get("/qr", handler.PairingQR)
	app.Post("/logout", handler.Logout)
	return app
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandler_Health(t *testing.T) {
	app := newTestApp(&fakeSession{connected: true, loggedIn: true})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(supervisor.StateConnecting), data["state"])
	assert.Equal(t, true, data["connected"])
	assert.Equal(t, true, data["logged_in"])
}

func TestHandler_PairingQRNotFoundWhenPaired(t *testing.T) {
	app := newTestApp(&fakeSession{qrErr: whatsapp.ErrNoPairingQR})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/qr", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_PairingQRServesImage(t *testing.T) {
	app := newTestApp(&fakeSession{qrImage: "data:image/png;base64,abc"})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/qr", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,abc", data["qr_image"])
}

func TestHandler_LogoutEndsSession(t *testing.T) {
	session := &fakeSession{}
	app := newTestApp(session)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, session.logouts)
}

func TestHandler_LogoutFailureReported(t *testing.T) {
	session := &fakeSession{logoutErr: errors.New("logout failed")}
	app := newTestApp(session)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, session.logouts)
}
