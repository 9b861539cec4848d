package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/santa-scope/internal/app"
	"github.com/unklstewy/santa-scope/internal/auth"
	"github.com/unklstewy/santa-scope/pkg/config"
	"github.com/unklstewy/santa-scope/pkg/route"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

const testPassword = "rudolph"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Route.Source = "builtin"
	cfg.Chat.Store = "memory"
	cfg.GenAI.APIKey = ""
	cfg.Geography.LocalPath = filepath.Join(t.TempDir(), "missing.geojson")
	cfg.Geography.CachePath = ""
	cfg.Server.StaticDir = ""
	cfg.Server.PushIntervalMs = 10

	a, err := app.New(context.Background(), cfg, zerolog.Nop(), 800, 600)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	authSvc := auth.NewService(auth.Config{JWTSecret: "test-secret", BCryptCost: 4})
	hash, err := authSvc.HashPassword(testPassword)
	require.NoError(t, err)
	authSvc = auth.NewService(auth.Config{JWTSecret: "test-secret", PasswordHash: hash, BCryptCost: 4})

	s := NewServer(a, authSvc)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func login(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", map[string]string{"password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := decode(t, resp)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthAndState(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/state", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode(t, resp)
	assert.Equal(t, "following", state["follow"])
	assert.Equal(t, float64(0), state["index"])
	current, ok := state["current"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "North Pole", current["name"])
}

func TestFrameSVG(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/frame.svg", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))

	var body bytes.Buffer
	_, err := body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "<svg")
}

func TestCameraEndpoints(t *testing.T) {
	s, ts := newTestServer(t)
	state := s.engine.State()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/camera/drag", "", map[string]float64{"dx": 20, "dy": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "manual", decode(t, resp)["follow"])
	assert.True(t, state.RecenterVisible())

	before := state.Camera().Scale
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/camera/zoom", "", map[string]float64{"notches": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, state.Camera().Scale, before)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/camera/recenter", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, tracker.Following, state.FollowMode())
	assert.False(t, state.RecenterVisible())

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/camera/pointer", "", map[string]any{"kind": "hover"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/camera/drag", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPointerRequestEvent(t *testing.T) {
	ev, err := pointerRequest{Kind: "down", Button: 0, X: 3, Y: 4}.event()
	require.NoError(t, err)
	assert.Equal(t, tracker.PointerDown, ev.Kind)
	assert.Equal(t, tracker.ButtonPrimary, ev.Button)
	assert.Equal(t, 3.0, ev.X)

	ev, err = pointerRequest{Kind: "Down", Button: 2}.event()
	require.NoError(t, err)
	assert.Equal(t, tracker.ButtonSecondary, ev.Button)

	ev, err = pointerRequest{Kind: "wheel", Notches: -1}.event()
	require.NoError(t, err)
	assert.Equal(t, tracker.Wheel, ev.Kind)
	assert.Equal(t, tracker.ButtonNone, ev.Button)
	assert.Equal(t, -1.0, ev.Notches)

	ev, err = pointerRequest{Kind: "touchmove", Touches: 2, Spread: 40}.event()
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Touches)
	assert.Equal(t, 40.0, ev.Spread)

	_, err = pointerRequest{Kind: "hover"}.event()
	assert.Error(t, err)
}

func TestChatEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat", "", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat", "", map[string]string{"message": "Where are you?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decode(t, resp)
	assert.Equal(t, "santa", reply["role"])
	assert.NotEmpty(t, reply["text"])

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/chat", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs, _ := decode(t, resp)["messages"].([]any)
	assert.Len(t, msgs, 3)
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/route/next", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/route/next", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", map[string]string{"password": "grinch"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOperatorRoutesRejectOtherRoles(t *testing.T) {
	s, ts := newTestServer(t)

	token, err := s.authSvc.GenerateToken("viewer")
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/route/next", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, s.engine.State().Index())
}

func TestOperatorRoutes(t *testing.T) {
	s, ts := newTestServer(t)
	token := login(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/route/next", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decode(t, resp)["index"])
	assert.Equal(t, 1, s.engine.State().Index())

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/v1/route", token, map[string]any{"waypoints": []route.Waypoint{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	short := route.Route{
		{Name: "North Pole", Lat: 90, Lng: 0},
		{Name: "Oslo", Lat: 59.91, Lng: 10.75},
	}
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/v1/route", token, map[string]any{"waypoints": short})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, short, s.engine.State().Route())
	assert.Equal(t, 0, s.engine.State().Index())
	assert.Equal(t, "North Pole", s.engine.State().Caption().Location)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/chat", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Len(t, s.app.Chat.Messages(), 1)
}

func TestLoginDisabled(t *testing.T) {
	s, ts := newTestServer(t)
	s.authSvc = auth.NewService(auth.Config{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", map[string]string{"password": testPassword})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://santa.example"})

	req := httptest.NewRequest(http.MethodGet, "http://tracker.local/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://santa.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://tracker.local")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://grinch.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}

func TestWebSocketStreamsFrames(t *testing.T) {
	s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type     string         `json:"type"`
		Snapshot map[string]any `json:"snapshot"`
		Scene    map[string]any `json:"scene"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "frame", msg.Type)
	assert.Equal(t, "following", msg.Snapshot["follow"])
	assert.Contains(t, msg.Scene, "radius")

	// A wheel event from the client zooms the shared camera
	before := s.engine.State().Camera().Scale
	require.NoError(t, conn.WriteJSON(pointerRequest{Kind: "wheel", X: 400, Y: 300, Notches: 1}))
	assert.Eventually(t, func() bool {
		return s.engine.State().Camera().Scale > before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketClosesOnShutdown(t *testing.T) {
	s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	s.Close()
	s.Close()

	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
