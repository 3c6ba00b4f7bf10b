package httpdevice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/platform"
)

var target = platform.Target{Host: "pi4", DeviceID: "device1"}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(platform.Options{BaseURL: srv.URL + "/", TeamID: "team-7", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(platform.Options{})
	assert.Error(t, err)
	_, err = New(platform.Options{BaseURL: "ftp://host"})
	assert.Error(t, err)
	c, err := New(platform.Options{BaseURL: "http://host:5109"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}

func TestRegisteredBackend(t *testing.T) {
	p, err := platform.NewProvider(BackendName, platform.Options{BaseURL: "http://host"})
	require.NoError(t, err)
	assert.NotNil(t, p.Navigator)
	assert.NotNil(t, p.Verifier)
}

func TestNavigateToNode(t *testing.T) {
	var got navigateRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathNavigate, r.URL.Path)
		assert.Equal(t, "team-7", r.URL.Query().Get("team_id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"success":true,"message":"reached live"}`)
	}))

	res, err := c.NavigateToNode(context.Background(), target, "tree-1", "live")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "reached live", res.Message)
	assert.Equal(t, navigateRequest{Host: "pi4", DeviceID: "device1", TreeID: "tree-1", NodeLabel: "live"}, got)
}

func TestNavigateToNode_FailureUsesErrorField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":"no path found"}`)
	}))
	res, err := c.NavigateToNode(context.Background(), target, "tree-1", "live")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "no path found", res.Message)
}

func TestPost_HTTPErrorStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "host offline", http.StatusBadGateway)
	}))
	_, err := c.ExecuteAction(context.Background(), target, model.Action{Command: "press_key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "host offline")
}

func TestCaptureScreenshot(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathScreenshot, r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"screenshot_url":"https://host/captures/capture_1.png"}`)
	}))
	loc, err := c.CaptureScreenshot(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, "https://host/captures/capture_1.png", loc)
}

func TestCaptureScreenshot_Failure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":"stream down"}`)
	}))
	_, err := c.CaptureScreenshot(context.Background(), target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream down")
}

func TestExecuteVerification(t *testing.T) {
	var got verifyRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathVerify, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"success":true,"message":"text found"}`)
	}))
	v := model.Verification{Command: "waitForTextToAppear", Controller: model.ControllerText, InputValue: "Live"}
	res, err := c.ExecuteVerification(context.Background(), target, v, "capture_1.png")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "capture_1.png", got.ImageSource)
	assert.Equal(t, "waitForTextToAppear", got.Verification.Command)
}

func TestReadArtifact(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathCaptures+"capture_1.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "PNGDATA")
	}))
	rc, err := c.ReadArtifact(context.Background(), "capture_1.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))

	_, err = c.ReadArtifact(context.Background(), "missing.png")
	assert.Error(t, err)
	_, err = c.ReadArtifact(context.Background(), "../etc/passwd")
	assert.Error(t, err)
}

func TestContextCancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.NavigateToNode(ctx, target, "tree-1", "live")
	assert.ErrorIs(t, err, context.Canceled)
}
