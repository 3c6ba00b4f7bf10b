// Package httpdevice implements the device collaborators against the
// platform's JSON-over-HTTP services.
package httpdevice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/platform"
)

// BackendName is the name the client registers under.
const BackendName = "http"

// DefaultTimeout bounds every request when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

func init() {
	platform.Register(BackendName, func(o platform.Options) (*platform.Provider, error) {
		c, err := New(o)
		if err != nil {
			return nil, err
		}
		return c.Provider(), nil
	})
}

// Service paths, relative to the base URL.
const (
	pathNavigate   = "/server/navigation/goto"
	pathScreenshot = "/server/av/takeScreenshot"
	pathVerify     = "/server/verification/execute"
	pathAction     = "/server/action/execute"
	pathCaptures   = "/server/captures/"
)

// Client talks to the device services of one server.
type Client struct {
	base   *url.URL
	teamID string
	http   *http.Client
}

// New returns a client for o.BaseURL.
func New(o platform.Options) (*Client, error) {
	if o.BaseURL == "" {
		return nil, fmt.Errorf("httpdevice: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(o.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpdevice: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("httpdevice: base url must be http or https, got %q", o.BaseURL)
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{base: base, teamID: o.TeamID, http: &http.Client{Timeout: timeout}}, nil
}

// Provider exposes the client as every device collaborator.
func (c *Client) Provider() *platform.Provider {
	return &platform.Provider{
		Navigator:     c,
		Screenshotter: c,
		Artifacts:     c,
		Verifier:      c,
		Actions:       c,
	}
}

type stepResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (r stepResponse) result() platform.StepResult {
	msg := r.Message
	if !r.Success && r.Error != "" {
		msg = r.Error
	}
	return platform.StepResult{Success: r.Success, Message: msg}
}

type navigateRequest struct {
	Host      string `json:"host_name"`
	DeviceID  string `json:"device_id,omitempty"`
	TreeID    string `json:"tree_id"`
	NodeLabel string `json:"target_node_label"`
}

// NavigateToNode implements platform.Navigator.
func (c *Client) NavigateToNode(ctx context.Context, target platform.Target, treeID, nodeLabel string) (platform.StepResult, error) {
	var resp stepResponse
	req := navigateRequest{Host: target.Host, DeviceID: target.DeviceID, TreeID: treeID, NodeLabel: nodeLabel}
	if err := c.post(ctx, pathNavigate, req, &resp); err != nil {
		return platform.StepResult{}, fmt.Errorf("navigate to %q: %w", nodeLabel, err)
	}
	return resp.result(), nil
}

type screenshotRequest struct {
	Host     string `json:"host_name"`
	DeviceID string `json:"device_id,omitempty"`
}

type screenshotResponse struct {
	Success       bool   `json:"success"`
	ScreenshotURL string `json:"screenshot_url"`
	Error         string `json:"error,omitempty"`
}

// CaptureScreenshot implements platform.Screenshotter.
func (c *Client) CaptureScreenshot(ctx context.Context, target platform.Target) (string, error) {
	var resp screenshotResponse
	if err := c.post(ctx, pathScreenshot, screenshotRequest{Host: target.Host, DeviceID: target.DeviceID}, &resp); err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	if !resp.Success || resp.ScreenshotURL == "" {
		msg := resp.Error
		if msg == "" {
			msg = "no screenshot returned"
		}
		return "", fmt.Errorf("capture screenshot: %s", msg)
	}
	return resp.ScreenshotURL, nil
}

// ReadArtifact implements platform.ArtifactReader. The caller closes the body.
func (c *Client) ReadArtifact(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, fmt.Errorf("read artifact: invalid name %q", name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(pathCaptures+url.PathEscape(name)), nil)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("read artifact %s: unexpected status %s", name, resp.Status)
	}
	return resp.Body, nil
}

type verifyRequest struct {
	Host         string             `json:"host_name"`
	DeviceID     string             `json:"device_id,omitempty"`
	Verification model.Verification `json:"verification"`
	ImageSource  string             `json:"image_source_url"`
}

// ExecuteVerification implements platform.VerificationExecutor.
func (c *Client) ExecuteVerification(ctx context.Context, target platform.Target, v model.Verification, artifact string) (platform.StepResult, error) {
	var resp stepResponse
	req := verifyRequest{Host: target.Host, DeviceID: target.DeviceID, Verification: v, ImageSource: artifact}
	if err := c.post(ctx, pathVerify, req, &resp); err != nil {
		return platform.StepResult{}, fmt.Errorf("verification %s: %w", v.Command, err)
	}
	return resp.result(), nil
}

type actionRequest struct {
	Host     string       `json:"host_name"`
	DeviceID string       `json:"device_id,omitempty"`
	Action   model.Action `json:"action"`
}

// ExecuteAction implements platform.ActionExecutor.
func (c *Client) ExecuteAction(ctx context.Context, target platform.Target, a model.Action) (platform.StepResult, error) {
	var resp stepResponse
	if err := c.post(ctx, pathAction, actionRequest{Host: target.Host, DeviceID: target.DeviceID, Action: a}, &resp); err != nil {
		return platform.StepResult{}, fmt.Errorf("action %s: %w", a.Command, err)
	}
	return resp.result(), nil
}

func (c *Client) endpoint(p string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + p
	if c.teamID != "" {
		q := u.Query()
		q.Set("team_id", c.teamID)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) post(ctx context.Context, p string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(p), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
