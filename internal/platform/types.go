package platform

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Target identifies the device a run drives: the host that controls it and
// the device id on that host.
type Target struct {
	Host     string `yaml:"host"      json:"host"`
	DeviceID string `yaml:"device_id" json:"device_id"`
}

// ParseTarget parses "host" or "host/device".
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, fmt.Errorf("empty target: expected host or host/device")
	}
	host, device, _ := strings.Cut(s, "/")
	if host == "" {
		return Target{}, fmt.Errorf("invalid target %q: missing host", s)
	}
	return Target{Host: host, DeviceID: device}, nil
}

// Key returns the key runs are serialized on.
func (t Target) Key() string {
	if t.DeviceID == "" {
		return t.Host
	}
	return t.Host + "/" + t.DeviceID
}

func (t Target) String() string { return t.Key() }

// StepResult is a collaborator's report for one navigation, action or
// verification request.
type StepResult struct {
	Success bool   `yaml:"success"           json:"success"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// ArtifactName extracts the file name from a screenshot locator, which may
// be a URL, a path or a bare name. Query strings and fragments are dropped.
func ArtifactName(locator string) string {
	l := strings.TrimSpace(locator)
	if i := strings.IndexAny(l, "?#"); i >= 0 {
		l = l[:i]
	}
	l = strings.TrimRight(l, "/")
	if l == "" {
		return ""
	}
	return path.Base(l)
}

// Bounds represents an image rectangle.
type Bounds struct {
	X, Y, Width, Height int
}

// ParseBBox parses a "x,y,w,h" string into a Bounds.
func ParseBBox(s string) (*Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid bbox %q: expected x,y,w,h", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return nil, fmt.Errorf("invalid bbox %q: width and height must be positive", s)
	}
	return &Bounds{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}
