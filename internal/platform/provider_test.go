package platform

import (
	"errors"
	"testing"
)

func TestNewProvider_Registered(t *testing.T) {
	var got Options
	Register("Fake", func(o Options) (*Provider, error) {
		got = o
		return &Provider{}, nil
	})
	defer func() {
		mu.Lock()
		delete(backends, "fake")
		mu.Unlock()
	}()

	p, err := NewProvider("fake", Options{BaseURL: "http://host:5109", TeamID: "team"})
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("expected provider")
	}
	if got.BaseURL != "http://host:5109" || got.TeamID != "team" {
		t.Errorf("options not passed through: %+v", got)
	}
}

func TestNewProvider_UnsupportedBackend(t *testing.T) {
	_, err := NewProvider("telnet", Options{})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got: %v", err)
	}
}
