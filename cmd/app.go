package cmd

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelstreet/navtree/internal/config"
	"github.com/angelstreet/navtree/internal/editor"
	"github.com/angelstreet/navtree/internal/orchestrator"
	"github.com/angelstreet/navtree/internal/platform"
	_ "github.com/angelstreet/navtree/internal/platform/httpdevice"
	"github.com/angelstreet/navtree/internal/rules"
	"github.com/angelstreet/navtree/internal/store"
	"github.com/angelstreet/navtree/internal/verify"
)

// app is the set of components one command works with.
type app struct {
	cfg    config.Config
	db     *sql.DB
	trees  *store.TreeStore
	audit  *store.AuditStore
	editor *editor.Service
}

// openApp opens the database and builds the editor. withDevice also builds
// the device backend and run orchestrator.
func openApp(cfg config.Config, withDevice bool) (*app, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db}
	if err := a.init(withDevice); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(withDevice bool) error {
	var err error
	if a.trees, err = store.NewTreeStore(a.db, a.cfg.TeamID); err != nil {
		return err
	}
	if a.audit, err = store.NewAuditStore(a.db, a.cfg.TeamID); err != nil {
		return err
	}
	policy, err := rules.ForName(a.cfg.RulePolicy)
	if err != nil {
		return err
	}
	opts := editor.Options{Policy: policy, MaxDisplayDepth: a.cfg.MaxDisplayDepth}
	if withDevice {
		if opts.Runner, err = newRunner(a.cfg, a.audit); err != nil {
			return err
		}
	}
	a.editor = editor.New(a.trees, opts)
	return nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// session is the device runs target. The CLI always holds control of it.
func (a *app) session() orchestrator.Session {
	return orchestrator.Session{
		Target:        platform.Target{Host: a.cfg.Device.Host, DeviceID: a.cfg.Device.ID},
		ControlActive: true,
	}
}

// newRunner builds the orchestrator over the configured device backend.
// Image verifications with a local reference are matched in-process.
func newRunner(cfg config.Config, audit platform.AuditRecorder) (*orchestrator.Orchestrator, error) {
	p, err := platform.NewProvider(cfg.Device.Backend, platform.Options{
		BaseURL: cfg.Device.BaseURL,
		TeamID:  cfg.TeamID,
		Timeout: cfg.Device.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("device backend: %w", err)
	}
	matcher := &verify.ImageMatcher{
		Artifacts:     p.Artifacts,
		Remote:        p.Verifier,
		ReferenceDir:  cfg.Device.ReferenceDir,
		AnnotationDir: cfg.Device.AnnotationDir,
	}
	return orchestrator.New(p, matcher, audit, orchestrator.Options{StepDelay: cfg.Run.StepDelay}), nil
}

// addDeviceFlags registers the flags selecting the device a command drives.
func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", "", "Host controlling the device (overrides device.host)")
	cmd.Flags().String("device", "", "Device ID on the host (overrides device.id)")
	cmd.Flags().String("base-url", "", "Device services base URL (overrides device.base_url)")
	cmd.Flags().Duration("step-delay", -1, "Pause between verifications (overrides run.step_delay)")
}

// deviceConfig applies the device flags of cmd over appConfig.
func deviceConfig(cmd *cobra.Command) config.Config {
	cfg := appConfig
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Device.Host = v
	}
	if v, _ := cmd.Flags().GetString("device"); v != "" {
		cfg.Device.ID = v
	}
	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		cfg.Device.BaseURL = v
	}
	if v, _ := cmd.Flags().GetDuration("step-delay"); v >= 0 {
		cfg.Run.StepDelay = v
	}
	return cfg
}
