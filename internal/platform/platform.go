package platform

import (
	"context"
	"io"

	"github.com/angelstreet/navtree/internal/model"
)

// Navigator drives a device to the screen a node models.
type Navigator interface {
	// NavigateToNode asks the host to walk the device to nodeLabel in treeID.
	NavigateToNode(ctx context.Context, target Target, treeID, nodeLabel string) (StepResult, error)
}

// Screenshotter captures the device screen.
type Screenshotter interface {
	// CaptureScreenshot returns an opaque locator for the captured image.
	CaptureScreenshot(ctx context.Context, target Target) (string, error)
}

// ArtifactReader opens a previously captured artifact by name.
type ArtifactReader interface {
	ReadArtifact(ctx context.Context, name string) (io.ReadCloser, error)
}

// VerificationExecutor runs exactly one verification against one captured
// artifact.
type VerificationExecutor interface {
	ExecuteVerification(ctx context.Context, target Target, v model.Verification, artifact string) (StepResult, error)
}

// ActionExecutor runs one edge action on the device.
type ActionExecutor interface {
	ExecuteAction(ctx context.Context, target Target, a model.Action) (StepResult, error)
}

// AuditRecorder stores the execution records of one run as a batch.
type AuditRecorder interface {
	RecordExecutionBatch(ctx context.Context, records []model.ExecutionRecord) error
}

// TreePersistence loads and saves whole trees.
type TreePersistence interface {
	LoadTree(ctx context.Context, treeID string) (model.Tree, error)
	SaveTree(ctx context.Context, tree model.Tree) error
}
