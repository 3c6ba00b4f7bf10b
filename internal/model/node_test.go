package model

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"screen", KindScreen, false},
		{"MENU", KindMenu, false},
		{" entry ", KindEntry, false},
		{"root", KindEntry, false},
		{"window", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHandle(t *testing.T) {
	tests := []struct {
		in      string
		want    Handle
		wantErr bool
	}{
		{"left", HandleLeft, false},
		{"right-source", HandleRight, false},
		{"top-target", HandleTop, false},
		{"Bottom", HandleBottom, false},
		{"center", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHandle(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandleInfo_Vertical(t *testing.T) {
	assert.False(t, HandleInfo{Source: HandleRight, Target: HandleLeft}.Vertical())
	assert.True(t, HandleInfo{Source: HandleBottom, Target: HandleTop}.Vertical())
	assert.True(t, HandleInfo{Source: HandleRight, Target: HandleTop}.Vertical())
}

func TestSetParentChain_CopiesAndSetsDepth(t *testing.T) {
	chain := []string{"a", "b"}
	var n Node
	n.SetParentChain(chain)
	chain[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, n.ParentChain)
	assert.Equal(t, 2, n.Depth)

	n.Orphan()
	assert.Nil(t, n.ParentChain)
	assert.Equal(t, 0, n.Depth)
	assert.True(t, n.IsOrphan())
}

func TestChildChain(t *testing.T) {
	n := node("menu", "home")
	assert.Equal(t, []string{"home", "menu"}, n.ChildChain())
	// ChildChain must not alias the parent's slice.
	c := n.ChildChain()
	c[0] = "x"
	assert.Equal(t, []string{"home"}, n.ParentChain)
}

func TestNodeClone_IsDeep(t *testing.T) {
	n := node("a", "root")
	n.Verifications = []Verification{{Command: "waitForElement", Params: map[string]any{"text": "Home"}, LastRunResults: RunHistory{true}}}
	n.Extra = map[string]string{"x": "1"}

	c := n.Clone()
	c.ParentChain[0] = "changed"
	c.Verifications[0].Params["text"] = "changed"
	c.Verifications[0].LastRunResults[0] = false
	c.Extra["x"] = "2"

	assert.Equal(t, "root", n.ParentChain[0])
	assert.Equal(t, "Home", n.Verifications[0].Params["text"])
	assert.True(t, n.Verifications[0].LastRunResults[0])
	assert.Equal(t, "1", n.Extra["x"])
}

func TestRunHistory_NewestFirstAndBounded(t *testing.T) {
	var h RunHistory
	h = h.Record(true)
	h = h.Record(false)
	assert.Equal(t, RunHistory{false, true}, h)

	for i := 0; i < 15; i++ {
		h = h.Record(i%2 == 0)
	}
	assert.Len(t, h, MaxRunHistory)
	assert.True(t, h[0], "last recorded value (i=14) must be at index 0")
}

func TestRunHistory_RecordDoesNotMutateReceiver(t *testing.T) {
	h := RunHistory{true, true}
	_ = h.Record(false)
	assert.Equal(t, RunHistory{true, true}, h)
}

func TestRunHistory_Property(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("history never exceeds the bound and keeps the newest first", prop.ForAll(
		func(outcomes []bool) bool {
			var v Verification
			for _, o := range outcomes {
				v.RecordResult(o)
				if len(v.LastRunResults) > MaxRunHistory || v.LastRunResults[0] != o {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))
	properties.TestingRun(t)
}

func TestParseControllerClass(t *testing.T) {
	c, err := ParseControllerClass("Image")
	require.NoError(t, err)
	assert.Equal(t, ControllerImage, c)

	_, err = ParseControllerClass("ocr")
	assert.Error(t, err)
}
