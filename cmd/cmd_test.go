package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelstreet/navtree/internal/editor"
	"github.com/angelstreet/navtree/internal/graph"
	"github.com/angelstreet/navtree/internal/model"
)

// resetFlags restores every flag of c and its subcommands to its default,
// since cobra commands are package globals shared by all tests.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type cli struct {
	t  *testing.T
	db string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, db: filepath.Join(t.TempDir(), "navtree.db")}
}

// run executes navtree with JSON output against the test database.
func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--db", c.db, "--format", "json", "--tree", "t1"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func seedCLI(c *cli) {
	c.mustRun("tree", "create", "--name", "Main")
	c.mustRun("node", "add", "home", "--id", "home", "--kind", "entry")
	c.mustRun("node", "add", "main menu", "--id", "main", "--kind", "menu")
	c.mustRun("node", "add", "live", "--id", "live")
	c.mustRun("connect", "home", "main menu", "--from", "bottom", "--to", "top")
	c.mustRun("connect", "main", "live", "--from", "bottom", "--to", "top")
}

func TestCLI_EditFlow(t *testing.T) {
	c := newCLI(t)
	seedCLI(c)

	n := decode[editor.NodeDetail](t, c.mustRun("node", "show", "live"))
	assert.Equal(t, []string{"main"}, n.Node.ParentChain)
	assert.Equal(t, 1, n.Node.Depth)
	assert.Len(t, n.Incoming, 1)

	out, err := c.run("connect", "live", "home", "--from", "bottom", "--to", "top")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection rejected")
	rejected := decode[graph.ConnectOutcome](t, out)
	assert.False(t, rejected.Decision.Allowed)

	v := decode[editor.View](t, c.mustRun("view", "--depth", "1", "--focus", "main menu"))
	assert.Len(t, v.Nodes, 3)
	assert.Len(t, v.Edges, 2)

	rep := decode[editor.Report](t, c.mustRun("node", "reset", "main"))
	assert.Equal(t, 2, rep.RemovedEdges)

	edges := decode[EdgeListResult](t, c.mustRun("edge", "list"))
	assert.Empty(t, edges.Edges)

	check := decode[TreeCheckResult](t, c.mustRun("tree", "check"))
	assert.True(t, check.OK)
	assert.Equal(t, 3, check.Nodes)
}

func TestCLI_ExportImport(t *testing.T) {
	c := newCLI(t)
	seedCLI(c)

	path := filepath.Join(t.TempDir(), "tree.yaml")
	c.mustRun("tree", "export", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 1")

	c.mustRun("tree", "delete")
	_, err = c.run("tree", "show")
	require.Error(t, err)

	res := decode[TreeCheckResult](t, c.mustRun("tree", "import", path))
	assert.Equal(t, "t1", res.TreeID)
	assert.Equal(t, 3, res.Nodes)
	assert.Equal(t, 2, res.Edges)

	tree := decode[model.Tree](t, c.mustRun("tree", "show"))
	assert.Len(t, tree.Nodes, 3)

	list := decode[[]map[string]any](t, c.mustRun("tree", "list"))
	require.Len(t, list, 1)
	assert.Equal(t, "t1", list[0]["id"])
}

func TestCLI_InvalidFlags(t *testing.T) {
	c := newCLI(t)
	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"--format", "xml", "tree", "list"}},
		{"bad policy", []string{"--policy", "free", "tree", "list"}},
		{"bad kind", []string{"node", "add", "x", "--kind", "window"}},
		{"bad handle", []string{"connect", "a", "b", "--from", "up"}},
		{"update without fields", []string{"node", "update", "x"}},
		{"missing tree", []string{"view"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.run(tt.args...)
			assert.Error(t, err)
		})
	}
}

// deviceServer fakes the device services. Verifications whose command is in
// pass succeed.
func deviceServer(t *testing.T, pass ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/server/navigation/goto", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"success": true})
	})
	mux.HandleFunc("/server/av/takeScreenshot", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"success": true, "screenshot_url": "http://host/server/captures/capture_1.png"})
	})
	mux.HandleFunc("/server/verification/execute", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Verification model.Verification `json:"verification"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		ok := false
		for _, p := range pass {
			ok = ok || p == req.Verification.Command
		}
		reply(w, map[string]any{"success": ok, "message": req.Verification.Command})
	})
	mux.HandleFunc("/server/action/execute", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"success": true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCLI_Goto(t *testing.T) {
	c := newCLI(t)
	seedCLI(c)
	srv := deviceServer(t, "waitForTextToAppear")

	c.mustRun("verification", "add", "live", "waitForTextToAppear", "--controller", "text", "--param", "text=LIVE")
	device := []string{"--host", "pi4", "--device", "device1", "--base-url", srv.URL, "--step-delay", "0s"}

	out := c.mustRun(append([]string{"goto", "live"}, device...)...)
	res := decode[map[string]any](t, out)
	assert.Equal(t, true, res["success"])

	n := decode[editor.NodeDetail](t, c.mustRun("node", "show", "live"))
	require.Len(t, n.Confidence, 1)
	assert.Equal(t, "100%", n.Confidence[0].Confidence)

	c.mustRun("verification", "add", "live", "waitForImageToAppear", "--controller", "image")
	_, err := c.run(append([]string{"goto", "live"}, device...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goto run failed")

	records := decode[[]model.ExecutionRecord](t, c.mustRun("history", "--node", "live"))
	assert.Len(t, records, 5)

	_, err = c.run("goto", "live", "--base-url", srv.URL)
	require.Error(t, err, "no host configured")
}

func TestCLI_RunEdge(t *testing.T) {
	c := newCLI(t)
	seedCLI(c)
	srv := deviceServer(t)

	edges := decode[EdgeListResult](t, c.mustRun("edge", "list", "--node", "live"))
	require.Len(t, edges.Edges, 1)
	id := edges.Edges[0].ID

	e := decode[model.Edge](t, c.mustRun("edge", "action", "add", id, "press_key", "--param", "key=OK", "--wait", "0"))
	require.Len(t, e.Actions, 1)
	assert.Equal(t, "OK", e.Actions[0].Params["key"])

	out := c.mustRun("run-edge", id, "--host", "pi4", "--base-url", srv.URL)
	res := decode[map[string]any](t, out)
	assert.Equal(t, true, res["success"])

	tree := decode[model.Tree](t, c.mustRun("tree", "show"))
	for _, e := range tree.Edges {
		if e.ID == id {
			assert.Equal(t, model.RunHistory{true}, e.Actions[0].LastRunResults)
		}
	}
}
