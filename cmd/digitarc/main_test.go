package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/digitarc/pkg/config"
	"github.com/vanderheijden86/digitarc/pkg/devserver"
	"github.com/vanderheijden86/digitarc/pkg/model"
)

// testBackend starts a seeded dev server and writes a config pointing at
// it. It returns the config path and the seeded project.
func testBackend(t *testing.T) (string, model.Project, *devserver.Store) {
	t.Helper()
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvToken, "")
	t.Setenv(config.EnvConfig, "")

	store, err := devserver.OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	p, err := devserver.Seed(context.Background(), store)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	srv := httptest.NewServer(devserver.NewServer(store))
	t.Cleanup(srv.Close)

	path := writeConfig(t, srv.URL+devserver.APIPrefix)
	return path, p, store
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "api:\n  base_url: " + baseURL + "\nlog:\n  file: \"\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "digitarc dev" {
		t.Errorf("version = %q", out)
	}
}

func TestTreeCmdLazyPrintsRoots(t *testing.T) {
	cfg, p, _ := testBackend(t)

	out, err := runCmd(t, "--config", cfg, "tree", "--project", p.ID)
	if err != nil {
		t.Fatalf("tree error = %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 roots:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "Municipal council  [fonds]  ") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "Loose acquisitions  ") || strings.Contains(lines[2], "[") {
		t.Errorf("untyped root rendered as %q", lines[2])
	}
}

func TestTreeCmdExpandAllIndentsByDepth(t *testing.T) {
	cfg, p, _ := testBackend(t)

	out, err := runCmd(t, "--config", cfg, "tree", "--project", p.ID, "--expand-all")
	if err != nil {
		t.Fatalf("tree error = %v\n%s", err, out)
	}
	want := []string{
		"Municipal council",
		"  Minutes 1900-1950",
		"    Box 1",
		"    Box 2",
		"      Folder 2a",
		"  Correspondence",
		"Parish registers",
		"  Baptisms vol. I",
		"Loose acquisitions",
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), out)
	}
	for i, w := range want {
		if !strings.HasPrefix(lines[i], w+"  ") {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], w)
		}
	}
}

func TestTreeCmdEagerJSON(t *testing.T) {
	cfg, p, _ := testBackend(t)

	out, err := runCmd(t, "--config", cfg, "tree", "--project", p.ID, "--eager", "--json")
	if err != nil {
		t.Fatalf("tree error = %v\n%s", err, out)
	}
	var forest []jsonNode
	if err := json.Unmarshal([]byte(out), &forest); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	var count func([]jsonNode) int
	count = func(ns []jsonNode) int {
		n := len(ns)
		for _, c := range ns {
			if !c.Fetched {
				t.Errorf("%s not fetched in eager mode", c.Name)
			}
			n += count(c.Children)
		}
		return n
	}
	if got := count(forest); got != 9 {
		t.Errorf("collections = %d, want 9", got)
	}
}

func TestTreeCmdCollectionSource(t *testing.T) {
	cfg, p, store := testBackend(t)
	roots, err := store.ListCollections(context.Background(), devserver.CollectionFilter{ProjectID: p.ID})
	if err != nil || len(roots) == 0 {
		t.Fatalf("ListCollections = %v, %v", roots, err)
	}

	out, err := runCmd(t, "--config", cfg, "tree", "--collection", roots[1].ID, "--expand-all")
	if err != nil {
		t.Fatalf("tree error = %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "Parish registers") || !strings.HasPrefix(lines[1], "  Baptisms vol. I") {
		t.Errorf("subtree output:\n%s", out)
	}
}

func TestTreeCmdNeedsSource(t *testing.T) {
	cfg, _, _ := testBackend(t)
	if _, err := runCmd(t, "--config", cfg, "tree"); err == nil || !strings.Contains(err.Error(), "no project selected") {
		t.Errorf("err = %v", err)
	}
}

func TestTreeCmdUnreachableBackend(t *testing.T) {
	t.Setenv(config.EnvAPIURL, "")
	cfg := writeConfig(t, "http://127.0.0.1:1/api/v1")
	if _, err := runCmd(t, "--config", cfg, "tree", "--project", "p"); err == nil {
		t.Error("expected an error for an unreachable backend")
	}
}

func TestMkcollCmd(t *testing.T) {
	cfg, p, store := testBackend(t)

	out, err := runCmd(t, "--config", cfg, "mkcoll", "--name", " Photographs ", "--type", "Series", "--project", p.ID)
	if err != nil {
		t.Fatalf("mkcoll error = %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, "Created Photographs (") {
		t.Errorf("output = %q", out)
	}

	roots, err := store.ListCollections(context.Background(), devserver.CollectionFilter{ProjectID: p.ID})
	if err != nil {
		t.Fatal(err)
	}
	last := roots[len(roots)-1]
	if last.Name != "Photographs" || last.CollectionType != model.TypeSeries {
		t.Errorf("created = %+v", last)
	}

	if _, err := runCmd(t, "--config", cfg, "mkcoll", "--name", "Album 1", "--parent", last.ID); err != nil {
		t.Errorf("mkcoll --parent error = %v", err)
	}
}

func TestMkcollValidation(t *testing.T) {
	tests := []struct {
		name string
		opts mkcollOptions
		want string
	}{
		{"no placement", mkcollOptions{name: "X"}, "--project"},
		{"bad type", mkcollOptions{name: "X", ctype: "crate", projectID: "p"}, "unknown collection type"},
		{"blank name", mkcollOptions{name: "  ", projectID: "p"}, "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.payload()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("payload() err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestConfigInitAndShow(t *testing.T) {
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvToken, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if _, err := runCmd(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := runCmd(t, "--config", path, "config", "init"); err == nil {
		t.Error("second init without --force succeeded")
	}
	if _, err := runCmd(t, "--config", path, "config", "init", "--force"); err != nil {
		t.Errorf("init --force error = %v", err)
	}

	t.Setenv(config.EnvToken, "s3cret")
	out, err := runCmd(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "s3cret") {
		t.Error("token printed in clear")
	}
	for _, want := range []string{"base_url:", "strategy: lazy", "City archive"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}
