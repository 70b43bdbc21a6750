package tree

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
	"github.com/zuercheram/DevopsAutomate/internal/remote"
	"github.com/zuercheram/DevopsAutomate/internal/service/hierarchy"
)

// fakeNodes implements remote.ClassificationService over an in-memory path
// set and records every call.
type fakeNodes struct {
	paths       map[remote.TreeKind]map[string]bool
	createCalls []string
	deleteCalls []string
	createErr   error
	deleteErr   error
}

func newFakeNodes(existing ...string) *fakeNodes {
	f := &fakeNodes{paths: map[remote.TreeKind]map[string]bool{
		remote.TreeAreas:      {},
		remote.TreeIterations: {},
	}}
	for _, p := range existing {
		f.paths[remote.TreeAreas][p] = true
	}
	return f
}

func (f *fakeNodes) GetTree(ctx context.Context, kind remote.TreeKind) (remote.Node, error) {
	root := remote.Node{ID: 1, Name: "root"}
	for p := range f.paths[kind] {
		root.Children = append(root.Children, remote.Node{Path: p})
	}
	return root, nil
}

func (f *fakeNodes) CreateNode(ctx context.Context, kind remote.TreeKind, parentPath, name string) (remote.Node, error) {
	path := domain.JoinPath(parentPath, name)
	f.createCalls = append(f.createCalls, string(kind)+":"+path)
	if f.createErr != nil {
		return remote.Node{}, f.createErr
	}
	if f.paths[kind][path] {
		return remote.Node{}, fmt.Errorf("node %s: %w", path, remote.ErrAlreadyExists)
	}
	f.paths[kind][path] = true
	return remote.Node{Path: path}, nil
}

func (f *fakeNodes) DeleteNode(ctx context.Context, kind remote.TreeKind, path string, reclassifyToID int) error {
	f.deleteCalls = append(f.deleteCalls, string(kind)+":"+path)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if !f.paths[kind][path] {
		return fmt.Errorf("node %s: %w", path, remote.ErrNotFound)
	}
	delete(f.paths[kind], path)
	return nil
}

func (f *fakeNodes) GetNodeByPath(ctx context.Context, kind remote.TreeKind, path string) (remote.Node, error) {
	if path == "" {
		return remote.Node{ID: 1}, nil
	}
	if !f.paths[kind][path] {
		return remote.Node{}, remote.ErrNotFound
	}
	return remote.Node{Path: path}, nil
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestEnsurePathCreatesMissingSegmentsOnly(t *testing.T) {
	fake := newFakeNodes("Alpha")
	svc := New(fake, testLogger(), false)
	if err := svc.LoadSnapshot(context.Background(), remote.TreeAreas); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if err := svc.EnsurePath(context.Background(), remote.TreeAreas, `Alpha\Bravo\Charlie`); err != nil {
		t.Fatalf("EnsurePath: %v", err)
	}
	want := []string{`areas:Alpha\Bravo`, `areas:Alpha\Bravo\Charlie`}
	if len(fake.createCalls) != len(want) {
		t.Fatalf("create calls = %v, want %v", fake.createCalls, want)
	}
	for i := range want {
		if fake.createCalls[i] != want[i] {
			t.Fatalf("create calls = %v, want %v", fake.createCalls, want)
		}
	}
}

func TestEnsurePathIsIdempotent(t *testing.T) {
	fake := newFakeNodes()
	svc := New(fake, testLogger(), false)
	if err := svc.LoadSnapshot(context.Background(), remote.TreeAreas); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if err := svc.EnsurePath(context.Background(), remote.TreeAreas, "Alpha"); err != nil {
		t.Fatalf("first EnsurePath: %v", err)
	}
	if err := svc.EnsurePath(context.Background(), remote.TreeAreas, "Alpha"); err != nil {
		t.Fatalf("second EnsurePath: %v", err)
	}
	if len(fake.createCalls) != 1 {
		t.Fatalf("expected exactly one creation call, got %v", fake.createCalls)
	}
}

func TestEnsurePathToleratesConflictAsSuccess(t *testing.T) {
	fake := newFakeNodes()
	fake.createErr = fmt.Errorf("wrapped: %w", remote.ErrAlreadyExists)
	svc := New(fake, testLogger(), false)

	if err := svc.EnsurePath(context.Background(), remote.TreeAreas, "Alpha"); err != nil {
		t.Fatalf("conflict must be tolerated, got %v", err)
	}
	if !svc.Known(remote.TreeAreas, "Alpha") {
		t.Fatal("tolerated conflict must still populate the cache")
	}
}

func TestEnsurePathPropagatesOtherFailures(t *testing.T) {
	fake := newFakeNodes()
	fake.createErr = remote.ErrForbidden
	svc := New(fake, testLogger(), false)

	if err := svc.EnsurePath(context.Background(), remote.TreeAreas, "Alpha"); err == nil {
		t.Fatal("non-conflict failures must propagate")
	}
	if svc.Known(remote.TreeAreas, "Alpha") {
		t.Fatal("failed creation must not populate the cache")
	}
}

func TestPruneOrphanedDefaults(t *testing.T) {
	records := []*domain.TeamRecord{
		{Name: "Alpha"},
		{Name: "Bravo", ParentName: "Alpha", CustomAreaSpecs: []string{"Shared/Infra"}},
	}
	resolver, err := hierarchy.New(records)
	if err != nil {
		t.Fatalf("hierarchy.New: %v", err)
	}
	inUse, err := resolver.AllPaths()
	if err != nil {
		t.Fatalf("AllPaths: %v", err)
	}

	fake := newFakeNodes("Alpha", `Alpha\Bravo`, `Shared\Infra`)
	svc := New(fake, testLogger(), false)
	if err := svc.LoadSnapshot(context.Background(), remote.TreeAreas); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	svc.PruneOrphanedDefaults(context.Background(), resolver, inUse)
	if len(fake.deleteCalls) != 1 || fake.deleteCalls[0] != `areas:Alpha\Bravo` {
		t.Fatalf("delete calls = %v", fake.deleteCalls)
	}
}

func TestPruneKeepsDefaultPathUsedByAnotherTeam(t *testing.T) {
	// Bravo switched to a custom path, but Charlie still nests under
	// Bravo's old default.
	records := []*domain.TeamRecord{
		{Name: "Alpha"},
		{Name: "Bravo", ParentName: "Alpha", CustomAreaSpecs: []string{"Shared/Infra"}},
		{Name: "Charlie", ParentName: "Alpha", CustomAreaSpecs: []string{`Alpha\Bravo\Nested`}},
	}
	resolver, err := hierarchy.New(records)
	if err != nil {
		t.Fatalf("hierarchy.New: %v", err)
	}
	inUse, err := resolver.AllPaths()
	if err != nil {
		t.Fatalf("AllPaths: %v", err)
	}

	fake := newFakeNodes("Alpha", `Alpha\Bravo`, `Alpha\Bravo\Nested`, `Shared\Infra`)
	svc := New(fake, testLogger(), false)
	if err := svc.LoadSnapshot(context.Background(), remote.TreeAreas); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	svc.PruneOrphanedDefaults(context.Background(), resolver, inUse)
	if len(fake.deleteCalls) != 0 {
		t.Fatalf("expected no deletions, got %v", fake.deleteCalls)
	}
}

func TestDeleteDeepestFirstOrdersByDepth(t *testing.T) {
	fake := newFakeNodes("Alpha", `Alpha\Bravo`, `Alpha\Bravo\Charlie`)
	svc := New(fake, testLogger(), false)
	if err := svc.LoadSnapshot(context.Background(), remote.TreeAreas); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	svc.DeleteDeepestFirst(context.Background(), remote.TreeAreas,
		[]string{"Alpha", `Alpha\Bravo\Charlie`, `Alpha\Bravo`}, false)

	want := []string{`areas:Alpha\Bravo\Charlie`, `areas:Alpha\Bravo`, "areas:Alpha"}
	if len(fake.deleteCalls) != len(want) {
		t.Fatalf("delete calls = %v, want %v", fake.deleteCalls, want)
	}
	for i := range want {
		if fake.deleteCalls[i] != want[i] {
			t.Fatalf("delete calls = %v, want %v", fake.deleteCalls, want)
		}
	}
}

func TestDeleteDeepestFirstSkipsUnknownPaths(t *testing.T) {
	fake := newFakeNodes("Alpha")
	svc := New(fake, testLogger(), false)
	if err := svc.LoadSnapshot(context.Background(), remote.TreeAreas); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	svc.DeleteDeepestFirst(context.Background(), remote.TreeAreas, []string{`Gone\Path`, "Alpha"}, false)
	if len(fake.deleteCalls) != 1 || fake.deleteCalls[0] != "areas:Alpha" {
		t.Fatalf("delete calls = %v", fake.deleteCalls)
	}
}
