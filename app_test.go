package main

import (
	"os"
	"testing"
)

// TestE2ESphereExample exercises the full pipeline: recipe source -> engine
// -> recipe -> conversion steps -> meshes.
func TestE2ESphereExample(t *testing.T) {
	app := NewApp()

	source, err := os.ReadFile("examples/sphere.splat")
	if err != nil {
		t.Fatalf("failed to read sphere.splat: %v", err)
	}

	result := app.Evaluate(string(source))

	// No errors expected.
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
	if result.Splats != 96 {
		t.Errorf("expected 96 splats, got %d", result.Splats)
	}

	// The volume step is consumed by volume-to-mesh, so two meshes and no
	// volumes remain.
	if len(result.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(result.Meshes))
	}
	if len(result.Volumes) != 0 {
		t.Errorf("expected 0 volumes, got %d", len(result.Volumes))
	}

	expectedParts := map[string]bool{
		"density":     false,
		"from-volume": false,
	}
	for _, m := range result.Meshes {
		if _, ok := expectedParts[m.PartName]; !ok {
			t.Errorf("unexpected part name: %q", m.PartName)
			continue
		}
		expectedParts[m.PartName] = true

		if len(m.Vertices) == 0 {
			t.Errorf("part %q: no vertices", m.PartName)
		}
		if len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
			t.Errorf("part %q: bad index count %d", m.PartName, len(m.Indices))
		}
		if m.Normals == nil {
			t.Errorf("part %q: normals should be an empty slice, not nil", m.PartName)
		}
		if m.Color == "" {
			t.Errorf("part %q: no color assigned", m.PartName)
		}
	}
	for name, found := range expectedParts {
		if !found {
			t.Errorf("missing mesh for part %q", name)
		}
	}

	for _, m := range result.Meshes {
		if m.PartName != "density" {
			continue
		}
		if len(m.Colors) != len(m.Vertices) {
			t.Errorf("density mesh: %d color floats for %d vertex floats", len(m.Colors), len(m.Vertices))
		}
	}
}

func TestE2EBlobsExample(t *testing.T) {
	app := NewApp()

	source, err := os.ReadFile("examples/blobs.splat")
	if err != nil {
		t.Fatalf("failed to read blobs.splat: %v", err)
	}
	result := app.Evaluate(string(source))
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	m := result.Meshes[0]
	if m.PartName != "blobs" {
		t.Errorf("part name = %q, want blobs", m.PartName)
	}
	if len(m.Colors) != len(m.Vertices) {
		t.Errorf("%d color floats for %d vertex floats", len(m.Colors), len(m.Vertices))
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("(splat :pos (vec3 0 0 0)")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2EImplicitStep ensures splats without a conversion step are meshed
// with the defaults.
func TestE2EImplicitStep(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(`(splat :scale 0.3)`)

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	if result.Meshes[0].PartName != "step-1" {
		t.Errorf("part name = %q, want step-1", result.Meshes[0].PartName)
	}
	// transfer_color defaults to on.
	if len(result.Meshes[0].Colors) != len(result.Meshes[0].Vertices) {
		t.Errorf("%d color floats for %d vertex floats", len(result.Meshes[0].Colors), len(result.Meshes[0].Vertices))
	}
}
