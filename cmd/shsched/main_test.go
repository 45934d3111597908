package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScheduleGoldenOutputs(t *testing.T) {
	tests := []struct {
		emit   string
		golden string
	}{
		{emit: "asm", golden: "sample.asm.golden"},
		{emit: "graph", golden: "sample.graph.golden"},
		{emit: "stats", golden: "sample.stats.golden"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.emit, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out.txt")
			args := []string{
				"-arch", "Unit",
				"-issue-width", "2",
				"-emit", tc.emit,
				"-o", out,
				testdataPath(t, "sample.asm"),
			}
			if err := runSchedule(args); err != nil {
				t.Fatalf("runSchedule failed: %v", err)
			}
			if diff := cmp.Diff(readTestdata(t, tc.golden), readFile(t, out)); diff != "" {
				t.Fatalf("%s output mismatch (-want +got):\n%s", tc.emit, diff)
			}
		})
	}
}

func TestAnalyzeGoldenOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "analysis.txt")
	args := []string{"-o", out, testdataPath(t, "sample.asm")}
	if err := runAnalyze(args); err != nil {
		t.Fatalf("runAnalyze failed: %v", err)
	}
	if diff := cmp.Diff(readTestdata(t, "sample.analyze.golden"), readFile(t, out)); diff != "" {
		t.Fatalf("analysis mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduleWritesPerCycleSnapshots(t *testing.T) {
	tmp := t.TempDir()
	dotDir := filepath.Join(tmp, "dots")
	args := []string{
		"-arch", "Unit",
		"-issue-width", "2",
		"-dot-dir", dotDir,
		"-o", filepath.Join(tmp, "out.asm"),
		testdataPath(t, "sample.asm"),
	}
	if err := runSchedule(args); err != nil {
		t.Fatalf("runSchedule failed: %v", err)
	}
	entries, err := os.ReadDir(dotDir)
	if err != nil {
		t.Fatalf("read dot dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"graph000.dot", "graph001.dot", "graph002.dot"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("snapshot files mismatch (-want +got):\n%s", diff)
	}
	last := readFile(t, filepath.Join(dotDir, "graph002.dot"))
	if !strings.HasPrefix(last, "digraph DependencyGraph {") {
		t.Fatalf("snapshot is not a DOT graph:\n%s", last)
	}
	if !strings.Contains(last, `(cycle 2)`) {
		t.Fatalf("final snapshot should show the last cycle:\n%s", last)
	}
}

func TestScheduleGraphRequiresSchedulePass(t *testing.T) {
	args := []string{
		"-passes", "liveness,usage",
		"-emit", "graph",
		"-o", filepath.Join(t.TempDir(), "out.txt"),
		testdataPath(t, "sample.asm"),
	}
	err := runSchedule(args)
	if err == nil || !strings.Contains(err.Error(), "requires the schedule pass") {
		t.Fatalf("expected missing pass error, got %v", err)
	}
}

func TestScheduleRejectsBadFlags(t *testing.T) {
	sample := testdataPath(t, "sample.asm")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "emit", args: []string{"-emit", "binary", sample}, want: "unknown emit format"},
		{name: "pass", args: []string{"-passes", "inline", sample}, want: "unknown pass"},
		{name: "arch", args: []string{"-arch", "Nope", sample}, want: "Nope"},
		{name: "policy", args: []string{"-stall-policy", "wait", sample}, want: "wait"},
		{name: "width", args: []string{"-issue-width", "0", sample}, want: "issue width"},
		{name: "inputs", args: nil, want: "exactly one program"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := runSchedule(tc.args)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLintReportsFailures(t *testing.T) {
	if err := runLint([]string{testdataPath(t, "sample.asm")}); err != nil {
		t.Fatalf("lint of valid program failed: %v", err)
	}
	err := runLint([]string{testdataPath(t, "sample.asm"), testdataPath(t, "bad.asm")})
	if err == nil || !strings.Contains(err.Error(), "lint failed for 1 of 2 program(s)") {
		t.Fatalf("expected lint failure, got %v", err)
	}
}

func TestArchsListsLatencyTables(t *testing.T) {
	out := filepath.Join(t.TempDir(), "archs.txt")
	if err := runArchs([]string{"-o", out}); err != nil {
		t.Fatalf("runArchs failed: %v", err)
	}
	want := "FixedLatAOS\nFixedLatSOA\nUnit\nVarLatAOS (default)\nVarLatSOA\n"
	if diff := cmp.Diff(want, readFile(t, out)); diff != "" {
		t.Fatalf("archs mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := run(nil); err == nil {
		t.Fatalf("expected error for missing command")
	}
	err := run([]string{"compile"})
	if err == nil || !strings.Contains(err.Error(), "unknown command: compile") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func testdataPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("testdata %s: %v", name, err)
	}
	return path
}

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	return readFile(t, testdataPath(t, name))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
