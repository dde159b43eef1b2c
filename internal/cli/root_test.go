package cli

import (
	"bytes"
	"io"
	"slices"
	"strings"
	"testing"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{
		"render", "project", "layout", "perspectives", "fmt", "sample",
		"watch", "serve", "cache", "config", "completion",
	} {
		if !slices.Contains(names, want) {
			t.Errorf("root command missing %q (have %v)", want, names)
		}
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("--version error: %v", err)
	}
	if !strings.Contains(out.String(), appName) {
		t.Errorf("version output %q does not name %s", out.String(), appName)
	}
}

func TestCompletionCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash"})
	if err := root.Execute(); err != nil {
		t.Fatalf("completion error: %v", err)
	}
	if !strings.Contains(out.String(), appName) {
		t.Error("bash completion does not mention the program")
	}
	root.SetArgs([]string{"completion", "tcsh"})
	if err := root.Execute(); err == nil {
		t.Error("unsupported shell should fail")
	}
}

func TestCompletePerspectives(t *testing.T) {
	env := newTestEnv(t)
	doc := env.write(t, "system.yaml", webServerDoc)

	got, _ := completePerspectives(nil, []string{doc}, "")
	if !slices.Equal(got, []string{"Data Flow", "Ops"}) {
		t.Errorf("completePerspectives() = %v", got)
	}
	if got, _ := completePerspectives(nil, nil, ""); got != nil {
		t.Errorf("completePerspectives() without document = %v", got)
	}
}
