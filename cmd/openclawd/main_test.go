package main

import (
	"testing"
)

func TestBuildRootHasSubcommands(t *testing.T) {
	root := buildRoot()

	want := map[string]bool{
		"serve":   false,
		"sync":    false,
		"restore": false,
		"status":  false,
		"restart": false,
		"devices": false,
		"config":  false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestDevicesSubcommands(t *testing.T) {
	root := buildRoot()
	for _, cmd := range root.Commands() {
		if cmd.Name() != "devices" {
			continue
		}
		names := map[string]bool{}
		for _, sub := range cmd.Commands() {
			names[sub.Name()] = true
		}
		if !names["list"] || !names["approve"] {
			t.Fatalf("unexpected devices subcommands: %v", names)
		}
		return
	}
	t.Fatal("devices command not found")
}

func TestRootPersistentFlags(t *testing.T) {
	root := buildRoot()
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
	if root.PersistentFlags().Lookup("dev") == nil {
		t.Error("missing --dev flag")
	}
}
