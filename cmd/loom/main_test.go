package main

import (
	"reflect"
	"testing"
	"time"
)

func TestParseGlobalFlags(t *testing.T) {
	flags, args, err := parseGlobalFlags([]string{"--json", "--timeout=30s", "run", "do a thing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flags.JSON {
		t.Error("expected JSON flag set")
	}
	if flags.Timeout != 30*time.Second {
		t.Errorf("unexpected timeout %v", flags.Timeout)
	}
	if !reflect.DeepEqual(args, []string{"run", "do a thing"}) {
		t.Errorf("unexpected remaining args %v", args)
	}
}

func TestParseGlobalFlagsConfig(t *testing.T) {
	flags, args, err := parseGlobalFlags([]string{"--config", "loom.yaml", "tools", "list"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flags.ConfigPath != "loom.yaml" {
		t.Errorf("unexpected config path %q", flags.ConfigPath)
	}
	if !reflect.DeepEqual(args, []string{"tools", "list"}) {
		t.Errorf("unexpected remaining args %v", args)
	}
}

func TestParseGlobalFlagsErrors(t *testing.T) {
	tests := [][]string{
		{"--config"},
		{"--timeout"},
		{"--timeout=banana"},
		{"--frobnicate"},
	}
	for _, args := range tests {
		if _, _, err := parseGlobalFlags(args); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestParseGlobalFlagsDoubleDash(t *testing.T) {
	_, args, err := parseGlobalFlags([]string{"--json", "--", "--not-a-flag"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(args, []string{"--not-a-flag"}) {
		t.Errorf("unexpected args %v", args)
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	got := splitList("echo, calculator,,current_time ")
	want := []string{"calculator", "current_time", "echo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitList = %v, want %v", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	if got := truncate("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("unexpected %q", got)
	}
}
