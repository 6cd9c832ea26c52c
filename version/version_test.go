package version

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"
)

func TestInfo_String(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		expected string
	}{
		{"clean", Info{GitVersion: "v1.0.0", GitTreeState: "clean"}, "v1.0.0"},
		{"dirty", Info{GitVersion: "v1.0.0", GitTreeState: "dirty"}, "v1.0.0-dirty"},
		{"unset", Info{GitVersion: "v1.0.0"}, "v1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.expected {
				t.Errorf("Info.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %v, want %v", info.GoVersion, runtime.Version())
	}

	s, err := info.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	var decoded Info
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != info {
		t.Errorf("decoded = %+v, want %+v", decoded, info)
	}

	if text := info.Text(); !strings.Contains(text, "gitVersion:") || !strings.Contains(text, info.GitVersion) {
		t.Errorf("Text() = %q", text)
	}
}
