package compileinfo

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	for _, v := range []struct {
		Info     CompileInfo
		Contains []string
		Excludes []string
	}{
		{
			Info:     CompileInfo{Package: "x", GoVersion: "go1.18"},
			Contains: []string{"unstamped"},
			Excludes: []string{"commit", "modified", "DICOM"},
		},
		{
			Info:     CompileInfo{Package: "x", GoVersion: "go1.18", Commit: "abc123", CommitTime: "2022-05-01T00:00:00Z"},
			Contains: []string{"abc123", "2022-05-01T00:00:00Z"},
			Excludes: []string{"modified"},
		},
		{
			Info:     CompileInfo{Package: "x", GoVersion: "go1.18", Commit: "abc123", Modified: true},
			Contains: []string{"abc123", "modified after"},
		},
		{
			Info:     CompileInfo{Package: "x", GoVersion: "go1.18", Commit: "abc123", DicomDecoder: "github.com/suyashkumar/dicom@v0.4.6"},
			Contains: []string{"DICOM decoding via github.com/suyashkumar/dicom@v0.4.6"},
		},
	} {
		out := v.Info.String()
		for _, want := range v.Contains {
			if !strings.Contains(out, want) {
				t.Errorf("String() = %q, expected it to contain %q", out, want)
			}
		}
		for _, unwanted := range v.Excludes {
			if strings.Contains(out, unwanted) {
				t.Errorf("String() = %q, expected it not to contain %q", out, unwanted)
			}
		}
	}
}

func TestGetDoesNotPanic(t *testing.T) {
	// Test binaries may or may not carry VCS stamps; either way Get must
	// produce something printable.
	_ = Get().String()
}
