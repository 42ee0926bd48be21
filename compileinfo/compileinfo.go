// Package compileinfo reports how the running binary was built, using the
// version control stamps the Go toolchain embeds.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"
)

// dicomModule is the decoder dependency whose version is surfaced alongside
// the binary's own commit, since rendition differences usually trace back to
// it.
const dicomModule = "github.com/suyashkumar/dicom"

type CompileInfo struct {
	Package      string
	GoVersion    string
	Commit       string
	CommitTime   string
	Modified     bool
	DicomDecoder string
}

func (c CompileInfo) String() string {
	if c.Commit == "" {
		return fmt.Sprintf("This %s binary was built with %s from an unstamped tree.%s", c.Package, c.GoVersion, c.decoderNote())
	}

	mod := ""
	if c.Modified {
		mod = " Files in the repo were modified after that commit."
	}

	return fmt.Sprintf("This %s binary was built with %s at commit %v at time %v.%s%s", c.Package, c.GoVersion, c.Commit, c.CommitTime, mod, c.decoderNote())
}

func (c CompileInfo) decoderNote() string {
	if c.DicomDecoder == "" {
		return ""
	}

	return fmt.Sprintf(" DICOM decoding via %s.", c.DicomDecoder)
}

func Get() CompileInfo {
	out := CompileInfo{}

	z, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = z.GoVersion
	out.Package = z.Path
	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	for _, dep := range z.Deps {
		if dep.Path == dicomModule {
			out.DicomDecoder = dep.Path + "@" + dep.Version
			break
		}
	}

	return out
}

func PrintToStdErr() {
	z := Get()
	fmt.Fprintf(os.Stderr, "%s\n", z)
}
