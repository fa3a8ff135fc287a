// Package buildinfo carries version data injected at build time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/cloudkeeper/internal/buildinfo.Version=1.2.3 \
//	  -X github.com/dmitrijs2005/cloudkeeper/internal/buildinfo.Commit=$(git rev-parse HEAD)"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	Version = "N/A"
	Date    = "N/A"
	Commit  = "N/A"
)

// PrintBuildData writes the build banner printed on startup.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", Version)
	fmt.Fprintf(w, "Build date: %s\n", Date)
	fmt.Fprintf(w, "Build commit: %s\n", Commit)
}
