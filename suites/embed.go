// Package suites embeds the bundled SauceDemo suites.
package suites

import (
	"embed"
	"io/fs"

	"github.com/roach88/shopcheck/internal/harness"
)

//go:embed saucedemo/*.yaml
var bundled embed.FS

// Dir is the directory of the bundled suites inside FS.
const Dir = "saucedemo"

// FS returns the bundled suite files.
func FS() fs.FS {
	return bundled
}

// Load parses the bundled suites in file order.
func Load() ([]*harness.Suite, error) {
	return harness.LoadSuitesFS(bundled, Dir)
}
