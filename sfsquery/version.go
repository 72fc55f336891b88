package sfsquery

import "runtime/debug"

const (
	// Name is the product token sent in the User-Agent header.
	Name = "sfsquery"
	// Version is used when the module version cannot be read from build info.
	Version = "v0.2.0"

	importPath = "github.com/ipshipyard/sfsquery"
	projectURL = "https://" + importPath
)

var moduleVersion = readVersion()

// UserAgent identifies this client to the StopForumSpam operators.
var UserAgent = Name + "/" + moduleVersion + " (+" + projectURL + ")"

// ModuleVersion returns the version of this module as recorded in the build
// info, or Version when it is not available.
func ModuleVersion() string {
	return moduleVersion
}

func readVersion() string {
	version := Version
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			if dep.Path == importPath && dep.Version != "" {
				version = dep.Version
				break
			}
		}
		// Main module
		if bi.Main.Path == importPath && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			version = bi.Main.Version
		}
	}
	return version
}
