package procrunner

import "strings"

// Stderr classifications reported by ClassifyStderr.
const (
	ClassModuleNotFound = "module_not_found"
	ClassFileNotFound   = "file_not_found"
	ClassPermission     = "permission_error"
	ClassToolLicense    = "tool_license_or_installation"
	ClassUnspecified    = "unspecified"
)

var stderrPatterns = []struct {
	needles []string
	class   string
}{
	{needles: []string{"ModuleNotFoundError", "ImportError"}, class: ClassModuleNotFound},
	{needles: []string{"FileNotFoundError"}, class: ClassFileNotFound},
	{needles: []string{"PermissionError"}, class: ClassPermission},
	{needles: []string{"understand.UnderstandError"}, class: ClassToolLicense},
}

// ClassifyStderr maps captured stderr to a coarse failure class for diagnostics.
// The first matching pattern wins.
func ClassifyStderr(stderr string) string {
	for _, p := range stderrPatterns {
		for _, n := range p.needles {
			if strings.Contains(stderr, n) {
				return p.class
			}
		}
	}
	return ClassUnspecified
}
