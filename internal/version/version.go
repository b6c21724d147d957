// Package version holds the package metadata printed by the launcher and
// reported to MCP clients.
package version

const (
	// Name is the human-readable product name.
	Name = "MCP Feedback Enhanced"

	Author = "Minidoracat"

	RepositoryURL = "https://github.com/Minidoracat/mcp-feedback-enhanced"
)

// Version is overridden at link time with -ldflags "-X".
var Version = "2.3.0"
