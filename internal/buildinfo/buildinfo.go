// Package buildinfo carries version metadata injected at link time:
//
//	go build -ldflags "-X github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/buildinfo.Version=v1.2.3"
package buildinfo

var (
	Version   = "dev"
	Revision  = "unknown"
	BuildDate = "unknown"
)
