package routes

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
)

// Build-time variables (injected by ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// VersionResponse represents the version information response
type VersionResponse struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	GitCommit string `json:"git_commit,omitempty"`
}

// buildInfo fills values not set through ldflags from the embedded VCS stamp.
var buildInfo = sync.OnceValue(func() VersionResponse {
	v := VersionResponse{
		Version:   version,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		GitCommit: gitCommit,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if v.GitCommit == "unknown" {
				v.GitCommit = setting.Value
			}
		case "vcs.time":
			if v.BuildTime == "unknown" {
				v.BuildTime = setting.Value
			}
		}
	}
	if v.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v.Version = info.Main.Version
	}
	return v
})

// version provides version information about the build
func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildInfo())
}
