package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/debug"
	"sync/atomic"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/mou514/FinanceMate-sub000/internal/appid"
)

type buildStamp struct {
	version, commit, date string
}

var stamp atomic.Pointer[buildStamp]

func init() {
	stamp.Store(&buildStamp{version: "dev", commit: "unknown", date: "unknown"})
}

// SetVersionInfo records the ldflags build metadata. Empty values keep the
// defaults.
func SetVersionInfo(version, commit, buildDate string) {
	next := buildStamp{version: "dev", commit: "unknown", date: "unknown"}
	if version != "" {
		next.version = version
	}
	if commit != "" {
		next.commit = commit
	}
	if buildDate != "" {
		next.date = buildDate
	}
	stamp.Store(&next)
}

// VersionResponse is the body of GET /version and `financemate version --json`.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

func CurrentVersion() VersionResponse {
	s := *stamp.Load()
	// `go install` builds carry no ldflags; the VCS stamp is the next best.
	if s.commit == "unknown" {
		if rev := vcsRevision(); rev != "" {
			s.commit = rev
		}
	}

	deps := crucible.GetVersion()
	return VersionResponse{
		App: AppInfo{
			Name:      appid.Get().BinaryName,
			Version:   s.version,
			Commit:    s.commit,
			BuildDate: s.date,
			GoVersion: runtime.Version(),
		},
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	}
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(CurrentVersion())
}
