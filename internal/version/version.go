package version

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// Заполняются при сборке:
// -ldflags "-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.2.0".
var (
	version = "dev"
	commit  = ""
	date    = ""
)

// Build описывает собранный бинарник.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает данные сборки. Без ldflags коммит и дата берутся
// из VCS-меток, которые go build кладёт в бинарник.
func Current() Build {
	b := Build{Version: version, Commit: commit, Date: date}
	if info, ok := debug.ReadBuildInfo(); ok {
		b = b.withVCS(info.Settings)
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Date == "" {
		b.Date = "unknown"
	}
	return b
}

func (b Build) withVCS(settings []debug.BuildSetting) Build {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "" {
				b.Date = s.Value
			}
		}
	}
	return b
}

// Version возвращает версию сборки.
func Version() string { return version }

func String() string {
	b := Current()
	return fmt.Sprintf("storefront version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}

// Fields: поля сборки для стартового лога.
func Fields() log.Fields {
	b := Current()
	return log.Fields{"version": b.Version, "commit": b.Commit, "build_date": b.Date}
}
