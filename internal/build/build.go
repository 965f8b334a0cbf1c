package build

import (
	"strings"
	"time"
)

var (
	commit  = ""
	date    = ""
	version = "dev"
)

func init() {
	date, _ := time.Parse(time.RFC3339, date)

	Current = Build{
		Commit:  commit,
		Version: version,
		Date:    date,
	}
}

var Current Build

type Build struct {
	Commit  string    `json:"commit,omitempty"`
	Version string    `json:"version,omitempty"`
	Date    time.Time `json:"date,omitempty"`
}

// String is the version line printed by --version.
func (b Build) String() string {
	var sb strings.Builder
	sb.WriteString(b.Version)
	if b.Commit != "" {
		sb.WriteString(" (" + b.Commit)
		if !b.Date.IsZero() {
			sb.WriteString(", " + b.Date.Format(time.DateOnly))
		}
		sb.WriteString(")")
	}
	return sb.String()
}
