package fetch

import (
	"strings"
	"time"

	"github.com/seisio/stationsync/pkg/wildcard"
)

// Query describes one metadata request: NSLC pattern lists plus a time
// window. Negated patterns never reach the wire; they are stripped here and
// re-applied locally by the filter engine after download.
type Query struct {
	Networks  []string
	Stations  []string
	Locations []string
	Channels  []string
	Start     *time.Time
	End       *time.Time
}

// PostBody renders the FDSN POST request body:
//
//	format=text
//	level=channel
//	<net> <sta> <loc> <cha> <start> <end>
//
// Empty pattern lists become '*'; an empty location code is sent as '--'
// per the FDSN convention.
func (q Query) PostBody() string {
	var b strings.Builder
	b.WriteString("format=text\nlevel=channel\n")
	b.WriteString(fdsnArg(q.Networks, false))
	b.WriteByte(' ')
	b.WriteString(fdsnArg(q.Stations, false))
	b.WriteByte(' ')
	b.WriteString(fdsnArg(q.Locations, true))
	b.WriteByte(' ')
	b.WriteString(fdsnArg(q.Channels, false))
	b.WriteByte(' ')
	b.WriteString(fdsnTime(q.Start))
	b.WriteByte(' ')
	b.WriteString(fdsnTime(q.End))
	b.WriteByte('\n')
	return b.String()
}

// fdsnArg joins the positive patterns of a list into an FDSN argument.
func fdsnArg(patterns []string, isLocation bool) string {
	positive, _ := wildcard.Split(patterns)
	if isLocation {
		for i, p := range positive {
			if p == "" {
				positive[i] = "--"
			}
		}
	}
	if len(positive) == 0 {
		return "*"
	}
	return strings.Join(positive, ",")
}

func fdsnTime(t *time.Time) string {
	if t == nil {
		return "*"
	}
	return t.UTC().Format("2006-01-02T15:04:05")
}
