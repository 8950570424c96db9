// Package fdsntext decodes the pipe-delimited text responses of FDSN
// station services (format=text, level=channel) into provider-tagged
// candidate rows. The protocol is one header line, optionally prefixed with
// '#', followed by one row per channel epoch.
package fdsntext

import (
	"strconv"
	"strings"
	"time"

	"github.com/seisio/stationsync/pkg/errors"
	"github.com/seisio/stationsync/pkg/inventory"
)

// Column names of the channel-level text format, lowercased for lookup.
const (
	colNetwork    = "network"
	colStation    = "station"
	colLocation   = "location"
	colChannel    = "channel"
	colLatitude   = "latitude"
	colLongitude  = "longitude"
	colElevation  = "elevation"
	colDepth      = "depth"
	colSampleRate = "samplerate"
	colStartTime  = "starttime"
	colEndTime    = "endtime"
)

// required columns; a header missing any of them makes the whole response
// undecodable.
var required = []string{
	colNetwork, colStation, colLocation, colChannel,
	colLatitude, colLongitude, colSampleRate, colStartTime,
}

// timeLayouts are the timestamp shapes observed across station services.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Decode parses a provider response body into candidate rows tagged with the
// provider's id. An empty body (or a header with no rows) decodes to zero
// rows without error; a row whose field count does not match the header
// fails the whole response with a MalformedResponseError, discarding the
// provider's data for this fetch cycle.
func Decode(provider inventory.Provider, body []byte) ([]inventory.Candidate, error) {
	lines := strings.Split(string(body), "\n")

	header, firstRow := headerLine(lines)
	if header == "" {
		return nil, nil
	}

	index, err := parseHeader(provider, header)
	if err != nil {
		return nil, err
	}
	fieldCount := len(strings.Split(header, "|"))

	var rows []inventory.Candidate
	for i := firstRow; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != fieldCount {
			return nil, &errors.MalformedResponseError{
				Provider: provider.Name,
				Line:     i + 1,
				Message: "row has " + strconv.Itoa(len(fields)) +
					" fields, header has " + strconv.Itoa(fieldCount),
			}
		}
		row, err := parseRow(provider, fields, index, i+1)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// headerLine finds the first non-blank line and returns it with the '#'
// marker stripped, together with the index of the first data row.
func headerLine(lines []string) (string, int) {
	for i, line := range lines {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		return strings.TrimSpace(strings.TrimPrefix(line, "#")), i + 1
	}
	return "", 0
}

// parseHeader maps lowercased column names to field positions and verifies
// the columns this system depends on are all present.
func parseHeader(provider inventory.Provider, header string) (map[string]int, error) {
	names := strings.Split(header, "|")
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, &errors.MalformedResponseError{
				Provider: provider.Name,
				Line:     1,
				Message:  "header is missing column " + name,
			}
		}
	}
	return index, nil
}

func parseRow(provider inventory.Provider, fields []string, index map[string]int, lineNo int) (inventory.Candidate, error) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	c := inventory.Candidate{
		ProviderID: provider.ID,
		Network:    get(colNetwork),
		Station:    get(colStation),
		Location:   get(colLocation),
		Channel:    get(colChannel),
	}

	var err error
	if c.Latitude, err = parseFloat(get(colLatitude)); err != nil {
		return c, malformedField(provider, lineNo, colLatitude, err)
	}
	if c.Longitude, err = parseFloat(get(colLongitude)); err != nil {
		return c, malformedField(provider, lineNo, colLongitude, err)
	}
	if c.Elevation, err = parseFloat(get(colElevation)); err != nil {
		return c, malformedField(provider, lineNo, colElevation, err)
	}
	if c.Depth, err = parseFloat(get(colDepth)); err != nil {
		return c, malformedField(provider, lineNo, colDepth, err)
	}

	if raw := get(colSampleRate); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c, malformedField(provider, lineNo, colSampleRate, err)
		}
		c.SampleRate = &rate
	}

	start, err := parseTime(get(colStartTime))
	if err != nil {
		return c, malformedField(provider, lineNo, colStartTime, err)
	}
	if start == nil {
		return c, malformedField(provider, lineNo, colStartTime, errors.New("empty"))
	}
	c.StartTime = *start

	if c.EndTime, err = parseTime(get(colEndTime)); err != nil {
		return c, malformedField(provider, lineNo, colEndTime, err)
	}

	return c, nil
}

// parseFloat treats an absent value as zero; coordinates and depths are
// always reported by compliant services, placeholders only show up in
// columns this system does not key on.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseTime returns nil for an empty value (open-ended epoch).
func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			t = t.UTC()
			return &t, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func malformedField(provider inventory.Provider, lineNo int, col string, err error) error {
	return &errors.MalformedResponseError{
		Provider: provider.Name,
		Line:     lineNo,
		Message:  "bad " + col + " value: " + err.Error(),
	}
}
