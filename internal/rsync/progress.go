package rsync

import (
	"regexp"
	"strconv"
	"strings"
)

// Progress is one parsed rsync --info=progress2 update.
type Progress struct {
	Bytes   int64
	Percent int
	Rate    string
	ETA     string
}

// progress2 lines look like "  1,234,567  45%  1.23MB/s  0:00:12".
var progressPattern = regexp.MustCompile(`([\d,]+)\s+(\d+)%\s+(\S+/s)\s+(\d+:\d{2}:\d{2})`)

// parser extracts progress updates from an rsync output stream. Chunks can
// split lines at arbitrary byte offsets, so a trailing partial line is held
// back until its terminator arrives.
type parser struct {
	partial     string
	lastPercent int
}

func newParser() *parser {
	return &parser{lastPercent: -1}
}

// Feed consumes one chunk of rsync output and returns the progress updates
// completed by it. Updates that repeat the previous percentage are dropped
// so callers see at most one event per percentage point.
func (p *parser) Feed(chunk string) []Progress {
	data := p.partial + chunk
	var updates []Progress
	start := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != '\r' && c != '\n' {
			continue
		}
		line := data[start:i]
		start = i + 1
		update, ok := parseLine(line)
		if !ok || update.Percent == p.lastPercent {
			continue
		}
		p.lastPercent = update.Percent
		updates = append(updates, update)
	}
	p.partial = data[start:]
	return updates
}

func parseLine(line string) (Progress, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	bytes, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return Progress{}, false
	}
	percent, err := strconv.Atoi(m[2])
	if err != nil {
		return Progress{}, false
	}
	return Progress{
		Bytes:   bytes,
		Percent: percent,
		Rate:    m[3],
		ETA:     m[4],
	}, true
}
