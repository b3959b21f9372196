package progress

import (
	"fmt"
	"regexp"
	"strconv"
)

// tqdmPattern matches lines like "33%|███▎      | 415/1275 [00:13<00:27, 31.12it/s]".
var tqdmPattern = regexp.MustCompile(
	`(\d+)%\s*\|.*?\|\s*(\d+)/(\d+)\s*\[(\d+):(\d+)<(\d+):(\d+),\s*([\d.]+)(\w+)/s\]`,
)

// Sample is one normalized progress reading.
type Sample struct {
	Percentage       float64
	Current          int
	Total            int
	ElapsedSeconds   int
	RemainingSeconds int
	Rate             float64
	RateUnit         string
	Valid            bool
}

// Parser extracts Samples from tool output. The zero value is ready to use.
type Parser struct {
	last Sample
}

// NewParser constructs an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse inspects a single line of output. When the line carries progress
// information the stored sample is replaced and returned with Valid set. On a
// mismatch the previous numbers are retained, Valid is cleared, and false is
// returned; most tool output is not progress output.
func (p *Parser) Parse(line string) (Sample, bool) {
	sample, ok := parseLine(line)
	if !ok {
		p.last.Valid = false
		return p.last, false
	}
	p.last = sample
	return sample, true
}

// Sample returns the most recent reading, which may be stale (Valid=false).
func (p *Parser) Sample() Sample {
	return p.last
}

// Reset discards all stored state.
func (p *Parser) Reset() {
	p.last = Sample{}
}

// Fraction forwards to Sample.Fraction on the stored reading.
func (p *Parser) Fraction() float64 { return p.last.Fraction() }

// FormatETA forwards to Sample.FormatETA on the stored reading.
func (p *Parser) FormatETA() string { return p.last.FormatETA() }

// FormatElapsed forwards to Sample.FormatElapsed on the stored reading.
func (p *Parser) FormatElapsed() string { return p.last.FormatElapsed() }

// FormatRate forwards to Sample.FormatRate on the stored reading.
func (p *Parser) FormatRate() string { return p.last.FormatRate() }

func parseLine(line string) (Sample, bool) {
	m := tqdmPattern.FindStringSubmatch(line)
	if m == nil {
		return Sample{}, false
	}

	ints := make([]int, 0, 6)
	for _, group := range []string{m[2], m[3], m[4], m[5], m[6], m[7]} {
		v, err := strconv.Atoi(group)
		if err != nil {
			return Sample{}, false
		}
		ints = append(ints, v)
	}
	percentage, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Sample{}, false
	}
	rate, err := strconv.ParseFloat(m[8], 64)
	if err != nil {
		return Sample{}, false
	}

	return Sample{
		Percentage:       percentage,
		Current:          ints[0],
		Total:            ints[1],
		ElapsedSeconds:   ints[2]*60 + ints[3],
		RemainingSeconds: ints[4]*60 + ints[5],
		Rate:             rate,
		RateUnit:         m[9],
		Valid:            true,
	}, true
}

// Fraction reports current/total clamped to [0, 1]. Invalid samples and a
// zero total yield 0.
func (s Sample) Fraction() float64 {
	if !s.Valid || s.Total == 0 {
		return 0
	}
	f := float64(s.Current) / float64(s.Total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// FormatETA renders the remaining time as "MM:SS" below an hour and as
// "Hh Mm" above. Unknown or non-positive values render as "--:--".
func (s Sample) FormatETA() string {
	if !s.Valid || s.RemainingSeconds <= 0 {
		return "--:--"
	}
	if s.RemainingSeconds < 3600 {
		return clock(s.RemainingSeconds)
	}
	hours := s.RemainingSeconds / 3600
	minutes := (s.RemainingSeconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// FormatElapsed renders the elapsed time as "MM:SS".
func (s Sample) FormatElapsed() string {
	if !s.Valid {
		return "00:00"
	}
	return clock(s.ElapsedSeconds)
}

// FormatRate renders the processing rate, e.g. "31.12 it/s".
func (s Sample) FormatRate() string {
	if !s.Valid || s.Rate <= 0 {
		return "0 it/s"
	}
	return fmt.Sprintf("%.2f %s/s", s.Rate, s.RateUnit)
}

// Summary renders the percentage and counters, e.g. "33% (415/1275)".
func (s Sample) Summary() string {
	return fmt.Sprintf("%.0f%% (%d/%d)", s.Percentage, s.Current, s.Total)
}

// Stats renders the ETA, elapsed time and rate on one line.
func (s Sample) Stats() string {
	return fmt.Sprintf("ETA: %s | Elapsed: %s | %s", s.FormatETA(), s.FormatElapsed(), s.FormatRate())
}

func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
