package value

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

var durationUnits = [...]time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}

// ErrDurationSyntax reports text that is not an RFC5545 DURATION.
var ErrDurationSyntax = errors.New("malformed DURATION value")

// ParseDuration parses [+-]P[nW][nD][T[nH][nM][nS]]. At least one
// component must be present.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || strings.HasSuffix(s, "T") {
		return 0, ErrDurationSyntax
	}
	var d time.Duration
	found := false
	for i, unit := range durationUnits {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+2], 10, 64)
		if err != nil {
			return 0, ErrDurationSyntax
		}
		d += time.Duration(n) * unit
		found = true
	}
	if !found {
		return 0, ErrDurationSyntax
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// FormatDuration renders d in whole seconds, largest units first. Zero is
// written as PT0S.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs == 0 {
		return "PT0S"
	}
	var b strings.Builder
	if secs < 0 {
		b.WriteByte('-')
		secs = -secs
	}
	b.WriteByte('P')

	var n [5]int64
	for i, unit := range durationUnits {
		u := int64(unit / time.Second)
		n[i] = secs / u
		secs -= n[i] * u
	}
	write := func(v int64, suffix byte) {
		if v != 0 {
			b.WriteString(strconv.FormatInt(v, 10))
			b.WriteByte(suffix)
		}
	}
	write(n[0], 'W')
	write(n[1], 'D')
	if n[2] != 0 || n[3] != 0 || n[4] != 0 {
		b.WriteByte('T')
	}
	write(n[2], 'H')
	write(n[3], 'M')
	write(n[4], 'S')
	return b.String()
}
