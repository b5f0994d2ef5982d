// Package duration parses durations with day based suffixes ("2d", "1w")
// on top of time.ParseDuration, for config values and flags.
package duration

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/pflag"
)

type Duration time.Duration

// DurationOff disables a timeout.
const DurationOff = Duration(math.MaxInt64)

var suffixes = []struct {
	Suffix     string
	Multiplier time.Duration
}{
	{Suffix: "d", Multiplier: time.Hour * 24},
	{Suffix: "w", Multiplier: time.Hour * 24 * 7},
	{Suffix: "M", Multiplier: time.Hour * 24 * 30},
	{Suffix: "y", Multiplier: time.Hour * 24 * 365},
	{Suffix: "", Multiplier: time.Second},
}

func (d *Duration) String() string {
	if *d == DurationOff {
		return "off"
	}
	day := suffixes[0]
	if math.Abs(float64(*d)) >= float64(day.Multiplier) {
		return strconv.FormatFloat(float64(*d)/float64(day.Multiplier), 'f', -1, 64) + day.Suffix
	}
	return time.Duration(*d).String()
}

func (d *Duration) Set(s string) error {
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	return d.Set(string(text))
}

func (d *Duration) Type() string {
	return "Duration"
}

// ParseDuration accepts "off", anything time.ParseDuration does, a number
// with one of the d, w, M, y suffixes, or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	if s == "off" {
		return time.Duration(DurationOff), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	for _, sfx := range suffixes {
		if !strings.HasSuffix(s, sfx.Suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(s, sfx.Suffix), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse duration %q", s)
		}
		return time.Duration(n * float64(sfx.Multiplier)), nil
	}
	return 0, errors.Errorf("parse duration %q", s)
}

// DurationVar defines a flag bound to p that accepts the extended syntax.
func DurationVar(f *pflag.FlagSet, p *time.Duration, name string, value time.Duration, usage string) {
	*p = value
	f.VarP((*Duration)(p), name, "", usage)
}
