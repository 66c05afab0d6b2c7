package lccfilter

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Range is an inclusive range of filing keys.
type Range struct {
	Lower string
	Upper string
}

// NewRange creates the filing key range between two call numbers. Both
// bounds must be valid LCC call numbers.
func NewRange(lower, upper string) (Range, error) {
	lo, err := FilingKey(lower, true)
	if err != nil {
		return Range{}, fmt.Errorf("lower bound: %w", err)
	}
	hi, err := FilingKey(upper, true)
	if err != nil {
		return Range{}, fmt.Errorf("upper bound: %w", err)
	}
	return Range{Lower: lo, Upper: hi}, nil
}

// Contains reports whether key falls within the range.
func (r Range) Contains(key string) bool {
	return key >= r.Lower && key <= r.Upper
}

// Empty reports whether the lower bound sorts after the upper bound, in
// which case no key can match.
func (r Range) Empty() bool {
	return r.Lower > r.Upper
}

// Stats counts the records seen by a Filter run.
type Stats struct {
	Scanned int
	Matched int
	Skipped int
}

// Filter copies the records of a Source whose filing key is in Range.
type Filter struct {
	Range Range

	// Every sets how many scanned records pass between progress lines.
	// Zero or less only writes the final line.
	Every int

	// Progress receives the progress lines. Nil disables them.
	Progress io.Writer

	Logger *zap.Logger
}

// Run makes a single pass over src and writes the Data of every matching
// record to w. Records without a usable key are skipped. Reading or
// writing errors stop the run; the stats so far are returned with the
// error and output already written is left in place.
func (f *Filter) Run(src Source, w io.Writer) (Stats, error) {
	log := f.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var stats Stats
	for src.Next() {
		stats.Scanned++
		item, err := src.Value()
		switch {
		case err != nil:
			stats.Skipped++
			log.Debug("Skipping record", zap.Int("record", stats.Scanned), zap.Error(err))
		case f.Range.Contains(item.Key):
			if _, err := w.Write(item.Data); err != nil {
				return stats, fmt.Errorf("writing record %d: %w", stats.Scanned, err)
			}
			stats.Matched++
		}
		if f.Every > 0 && stats.Scanned%f.Every == 0 {
			f.progress(stats, "")
		}
	}
	if err := src.Err(); err != nil {
		f.progress(stats, "\n")
		return stats, fmt.Errorf("reading record %d: %w", stats.Scanned+1, err)
	}
	f.progress(stats, "\n")
	log.Info("Filter finished",
		zap.String("lower", f.Range.Lower),
		zap.String("upper", f.Range.Upper),
		zap.Int("scanned", stats.Scanned),
		zap.Int("matched", stats.Matched),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func (f *Filter) progress(stats Stats, end string) {
	if f.Progress == nil {
		return
	}
	fmt.Fprintf(f.Progress, "\rFound %d in %d records.%s", stats.Matched, stats.Scanned, end)
}
