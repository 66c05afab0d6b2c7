package lccfilter

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// sliceSource serves fixed items, then fails with err if set.
type sliceSource struct {
	items []Item
	errs  []error
	pos   int
	err   error
}

func (s *sliceSource) Next() bool {
	if s.pos >= len(s.items) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource) Value() (Item, error) {
	i := s.pos - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return s.items[i], s.errs[i]
	}
	return s.items[i], nil
}

func (s *sliceSource) Err() error {
	return s.err
}

func keyed(keys ...string) *sliceSource {
	src := &sliceSource{}
	for _, k := range keys {
		src.items = append(src.items, Item{Key: k, Data: []byte(k + "\n")})
	}
	return src
}

func TestNewRange(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		r, err := NewRange("KF1", "KF500")
		require.NoError(t, err)
		assert.Equal(t, Range{Lower: "kf 1", Upper: "kf\"500"}, r)
		assert.False(t, r.Empty())
	})
	t.Run("Invalid lower", func(t *testing.T) {
		_, err := NewRange("382.532 T32", "KF500")
		assert.ErrorIs(t, err, ErrInvalidCallNumber)
		assert.Contains(t, err.Error(), "lower bound")
	})
	t.Run("Invalid upper", func(t *testing.T) {
		_, err := NewRange("KF1", "GN923456.A43")
		assert.ErrorIs(t, err, ErrInvalidCallNumber)
		assert.Contains(t, err.Error(), "upper bound")
	})
	t.Run("Reversed", func(t *testing.T) {
		r, err := NewRange("KF500", "KF1")
		require.NoError(t, err)
		assert.True(t, r.Empty())
	})
}

func TestRangeContains(t *testing.T) {
	r := Range{Lower: "kf 1", Upper: "kf\"500"}
	assert.True(t, r.Contains("kf 1"))
	assert.True(t, r.Contains("kf\"500"))
	assert.True(t, r.Contains("kf!23 a1"))
	assert.False(t, r.Contains("kf\"500 a1"))
	assert.False(t, r.Contains("kf#1000 a1"))
	assert.False(t, r.Contains("ke#9999"))
}

func TestFilterRun(t *testing.T) {
	r, err := NewRange("KF1", "KF500")
	require.NoError(t, err)

	t.Run("Matches within range", func(t *testing.T) {
		var out bytes.Buffer
		f := &Filter{Range: r, Logger: zaptest.NewLogger(t)}
		stats, err := f.Run(keyed("kf 1 a1", "kf!23 a1", "kf#1000 a1"), &out)
		require.NoError(t, err)
		assert.Equal(t, "kf 1 a1\nkf!23 a1\n", out.String())
		assert.Equal(t, Stats{Scanned: 3, Matched: 2}, stats)
	})

	t.Run("Progress", func(t *testing.T) {
		var out, progress bytes.Buffer
		f := &Filter{Range: r, Every: 2, Progress: &progress}
		_, err := f.Run(keyed("kf 1 a1", "kf!23 a1", "kf#1000 a1"), &out)
		require.NoError(t, err)
		assert.Equal(t, "\rFound 2 in 2 records.\rFound 2 in 3 records.\n", progress.String())
	})

	t.Run("Final progress only", func(t *testing.T) {
		var out, progress bytes.Buffer
		f := &Filter{Range: r, Progress: &progress}
		_, err := f.Run(keyed("kf 1 a1"), &out)
		require.NoError(t, err)
		assert.Equal(t, "\rFound 1 in 1 records.\n", progress.String())
	})

	t.Run("Skips bad records", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		src := keyed("kf 1 a1", "", "kf!23 a1")
		src.errs = []error{nil, ErrMissingKey}
		var out bytes.Buffer
		f := &Filter{Range: r, Logger: zap.New(core)}
		stats, err := f.Run(src, &out)
		require.NoError(t, err)
		assert.Equal(t, Stats{Scanned: 3, Matched: 2, Skipped: 1}, stats)
		assert.Equal(t, 1, logs.FilterMessage("Skipping record").Len())
		assert.Equal(t, 1, logs.FilterMessage("Filter finished").Len())
	})

	t.Run("Source error stops run", func(t *testing.T) {
		src := keyed("kf 1 a1")
		src.err = errors.New("disk gone")
		var out bytes.Buffer
		stats, err := (&Filter{Range: r}).Run(src, &out)
		assert.EqualError(t, err, "reading record 2: disk gone")
		assert.Equal(t, Stats{Scanned: 1, Matched: 1}, stats)
		assert.Equal(t, "kf 1 a1\n", out.String())
	})

	t.Run("Write error stops run", func(t *testing.T) {
		stats, err := (&Filter{Range: r}).Run(keyed("kf 1 a1", "kf!23 a1"), failingWriter{})
		assert.Error(t, err)
		assert.Equal(t, 1, stats.Scanned)
		assert.Equal(t, 0, stats.Matched)
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("no space left")
}

func TestFilterAlephExport(t *testing.T) {
	f, err := os.Open("testdata/items.xml")
	require.NoError(t, err)
	defer f.Close()

	r, err := NewRange("KF1", "KF500")
	require.NoError(t, err)
	var out bytes.Buffer
	stats, err := (&Filter{Range: r}).Run(NewAlephIterator(f, AlephOptions{}), &out)
	require.NoError(t, err)
	assert.Equal(t, Stats{Scanned: 5, Matched: 2, Skipped: 2}, stats)
	lines := bytes.Split(bytes.TrimSuffix(out.Bytes(), []byte("\n")), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "39080012345671")
	assert.Contains(t, string(lines[1]), "39080012345672")
}
