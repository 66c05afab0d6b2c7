package lccfilter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

const (
	rt = 0x1d // End of record
	st = 0x1f // End of subfield

	maxRecordLength = 99999
	leaderLength    = 24
	dirEntryLength  = 12
)

// FieldQuery selects the MARC field and subfields holding a filing key. Use
// ParseFieldQuery to create one.
type FieldQuery struct {
	Tag        string
	Indicator1 byte // '*' matches any indicator
	Indicator2 byte
	Codes      string // subfield codes, empty for all subfields
}

// ParseFieldQuery parses a tag query. A tag query consists of the three
// digit MARC tag optionally followed by one or more subfield codes, for
// example: "099a", "852h" or "001". Filtering for indicators can be done by
// including the two desired indicators between pipes after the tag. An *
// character can be used for any indicator, for example: "852|*0|hi".
func ParseFieldQuery(q string) (FieldQuery, error) {
	if len(q) < 3 {
		return FieldQuery{}, fmt.Errorf("invalid field query %q: tag must be three characters", q)
	}
	fq := FieldQuery{Tag: q[:3], Indicator1: '*', Indicator2: '*'}
	rest := q[3:]
	if strings.HasPrefix(rest, "|") {
		if len(rest) < 4 || rest[3] != '|' {
			return FieldQuery{}, fmt.Errorf("invalid field query %q: indicators must look like |12|", q)
		}
		fq.Indicator1, fq.Indicator2 = rest[1], rest[2]
		rest = rest[4:]
	}
	fq.Codes = rest
	return fq, nil
}

func (q FieldQuery) String() string {
	if q.Indicator1 == '*' && q.Indicator2 == '*' {
		return q.Tag + q.Codes
	}
	return fmt.Sprintf("%s|%c%c|%s", q.Tag, q.Indicator1, q.Indicator2, q.Codes)
}

func (q FieldQuery) isControl() bool {
	return strings.HasPrefix(q.Tag, "00")
}

// lookup returns the key held by the first field in rec matching q.
func (q FieldQuery) lookup(rec []byte) (string, error) {
	if len(rec) < leaderLength {
		return "", fmt.Errorf("%w: leader is %d bytes", ErrMalformedRecord, len(rec))
	}
	start, ok := parseNumber(rec[12:17])
	if !ok || start <= leaderLength || start > len(rec) {
		return "", fmt.Errorf("%w: could not determine record start", ErrMalformedRecord)
	}
	data := rec[start:]
	for dirs := rec[leaderLength : start-1]; len(dirs) >= dirEntryLength; dirs = dirs[dirEntryLength:] {
		if string(dirs[:3]) != q.Tag {
			continue
		}
		length, ok := parseNumber(dirs[3:7])
		if !ok || length < 1 {
			return "", fmt.Errorf("%w: could not determine length of field %s", ErrMalformedRecord, q.Tag)
		}
		begin, ok := parseNumber(dirs[7:12])
		if !ok {
			return "", fmt.Errorf("%w: could not determine start of field %s", ErrMalformedRecord, q.Tag)
		}
		if len(data) < begin+length {
			return "", fmt.Errorf("%w: reported length of field %s incorrect", ErrMalformedRecord, q.Tag)
		}
		// length includes the field terminator
		value, ok, err := q.extract(data[begin : begin+length-1])
		if err != nil {
			return "", err
		}
		if ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: no %s field", ErrMissingKey, q)
}

// parseNumber reads a fixed width leader or directory number. Only ASCII
// digits are accepted, so signs never reach a slice bound.
func parseNumber(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func (q FieldQuery) extract(field []byte) (string, bool, error) {
	if q.isControl() {
		return string(field), len(bytes.TrimSpace(field)) > 0, nil
	}
	if len(field) < 3 {
		return "", false, fmt.Errorf("%w: invalid indicators in field %s", ErrMalformedRecord, q.Tag)
	}
	if !indicatorMatches(q.Indicator1, field[0]) || !indicatorMatches(q.Indicator2, field[1]) {
		return "", false, nil
	}
	var values []string
	for _, sf := range bytes.Split(field[3:], []byte{st}) {
		if len(sf) == 0 {
			return "", false, fmt.Errorf("%w: extraneous subfield delimiter in field %s", ErrMalformedRecord, q.Tag)
		}
		if q.Codes == "" || strings.IndexByte(q.Codes, sf[0]) >= 0 {
			values = append(values, string(sf[1:]))
		}
	}
	value := strings.Join(values, " ")
	return value, strings.TrimSpace(value) != "", nil
}

func indicatorMatches(want, got byte) bool {
	return want == '*' || want == got
}

// MarcIterator will iterate over a set of MARC records using the Next()
// and Value() methods, reading each record's filing key from the field
// selected by a FieldQuery. Use the NewMarcIterator function to create a
// MarcIterator.
type MarcIterator struct {
	scanner *bufio.Scanner
	query   FieldQuery
}

// NewMarcIterator creates and returns a new instance of a MarcIterator.
func NewMarcIterator(r io.Reader, query FieldQuery) *MarcIterator {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLength+1)
	scanner.Split(splitFunc)
	return &MarcIterator{scanner: scanner, query: query}
}

// Next advances the MarcIterator to the next record, which will be
// available through the Value method. It returns false when the
// MarcIterator has reached the end of the file or has encountered an error.
// Any error will be accessible from the Err method.
func (m *MarcIterator) Next() bool {
	return m.scanner.Scan()
}

// Value returns the current record. Data always holds the raw record with
// its terminator, even when the key could not be read.
func (m *MarcIterator) Value() (Item, error) {
	raw := m.scanner.Bytes()
	item := Item{Data: append(append(make([]byte, 0, len(raw)+1), raw...), rt)}
	key, err := m.query.lookup(raw)
	if err != nil {
		return item, err
	}
	item.Key = key
	return item, nil
}

// Err will return the first error encountered by the MarcIterator.
func (m *MarcIterator) Err() error {
	return m.scanner.Err()
}

// splitFunc splits on the record terminator. Line breaks between records
// are skipped.
func splitFunc(data []byte, atEOF bool) (advance int, token []byte, err error) {
	skip := 0
	for skip < len(data) && (data[skip] == '\n' || data[skip] == '\r') {
		skip++
	}
	if atEOF && skip == len(data) {
		return len(data), nil, nil
	}

	if i := bytes.IndexByte(data[skip:], rt); i >= 0 {
		return skip + i + 1, data[skip : skip+i], nil
	}

	if atEOF {
		return len(data), data[skip:], nil
	}
	return skip, nil, nil
}
