package lccfilter

import "errors"

var (
	// ErrMissingKey is returned by a Source's Value method when the current
	// record carries no filing key.
	ErrMissingKey = errors.New("record has no filing key")

	// ErrMalformedRecord is returned by a Source's Value method when the
	// current record cannot be parsed.
	ErrMalformedRecord = errors.New("malformed record")
)

// Item is a single record from a catalog export together with the filing
// key stored in it. Data holds the serialized record exactly as it should
// be written out, including its record separator.
type Item struct {
	Key  string
	Data []byte
}

// Source iterates over the records of a catalog export using the Next()
// and Value() methods. Next returns false at the end of the input or on a
// read error, which is then available from Err. An error from Value only
// concerns the current record.
type Source interface {
	Next() bool
	Value() (Item, error)
	Err() error
}
