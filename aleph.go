package lccfilter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Element names used by ALEPH item (Z30) printouts.
const (
	DefaultSection = "section-02"
	DefaultKeyTag  = "z30-call-no-key"
)

// AlephOptions selects the elements an AlephIterator reads. Zero values
// fall back to DefaultSection and DefaultKeyTag.
type AlephOptions struct {
	Section string // element holding one item record
	KeyTag  string // element holding the precomputed filing key
}

// AlephIterator iterates over the item records of an ALEPH XML export.
// Each record is re-serialized on a single line. Comments are kept;
// processing instructions inside a record are dropped. Use
// NewAlephIterator to create one.
type AlephIterator struct {
	dec  *xml.Decoder
	opts AlephOptions
	item Item
	ierr error
	err  error
}

// NewAlephIterator creates and returns a new AlephIterator reading from r.
func NewAlephIterator(r io.Reader, opts AlephOptions) *AlephIterator {
	if opts.Section == "" {
		opts.Section = DefaultSection
	}
	if opts.KeyTag == "" {
		opts.KeyTag = DefaultKeyTag
	}
	return &AlephIterator{dec: xml.NewDecoder(r), opts: opts}
}

// Next advances to the next record section. It returns false at the end of
// the document or on the first XML error.
func (a *AlephIterator) Next() bool {
	if a.err != nil {
		return false
	}
	a.item, a.ierr = Item{}, nil
	for {
		tok, err := a.dec.Token()
		if err == io.EOF {
			return false
		}
		if err != nil {
			a.err = err
			return false
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == a.opts.Section {
			if err := a.readSection(start); err != nil {
				a.err = err
				return false
			}
			return true
		}
	}
}

// Value returns the current record. The record is still returned with
// ErrMissingKey so callers can report on it.
func (a *AlephIterator) Value() (Item, error) {
	return a.item, a.ierr
}

// Err returns the first XML error encountered.
func (a *AlephIterator) Err() error {
	return a.err
}

func (a *AlephIterator) readSection(start xml.StartElement) error {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	var key strings.Builder
	depth, keyDepth, found := 1, 0, false
	for depth > 0 {
		tok, err := a.dec.Token()
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if !found && keyDepth == 0 && t.Name.Local == a.opts.KeyTag {
				keyDepth = depth
			}
			err = enc.EncodeToken(t)
		case xml.EndElement:
			if depth == keyDepth {
				keyDepth, found = 0, true
			}
			depth--
			err = enc.EncodeToken(t)
		case xml.CharData:
			if depth == keyDepth {
				key.Write(t)
			}
			if len(bytes.TrimSpace(t)) > 0 {
				err = enc.EncodeToken(t)
			}
		case xml.Comment:
			// the encoder rejects "--" inside a comment
			if !bytes.Contains(t, []byte("--")) {
				err = enc.EncodeToken(t)
			}
		}
		if err != nil {
			return err
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	buf.WriteByte('\n')

	a.item = Item{Key: key.String(), Data: buf.Bytes()}
	switch {
	case !found:
		a.ierr = fmt.Errorf("%w: no <%s> element", ErrMissingKey, a.opts.KeyTag)
	case strings.TrimSpace(a.item.Key) == "":
		a.ierr = fmt.Errorf("%w: empty <%s> element", ErrMissingKey, a.opts.KeyTag)
	}
	return nil
}
