package parser

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// encodingForBOM maps a byte-order-mark prefix onto its encoding,
// returning the encoding and the BOM length, or nil when the prefix
// carries no BOM.
func encodingForBOM(prefix []byte) (encoding.Encoding, int) {
	switch {
	case bytes.HasPrefix(prefix, []byte{0xEF, 0xBB, 0xBF}):
		return unicode.UTF8, 3
	case bytes.HasPrefix(prefix, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), 2
	case bytes.HasPrefix(prefix, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), 2
	}
	return nil, 0
}

// networkDecoder incrementally converts network bytes into text. It is
// bound to one encoding at construction but switches itself on a leading
// BOM, the way the byte stream decoder in the encoding standard does;
// the document-level sniff only mirrors that verdict onto the document.
// Malformed sequences are replaced, never surfaced as errors.
type networkDecoder struct {
	dec      transform.Transformer
	fallback encoding.Encoding

	// sniff holds the first bytes until a BOM verdict is possible.
	sniff    []byte
	resolved bool

	// pending holds bytes not yet consumed by the transformer, e.g. an
	// incomplete multi-byte sequence at a chunk boundary.
	pending []byte
}

func newNetworkDecoder(enc encoding.Encoding) *networkDecoder {
	return &networkDecoder{fallback: enc}
}

// decode feeds bytes through the stateful decoder and returns all text
// produced so far.
func (d *networkDecoder) decode(chunk []byte) string {
	if !d.resolved {
		d.sniff = append(d.sniff, chunk...)
		if len(d.sniff) < 3 {
			return ""
		}
		d.resolve()
		chunk = nil
	}
	return d.process(chunk, false)
}

// finish consumes the decoder, flushing any undecoded trailing bytes as
// replacement-decoded text.
func (d *networkDecoder) finish() string {
	if !d.resolved {
		d.resolve()
	}
	return d.process(nil, true)
}

func (d *networkDecoder) resolve() {
	enc := d.fallback
	rest := d.sniff
	if bom, n := encodingForBOM(d.sniff); bom != nil {
		enc = bom
		rest = d.sniff[n:]
	}
	d.dec = enc.NewDecoder()
	d.pending = append(d.pending, rest...)
	d.sniff = nil
	d.resolved = true
}

func (d *networkDecoder) process(chunk []byte, atEOF bool) string {
	d.pending = append(d.pending, chunk...)
	if len(d.pending) == 0 {
		return ""
	}
	var out []byte
	dst := make([]byte, len(d.pending)*3+16)
	for {
		nDst, nSrc, err := d.dec.Transform(dst, d.pending, atEOF)
		out = append(out, dst[:nDst]...)
		d.pending = d.pending[nSrc:]
		switch err {
		case nil:
			return string(out)
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			if atEOF {
				// The transformer refuses to flush; replace the
				// remainder wholesale.
				d.pending = nil
				return string(append(out, []byte("�")...))
			}
			return string(out)
		default:
			// Replacing decoders do not error on malformed input, but
			// skip a byte rather than loop if one ever does.
			if len(d.pending) > 0 {
				d.pending = d.pending[1:]
				out = append(out, []byte("�")...)
				continue
			}
			return string(out)
		}
	}
}
