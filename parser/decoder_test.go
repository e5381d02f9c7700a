package parser

import (
	"testing"

	"golang.org/x/text/encoding/unicode"
)

// decodeInPieces pushes the input through the decoder in chunks of the
// given size and returns everything produced, including the final flush.
func decodeInPieces(t *testing.T, input []byte, size int) string {
	t.Helper()
	d := newNetworkDecoder(unicode.UTF8)
	out := ""
	for i := 0; i < len(input); i += size {
		end := i + size
		if end > len(input) {
			end = len(input)
		}
		out += d.decode(input[i:end])
	}
	return out + d.finish()
}

func TestNetworkDecoderChunkIndependence(t *testing.T) {
	inputs := []string{
		"plain ascii",
		"café naïve 世界",
		"\uFEFFwith a leading bom",
		"",
		"a",
	}
	for _, input := range inputs {
		raw := []byte(input)
		whole := decodeInPieces(t, raw, len(raw)+1)
		for _, size := range []int{1, 2, 3, 7} {
			pieces := decodeInPieces(t, raw, size)
			if pieces != whole {
				t.Errorf("Input %q, chunk size %d: expected %q, got %q", input, size, whole, pieces)
			}
		}
	}
}

func TestNetworkDecoderStripsUTF8BOM(t *testing.T) {
	got := decodeInPieces(t, []byte("\xEF\xBB\xBFhello"), 1)
	if got != "hello" {
		t.Errorf("Expected %q, got %q", "hello", got)
	}
}

func TestNetworkDecoderSwitchesOnUTF16BOM(t *testing.T) {
	// "hi" in UTF-16, both endians, BOM first.
	le := []byte{0xFF, 0xFE, 0x68, 0x00, 0x69, 0x00}
	be := []byte{0xFE, 0xFF, 0x00, 0x68, 0x00, 0x69}
	for _, input := range [][]byte{le, be} {
		for _, size := range []int{1, 2, 6} {
			got := decodeInPieces(t, input, size)
			if got != "hi" {
				t.Errorf("Input % x, chunk size %d: expected %q, got %q", input, size, "hi", got)
			}
		}
	}
}

func TestNetworkDecoderReplacesMalformedSequences(t *testing.T) {
	got := decodeInPieces(t, []byte{'a', 0xFF, 'b'}, 3)
	if got != "a�b" {
		t.Errorf("Expected %q, got %q", "a�b", got)
	}
}

func TestNetworkDecoderFlushesIncompleteTail(t *testing.T) {
	// a multi-byte sequence cut off by end of stream
	d := newNetworkDecoder(unicode.UTF8)
	out := d.decode([]byte{'a', 'b', 'c', 0xC3})
	out += d.finish()
	if out != "abc�" {
		t.Errorf("Expected %q, got %q", "abc�", out)
	}
}

func TestNetworkDecoderShortStream(t *testing.T) {
	// fewer bytes than the sniff window needs
	d := newNetworkDecoder(unicode.UTF8)
	if got := d.decode([]byte("a")); got != "" {
		t.Errorf("Expected no output before the sniff resolves, got %q", got)
	}
	if got := d.finish(); got != "a" {
		t.Errorf("Expected %q, got %q", "a", got)
	}
}
