package parser

import (
	"strings"
	"testing"

	"github.com/heathj/webstream/parser/spec"
)

// parseDocumentString drives a full document parse over literal markup
// and completes it, the way a finished network response would.
func parseDocumentString(in string) *spec.Document {
	document := spec.NewDocument("http://example.org/")
	p := ParseHTMLDocument(document, nil, "http://example.org/")
	p.parseStringChunk(in)
	p.lastChunkReceived = true
	p.parseSync()
	return document
}

func tree(lines ...string) string {
	return strings.Join(lines, "\n")
}

type treeTest struct {
	in       string
	expected string
}

var treeTests = []treeTest{
	{"<!DOCTYPE html><html><head></head><body><p>hi", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <p>",
		"|       \"hi\"",
	)},
	{"hello", tree(
		"#document",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     \"hello\"",
	)},
	{"<!DOCTYPE html><p>1<b>2</b>3", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <p>",
		"|       \"1\"",
		"|       <b>",
		"|         \"2\"",
		"|       \"3\"",
	)},
	// a block element inside a formatting element: the block is
	// reattached and the formatting element cloned around its children
	{"<!DOCTYPE html><b>x<div>y</b>z", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <b>",
		"|       \"x\"",
		"|     <div>",
		"|       <b>",
		"|         \"y\"",
		"|       \"z\"",
	)},
	// non-table content inside a table is foster parented before it
	{"<!DOCTYPE html><table><div>a</div></table>", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <div>",
		"|       \"a\"",
		"|     <table>",
	)},
	{"<!DOCTYPE html><table><tr><td>x</td></tr></table>", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <table>",
		"|       <tr>",
		"|         <td>",
		"|           \"x\"",
	)},
	{`<!DOCTYPE html><p><svg><circle r="1"/></svg>x`, tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <p>",
		"|       <svg svg>",
		"|         <svg circle>",
		"|           r=\"1\"",
		"|       \"x\"",
	)},
	// svg tag and attribute case adjustments
	{`<!DOCTYPE html><svg><foreignobject viewbox="v">`, tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <svg svg>",
		"|       <svg foreignObject>",
		"|         viewBox=\"v\"",
	)},
	// an HTML breakout tag pops the whole foreign subtree
	{"<!DOCTYPE html><svg><b>x", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <svg svg>",
		"|     <b>",
		"|       \"x\"",
	)},
	{"<!--before--><!DOCTYPE html><p>x</p><!--after--></body><!--tail-->", tree(
		"#document",
		"| <!-- before -->",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <p>",
		"|       \"x\"",
		"|     <!-- after -->",
		"|   <!-- tail -->",
	)},
	{"<!DOCTYPE html><title>a&amp;b</title><p>x", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|     <title>",
		"|       \"a&b\"",
		"|   <body>",
		"|     <p>",
		"|       \"x\"",
	)},
	{"<!DOCTYPE html><head><script>var x<y;</script></head>", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|     <script>",
		"|       \"var x<y;\"",
		"|   <body>",
	)},
	{`<!DOCTYPE html><p>a<br>b<img src="i">c`, tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <p>",
		"|       \"a\"",
		"|       <br>",
		"|       \"b\"",
		"|       <img>",
		"|         src=\"i\"",
		"|       \"c\"",
	)},
	// </br> acts like <br>
	{"<!DOCTYPE html>a</br>b", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     \"a\"",
		"|     <br>",
		"|     \"b\"",
	)},
	{`<!DOCTYPE html><image src="x">`, tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <img>",
		"|       src=\"x\"",
	)},
	{"<!DOCTYPE html><ul><li>a<li>b</ul>", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <ul>",
		"|       <li>",
		"|         \"a\"",
		"|       <li>",
		"|         \"b\"",
	)},
	{"<!DOCTYPE html><plaintext></plaintext>x", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <plaintext>",
		"|       \"</plaintext>x\"",
	)},
	{`<!DOCTYPE html><html lang="en"><body class="c">x`, tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   lang=\"en\"",
		"|   <head>",
		"|   <body>",
		"|     class=\"c\"",
		"|     \"x\"",
	)},
	// a second body start tag only contributes missing attributes
	{`<!DOCTYPE html><body class="a"><body class="b" id="i">x`, tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     class=\"a\"",
		"|     id=\"i\"",
		"|     \"x\"",
	)},
	{"<!DOCTYPE html><p>x</p></body></html><!--end-->", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <p>",
		"|       \"x\"",
		"| <!-- end -->",
	)},
}

func TestTreeConstruction(t *testing.T) {
	for _, test := range treeTests {
		runTreeConstructionTest(test, t)
	}
}

func runTreeConstructionTest(test treeTest, t *testing.T) {
	t.Run(test.in, func(t *testing.T) {
		t.Parallel()
		document := parseDocumentString(test.in)
		s := document.Node.String()
		if s != test.expected {
			t.Errorf("Wrong document. Expected: \n\n%s\nGot: \n\n%s", test.expected, s)
		}
	})
}

// TestTreeConstructionChunkIndependence re-parses every tree test in
// small chunks; the resulting tree must not depend on where the network
// happened to split the input.
func TestTreeConstructionChunkIndependence(t *testing.T) {
	for _, test := range treeTests {
		for _, size := range []int{1, 2, 7} {
			document := spec.NewDocument("http://example.org/")
			p := ParseHTMLDocument(document, nil, "http://example.org/")
			for i := 0; i < len(test.in); i += size {
				end := i + size
				if end > len(test.in) {
					end = len(test.in)
				}
				p.parseStringChunk(test.in[i:end])
			}
			p.lastChunkReceived = true
			p.parseSync()
			s := document.Node.String()
			if s != test.expected {
				t.Errorf("Input %q, chunk size %d. Expected: \n\n%s\nGot: \n\n%s", test.in, size, test.expected, s)
			}
		}
	}
}

type quirksTest struct {
	in       string
	expected spec.QuirksMode
}

func TestQuirksModeVerdicts(t *testing.T) {
	tests := []quirksTest{
		{"hello", spec.Quirks},
		{"<!DOCTYPE html>", spec.NoQuirks},
		{"<!DOCTYPE foo>", spec.Quirks},
		{`<!DOCTYPE html PUBLIC "HTML">`, spec.Quirks},
		{`<!DOCTYPE html PUBLIC "-//IETF//DTD HTML 2.0//EN">`, spec.Quirks},
		{`<!DOCTYPE html PUBLIC "-//W3C//DTD HTML 4.01 Transitional//EN">`, spec.Quirks},
		{`<!DOCTYPE html PUBLIC "-//W3C//DTD HTML 4.01 Transitional//EN" "http://www.w3.org/TR/html4/loose.dtd">`, spec.LimitedQuirks},
		{`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "sys">`, spec.LimitedQuirks},
		{`<!DOCTYPE html SYSTEM "http://www.IBM.com/data/dtd/v11/ibmxhtml1-transitional.dtd">`, spec.Quirks},
		{`<!DOCTYPE html SYSTEM "about:legacy-compat">`, spec.NoQuirks},
	}
	for _, tt := range tests {
		document := parseDocumentString(tt.in)
		if document.QuirksMode() != tt.expected {
			t.Errorf("Input %q: expected %s, got %s", tt.in, tt.expected, document.QuirksMode())
		}
	}
}
