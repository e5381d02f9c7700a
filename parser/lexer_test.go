package parser

import (
	"testing"
)

// recordingSink collects every token the lexer emits and answers with
// whatever directive the test supplies.
type recordingSink struct {
	tokens  []*Token
	onToken func(*Token) tokenDirective
}

func (s *recordingSink) process(t *Token) tokenDirective {
	s.tokens = append(s.tokens, t)
	if s.onToken != nil {
		return s.onToken(t)
	}
	return tokenDirective{}
}

// lexChunks runs the lexer over the given chunks, resuming after any
// pauses, and returns the emitted tokens.
func lexChunks(chunks []string, onToken func(*Token) tokenDirective) []*Token {
	sink := &recordingSink{onToken: onToken}
	l := newHTMLLexer(sink)
	q := NewBufferQueue()
	for _, chunk := range chunks {
		q.PushBack(chunk)
		for l.feed(q) {
		}
	}
	l.end()
	return sink.tokens
}

func firstStartTag(tokens []*Token) *Token {
	for _, t := range tokens {
		if t.TokenType == startTagToken {
			return t
		}
	}
	return nil
}

type lexerAttributeAccuracyTestcase struct {
	inHTML string            // snippet of HTML to lex (should only be one element)
	attrs  map[string]string // expected attributes collected from the first start tag
}

var lexerAttributeAccuracyTests = []lexerAttributeAccuracyTestcase{
	{"<head></head>", map[string]string{}},
	{"<script src='123' onload='test'></script>", map[string]string{
		"src":    "123",
		"onload": "test",
	}},
	{"<a href='https://google.com' onclick='alert(1)'>Click this</a>", map[string]string{
		"href":    "https://google.com",
		"onclick": "alert(1)",
	}},
	{"<script src='123' src='456'></script>", map[string]string{
		"src": "123",
	}},
	{"<script src=123 onload=test></script>", map[string]string{
		"src":    "123",
		"onload": "test",
	}},
	{"<script src='123' onload='test' ></script>", map[string]string{
		"src":    "123",
		"onload": "test",
	}},
	{"<script =src='123'onload='test' ></script>", map[string]string{
		"=src":   "123",
		"onload": "test",
	}},
	{"<script src></script>", map[string]string{
		"src": "",
	}},
	{"<script src test></script>", map[string]string{
		"src":  "",
		"test": "",
	}},
	{"<script 'asd></script>", map[string]string{
		"'asd": "",
	}},
	{"<script <asd></script>", map[string]string{
		"<asd": "",
	}},
	{"<script ABC=123></script>", map[string]string{
		"abc": "123",
	}},
	{"<script abc='\x00123'></script>", map[string]string{
		"abc": "�123",
	}},
	{"<script abc=></script>", map[string]string{
		"abc": "",
	}},
	{"<script\tabc=123></script>", map[string]string{
		"abc": "123",
	}},
	{"<script title='a&amp;b'></script>", map[string]string{
		"title": "a&b",
	}},
}

// TestLexerAttributeAccuracy makes sure that we collect the correct
// attribute names and values.
func TestLexerAttributeAccuracy(t *testing.T) {
	for _, tt := range lexerAttributeAccuracyTests {
		runLexerAttributeAccuracyTest(tt, t)
	}
}

func runLexerAttributeAccuracyTest(tt lexerAttributeAccuracyTestcase, t *testing.T) {
	t.Run(tt.inHTML, func(t *testing.T) {
		t.Parallel()
		tag := firstStartTag(lexChunks([]string{tt.inHTML}, nil))
		if tag == nil {
			t.Fatal("Expected a start tag token, got none")
		}
		if len(tag.Attributes) != len(tt.attrs) {
			t.Errorf("Expected %d attributes, got %d (%v)", len(tt.attrs), len(tag.Attributes), tag.Attributes)
		}
		for k, v := range tt.attrs {
			got, ok := tag.GetAttribute(k)
			if !ok {
				t.Errorf("Expected to find a key of %s, didn't find one\n", k)
				continue
			}
			if v != got {
				t.Errorf("Expected %s as the value, got %s\n", v, got)
			}
		}
	})
}

type expectedToken struct {
	tt   tokenType
	name string // tag name for tags, ignored otherwise
	data string // data for character/comment tokens
}

type lexerStreamTestcase struct {
	in     string
	tokens []expectedToken // expected tokens, excluding the end-of-file token
}

var lexerStreamTests = []lexerStreamTestcase{
	{"a&amp;b", []expectedToken{
		{characterToken, "", "a&b"},
	}},
	{"a&#65;b", []expectedToken{
		{characterToken, "", "aAb"},
	}},
	{"<!--a comment-->", []expectedToken{
		{commentToken, "", "a comment"},
	}},
	{"<!-->", []expectedToken{
		{commentToken, "", ""},
	}},
	{"<?php?>", []expectedToken{
		{commentToken, "", "?php?"},
	}},
	{"a<1", []expectedToken{
		{characterToken, "", "a"},
		{characterToken, "", "<1"},
	}},
	{"</>", nil},
	{"a<b", []expectedToken{
		{characterToken, "", "a"},
	}},
	{"a<", []expectedToken{
		{characterToken, "", "a"},
		{characterToken, "", "<"},
	}},
	{"<DIV CLASS=x>text</DIV>", []expectedToken{
		{startTagToken, "div", ""},
		{characterToken, "", "text"},
		{endTagToken, "div", ""},
	}},
	{"<br/>", []expectedToken{
		{startTagToken, "br", ""},
	}},
	{"<!--x--><p>", []expectedToken{
		{commentToken, "", "x"},
		{startTagToken, "p", ""},
	}},
}

func TestLexerTokenStream(t *testing.T) {
	for _, tt := range lexerStreamTests {
		runLexerStreamTest(tt, t)
	}
}

func runLexerStreamTest(tt lexerStreamTestcase, t *testing.T) {
	t.Run(tt.in, func(t *testing.T) {
		t.Parallel()
		tokens := lexChunks([]string{tt.in}, nil)
		if len(tokens) == 0 || tokens[len(tokens)-1].TokenType != endOfFileToken {
			t.Fatalf("Expected a trailing end-of-file token, got %v", tokens)
		}
		tokens = tokens[:len(tokens)-1]
		if len(tokens) != len(tt.tokens) {
			t.Fatalf("Expected %d tokens, got %d: %v", len(tt.tokens), len(tokens), tokens)
		}
		for i, expected := range tt.tokens {
			got := tokens[i]
			if got.TokenType != expected.tt {
				t.Errorf("Token %d: expected type %d, got %d", i, expected.tt, got.TokenType)
			}
			if expected.tt == startTagToken || expected.tt == endTagToken {
				if got.TagName != expected.name {
					t.Errorf("Token %d: expected tag name %s, got %s", i, expected.name, got.TagName)
				}
			}
			if expected.tt == characterToken || expected.tt == commentToken {
				if got.Data != expected.data {
					t.Errorf("Token %d: expected data %q, got %q", i, expected.data, got.Data)
				}
			}
		}
	})
}

type lexerDoctypeTestcase struct {
	in          string
	name        string
	publicID    string
	systemID    string
	forceQuirks bool
}

var lexerDoctypeTests = []lexerDoctypeTestcase{
	{"<!DOCTYPE html>", "html", missing, missing, false},
	{"<!doctype HTML>", "html", missing, missing, false},
	{`<!DOCTYPE html PUBLIC "-//W3C//DTD HTML 4.01//EN">`, "html", "-//W3C//DTD HTML 4.01//EN", missing, false},
	{`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">`,
		"html", "-//W3C//DTD XHTML 1.0 Strict//EN", "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd", false},
	{`<!DOCTYPE html SYSTEM "about:legacy-compat">`, "html", missing, "about:legacy-compat", false},
	{"<!DOCTYPE html PUBLIC>", "html", missing, missing, true},
	{"<!DOCTYPE>", "", missing, missing, true},
	// a doctype cut off by end of stream is force-quirks
	{"<!DOCTYPE html", "html", missing, missing, true},
}

func TestLexerDoctypes(t *testing.T) {
	for _, tt := range lexerDoctypeTests {
		runLexerDoctypeTest(tt, t)
	}
}

func runLexerDoctypeTest(tt lexerDoctypeTestcase, t *testing.T) {
	t.Run(tt.in, func(t *testing.T) {
		t.Parallel()
		tokens := lexChunks([]string{tt.in}, nil)
		var doctype *Token
		for _, token := range tokens {
			if token.TokenType == docTypeToken {
				doctype = token
				break
			}
		}
		if doctype == nil {
			t.Fatalf("Expected a doctype token, got %v", tokens)
		}
		if doctype.TagName != tt.name {
			t.Errorf("Expected name %q, got %q", tt.name, doctype.TagName)
		}
		if doctype.PublicIdentifier != tt.publicID {
			t.Errorf("Expected public identifier %q, got %q", tt.publicID, doctype.PublicIdentifier)
		}
		if doctype.SystemIdentifier != tt.systemID {
			t.Errorf("Expected system identifier %q, got %q", tt.systemID, doctype.SystemIdentifier)
		}
		if doctype.ForceQuirks != tt.forceQuirks {
			t.Errorf("Expected force-quirks %v, got %v", tt.forceQuirks, doctype.ForceQuirks)
		}
	})
}

// scriptDirectives mirrors what the tree stage asks for around a script
// element: script data after the start tag, a pause after the end tag.
func scriptDirectives(t *Token) tokenDirective {
	if t.TokenType == startTagToken && t.TagName == "script" {
		return tokenDirective{raw: scriptData}
	}
	if t.TokenType == endTagToken && t.TagName == "script" {
		return tokenDirective{pause: true}
	}
	return tokenDirective{}
}

func TestLexerScriptData(t *testing.T) {
	tokens := lexChunks([]string{"<script>a&amp;<b</script>x"}, scriptDirectives)
	want := []expectedToken{
		{startTagToken, "script", ""},
		// script content is not entity-decoded
		{characterToken, "", "a&amp;<b"},
		{endTagToken, "script", ""},
		{characterToken, "", "x"},
	}
	assertTokens(t, tokens, want)
}

func TestLexerScriptDataPause(t *testing.T) {
	sink := &recordingSink{onToken: scriptDirectives}
	l := newHTMLLexer(sink)
	q := NewBufferQueue()
	q.PushBack("<script>var x;</script>after")
	if !l.feed(q) {
		t.Fatal("Expected the lexer to pause at the script end tag")
	}
	if q.IsEmpty() {
		t.Fatal("Expected the unconsumed remainder to be back on the queue")
	}
	chunk, _ := q.PopFront()
	if chunk != "after" {
		t.Errorf("Expected remainder %q, got %q", "after", chunk)
	}
}

func TestLexerRCData(t *testing.T) {
	directives := func(t *Token) tokenDirective {
		if t.TokenType == startTagToken && t.TagName == "title" {
			return tokenDirective{raw: rcData}
		}
		return tokenDirective{}
	}
	tokens := lexChunks([]string{"<title>a&amp;<b</title>x"}, directives)
	want := []expectedToken{
		{startTagToken, "title", ""},
		// rcdata decodes entities but keeps markup-looking text
		{characterToken, "", "a&<b"},
		{endTagToken, "title", ""},
		{characterToken, "", "x"},
	}
	assertTokens(t, tokens, want)
}

// TestLexerRawTextEndTagMatching checks that only the appropriate end
// tag leaves a raw text state.
func TestLexerRawTextEndTagMatching(t *testing.T) {
	directives := func(t *Token) tokenDirective {
		if t.TokenType == startTagToken && t.TagName == "style" {
			return tokenDirective{raw: rawText}
		}
		return tokenDirective{}
	}
	tokens := lexChunks([]string{"<style>a</div>b</style>"}, directives)
	want := []expectedToken{
		{startTagToken, "style", ""},
		{characterToken, "", "a</div>b"},
		{endTagToken, "style", ""},
	}
	assertTokens(t, tokens, want)
}

func TestLexerPlaintext(t *testing.T) {
	sink := &recordingSink{}
	l := newHTMLLexer(sink)
	l.setPlaintext()
	q := NewBufferQueue()
	q.PushBack("a<b>&amp;</plaintext>c")
	l.feed(q)
	l.end()
	want := []expectedToken{
		{characterToken, "", "a<b>&amp;</plaintext>c"},
	}
	assertTokens(t, sink.tokens, want)
}

func TestLexerCDATAAllowed(t *testing.T) {
	allow := func(t *Token) tokenDirective {
		return tokenDirective{allowCDATA: true}
	}
	tokens := lexChunks([]string{"x<![CDATA[a<b&amp;]]>y"}, allow)
	want := []expectedToken{
		{characterToken, "", "x"},
		// CDATA content is literal
		{characterToken, "", "a<b&amp;"},
		{characterToken, "", "y"},
	}
	assertTokens(t, tokens, want)
}

func TestLexerCDATADisallowed(t *testing.T) {
	tokens := lexChunks([]string{"x<![CDATA[a]]>y"}, nil)
	want := []expectedToken{
		{characterToken, "", "x"},
		{commentToken, "", "[CDATA[a]]"},
		{characterToken, "", "y"},
	}
	assertTokens(t, tokens, want)
}

// TestLexerEntitySplitAcrossChunks feeds an entity split over a chunk
// boundary; the concatenated character data must decode it as one unit.
func TestLexerEntitySplitAcrossChunks(t *testing.T) {
	tests := [][]string{
		{"a&am", "p;b"},
		{"a&", "amp;b"},
		{"a&amp", ";b"},
		{"a", "&amp;b"},
	}
	for _, chunks := range tests {
		tokens := lexChunks(chunks, nil)
		text := ""
		for _, token := range tokens {
			if token.TokenType == characterToken {
				text += token.Data
			}
		}
		if text != "a&b" {
			t.Errorf("Chunks %q: expected text %q, got %q", chunks, "a&b", text)
		}
	}
}

// TestLexerTagSplitAcrossChunks makes sure tag state survives a chunk
// boundary in the middle of a tag.
func TestLexerTagSplitAcrossChunks(t *testing.T) {
	tokens := lexChunks([]string{"<di", "v cla", "ss=x>y"}, nil)
	tag := firstStartTag(tokens)
	if tag == nil {
		t.Fatal("Expected a start tag token, got none")
	}
	if tag.TagName != "div" {
		t.Errorf("Expected tag name div, got %s", tag.TagName)
	}
	if v, ok := tag.GetAttribute("class"); !ok || v != "x" {
		t.Errorf("Expected class=x, got %v %v", v, ok)
	}
}

func TestLexerLineNumbers(t *testing.T) {
	tokens := lexChunks([]string{"a\nb\n<p>"}, nil)
	tag := firstStartTag(tokens)
	if tag == nil {
		t.Fatal("Expected a start tag token, got none")
	}
	if tag.Line != 3 {
		t.Errorf("Expected line 3, got %d", tag.Line)
	}
}

func assertTokens(t *testing.T, tokens []*Token, want []expectedToken) {
	t.Helper()
	if len(tokens) == 0 || tokens[len(tokens)-1].TokenType != endOfFileToken {
		t.Fatalf("Expected a trailing end-of-file token, got %v", tokens)
	}
	tokens = tokens[:len(tokens)-1]
	if len(tokens) != len(want) {
		t.Fatalf("Expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
	for i, expected := range want {
		got := tokens[i]
		if got.TokenType != expected.tt {
			t.Errorf("Token %d: expected type %d, got %d", i, expected.tt, got.TokenType)
		}
		switch expected.tt {
		case startTagToken, endTagToken:
			if got.TagName != expected.name {
				t.Errorf("Token %d: expected tag name %s, got %s", i, expected.name, got.TagName)
			}
		case characterToken, commentToken:
			if got.Data != expected.data {
				t.Errorf("Token %d: expected data %q, got %q", i, expected.data, got.Data)
			}
		}
	}
}
