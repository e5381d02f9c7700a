package parser

import (
	"github.com/heathj/webstream/parser/spec"
)

// tokenizer is the closed set of grammar engines the parser drives. feed
// consumes whole or partial chunks from the queue until either the queue
// is exhausted (nil) or a script element must execute before parsing
// continues. end signals permanent end of stream. setPlaintextState
// forces raw-text lexing for the rest of the stream; the XML variant
// does not support it.
type tokenizer interface {
	feed(q *BufferQueue) *spec.Node
	end()
	url() string
	setPlaintextState()
}

// FragmentContext is the context element a fragment parse is relative
// to, along with an optional form owner override.
type FragmentContext struct {
	ContextElement *spec.Node
	FormElement    *spec.Node
}

// HTMLTokenizer couples the HTML lexical engine with tree construction
// against the parser's document.
type HTMLTokenizer struct {
	documentURL string
	lexer       *htmlLexer
	builder     *treeBuilder
	sink        *Sink
}

func newHTMLTokenizer(sink *Sink, url string) *HTMLTokenizer {
	builder := newTreeBuilder(sink)
	return &HTMLTokenizer{
		documentURL: url,
		lexer:       newHTMLLexer(builder),
		builder:     builder,
		sink:        sink,
	}
}

func newHTMLFragmentTokenizer(sink *Sink, url string, context *FragmentContext) *HTMLTokenizer {
	builder := newFragmentTreeBuilder(sink, context)
	t := &HTMLTokenizer{
		documentURL: url,
		lexer:       newHTMLLexer(builder),
		builder:     builder,
		sink:        sink,
	}
	// https://html.spec.whatwg.org/multipage/#html-fragment-parsing-algorithm
	if ctx := context.ContextElement; ctx != nil && ctx.Element != nil &&
		ctx.Element.NamespaceURI == spec.Htmlns {
		switch ctx.Element.LocalName {
		case "title", "textarea":
			t.lexer.setRawMode(rcData, ctx.Element.LocalName)
		case "style", "xmp", "iframe", "noembed", "noframes":
			t.lexer.setRawMode(rawText, ctx.Element.LocalName)
		case "script":
			t.lexer.setRawMode(scriptData, ctx.Element.LocalName)
		case "plaintext":
			t.lexer.setRawMode(plainText, "")
		}
	}
	return t
}

func (t *HTMLTokenizer) feed(q *BufferQueue) *spec.Node {
	for {
		paused := t.lexer.feed(q)
		if !paused {
			return nil
		}
		if script := t.sink.takeScript(); script != nil {
			return script
		}
	}
}

func (t *HTMLTokenizer) end() {
	t.lexer.end()
}

func (t *HTMLTokenizer) url() string {
	return t.documentURL
}

func (t *HTMLTokenizer) setPlaintextState() {
	t.lexer.setPlaintext()
}
