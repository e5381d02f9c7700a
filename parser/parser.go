package parser

import (
	"github.com/heathj/webstream/parser/spec"
	"github.com/heathj/webstream/parser/webidl"
)

// ParserConfig gates optional engine behavior for new parsers.
type ParserConfig struct {
	// AsyncHTMLTokenizer moves the HTML grammar engine onto its own
	// goroutine for full document parses.
	AsyncHTMLTokenizer bool
}

var parserConfig ParserConfig

// SetParserConfig applies configuration for subsequently constructed
// parsers.
func SetParserConfig(c ParserConfig) {
	parserConfig = c
}

// Parser orchestrates incremental document parsing: it owns the input
// queues, the network decoder, and one grammar engine, and it mediates
// between script execution and tokenization. All invariant violations
// here are programming errors and panic.
// https://html.spec.whatwg.org/multipage/#parsing
type Parser struct {
	document *spec.Document

	// bomSniff holds the first bytes of the stream until a byte order
	// mark verdict is possible; nil once sniffing is done or disabled.
	bomSniff []byte
	sniffing bool

	networkDecoder *networkDecoder

	// networkInput carries input from the network, scriptInput carries
	// input written by scripts while a parser-blocking script is
	// pending. The insertion point sits between them.
	networkInput *BufferQueue
	scriptInput  *BufferQueue

	tokenizer tokenizer

	lastChunkReceived bool
	suspended         bool
	aborted           bool

	scriptNestingLevel  int
	scriptCreatedParser bool

	prefetchScanner *PrefetchScanner
	prefetchInput   *BufferQueue
}

func newParser(document *spec.Document, t tokenizer, lastChunkReceived, scriptCreated bool) *Parser {
	return &Parser{
		document:            document,
		sniffing:            true,
		networkDecoder:      newNetworkDecoder(document.Encoding()),
		networkInput:        NewBufferQueue(),
		scriptInput:         NewBufferQueue(),
		tokenizer:           t,
		lastChunkReceived:   lastChunkReceived,
		scriptCreatedParser: scriptCreated,
		prefetchScanner:     newPrefetchScanner(document, t.url()),
		prefetchInput:       NewBufferQueue(),
	}
}

// ParseHTMLDocument constructs a parser for a full HTML document. When
// input is non-nil, the literal markup is pushed and parsed before the
// document notices the parser; otherwise the parser registers itself and
// waits for the fetch response bridge.
func ParseHTMLDocument(document *spec.Document, input *string, url string) *Parser {
	sink := newSink(url, document, NormalParsing)
	var t tokenizer
	if parserConfig.AsyncHTMLTokenizer {
		t = newAsyncHTMLTokenizer(sink, url)
	} else {
		t = newHTMLTokenizer(sink, url)
	}
	p := newParser(document, t, false, false)
	if input != nil {
		p.parseStringChunk(*input)
	} else {
		p.document.SetCurrentParser(p)
	}
	return p
}

// ParseXMLDocument constructs a parser driving the XML grammar engine.
func ParseXMLDocument(document *spec.Document, input *string, url string) *Parser {
	sink := newSink(url, document, NormalParsing)
	p := newParser(document, newXMLTokenizer(sink, url), false, false)
	if input != nil {
		p.parseStringChunk(*input)
	} else {
		p.document.SetCurrentParser(p)
	}
	return p
}

// ParseHTMLScriptInput constructs a script-created parser, the target of
// document.open/write. Script input never carries a byte order mark.
func ParseHTMLScriptInput(document *spec.Document, url string) *Parser {
	sink := newSink(url, document, NormalParsing)
	p := newParser(document, newHTMLTokenizer(sink, url), false, true)
	p.sniffing = false
	p.bomSniff = nil
	document.SetCurrentParser(p)
	return p
}

// ParseHTMLFragment parses input relative to a context element and
// returns the parsed top-level nodes, detached from the throwaway
// parsing document.
// https://html.spec.whatwg.org/multipage/#parsing-html-fragments
func ParseHTMLFragment(context *spec.Node, input webidl.DOMString) []*spec.Node {
	contextDocument := context.OwnerDocument
	url := contextDocument.URL

	// Steps 1-2.
	document := spec.NewDocument(url)
	document.SetQuirksMode(contextDocument.QuirksMode())

	// Step 11.
	fragmentContext := &FragmentContext{ContextElement: context}

	sink := newSink(url, document, FragmentParsing)
	p := newParser(document, newHTMLFragmentTokenizer(sink, url, fragmentContext), true, false)
	p.parseStringChunk(string(input))

	// Step 14.
	root := document.DocumentElement()
	if root == nil {
		return nil
	}
	children := make([]*spec.Node, 0, len(root.ChildNodes))
	children = append(children, root.ChildNodes...)
	for _, child := range children {
		child.RemoveSelf()
	}
	return children
}

func (p *Parser) ScriptNestingLevel() int {
	return p.scriptNestingLevel
}

func (p *Parser) IsScriptCreated() bool {
	return p.scriptCreatedParser
}

// ResumeWithPendingParsingBlockingScript is invoked by the script
// collaborator when a parser-blocking script has finished loading.
//
// It first moves everything from the script input to the beginning of
// the network input, effectively resetting the insertion point to just
// before the next character to be consumed.
//
//	| ... script input ... network input ...
//	^
//	insertion point
func (p *Parser) ResumeWithPendingParsingBlockingScript(script *spec.HTMLScript, result spec.ScriptResult) {
	if !p.suspended {
		panic("parser: resume of a parser that is not suspended")
	}
	p.suspended = false

	p.scriptInput, p.networkInput = p.networkInput, p.scriptInput
	for {
		chunk, ok := p.scriptInput.PopFront()
		if !ok {
			break
		}
		p.networkInput.PushBack(chunk)
	}

	if p.scriptNestingLevel != 0 {
		panic("parser: resume entered with a script already executing")
	}

	p.scriptNestingLevel++
	p.document.BeginScriptExecution()
	script.Execute(result)
	p.document.EndScriptExecution()
	p.scriptNestingLevel--

	if !p.suspended && !p.aborted {
		p.parseSync()
	}
}

func (p *Parser) CanWrite() bool {
	return p.scriptCreatedParser || p.scriptNestingLevel > 0
}

// Write implements steps 6-8 of document.write().
// https://html.spec.whatwg.org/multipage/#document.write()
func (p *Parser) Write(text ...webidl.DOMString) {
	if !p.CanWrite() {
		panic("parser: write from a context that cannot write")
	}

	if p.document.HasPendingParsingBlockingScript() {
		// The parser is suspended on a pending script; buffer everything
		// behind the insertion point.
		for _, chunk := range text {
			p.scriptInput.PushBack(string(chunk))
		}
		return
	}

	// All previous writes must have been tokenized completely.
	if !p.scriptInput.IsEmpty() {
		panic("parser: leftover script input outside a suspension")
	}

	input := NewBufferQueue()
	for _, chunk := range text {
		input.PushBack(string(chunk))
	}

	p.tokenize(func(t tokenizer) *spec.Node { return t.feed(input) })

	if p.suspended {
		// Insert the remaining input at the end of the script input,
		// after anything written by scripts executed reentrantly during
		// this call.
		for {
			chunk, ok := input.PopFront()
			if !ok {
				return
			}
			p.scriptInput.PushBack(chunk)
		}
	}

	if !input.IsEmpty() {
		panic("parser: unconsumed write input without a suspension")
	}
}

// Close implements steps 4-6 of document.close().
// https://html.spec.whatwg.org/multipage/#dom-document-close
func (p *Parser) Close() {
	if !p.scriptCreatedParser {
		panic("parser: close of a parser that is not script-created")
	}

	// Step 4.
	p.lastChunkReceived = true

	// Step 5.
	if p.suspended {
		return
	}

	// Step 6.
	p.parseSync()
}

// Abort unconditionally terminates parsing.
// https://html.spec.whatwg.org/multipage/#abort-a-parser
func (p *Parser) Abort() {
	if p.aborted {
		panic("parser: abort of an already aborted parser")
	}
	p.aborted = true

	// Step 1.
	p.scriptInput = NewBufferQueue()
	p.networkInput = NewBufferQueue()

	// Step 2.
	p.document.SetReadyState(spec.ReadyStateInteractive)

	// Step 3.
	p.tokenizer.end()
	p.document.SetCurrentParser(nil)

	// Step 4.
	p.document.SetReadyState(spec.ReadyStateComplete)
}

// IsActive reports whether the parser is somewhere on the stack, i.e. a
// script it started is currently executing.
// https://html.spec.whatwg.org/multipage/#active-parser
func (p *Parser) IsActive() bool {
	return p.scriptNestingLevel > 0 && !p.aborted
}

func (p *Parser) IsSuspended() bool {
	return p.suspended
}

func (p *Parser) IsAborted() bool {
	return p.aborted
}

func (p *Parser) Document() *spec.Document {
	return p.document
}

func (p *Parser) pushTextInputChunk(chunk string) {
	if chunk == "" {
		return
	}
	// No content is prefetched for documents without browsing contexts.
	// https://github.com/whatwg/html/issues/1495
	if p.document.BrowsingContext {
		p.prefetchInput.PushBack(chunk)
		p.prefetchScanner.scan(p.prefetchInput)
	}
	p.networkInput.PushBack(chunk)
}

func (p *Parser) pushBytesInputChunk(chunk []byte) {
	// BOM sniff. The network decoder switches its own encoding based on
	// the BOM but never updates the document's, so that happens here.
	if p.sniffing {
		p.bomSniff = append(p.bomSniff, chunk...)
		if len(p.bomSniff) >= 3 {
			if enc, _ := encodingForBOM(p.bomSniff); enc != nil {
				p.document.SetEncoding(enc)
			}
			p.bomSniff = nil
			p.sniffing = false
		}
	}
	p.pushTextInputChunk(p.networkDecoder.decode(chunk))
}

func (p *Parser) pushStringInputChunk(chunk string) {
	// String input carries no BOM.
	p.sniffing = false
	p.bomSniff = nil
	p.pushTextInputChunk(chunk)
}

func (p *Parser) parseStringChunk(input string) {
	p.document.SetCurrentParser(p)
	p.pushStringInputChunk(input)
	if !p.suspended {
		p.parseSync()
	}
}

func (p *Parser) parseBytesChunk(input []byte) {
	p.document.SetCurrentParser(p)
	p.pushBytesInputChunk(input)
	if !p.suspended {
		p.parseSync()
	}
}

func (p *Parser) parseSync() {
	if !p.scriptInput.IsEmpty() {
		panic("parser: synchronous parse with pending script input")
	}

	// The parser continues while there is pending input and it remains
	// unsuspended.
	if p.lastChunkReceived && p.networkDecoder != nil {
		decoder := p.networkDecoder
		p.networkDecoder = nil
		if chunk := decoder.finish(); chunk != "" {
			p.networkInput.PushBack(chunk)
		}
	}

	p.tokenize(func(t tokenizer) *spec.Node { return t.feed(p.networkInput) })

	if p.suspended || p.aborted {
		return
	}

	if !p.networkInput.IsEmpty() {
		panic("parser: network input left after an unsuspended parse")
	}

	if p.lastChunkReceived {
		p.finish()
	}
}

func (p *Parser) tokenize(feed func(tokenizer) *spec.Node) {
	for {
		if p.suspended {
			panic("parser: tokenize loop entered while suspended")
		}
		if p.aborted {
			panic("parser: tokenize loop entered after abort")
		}

		script := feed(p.tokenizer)
		if script == nil {
			return
		}

		// https://html.spec.whatwg.org/multipage/#parsing-main-incdata
		// branch "An end tag whose tag name is 'script'". The checkpoint
		// runs before the script does, provided nothing else is
		// executing.
		if p.document.IsExecutionStackEmpty() {
			p.document.PerformMicrotaskCheckpoint()
		}

		p.scriptNestingLevel++
		p.document.BeginScriptExecution()
		script.Element.Script.Prepare()
		p.document.EndScriptExecution()
		p.scriptNestingLevel--

		if p.document.HasPendingParsingBlockingScript() {
			p.suspended = true
			return
		}
		if p.aborted {
			return
		}
	}
}

// finish is the end of parsing.
// https://html.spec.whatwg.org/multipage/#the-end
func (p *Parser) finish() {
	switch {
	case p.suspended:
		panic("parser: finish of a suspended parser")
	case !p.lastChunkReceived:
		panic("parser: finish before the last chunk")
	case !p.scriptInput.IsEmpty():
		panic("parser: finish with pending script input")
	case !p.networkInput.IsEmpty():
		panic("parser: finish with pending network input")
	case p.networkDecoder != nil:
		panic("parser: finish with a live network decoder")
	}

	// Step 1.
	p.document.SetReadyState(spec.ReadyStateInteractive)

	// Step 2.
	p.tokenizer.end()
	p.document.SetCurrentParser(nil)

	// Steps 3-12 live with the document.
	p.document.FinishLoad(p.tokenizer.url())
}
