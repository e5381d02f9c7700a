package spec

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

type QuirksMode string

const (
	NoQuirks      QuirksMode = "no-quirks"
	Quirks        QuirksMode = "quirks"
	LimitedQuirks QuirksMode = "limited-quirks"
)

// https://html.spec.whatwg.org/multipage/#current-document-readiness
type ReadyState string

const (
	ReadyStateLoading     ReadyState = "loading"
	ReadyStateInteractive ReadyState = "interactive"
	ReadyStateComplete    ReadyState = "complete"
)

// ResourceHint names a fetchable resource discovered ahead of the
// authoritative parse.
type ResourceHint struct {
	URL  string
	Kind ResourceKind
}

type ResourceKind string

const (
	ResourceScript ResourceKind = "script"
	ResourceImage  ResourceKind = "image"
	ResourceStyle  ResourceKind = "style"
	ResourceFetch  ResourceKind = "fetch"
)

type customElementKey struct {
	namespace Namespace
	localName string
	is        string
}

// CustomElementDefinition describes a registered custom element.
// https://html.spec.whatwg.org/multipage/#custom-element-definition
type CustomElementDefinition struct {
	Name      string
	LocalName string
	Namespace Namespace
	// Construct runs the author-supplied construction steps. It executes
	// script-visibly when the parser creates the element synchronously.
	Construct func(*Document, *Node)
}

// Document holds the state of the document being parsed. It is the
// parser's main collaborator: the parser registers itself here, drives
// readiness transitions, and reads back script-blocking state.
type Document struct {
	Node *Node
	URL  string

	quirksMode QuirksMode
	readyState ReadyState
	enc        encoding.Encoding

	currentParser                any
	pendingParsingBlockingScript *HTMLScript

	throwOnDynamicMarkupInsertion int
	scriptExecutionDepth          int
	elementQueueDepth             int
	redirectCount                 int
	cspList                       []string
	customElements                map[customElementKey]*CustomElementDefinition

	// BrowsingContext marks documents with an active presentation
	// context; only those are worth prefetching for.
	BrowsingContext bool

	// Collaborator hooks. All optional.
	OnFinishLoad          func(url string)
	OnMicrotaskCheckpoint func()
	OnPrefetch            func(ResourceHint)

	MicrotaskCheckpoints int
	FinishedLoading      bool

	navigationEntries []bool
}

func NewDocument(url string) *Document {
	d := &Document{
		URL:            url,
		quirksMode:     NoQuirks,
		readyState:     ReadyStateLoading,
		enc:            unicode.UTF8,
		customElements: map[customElementKey]*CustomElementDefinition{},
	}
	d.Node = &Node{
		NodeType:      DocumentNode,
		NodeName:      "#document",
		OwnerDocument: d,
		Document:      d,
	}
	return d
}

// DocumentElement returns the root element of the document, or nil.
func (d *Document) DocumentElement() *Node {
	for _, child := range d.Node.ChildNodes {
		if child.NodeType == ElementNode {
			return child
		}
	}
	return nil
}

// Body returns the document's body element, or nil.
func (d *Document) Body() *Node {
	root := d.DocumentElement()
	if root == nil {
		return nil
	}
	for _, child := range root.ChildNodes {
		if child.NodeType == ElementNode && child.NodeName == "body" {
			return child
		}
	}
	return nil
}

func (d *Document) QuirksMode() QuirksMode       { return d.quirksMode }
func (d *Document) SetQuirksMode(m QuirksMode)   { d.quirksMode = m }
func (d *Document) ReadyState() ReadyState       { return d.readyState }
func (d *Document) SetReadyState(rs ReadyState)  { d.readyState = rs }
func (d *Document) Encoding() encoding.Encoding  { return d.enc }
func (d *Document) SetEncoding(e encoding.Encoding) {
	d.enc = e
}

func (d *Document) SetCurrentParser(p any) { d.currentParser = p }
func (d *Document) CurrentParser() any     { return d.currentParser }

func (d *Document) SetCSPList(list []string) { d.cspList = list }
func (d *Document) CSPList() []string        { return d.cspList }

func (d *Document) SetRedirectCount(n int) { d.redirectCount = n }
func (d *Document) RedirectCount() int     { return d.redirectCount }

// FinishLoad records load completion for the given URL.
// https://html.spec.whatwg.org/multipage/#the-end
func (d *Document) FinishLoad(url string) {
	d.readyState = ReadyStateComplete
	d.FinishedLoading = true
	if d.OnFinishLoad != nil {
		d.OnFinishLoad(url)
	}
}

// PerformMicrotaskCheckpoint runs the environment's microtask checkpoint.
func (d *Document) PerformMicrotaskCheckpoint() {
	d.MicrotaskCheckpoints++
	if d.OnMicrotaskCheckpoint != nil {
		d.OnMicrotaskCheckpoint()
	}
}

// Prefetch hands a speculative resource hint to the environment.
func (d *Document) Prefetch(hint ResourceHint) {
	if d.OnPrefetch != nil {
		d.OnPrefetch(hint)
	}
}

func (d *Document) HasPendingParsingBlockingScript() bool {
	return d.pendingParsingBlockingScript != nil
}

func (d *Document) SetPendingParsingBlockingScript(s *HTMLScript) {
	d.pendingParsingBlockingScript = s
}

// TakePendingParsingBlockingScript clears and returns the pending
// parser-blocking script. The script collaborator calls this before
// resuming the parser.
func (d *Document) TakePendingParsingBlockingScript() *HTMLScript {
	s := d.pendingParsingBlockingScript
	d.pendingParsingBlockingScript = nil
	return s
}

// https://html.spec.whatwg.org/multipage/#throw-on-dynamic-markup-insertion-counter
func (d *Document) IncrementThrowOnDynamicMarkupInsertionCounter() {
	d.throwOnDynamicMarkupInsertion++
}

func (d *Document) DecrementThrowOnDynamicMarkupInsertionCounter() {
	d.throwOnDynamicMarkupInsertion--
}

func (d *Document) ThrowOnDynamicMarkupInsertionCounter() int {
	return d.throwOnDynamicMarkupInsertion
}

// BeginScriptExecution and EndScriptExecution bracket every script the
// parser runs; the depth replaces an ambient "is any script executing"
// lookup.
func (d *Document) BeginScriptExecution() { d.scriptExecutionDepth++ }
func (d *Document) EndScriptExecution()   { d.scriptExecutionDepth-- }

func (d *Document) IsExecutionStackEmpty() bool {
	return d.scriptExecutionDepth == 0
}

// PushElementQueue opens a new custom element reaction queue.
// https://html.spec.whatwg.org/multipage/#custom-element-reactions-stack
func (d *Document) PushElementQueue() { d.elementQueueDepth++ }

func (d *Document) PopElementQueue() { d.elementQueueDepth-- }

func (d *Document) ElementQueueDepth() int { return d.elementQueueDepth }

// DefineCustomElement registers a definition with the document's
// registry.
func (d *Document) DefineCustomElement(def *CustomElementDefinition) {
	ns := def.Namespace
	if ns == "" {
		ns = Htmlns
	}
	is := ""
	if def.Name != def.LocalName {
		is = def.Name
	}
	d.customElements[customElementKey{ns, def.LocalName, is}] = def
}

// LookupCustomElementDefinition resolves a definition for the given
// qualified name, honoring an `is` override when present.
// https://html.spec.whatwg.org/multipage/#look-up-a-custom-element-definition
func (d *Document) LookupCustomElementDefinition(ns Namespace, localName string, is string) *CustomElementDefinition {
	if def, ok := d.customElements[customElementKey{ns, localName, is}]; ok {
		return def
	}
	if is != "" {
		return nil
	}
	return d.customElements[customElementKey{ns, localName, ""}]
}

// QueueNavigationEntry reserves a navigation timing entry slot and
// returns its index.
func (d *Document) QueueNavigationEntry() int {
	d.navigationEntries = append(d.navigationEntries, false)
	return len(d.navigationEntries) - 1
}

// UpdateNavigationEntry finalizes a previously queued entry.
func (d *Document) UpdateNavigationEntry(i int) {
	if i >= 0 && i < len(d.navigationEntries) {
		d.navigationEntries[i] = true
	}
}

// NavigationEntryUpdated reports whether the entry at i was finalized.
func (d *Document) NavigationEntryUpdated(i int) bool {
	return i >= 0 && i < len(d.navigationEntries) && d.navigationEntries[i]
}
