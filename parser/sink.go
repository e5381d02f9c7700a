package parser

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/heathj/webstream/parser/spec"
	"github.com/heathj/webstream/parser/webidl"
)

// ParsingAlgorithm distinguishes a full document parse from fragment
// parsing. Fragment parsing never notifies custom element reaction
// queues and never blocks on scripts.
type ParsingAlgorithm uint8

const (
	NormalParsing ParsingAlgorithm = iota
	FragmentParsing
)

// nextParserState tells the tokenizer whether it may keep consuming
// input after a structural operation.
type nextParserState uint8

const (
	parserContinue nextParserState = iota
	parserSuspend
)

type qualName struct {
	space  spec.Namespace
	prefix string
	local  string
}

// ElementAttribute is one parsed attribute, in source order.
type ElementAttribute struct {
	Namespace spec.Namespace
	Prefix    string
	LocalName string
	Value     webidl.DOMString
}

// nodeOrText is the payload of an insertion: either an existing node or
// a run of text.
type nodeOrText struct {
	node *spec.Node
	text string
}

// Sink translates structural events from a grammar engine into tree
// operations against the document being parsed.
// https://html.spec.whatwg.org/multipage/#tree-construction
type Sink struct {
	baseURL          string
	document         *spec.Document
	currentLine      uint64
	script           *spec.Node
	parsingAlgorithm ParsingAlgorithm
}

func newSink(baseURL string, document *spec.Document, algorithm ParsingAlgorithm) *Sink {
	return &Sink{
		baseURL:          baseURL,
		document:         document,
		currentLine:      1,
		parsingAlgorithm: algorithm,
	}
}

func (s *Sink) parseError(line uint64, msg string) {
	logrus.WithFields(logrus.Fields{
		"url":  s.baseURL,
		"line": line,
	}).Debugf("parse error: %s", msg)
}

// insert places child at the given tree position, merging a text run
// into an existing preceding text node when possible. Insertions during
// a normal parse notify the surrounding custom element reaction queue.
// https://html.spec.whatwg.org/multipage/#insert-a-character
func (s *Sink) insert(parent, reference *spec.Node, child nodeOrText) {
	if child.node == nil {
		prev := parent.LastChild
		if reference != nil {
			prev = reference.PreviousSibling
		}
		if prev != nil && prev.NodeType == spec.TextNode {
			prev.Text.AppendData(child.text)
			return
		}
		child.node = spec.NewTextNode(s.document, child.text)
	}
	elementInNonFragment := s.parsingAlgorithm != FragmentParsing &&
		child.node.NodeType == spec.ElementNode
	if elementInNonFragment {
		s.document.PushElementQueue()
	}
	parent.InsertBefore(child.node, reference)
	if elementInNonFragment {
		s.document.PopElementQueue()
	}
}

// append inserts child as the last child of parent.
func (s *Sink) append(parent *spec.Node, child nodeOrText) {
	s.insert(parent, nil, child)
}

// appendBeforeSibling inserts child immediately before sibling.
func (s *Sink) appendBeforeSibling(sibling *spec.Node, child nodeOrText) {
	s.insert(sibling.ParentNode, sibling, child)
}

// appendBasedOnParentNode inserts before element if it has a parent
// (foster parenting found a slot), otherwise appends under prevElement.
func (s *Sink) appendBasedOnParentNode(element, prevElement *spec.Node, child nodeOrText) {
	if element.ParentNode != nil {
		s.appendBeforeSibling(element, child)
		return
	}
	s.append(prevElement, child)
}

func (s *Sink) appendDoctypeToDocument(name, publicID, systemID string) {
	s.append(s.document.Node, nodeOrText{node: spec.NewDocTypeNode(s.document, name, publicID, systemID)})
}

func (s *Sink) createComment(data string) *spec.Node {
	return spec.NewComment(s.document, data)
}

func (s *Sink) createPI(target, data string) *spec.Node {
	return spec.NewProcessingInstructionNode(s.document, target, data)
}

// createElement runs the element creation algorithm for a start tag at
// the sink's current position.
func (s *Sink) createElement(name qualName, attrs []ElementAttribute) *spec.Node {
	element := createElementForToken(name, attrs, s.document, s.parsingAlgorithm)
	return element
}

// addAttrsIfMissing copies attributes onto an existing element, skipping
// names the element already carries. Used when a second <html> or <body>
// start tag appears.
func (s *Sink) addAttrsIfMissing(target *spec.Node, attrs []ElementAttribute) {
	for _, attr := range attrs {
		if target.HasAttribute(attr.LocalName) {
			continue
		}
		target.SetAttributeFromParser(&spec.Attr{
			Namespace: attr.Namespace,
			Prefix:    attr.Prefix,
			LocalName: attr.LocalName,
			Value:     string(attr.Value),
		})
	}
}

// associateWithForm links a form-associable control to form, but only
// when both live in the same home subtree. The node used for the
// locality check is element if it was already inserted, otherwise
// prevElement.
// https://html.spec.whatwg.org/multipage/#association-of-controls-and-forms
func (s *Sink) associateWithForm(target, form *spec.Node, element, prevElement *spec.Node) {
	treeNode := element
	if prevElement != nil && element.ParentNode == nil {
		treeNode = prevElement
	}
	if !form.InSameHomeSubtree(treeNode) {
		return
	}
	if target.IsFormAssociable() && !target.HasAttribute("form") {
		target.SetFormOwnerFromParser(form)
	}
}

// completeScript records a just-closed script element as pending and
// asks the tokenizer to suspend. Fragment parsing never executes
// scripts, so it always continues.
func (s *Sink) completeScript(node *spec.Node) nextParserState {
	if s.parsingAlgorithm == FragmentParsing {
		return parserContinue
	}
	if node.Element != nil && node.Element.Script != nil {
		s.script = node
		return parserSuspend
	}
	return parserContinue
}

// takeScript clears and returns the element recorded by completeScript.
func (s *Sink) takeScript() *spec.Node {
	script := s.script
	s.script = nil
	return script
}

func (s *Sink) markScriptAlreadyStarted(node *spec.Node) {
	if node.Element != nil && node.Element.Script != nil {
		node.Element.Script.AlreadyStarted = true
	}
}

func (s *Sink) removeFromParent(node *spec.Node) {
	node.RemoveSelf()
}

func (s *Sink) reparentChildren(node, newParent *spec.Node) {
	node.ReparentChildren(newParent)
}

// pop runs the popped node's insertion callback.
func (s *Sink) pop(node *spec.Node) {
	node.Pop()
}

func (s *Sink) setQuirksMode(mode spec.QuirksMode) {
	s.document.SetQuirksMode(mode)
}

// isMathMLAnnotationXMLIntegrationPoint reports whether an annotation-xml
// element opens an HTML integration point.
// https://html.spec.whatwg.org/multipage/#mathml-text-integration-point
func (s *Sink) isMathMLAnnotationXMLIntegrationPoint(node *spec.Node) bool {
	enc, ok := node.GetAttribute("encoding")
	if !ok {
		return false
	}
	enc = strings.ToLower(enc)
	return enc == "text/html" || enc == "application/xhtml+xml"
}

// createElementForToken implements element creation for a parser token.
// When a custom element definition matches and this is a normal parse,
// construction runs synchronously and script-visibly.
// https://html.spec.whatwg.org/multipage/#create-an-element-for-the-token
func createElementForToken(name qualName, attrs []ElementAttribute, document *spec.Document, algorithm ParsingAlgorithm) *spec.Node {
	// Step 3.
	is := ""
	for _, attr := range attrs {
		if attr.Namespace == "" && attr.LocalName == "is" {
			is = strings.ToLower(string(attr.Value))
			break
		}
	}

	// Step 4.
	definition := document.LookupCustomElementDefinition(name.space, name.local, is)

	// Step 5.
	willExecuteScript := definition != nil && algorithm != FragmentParsing

	// Step 6.
	if willExecuteScript {
		document.IncrementThrowOnDynamicMarkupInsertionCounter()
		if document.IsExecutionStackEmpty() {
			document.PerformMicrotaskCheckpoint()
		}
		document.PushElementQueue()
	}

	// Step 7.
	element := spec.NewDOMElement(document, name.local, name.space, name.prefix)
	if willExecuteScript && definition.Construct != nil {
		definition.Construct(document, element)
	}

	// Sanitization needs the content attributes, so it is held off until
	// all of them are applied and then run exactly once.
	input := element.Element.Input
	if input != nil {
		input.DisableSanitization()
	}

	// Step 8.
	for _, attr := range attrs {
		element.SetAttributeFromParser(&spec.Attr{
			Namespace: attr.Namespace,
			Prefix:    attr.Prefix,
			LocalName: attr.LocalName,
			Value:     string(attr.Value),
		})
	}

	if input != nil {
		input.EnableSanitization()
	}

	// Step 9.
	if willExecuteScript {
		document.PopElementQueue()
		document.DecrementThrowOnDynamicMarkupInsertionCounter()
	}

	return element
}
