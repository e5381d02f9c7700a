package parser

import (
	"strings"

	"github.com/heathj/webstream/parser/spec"
	"github.com/heathj/webstream/parser/webidl"
)

type insertionMode uint

const (
	initialIM insertionMode = iota
	beforeHTMLIM
	beforeHeadIM
	inHeadIM
	afterHeadIM
	inBodyIM
	textIM
	inTableIM
	afterBodyIM
	afterAfterBodyIM
)

var voidElements = map[string]bool{
	"area": true, "base": true, "basefont": true, "bgsound": true,
	"br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "keygen": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var formattingElements = map[string]bool{
	"a": true, "b": true, "big": true, "code": true, "em": true,
	"font": true, "i": true, "nobr": true, "s": true, "small": true,
	"strike": true, "strong": true, "tt": true, "u": true,
}

// specialElements is the subset of "special" elements the adoption steps
// treat as a furthest block candidate.
var specialElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"body": true, "center": true, "dd": true, "details": true, "dialog": true,
	"dir": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hgroup": true, "li": true, "listing": true, "main": true,
	"menu": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "summary": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

// pClosers implicitly close an open p element when they start.
var pClosers = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"center": true, "details": true, "dialog": true, "dir": true,
	"div": true, "dl": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "header": true, "hgroup": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "listing": true, "main": true, "menu": true, "nav": true,
	"ol": true, "p": true, "plaintext": true, "pre": true, "section": true,
	"summary": true, "table": true, "ul": true, "form": true,
	"li": true, "dd": true, "dt": true, "xmp": true,
}

// fosterTargets are the current nodes that redirect misplaced content
// before the table. An open cell or caption takes content normally.
var fosterTargets = map[string]bool{
	"table": true, "tbody": true, "tfoot": true, "thead": true, "tr": true,
}

// breakoutTags force an exit from foreign content back into HTML.
var breakoutTags = map[string]bool{
	"b": true, "big": true, "blockquote": true, "body": true, "br": true,
	"center": true, "code": true, "dd": true, "div": true, "dl": true,
	"dt": true, "em": true, "embed": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "head": true,
	"hr": true, "i": true, "img": true, "li": true, "listing": true,
	"menu": true, "meta": true, "nobr": true, "ol": true, "p": true,
	"pre": true, "ruby": true, "s": true, "small": true, "span": true,
	"strong": true, "strike": true, "sub": true, "sup": true,
	"table": true, "tt": true, "u": true, "ul": true, "var": true,
}

var svgTagAdjustments = map[string]string{
	"altglyph":         "altGlyph",
	"animatecolor":     "animateColor",
	"animatemotion":    "animateMotion",
	"animatetransform": "animateTransform",
	"clippath":         "clipPath",
	"feblend":          "feBlend",
	"fecolormatrix":    "feColorMatrix",
	"fegaussianblur":   "feGaussianBlur",
	"foreignobject":    "foreignObject",
	"glyphref":         "glyphRef",
	"lineargradient":   "linearGradient",
	"radialgradient":   "radialGradient",
	"textpath":         "textPath",
}

var svgAttrAdjustments = map[string]string{
	"attributename":       "attributeName",
	"attributetype":       "attributeType",
	"basefrequency":       "baseFrequency",
	"gradienttransform":   "gradientTransform",
	"gradientunits":       "gradientUnits",
	"patterntransform":    "patternTransform",
	"preserveaspectratio": "preserveAspectRatio",
	"repeatcount":         "repeatCount",
	"repeatdur":           "repeatDur",
	"stddeviation":        "stdDeviation",
	"viewbox":             "viewBox",
}

// treeBuilder drives tree construction: it consumes tokens from the
// lexical engine and issues structural operations against the Sink.
// https://html.spec.whatwg.org/multipage/#parsing-main-inhtml
type treeBuilder struct {
	sink *Sink

	im         insertionMode
	originalIM insertionMode

	openElements []*spec.Node
	head         *spec.Node
	form         *spec.Node

	fragmentContext *spec.Node
	framesetOK      bool
	fosterParenting bool
	ignoreLF        bool

	dir  tokenDirective
	done bool
}

func newTreeBuilder(sink *Sink) *treeBuilder {
	return &treeBuilder{sink: sink, im: initialIM, framesetOK: true}
}

// newFragmentTreeBuilder sets up tree construction for fragment parsing:
// a root html element on the throwaway document, the insertion mode
// reset for the context element, and the form pointer taken from the
// context's ancestry.
// https://html.spec.whatwg.org/multipage/#parsing-html-fragments
func newFragmentTreeBuilder(sink *Sink, context *FragmentContext) *treeBuilder {
	tb := &treeBuilder{sink: sink, framesetOK: true}
	tb.fragmentContext = context.ContextElement
	root := spec.NewDOMElement(sink.document, "html", spec.Htmlns)
	sink.append(sink.document.Node, nodeOrText{node: root})
	tb.openElements = append(tb.openElements, root)
	tb.im = tb.resetInsertionMode()
	if context.FormElement != nil {
		tb.form = context.FormElement
	} else {
		for n := context.ContextElement; n != nil; n = n.ParentNode {
			if isHTMLElement(n, "form") {
				tb.form = n
				break
			}
		}
	}
	return tb
}

// syntheticStartTag builds the implied start tags the tree needs when
// the markup omits them.
func syntheticStartTag(name string, line uint64) *Token {
	return &Token{TokenType: startTagToken, TagName: name, Line: line}
}

func isHTMLElement(n *spec.Node, name string) bool {
	return n != nil && n.NodeType == spec.ElementNode &&
		n.Element.NamespaceURI == spec.Htmlns && n.Element.LocalName == name
}

func (tb *treeBuilder) currentNode() *spec.Node {
	if len(tb.openElements) == 0 {
		return tb.sink.document.Node
	}
	return tb.openElements[len(tb.openElements)-1]
}

// adjustedCurrentNode substitutes the fragment context element for the
// root while only the root is open.
func (tb *treeBuilder) adjustedCurrentNode() *spec.Node {
	if tb.fragmentContext != nil && len(tb.openElements) == 1 {
		return tb.fragmentContext
	}
	return tb.currentNode()
}

func (tb *treeBuilder) popCurrent() *spec.Node {
	n := tb.openElements[len(tb.openElements)-1]
	tb.openElements = tb.openElements[:len(tb.openElements)-1]
	tb.sink.pop(n)
	return n
}

// popUntil pops elements through the first HTML element with the given
// name, inclusive. It reports whether the element was found.
func (tb *treeBuilder) popUntil(name string) bool {
	for i := len(tb.openElements) - 1; i >= 0; i-- {
		if isHTMLElement(tb.openElements[i], name) {
			for len(tb.openElements) > i {
				tb.popCurrent()
			}
			return true
		}
	}
	return false
}

func (tb *treeBuilder) hasInScope(name string) bool {
	for i := len(tb.openElements) - 1; i >= 0; i-- {
		n := tb.openElements[i]
		if isHTMLElement(n, name) {
			return true
		}
		switch {
		case isHTMLElement(n, "html"), isHTMLElement(n, "table"),
			isHTMLElement(n, "td"), isHTMLElement(n, "th"),
			n.Element != nil && n.Element.NamespaceURI != spec.Htmlns:
			return false
		}
	}
	return false
}

func (tb *treeBuilder) closePElement() {
	if tb.hasInScope("p") {
		tb.popUntil("p")
	}
}

// insertNode places a node or text at the appropriate insertion point,
// foster parenting around an open table when required.
// https://html.spec.whatwg.org/multipage/#appropriate-place-for-inserting-a-node
func (tb *treeBuilder) insertNode(child nodeOrText) {
	if tb.fosterParenting && fosterTargets[tb.currentNode().NodeName] {
		tb.fosterInsert(child)
		return
	}
	tb.sink.append(tb.currentNode(), child)
}

func (tb *treeBuilder) fosterInsert(child nodeOrText) {
	for i := len(tb.openElements) - 1; i > 0; i-- {
		if isHTMLElement(tb.openElements[i], "table") {
			tb.sink.appendBasedOnParentNode(tb.openElements[i], tb.openElements[i-1], child)
			return
		}
	}
	tb.sink.append(tb.openElements[0], child)
}

func convertAttrs(attrs []TokenAttr, ns spec.Namespace) []ElementAttribute {
	out := make([]ElementAttribute, 0, len(attrs))
	for _, a := range attrs {
		ea := ElementAttribute{LocalName: a.Name, Value: webidl.DOMString(a.Value)}
		if ns != spec.Htmlns {
			switch {
			case strings.HasPrefix(a.Name, "xlink:"):
				ea = ElementAttribute{Namespace: spec.Xlinkns, Prefix: "xlink", LocalName: a.Name[len("xlink:"):], Value: webidl.DOMString(a.Value)}
			case strings.HasPrefix(a.Name, "xml:"):
				ea = ElementAttribute{Namespace: spec.Xmlns, Prefix: "xml", LocalName: a.Name[len("xml:"):], Value: webidl.DOMString(a.Value)}
			case a.Name == "xmlns":
				ea = ElementAttribute{Namespace: spec.Xmlnsns, LocalName: "xmlns", Value: webidl.DOMString(a.Value)}
			case strings.HasPrefix(a.Name, "xmlns:"):
				ea = ElementAttribute{Namespace: spec.Xmlnsns, Prefix: "xmlns", LocalName: a.Name[len("xmlns:"):], Value: webidl.DOMString(a.Value)}
			}
			if ns == spec.Svgns {
				if adjusted, ok := svgAttrAdjustments[a.Name]; ok {
					ea.LocalName = adjusted
				}
			}
			if ns == spec.Mathmlns && a.Name == "definitionurl" {
				ea.LocalName = "definitionURL"
			}
		}
		out = append(out, ea)
	}
	return out
}

// insertElement creates an element for the token in the given namespace
// and inserts it; void and self-closing foreign elements are not pushed
// onto the stack of open elements.
func (tb *treeBuilder) insertElement(t *Token, ns spec.Namespace) *spec.Node {
	name := t.TagName
	if ns == spec.Svgns {
		if adjusted, ok := svgTagAdjustments[name]; ok {
			name = adjusted
		}
	}
	el := tb.sink.createElement(qualName{space: ns, local: name}, convertAttrs(t.Attributes, ns))
	tb.insertNode(nodeOrText{node: el})
	if tb.fragmentContext != nil && isHTMLElement(el, "script") {
		tb.sink.markScriptAlreadyStarted(el)
	}
	push := true
	if ns == spec.Htmlns && voidElements[name] {
		push = false
	}
	if ns != spec.Htmlns && t.SelfClosing {
		push = false
	}
	if push {
		tb.openElements = append(tb.openElements, el)
	} else {
		tb.sink.pop(el)
	}
	if el.IsFormAssociable() && tb.form != nil {
		prev := tb.currentNode()
		tb.sink.associateWithForm(el, tb.form, el, prev)
	}
	return el
}

func (tb *treeBuilder) insertText(text string) {
	if tb.fosterParenting && fosterTargets[tb.currentNode().NodeName] {
		tb.fosterInsert(nodeOrText{text: text})
		return
	}
	tb.sink.append(tb.currentNode(), nodeOrText{text: text})
}

func (tb *treeBuilder) insertComment(t *Token) {
	comment := tb.sink.createComment(t.Data)
	switch tb.im {
	case initialIM, beforeHTMLIM, afterAfterBodyIM:
		tb.sink.append(tb.sink.document.Node, nodeOrText{node: comment})
	case afterBodyIM:
		tb.sink.append(tb.openElements[0], nodeOrText{node: comment})
	default:
		tb.insertNode(nodeOrText{node: comment})
	}
}

func (tb *treeBuilder) inForeignContent() bool {
	n := tb.adjustedCurrentNode()
	return n.NodeType == spec.ElementNode && n.Element.NamespaceURI != spec.Htmlns
}

// process implements tokenSink.
func (tb *treeBuilder) process(t *Token) tokenDirective {
	tb.dir = tokenDirective{}
	for tb.step(t) {
	}
	tb.dir.allowCDATA = tb.inForeignContent()
	return tb.dir
}

// step handles one token in the current insertion mode; it returns true
// when the token must be reprocessed.
func (tb *treeBuilder) step(t *Token) bool {
	if tb.done {
		return false
	}
	// A line feed immediately after a pre, listing, or textarea start
	// tag is dropped.
	if tb.ignoreLF {
		tb.ignoreLF = false
		if t.TokenType == characterToken {
			if t.Data == "\n" {
				return false
			}
			t.Data = strings.TrimPrefix(t.Data, "\n")
		}
	}
	if tb.im != textIM && tb.inForeignContent() && !tb.atIntegrationPoint(t) {
		return tb.stepForeign(t)
	}

	switch tb.im {
	case initialIM:
		return tb.stepInitial(t)
	case beforeHTMLIM:
		return tb.stepBeforeHTML(t)
	case beforeHeadIM:
		return tb.stepBeforeHead(t)
	case inHeadIM:
		return tb.stepInHead(t)
	case afterHeadIM:
		return tb.stepAfterHead(t)
	case inBodyIM:
		return tb.stepInBody(t)
	case textIM:
		return tb.stepText(t)
	case inTableIM:
		return tb.stepInTable(t)
	case afterBodyIM:
		return tb.stepAfterBody(t)
	case afterAfterBodyIM:
		return tb.stepAfterAfterBody(t)
	}
	return false
}

// atIntegrationPoint reports whether the token is handled as HTML even
// though the adjusted current node is foreign.
// https://html.spec.whatwg.org/multipage/#tree-construction-dispatcher
func (tb *treeBuilder) atIntegrationPoint(t *Token) bool {
	n := tb.adjustedCurrentNode()
	if n.NodeType != spec.ElementNode {
		return false
	}
	if t.TokenType == endOfFileToken {
		return true
	}
	textIntegration := n.Element.NamespaceURI == spec.Mathmlns &&
		(n.Element.LocalName == "mi" || n.Element.LocalName == "mo" ||
			n.Element.LocalName == "mn" || n.Element.LocalName == "ms" ||
			n.Element.LocalName == "mtext")
	if textIntegration {
		if t.TokenType == characterToken {
			return true
		}
		if t.TokenType == startTagToken && t.TagName != "mglyph" && t.TagName != "malignmark" {
			return true
		}
	}
	htmlIntegration := (n.Element.NamespaceURI == spec.Svgns &&
		(n.Element.LocalName == "foreignObject" || n.Element.LocalName == "desc" || n.Element.LocalName == "title")) ||
		(n.Element.NamespaceURI == spec.Mathmlns && n.Element.LocalName == "annotation-xml" &&
			tb.sink.isMathMLAnnotationXMLIntegrationPoint(n))
	if htmlIntegration && (t.TokenType == characterToken || t.TokenType == startTagToken) {
		return true
	}
	return false
}

func (tb *treeBuilder) stepForeign(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		tb.insertText(t.Data)
	case commentToken:
		tb.insertComment(t)
	case startTagToken:
		_, hasColor := t.GetAttribute("color")
		_, hasFace := t.GetAttribute("face")
		_, hasSize := t.GetAttribute("size")
		if breakoutTags[t.TagName] || (t.TagName == "font" && (hasColor || hasFace || hasSize)) {
			for tb.inForeignContent() && len(tb.openElements) > 0 {
				n := tb.adjustedCurrentNode()
				if tb.atIntegrationPoint(t) || n.NodeType != spec.ElementNode {
					break
				}
				tb.popCurrent()
			}
			return true
		}
		tb.insertElement(t, tb.adjustedCurrentNode().Element.NamespaceURI)
	case endTagToken:
		for i := len(tb.openElements) - 1; i >= 0; i-- {
			n := tb.openElements[i]
			if n.Element.NamespaceURI == spec.Htmlns {
				return true
			}
			if strings.ToLower(n.Element.LocalName) == t.TagName {
				for len(tb.openElements) > i {
					tb.popCurrent()
				}
				break
			}
		}
	case endOfFileToken:
		return true
	}
	return false
}

func (tb *treeBuilder) stepInitial(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		t.Data = strings.TrimLeft(t.Data, "\t\n\f\r ")
		if t.Data == "" {
			return false
		}
	case commentToken:
		tb.insertComment(t)
		return false
	case docTypeToken:
		name := t.TagName
		public := t.PublicIdentifier
		system := t.SystemIdentifier
		if public == missing {
			public = ""
		}
		if system == missing {
			system = ""
		}
		tb.sink.appendDoctypeToDocument(name, public, system)
		tb.sink.setQuirksMode(quirksVerdict(t))
		tb.im = beforeHTMLIM
		return false
	}
	// no doctype seen
	tb.sink.setQuirksMode(spec.Quirks)
	tb.im = beforeHTMLIM
	return true
}

func (tb *treeBuilder) stepBeforeHTML(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		t.Data = strings.TrimLeft(t.Data, "\t\n\f\r ")
		if t.Data == "" {
			return false
		}
	case commentToken:
		tb.insertComment(t)
		return false
	case docTypeToken:
		return false
	case startTagToken:
		if t.TagName == "html" {
			el := tb.sink.createElement(qualName{space: spec.Htmlns, local: "html"}, convertAttrs(t.Attributes, spec.Htmlns))
			tb.sink.append(tb.sink.document.Node, nodeOrText{node: el})
			tb.openElements = append(tb.openElements, el)
			tb.im = beforeHeadIM
			return false
		}
	case endTagToken:
		switch t.TagName {
		case "head", "body", "html", "br":
		default:
			return false
		}
	}
	el := tb.sink.createElement(qualName{space: spec.Htmlns, local: "html"}, nil)
	tb.sink.append(tb.sink.document.Node, nodeOrText{node: el})
	tb.openElements = append(tb.openElements, el)
	tb.im = beforeHeadIM
	return true
}

func (tb *treeBuilder) stepBeforeHead(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		t.Data = strings.TrimLeft(t.Data, "\t\n\f\r ")
		if t.Data == "" {
			return false
		}
	case commentToken:
		tb.insertComment(t)
		return false
	case docTypeToken:
		return false
	case startTagToken:
		switch t.TagName {
		case "html":
			return tb.stepInBody(t)
		case "head":
			tb.head = tb.insertElement(t, spec.Htmlns)
			tb.im = inHeadIM
			return false
		}
	case endTagToken:
		switch t.TagName {
		case "head", "body", "html", "br":
		default:
			return false
		}
	}
	tb.head = tb.insertElement(syntheticStartTag("head", t.Line), spec.Htmlns)
	tb.im = inHeadIM
	return true
}

func (tb *treeBuilder) stepInHead(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		ws, rest := splitLeadingWhitespace(t.Data)
		if ws != "" {
			tb.insertText(ws)
		}
		if rest == "" {
			return false
		}
		t.Data = rest
	case commentToken:
		tb.insertComment(t)
		return false
	case docTypeToken:
		return false
	case startTagToken:
		switch t.TagName {
		case "html":
			return tb.stepInBody(t)
		case "base", "basefont", "bgsound", "link", "meta":
			tb.insertElement(t, spec.Htmlns)
			return false
		case "title":
			tb.insertElement(t, spec.Htmlns)
			tb.enterRawText(rcData)
			return false
		case "noscript", "noframes", "style":
			tb.insertElement(t, spec.Htmlns)
			tb.enterRawText(rawText)
			return false
		case "script":
			tb.insertElement(t, spec.Htmlns)
			tb.enterRawText(scriptData)
			return false
		case "head":
			return false
		}
	case endTagToken:
		switch t.TagName {
		case "head":
			tb.popCurrent()
			tb.im = afterHeadIM
			return false
		case "body", "html", "br":
		default:
			return false
		}
	}
	tb.popCurrent()
	tb.im = afterHeadIM
	return true
}

func (tb *treeBuilder) stepAfterHead(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		ws, rest := splitLeadingWhitespace(t.Data)
		if ws != "" {
			tb.insertText(ws)
		}
		if rest == "" {
			return false
		}
		t.Data = rest
	case commentToken:
		tb.insertComment(t)
		return false
	case docTypeToken:
		return false
	case startTagToken:
		switch t.TagName {
		case "html":
			return tb.stepInBody(t)
		case "body":
			tb.insertElement(t, spec.Htmlns)
			tb.framesetOK = false
			tb.im = inBodyIM
			return false
		case "base", "basefont", "bgsound", "link", "meta", "noframes",
			"script", "style", "title":
			// misplaced head content; process it in head
			tb.openElements = append(tb.openElements, tb.head)
			tb.im = inHeadIM
			again := tb.stepInHead(t)
			if tb.im == textIM {
				tb.originalIM = afterHeadIM
			} else if tb.im == inHeadIM {
				tb.im = afterHeadIM
			}
			for i, n := range tb.openElements {
				if n == tb.head {
					tb.openElements = append(tb.openElements[:i], tb.openElements[i+1:]...)
					break
				}
			}
			return again
		case "head":
			return false
		}
	case endTagToken:
		switch t.TagName {
		case "body", "html", "br":
		default:
			return false
		}
	}
	tb.insertElement(syntheticStartTag("body", t.Line), spec.Htmlns)
	tb.im = inBodyIM
	return true
}

func (tb *treeBuilder) stepInBody(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		if t.Data != "" {
			tb.insertText(t.Data)
			if strings.Trim(t.Data, "\t\n\f\r ") != "" {
				tb.framesetOK = false
			}
		}
	case commentToken:
		tb.insertComment(t)
	case docTypeToken:
	case startTagToken:
		return tb.startTagInBody(t)
	case endTagToken:
		return tb.endTagInBody(t)
	case endOfFileToken:
		tb.finishEOF()
	}
	return false
}

func (tb *treeBuilder) startTagInBody(t *Token) bool {
	switch t.TagName {
	case "html":
		if len(tb.openElements) > 0 {
			tb.sink.addAttrsIfMissing(tb.openElements[0], convertAttrs(t.Attributes, spec.Htmlns))
		}
	case "body":
		if len(tb.openElements) > 1 && isHTMLElement(tb.openElements[1], "body") {
			tb.framesetOK = false
			tb.sink.addAttrsIfMissing(tb.openElements[1], convertAttrs(t.Attributes, spec.Htmlns))
		}
	case "form":
		if tb.form != nil {
			return false
		}
		tb.closePElement()
		tb.form = tb.insertElement(t, spec.Htmlns)
	case "table":
		if tb.sink.document.QuirksMode() != spec.Quirks {
			tb.closePElement()
		}
		tb.insertElement(t, spec.Htmlns)
		tb.framesetOK = false
		tb.im = inTableIM
	case "plaintext":
		tb.closePElement()
		tb.insertElement(t, spec.Htmlns)
		tb.dir.raw = plainText
	case "textarea":
		tb.insertElement(t, spec.Htmlns)
		tb.framesetOK = false
		tb.ignoreLF = true
		tb.enterRawText(rcData)
	case "xmp":
		tb.closePElement()
		tb.framesetOK = false
		tb.insertElement(t, spec.Htmlns)
		tb.enterRawText(rawText)
	case "iframe", "noembed", "noscript":
		tb.framesetOK = false
		tb.insertElement(t, spec.Htmlns)
		tb.enterRawText(rawText)
	case "script", "style", "title", "noframes":
		return tb.stepInHead(t)
	case "math":
		tb.insertElement(t, spec.Mathmlns)
	case "svg":
		tb.insertElement(t, spec.Svgns)
	case "a", "b", "big", "code", "em", "font", "i", "nobr", "s",
		"small", "strike", "strong", "tt", "u":
		tb.insertElement(t, spec.Htmlns)
	case "li", "dd", "dt":
		tb.framesetOK = false
		if tb.hasInScope(t.TagName) {
			tb.popUntil(t.TagName)
		}
		tb.closePElement()
		tb.insertElement(t, spec.Htmlns)
	case "image":
		t.TagName = "img"
		return true
	default:
		if pClosers[t.TagName] {
			tb.closePElement()
		}
		tb.insertElement(t, spec.Htmlns)
		if t.TagName == "pre" || t.TagName == "listing" {
			tb.framesetOK = false
			tb.ignoreLF = true
		}
	}
	return false
}

func (tb *treeBuilder) endTagInBody(t *Token) bool {
	switch t.TagName {
	case "body":
		if tb.hasInScope("body") {
			tb.im = afterBodyIM
		}
	case "html":
		if tb.hasInScope("body") {
			tb.im = afterBodyIM
			return true
		}
	case "form":
		form := tb.form
		tb.form = nil
		if form == nil || !tb.hasInScope("form") {
			return false
		}
		tb.popUntil("form")
	case "p":
		if !tb.hasInScope("p") {
			tb.insertElement(syntheticStartTag("p", t.Line), spec.Htmlns)
		}
		tb.closePElement()
	case "br":
		// </br> acts like <br>
		tb.insertElement(syntheticStartTag("br", t.Line), spec.Htmlns)
	default:
		if formattingElements[t.TagName] {
			tb.adoptionSteps(t.TagName)
			return false
		}
		if tb.hasInScope(t.TagName) {
			tb.popUntil(t.TagName)
		}
	}
	return false
}

// adoptionSteps handles a mismatched formatting end tag: when a block
// element intervenes, the block is reattached under the formatting
// element's parent and the formatting element is cloned around the
// block's children.
// https://html.spec.whatwg.org/multipage/#adoption-agency-algorithm
func (tb *treeBuilder) adoptionSteps(tag string) {
	fi := -1
	for i := len(tb.openElements) - 1; i >= 0; i-- {
		if isHTMLElement(tb.openElements[i], tag) {
			fi = i
			break
		}
	}
	if fi <= 0 {
		return
	}
	formatting := tb.openElements[fi]

	bi := -1
	for j := fi + 1; j < len(tb.openElements); j++ {
		if specialElements[tb.openElements[j].NodeName] {
			bi = j
			break
		}
	}
	if bi < 0 {
		for len(tb.openElements) > fi {
			tb.popCurrent()
		}
		return
	}

	block := tb.openElements[bi]
	ancestor := tb.openElements[fi-1]

	tb.sink.removeFromParent(block)
	tb.sink.append(ancestor, nodeOrText{node: block})

	clone := tb.sink.createElement(
		qualName{space: spec.Htmlns, local: tag},
		cloneAttributes(formatting),
	)
	tb.sink.reparentChildren(block, clone)
	tb.sink.append(block, nodeOrText{node: clone})

	for i := bi - 1; i >= fi; i-- {
		tb.sink.pop(tb.openElements[i])
	}
	tb.openElements = append(tb.openElements[:fi], block)
}

func cloneAttributes(n *spec.Node) []ElementAttribute {
	out := make([]ElementAttribute, 0, len(n.Element.Attributes))
	for _, a := range n.Element.Attributes {
		out = append(out, ElementAttribute{
			Namespace: a.Namespace,
			Prefix:    a.Prefix,
			LocalName: a.LocalName,
			Value:     webidl.DOMString(a.Value),
		})
	}
	return out
}

func (tb *treeBuilder) stepText(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		tb.insertText(t.Data)
	case endTagToken:
		node := tb.popCurrent()
		tb.im = tb.originalIM
		if t.TagName == "script" {
			if tb.sink.completeScript(node) == parserSuspend {
				tb.dir.pause = true
			}
		}
	case endOfFileToken:
		tb.popCurrent()
		tb.im = tb.originalIM
		return true
	}
	return false
}

func (tb *treeBuilder) stepInTable(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		if strings.Trim(t.Data, "\t\n\f\r ") == "" {
			tb.insertText(t.Data)
			return false
		}
		tb.fosterParenting = true
		tb.insertText(t.Data)
		tb.fosterParenting = false
	case commentToken:
		tb.insertComment(t)
	case docTypeToken:
	case startTagToken:
		switch t.TagName {
		case "caption", "colgroup", "tbody", "tfoot", "thead", "tr", "td", "th":
			tb.clearTableContext()
			tb.insertElement(t, spec.Htmlns)
		case "col":
			tb.insertElement(t, spec.Htmlns)
		case "table":
			if tb.popUntil("table") {
				tb.im = tb.resetInsertionMode()
				return true
			}
		case "style", "script":
			return tb.stepInHead(t)
		case "form":
			// a form inside a table becomes the pointer but takes no children
			if tb.form == nil {
				el := tb.sink.createElement(qualName{space: spec.Htmlns, local: "form"}, convertAttrs(t.Attributes, spec.Htmlns))
				tb.insertNode(nodeOrText{node: el})
				tb.form = el
				tb.sink.pop(el)
			}
		default:
			tb.fosterParenting = true
			again := tb.stepInBody(t)
			tb.fosterParenting = false
			return again
		}
	case endTagToken:
		switch t.TagName {
		case "table":
			tb.popUntil("table")
			tb.im = tb.resetInsertionMode()
		case "tbody", "tfoot", "thead", "tr", "td", "th", "caption", "colgroup":
			tb.popUntil(t.TagName)
		case "body", "html", "col":
		default:
			tb.fosterParenting = true
			again := tb.stepInBody(t)
			tb.fosterParenting = false
			return again
		}
	case endOfFileToken:
		tb.finishEOF()
	}
	return false
}

// clearTableContext pops back to the nearest table-structural boundary
// before inserting a new row group or cell.
func (tb *treeBuilder) clearTableContext() {
	for len(tb.openElements) > 0 {
		n := tb.currentNode()
		if isHTMLElement(n, "table") || isHTMLElement(n, "html") ||
			isHTMLElement(n, "tbody") || isHTMLElement(n, "tfoot") ||
			isHTMLElement(n, "thead") || isHTMLElement(n, "tr") {
			return
		}
		tb.popCurrent()
	}
}

func (tb *treeBuilder) stepAfterBody(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		ws, rest := splitLeadingWhitespace(t.Data)
		if ws != "" {
			// processed per in body
			tb.insertText(ws)
		}
		if rest == "" {
			return false
		}
		t.Data = rest
		tb.im = inBodyIM
		return true
	case commentToken:
		tb.insertComment(t)
		return false
	case docTypeToken:
		return false
	case startTagToken:
		if t.TagName == "html" {
			return tb.stepInBody(t)
		}
		tb.im = inBodyIM
		return true
	case endTagToken:
		if t.TagName == "html" {
			tb.im = afterAfterBodyIM
			return false
		}
		tb.im = inBodyIM
		return true
	case endOfFileToken:
		tb.finishEOF()
	}
	return false
}

func (tb *treeBuilder) stepAfterAfterBody(t *Token) bool {
	switch t.TokenType {
	case characterToken:
		ws, rest := splitLeadingWhitespace(t.Data)
		if ws != "" {
			tb.insertText(ws)
		}
		if rest == "" {
			return false
		}
		t.Data = rest
		tb.im = inBodyIM
		return true
	case commentToken:
		tb.insertComment(t)
		return false
	case docTypeToken:
		return false
	case startTagToken:
		if t.TagName == "html" {
			return tb.stepInBody(t)
		}
		tb.im = inBodyIM
		return true
	case endTagToken:
		tb.im = inBodyIM
		return true
	case endOfFileToken:
		tb.finishEOF()
	}
	return false
}

// resetInsertionMode picks the mode appropriate to the current stack.
// https://html.spec.whatwg.org/multipage/#reset-the-insertion-mode-appropriately
func (tb *treeBuilder) resetInsertionMode() insertionMode {
	for i := len(tb.openElements) - 1; i >= 0; i-- {
		n := tb.openElements[i]
		if i == 0 && tb.fragmentContext != nil {
			n = tb.fragmentContext
		}
		switch {
		case isHTMLElement(n, "table"), isHTMLElement(n, "tbody"),
			isHTMLElement(n, "tfoot"), isHTMLElement(n, "thead"),
			isHTMLElement(n, "tr"):
			return inTableIM
		case isHTMLElement(n, "head"):
			return inHeadIM
		case isHTMLElement(n, "body"), isHTMLElement(n, "td"), isHTMLElement(n, "th"):
			return inBodyIM
		case isHTMLElement(n, "html"):
			if tb.head == nil {
				return beforeHeadIM
			}
			return afterHeadIM
		}
	}
	return inBodyIM
}

func (tb *treeBuilder) enterRawText(kind rawKind) {
	tb.originalIM = tb.im
	tb.im = textIM
	tb.dir.raw = kind
}

// finishEOF closes every still-open element and marks construction done.
func (tb *treeBuilder) finishEOF() {
	for len(tb.openElements) > 0 {
		tb.popCurrent()
	}
	tb.done = true
}

func splitLeadingWhitespace(s string) (string, string) {
	rest := strings.TrimLeft(s, "\t\n\f\r ")
	return s[:len(s)-len(rest)], rest
}

// quirksVerdict maps a doctype token onto the document compatibility
// mode.
// https://html.spec.whatwg.org/multipage/#the-initial-insertion-mode
func quirksVerdict(t *Token) spec.QuirksMode {
	if t.ForceQuirks || t.TagName != "html" {
		return spec.Quirks
	}
	public := strings.ToLower(t.PublicIdentifier)
	system := strings.ToLower(t.SystemIdentifier)
	hasSystem := t.SystemIdentifier != missing

	if t.PublicIdentifier != missing {
		for _, exact := range quirkyPublicIDs {
			if public == exact {
				return spec.Quirks
			}
		}
		for _, prefix := range quirkyPublicPrefixes {
			if strings.HasPrefix(public, prefix) {
				return spec.Quirks
			}
		}
		if !hasSystem {
			if strings.HasPrefix(public, "-//w3c//dtd html 4.01 frameset//") ||
				strings.HasPrefix(public, "-//w3c//dtd html 4.01 transitional//") {
				return spec.Quirks
			}
		} else {
			if strings.HasPrefix(public, "-//w3c//dtd html 4.01 frameset//") ||
				strings.HasPrefix(public, "-//w3c//dtd html 4.01 transitional//") {
				return spec.LimitedQuirks
			}
		}
		if strings.HasPrefix(public, "-//w3c//dtd xhtml 1.0 frameset//") ||
			strings.HasPrefix(public, "-//w3c//dtd xhtml 1.0 transitional//") {
			return spec.LimitedQuirks
		}
	}
	if hasSystem && system == "http://www.ibm.com/data/dtd/v11/ibmxhtml1-transitional.dtd" {
		return spec.Quirks
	}
	return spec.NoQuirks
}

var quirkyPublicIDs = []string{
	"-//w3o//dtd w3 html strict 3.0//en//",
	"-/w3c/dtd html 4.0 transitional/en",
	"html",
}

var quirkyPublicPrefixes = []string{
	"+//silmaril//dtd html pro v0r11 19970101//",
	"-//advasoft ltd//dtd html 3.0 aswedit + extensions//",
	"-//as//dtd html 3.0 aswedit + extensions//",
	"-//ietf//dtd html 2.0 level 1//",
	"-//ietf//dtd html 2.0 level 2//",
	"-//ietf//dtd html 2.0 strict level 1//",
	"-//ietf//dtd html 2.0 strict level 2//",
	"-//ietf//dtd html 2.0 strict//",
	"-//ietf//dtd html 2.0//",
	"-//ietf//dtd html 2.1e//",
	"-//ietf//dtd html 3.0//",
	"-//ietf//dtd html 3.2 final//",
	"-//ietf//dtd html 3.2//",
	"-//ietf//dtd html 3//",
	"-//ietf//dtd html level 0//",
	"-//ietf//dtd html level 1//",
	"-//ietf//dtd html level 2//",
	"-//ietf//dtd html level 3//",
	"-//ietf//dtd html strict level 0//",
	"-//ietf//dtd html strict level 1//",
	"-//ietf//dtd html strict level 2//",
	"-//ietf//dtd html strict level 3//",
	"-//ietf//dtd html strict//",
	"-//ietf//dtd html//",
	"-//metrius//dtd metrius presentational//",
	"-//microsoft//dtd internet explorer 2.0 html strict//",
	"-//microsoft//dtd internet explorer 2.0 html//",
	"-//microsoft//dtd internet explorer 2.0 tables//",
	"-//microsoft//dtd internet explorer 3.0 html strict//",
	"-//microsoft//dtd internet explorer 3.0 html//",
	"-//microsoft//dtd internet explorer 3.0 tables//",
	"-//netscape comm. corp.//dtd html//",
	"-//netscape comm. corp.//dtd strict html//",
	"-//o'reilly and associates//dtd html 2.0//",
	"-//o'reilly and associates//dtd html extended 1.0//",
	"-//o'reilly and associates//dtd html extended relaxed 1.0//",
	"-//sq//dtd html 2.0 hotmetal + extensions//",
	"-//softquad software//dtd hotmetal pro 6.0::19990601::extensions to html 4.0//",
	"-//softquad//dtd hotmetal pro 4.0::19971010::extensions to html 4.0//",
	"-//spyglass//dtd html 2.0 extended//",
	"-//sun microsystems corp.//dtd hotjava html//",
	"-//sun microsystems corp.//dtd hotjava strict html//",
	"-//w3c//dtd html 3 1995-03-24//",
	"-//w3c//dtd html 3.2 draft//",
	"-//w3c//dtd html 3.2 final//",
	"-//w3c//dtd html 3.2//",
	"-//w3c//dtd html 3.2s draft//",
	"-//w3c//dtd html 4.0 frameset//",
	"-//w3c//dtd html 4.0 transitional//",
	"-//w3c//dtd html experimental 19960712//",
	"-//w3c//dtd html experimental 970421//",
	"-//w3c//dtd w3 html//",
	"-//w3o//dtd w3 html 3.0//",
	"-//webtechs//dtd mozilla html 2.0//",
	"-//webtechs//dtd mozilla html//",
}
