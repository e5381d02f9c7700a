package spec

import (
	"strings"
)

type NodeType uint16

const (
	ElementNode NodeType = iota + 1
	AttrNode
	TextNode
	CDATASectionNode
	ProcessingInstructionNode
	CommentNode
	DocumentNode
	DocumentTypeNode
	DocumentFragmentNode
)

type Namespace string

const (
	Htmlns   Namespace = "http://www.w3.org/1999/xhtml"
	Mathmlns Namespace = "http://www.w3.org/1998/Math/MathML"
	Svgns    Namespace = "http://www.w3.org/2000/svg"
	Xlinkns  Namespace = "http://www.w3.org/1999/xlink"
	Xmlns    Namespace = "http://www.w3.org/XML/1998/namespace"
	Xmlnsns  Namespace = "http://www.w3.org/2000/xmlns/"
)

// https://dom.whatwg.org/#node
type Node struct {
	NodeType                                                        NodeType
	NodeName                                                        string
	OwnerDocument                                                   *Document
	ParentNode, FirstChild, LastChild, PreviousSibling, NextSibling *Node
	ChildNodes                                                      []*Node

	// Node types
	*Element
	*Attr
	*Text
	*ProcessingInstruction
	*Comment
	*Document
	*DocumentType
}

type Element struct {
	NamespaceURI Namespace
	Prefix       string
	LocalName    string
	Attributes   []*Attr
	FormOwner    *Node

	Script *HTMLScript
	Input  *HTMLInput

	// OnPop is the element's insertion callback, invoked when the parser
	// pops the element off its stack of open elements.
	OnPop func(*Node)
}

type Attr struct {
	Namespace Namespace
	Prefix    string
	LocalName string
	Value     string
}

// Name returns the attribute's qualified name.
func (a *Attr) Name() string {
	if a.Prefix == "" {
		return a.LocalName
	}
	return a.Prefix + ":" + a.LocalName
}

type CharacterData struct {
	Data string
}

// AppendData appends to the end of the data section.
// https://dom.whatwg.org/#dom-characterdata-appenddata
func (c *CharacterData) AppendData(data string) {
	c.Data += data
}

// https://dom.whatwg.org/#text
type Text struct {
	*CharacterData
}

// https://dom.whatwg.org/#interface-comment
type Comment struct {
	*CharacterData
}

// https://dom.whatwg.org/#processinginstruction
type ProcessingInstruction struct {
	Target string
	*CharacterData
}

// https://dom.whatwg.org/#documenttype
type DocumentType struct {
	Name     string
	PublicID string
	SystemID string
}

func NewDOMElement(od *Document, name string, namespace Namespace, optionals ...string) *Node {
	var prefix string
	if len(optionals) >= 1 {
		prefix = optionals[0]
	}
	n := &Node{
		NodeType:      ElementNode,
		NodeName:      name,
		OwnerDocument: od,
		Element: &Element{
			NamespaceURI: namespace,
			Prefix:       prefix,
			LocalName:    name,
		},
	}
	switch {
	case namespace == Htmlns && name == "script":
		n.Element.Script = &HTMLScript{Element: n}
	case namespace == Htmlns && name == "input":
		n.Element.Input = &HTMLInput{}
	}
	return n
}

func NewTextNode(od *Document, text string) *Node {
	return &Node{
		NodeType:      TextNode,
		NodeName:      "#text",
		OwnerDocument: od,
		Text:          &Text{&CharacterData{Data: text}},
	}
}

// NewComment returns a comment node with its data section filled.
func NewComment(od *Document, data string) *Node {
	return &Node{
		NodeType:      CommentNode,
		NodeName:      "#comment",
		OwnerDocument: od,
		Comment:       &Comment{&CharacterData{Data: data}},
	}
}

func NewProcessingInstructionNode(od *Document, target, data string) *Node {
	return &Node{
		NodeType:              ProcessingInstructionNode,
		NodeName:              target,
		OwnerDocument:         od,
		ProcessingInstruction: &ProcessingInstruction{Target: target, CharacterData: &CharacterData{Data: data}},
	}
}

func NewDocTypeNode(od *Document, name, pub, sys string) *Node {
	return &Node{
		NodeType:      DocumentTypeNode,
		NodeName:      name,
		OwnerDocument: od,
		DocumentType: &DocumentType{
			Name:     name,
			PublicID: pub,
			SystemID: sys,
		},
	}
}

// GetAttribute returns the value of the first attribute with the given
// local name.
func (n *Node) GetAttribute(localName string) (string, bool) {
	if n.Element == nil {
		return "", false
	}
	for _, a := range n.Element.Attributes {
		if a.LocalName == localName {
			return a.Value, true
		}
	}
	return "", false
}

// HasAttribute reports whether the element carries an attribute with the
// given local name.
func (n *Node) HasAttribute(localName string) bool {
	_, ok := n.GetAttribute(localName)
	return ok
}

// SetAttributeFromParser appends a parser-created attribute. The parser
// never produces duplicates within one tag, so no replacement happens
// here; value sanitization runs for input elements unless bracketed off.
func (n *Node) SetAttributeFromParser(a *Attr) {
	n.Element.Attributes = append(n.Element.Attributes, a)
	if n.Element.Input != nil && a.Namespace == "" && a.LocalName == "value" {
		n.Element.Input.setValueFromParser(a.Value)
	}
}

func (n *Node) HasChildNodes() bool {
	return len(n.ChildNodes) > 0
}

// RootNode walks to the root of the tree this node lives in.
func (n *Node) RootNode() *Node {
	var prev *Node
	for i := n; i != nil; i = i.ParentNode {
		prev = i
	}
	return prev
}

// InSameHomeSubtree reports whether both nodes share a tree root.
// https://html.spec.whatwg.org/multipage/#home-subtree
func (n *Node) InSameHomeSubtree(on *Node) bool {
	return n.RootNode() == on.RootNode()
}

// InsertBefore inserts on immediately before child. A nil child appends.
// https://dom.whatwg.org/#concept-node-insert
func (n *Node) InsertBefore(on, child *Node) *Node {
	if child == nil {
		return n.AppendChild(on)
	}
	on.RemoveSelf()
	for i := range n.ChildNodes {
		if n.ChildNodes[i] != child {
			continue
		}
		n.ChildNodes = append(n.ChildNodes, nil)
		copy(n.ChildNodes[i+1:], n.ChildNodes[i:])
		n.ChildNodes[i] = on
		on.ParentNode = n
		on.NextSibling = child
		on.PreviousSibling = child.PreviousSibling
		if child.PreviousSibling != nil {
			child.PreviousSibling.NextSibling = on
		}
		child.PreviousSibling = on
		if i == 0 {
			n.FirstChild = on
		}
		return on
	}
	return n.AppendChild(on)
}

// https://dom.whatwg.org/#concept-node-append
func (n *Node) AppendChild(on *Node) *Node {
	on.RemoveSelf()
	if n.LastChild != nil {
		on.PreviousSibling = n.LastChild
		n.LastChild.NextSibling = on
	} else {
		n.FirstChild = on
	}
	on.ParentNode = n
	n.LastChild = on
	n.ChildNodes = append(n.ChildNodes, on)
	return on
}

func (n *Node) RemoveChild(child *Node) *Node {
	for i := range n.ChildNodes {
		if n.ChildNodes[i] != child {
			continue
		}
		n.ChildNodes = append(n.ChildNodes[:i], n.ChildNodes[i+1:]...)
		if child.PreviousSibling != nil {
			child.PreviousSibling.NextSibling = child.NextSibling
		} else {
			n.FirstChild = child.NextSibling
		}
		if child.NextSibling != nil {
			child.NextSibling.PreviousSibling = child.PreviousSibling
		} else {
			n.LastChild = child.PreviousSibling
		}
		child.ParentNode = nil
		child.PreviousSibling = nil
		child.NextSibling = nil
		return child
	}
	return nil
}

// RemoveSelf detaches the node from its parent, if it has one.
func (n *Node) RemoveSelf() {
	if n.ParentNode != nil {
		n.ParentNode.RemoveChild(n)
	}
}

// ReparentChildren moves all of the node's children under newParent,
// preserving order.
func (n *Node) ReparentChildren(newParent *Node) {
	for n.FirstChild != nil {
		newParent.AppendChild(n.FirstChild)
	}
}

// Pop runs the node's insertion callback, if any. Invoked by the parser
// when the node is popped off the stack of open elements.
func (n *Node) Pop() {
	if n.Element != nil && n.Element.OnPop != nil {
		n.Element.OnPop(n)
	}
}

func serializeNodeType(node *Node, indent int) string {
	switch node.NodeType {
	case ElementNode:
		e := "<"
		switch node.Element.NamespaceURI {
		case Svgns:
			e += "svg "
		case Mathmlns:
			e += "math "
		}
		e += node.NodeName
		e += ">"
		spaces := "| "
		for i := 1; i < indent; i++ {
			spaces += "  "
		}
		for _, attr := range node.Element.Attributes {
			var ns string
			switch attr.Namespace {
			case Xmlnsns:
				ns = "xmlns "
			case Xmlns:
				ns = "xml "
			case Xlinkns:
				ns = "xlink "
			}
			e += "\n" + spaces + ns + attr.LocalName + "=\"" + attr.Value + "\""
		}
		return e
	case TextNode:
		return "\"" + node.Text.Data + "\""
	case CommentNode:
		return "<!-- " + node.Comment.Data + " -->"
	case ProcessingInstructionNode:
		return "<?" + node.ProcessingInstruction.Target + " " + node.ProcessingInstruction.Data + ">"
	case DocumentTypeNode:
		d := "<!DOCTYPE " + node.DocumentType.Name
		if len(node.DocumentType.PublicID) != 0 || len(node.DocumentType.SystemID) != 0 {
			d += " \"" + node.DocumentType.PublicID + "\" \"" + node.DocumentType.SystemID + "\""
		}
		d += ">"
		return d
	case DocumentNode:
		return "#document"
	default:
		return "#unknown"
	}
}

func (n *Node) serialize(indent int) string {
	ser := serializeNodeType(n, indent+1) + "\n"
	if n.NodeType != DocumentNode {
		spaces := "| "
		for i := 1; i < indent; i++ {
			spaces += "  "
		}
		ser = spaces + ser
	}
	for _, child := range n.ChildNodes {
		ser += child.serialize(indent + 1)
	}
	return ser
}

// String serializes the subtree in the html5lib tree-dump format, which
// keeps test expectations readable.
func (n *Node) String() string {
	return strings.TrimRight(n.serialize(0), "\n")
}
