package spec

import "strings"

// ScriptResult carries the outcome of fetching/compiling a script back
// to the parser's resume path.
type ScriptResult struct {
	Source string
	Err    error
}

// HTMLScript is the script-element collaborator. Prepare and Execute may
// both reenter the parser through its write path.
// https://html.spec.whatwg.org/multipage/#htmlscriptelement
type HTMLScript struct {
	Element        *Node
	AlreadyStarted bool

	// OnPrepare implements the "prepare a script" steps; it may run the
	// script synchronously or mark it parser-blocking on the document.
	OnPrepare func(*HTMLScript)
	// OnExecute runs previously fetched source.
	OnExecute func(*HTMLScript, ScriptResult)
}

// Prepare runs the script's prepare steps.
// https://html.spec.whatwg.org/multipage/#prepare-a-script
func (s *HTMLScript) Prepare() {
	if s.AlreadyStarted {
		return
	}
	if s.OnPrepare != nil {
		s.OnPrepare(s)
	}
}

// Execute runs the script with the given fetch result.
func (s *HTMLScript) Execute(result ScriptResult) {
	if s.OnExecute != nil {
		s.OnExecute(s, result)
	}
}

// Src returns the script's src attribute, if any.
func (s *HTMLScript) Src() (string, bool) {
	return s.Element.GetAttribute("src")
}

// HTMLInput carries the input-element state the parser interacts with:
// the value and its sanitization bracketing.
type HTMLInput struct {
	Value string

	sanitizationDisabled bool
	SanitizeCount        int
}

// DisableSanitization suspends value sanitization while the parser
// applies content attributes.
func (i *HTMLInput) DisableSanitization() {
	i.sanitizationDisabled = true
}

// EnableSanitization reenables sanitization and runs it once, whether or
// not a value attribute was present.
// https://html.spec.whatwg.org/multipage/#value-sanitization-algorithm
func (i *HTMLInput) EnableSanitization() {
	i.sanitizationDisabled = false
	i.sanitize()
}

func (i *HTMLInput) setValueFromParser(value string) {
	i.Value = value
	if !i.sanitizationDisabled {
		i.sanitize()
	}
}

func (i *HTMLInput) sanitize() {
	i.SanitizeCount++
	i.Value = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, i.Value)
}

var formAssociable = map[string]bool{
	"button":   true,
	"fieldset": true,
	"input":    true,
	"object":   true,
	"output":   true,
	"select":   true,
	"textarea": true,
	"img":      true,
}

// IsFormAssociable reports whether the element can have a form owner.
// https://html.spec.whatwg.org/multipage/#form-associated-element
func (n *Node) IsFormAssociable() bool {
	return n.Element != nil && n.Element.NamespaceURI == Htmlns && formAssociable[n.Element.LocalName]
}

// SetFormOwnerFromParser links a form-associable control to its owning
// form element.
func (n *Node) SetFormOwnerFromParser(form *Node) {
	n.Element.FormOwner = form
}
