package parser

import (
	"strings"
)

type tokenType uint

const (
	characterToken tokenType = iota
	startTagToken
	endTagToken
	endOfFileToken
	commentToken
	docTypeToken
)

const missing string = "MISSING"

// TokenAttr is one parsed attribute. Document order is preserved; it is
// observable through attribute application during element creation.
type TokenAttr struct {
	Name  string
	Value string
}

// Token is a concrete token that is ready to be emitted.
type Token struct {
	TokenType        tokenType
	Attributes       []TokenAttr
	TagName          string
	PublicIdentifier string
	SystemIdentifier string
	ForceQuirks      bool
	SelfClosing      bool
	Data             string
	Line             uint64
}

// GetAttribute returns the value of the named attribute.
func (t *Token) GetAttribute(name string) (string, bool) {
	for _, a := range t.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// TokenBuilder builds tokens up piecewise during tokenization.
type TokenBuilder struct {
	attributes     []TokenAttr
	seenAttrs      map[string]bool
	attributeKey   strings.Builder
	attributeValue strings.Builder
	name           strings.Builder
	data           strings.Builder
	tempBuffer     strings.Builder
	publicID       strings.Builder
	systemID       strings.Builder
	selfClosing    bool
	forceQuirks    bool
	removeNextAttr bool
}

func newTokenBuilder() *TokenBuilder {
	return &TokenBuilder{seenAttrs: map[string]bool{}}
}

// NewToken clears all the builders and attributes for the next token.
// The temp buffer survives; the lexer resets it explicitly.
func (t *TokenBuilder) NewToken() {
	t.attributes = nil
	t.seenAttrs = map[string]bool{}
	t.attributeKey.Reset()
	t.attributeValue.Reset()
	// default state for public and system id is "MISSING"
	t.publicID.Reset()
	t.systemID.Reset()
	t.publicID.WriteString(missing)
	t.systemID.WriteString(missing)
	t.data.Reset()
	t.name.Reset()
	t.selfClosing = false
	t.forceQuirks = false
	t.removeNextAttr = false
}

// EnableSelfClosing changes the self-closing flag to "set".
func (t *TokenBuilder) EnableSelfClosing() {
	t.selfClosing = true
}

// EnableForceQuirks changes the force-quirks flag to "set".
func (t *TokenBuilder) EnableForceQuirks() {
	t.forceQuirks = true
}

// ResetPublicIdentifier switches the public identifier from "MISSING"
// to present-but-empty.
func (t *TokenBuilder) ResetPublicIdentifier() {
	t.publicID.Reset()
}

// ResetSystemIdentifier switches the system identifier from "MISSING"
// to present-but-empty.
func (t *TokenBuilder) ResetSystemIdentifier() {
	t.systemID.Reset()
}

func (t *TokenBuilder) WritePublicIdentifier(r rune) {
	t.publicID.WriteRune(r)
}

func (t *TokenBuilder) WriteSystemIdentifier(r rune) {
	t.systemID.WriteRune(r)
}

// WriteAttributeName appends a character to the current attribute's name.
func (t *TokenBuilder) WriteAttributeName(r rune) {
	t.attributeKey.WriteRune(r)
}

// WriteData appends a character to the current data section.
func (t *TokenBuilder) WriteData(r rune) {
	t.data.WriteRune(r)
}

// WriteAttributeValue appends a character to the current attribute's
// value.
func (t *TokenBuilder) WriteAttributeValue(r rune) {
	t.attributeValue.WriteRune(r)
}

// RemoveDuplicateAttributeName checks whether the current name was
// already committed; if so the attribute in progress is dropped on
// commit.
func (t *TokenBuilder) RemoveDuplicateAttributeName() bool {
	if t.seenAttrs[t.attributeKey.String()] {
		t.removeNextAttr = true
		return true
	}
	return false
}

// WriteName appends a character to the current tag or doctype name.
func (t *TokenBuilder) WriteName(r rune) {
	t.name.WriteRune(r)
}

// CommitAttribute ends the creation of a key/value pair by copying the
// name and value into the attribute list and clearing both builders.
func (t *TokenBuilder) CommitAttribute() {
	if !t.removeNextAttr {
		k := t.attributeKey.String()
		v := t.attributeValue.String()
		if k != "" {
			t.attributes = append(t.attributes, TokenAttr{Name: k, Value: v})
			t.seenAttrs[k] = true
		}
	}
	t.attributeKey.Reset()
	t.attributeValue.Reset()
	t.removeNextAttr = false
}

// WriteTempBuffer appends a character to the temporary buffer.
func (t *TokenBuilder) WriteTempBuffer(r rune) {
	t.tempBuffer.WriteRune(r)
}

// ResetTempBuffer clears the temporary buffer for the next state that
// needs it.
func (t *TokenBuilder) ResetTempBuffer() {
	t.tempBuffer.Reset()
}

// TempBuffer returns the current buffer contents.
func (t *TokenBuilder) TempBuffer() string {
	return t.tempBuffer.String()
}

// StartTagToken creates a start tag token from the builder contents.
func (t *TokenBuilder) StartTagToken(line uint64) *Token {
	return &Token{
		TokenType:   startTagToken,
		TagName:     t.name.String(),
		Attributes:  t.attributes,
		SelfClosing: t.selfClosing,
		Line:        line,
	}
}

// EndTagToken creates an end tag token from the builder contents.
func (t *TokenBuilder) EndTagToken(line uint64) *Token {
	return &Token{
		TokenType: endTagToken,
		TagName:   t.name.String(),
		Line:      line,
	}
}

// CharacterToken creates a character token holding a text run.
func (t *TokenBuilder) CharacterToken(data string, line uint64) *Token {
	return &Token{
		TokenType: characterToken,
		Data:      data,
		Line:      line,
	}
}

// EndOfFileToken creates an end of file token.
func (t *TokenBuilder) EndOfFileToken() *Token {
	return &Token{TokenType: endOfFileToken}
}

// CommentToken creates a comment token from the builder contents.
func (t *TokenBuilder) CommentToken(line uint64) *Token {
	return &Token{
		TokenType: commentToken,
		Data:      t.data.String(),
		Line:      line,
	}
}

// DocTypeToken creates a doctype token from the builder contents.
func (t *TokenBuilder) DocTypeToken(line uint64) *Token {
	return &Token{
		TokenType:        docTypeToken,
		TagName:          t.name.String(),
		ForceQuirks:      t.forceQuirks,
		PublicIdentifier: t.publicID.String(),
		SystemIdentifier: t.systemID.String(),
		Line:             line,
	}
}
