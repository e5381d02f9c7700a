package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

type lexState uint

const (
	dataState lexState = iota
	tagOpenState
	endTagOpenState
	tagNameState
	beforeAttributeNameState
	attributeNameState
	afterAttributeNameState
	beforeAttributeValueState
	attributeValueDoubleQuotedState
	attributeValueSingleQuotedState
	attributeValueUnquotedState
	afterAttributeValueQuotedState
	selfClosingStartTagState
	markupDeclarationOpenState
	bogusCommentState
	commentStartState
	commentStartDashState
	commentState
	commentEndDashState
	commentEndState
	commentEndBangState
	doctypeState
	beforeDoctypeNameState
	doctypeNameState
	afterDoctypeNameState
	afterDoctypePublicKeywordState
	beforeDoctypePublicIdentifierState
	doctypePublicIdentifierDoubleQuotedState
	doctypePublicIdentifierSingleQuotedState
	afterDoctypePublicIdentifierState
	betweenDoctypePublicAndSystemIdentifiersState
	afterDoctypeSystemKeywordState
	beforeDoctypeSystemIdentifierState
	doctypeSystemIdentifierDoubleQuotedState
	doctypeSystemIdentifierSingleQuotedState
	afterDoctypeSystemIdentifierState
	bogusDoctypeState
	rawTextState
	rawTextLessThanSignState
	rawTextEndTagOpenState
	rawTextEndTagNameState
	plaintextState
	cdataSectionState
	cdataSectionBracketState
	cdataSectionEndState
)

type rawKind uint8

const (
	rawNone rawKind = iota
	rawText
	rcData
	scriptData
	plainText
)

// tokenDirective is the consumer's answer to one token: which lexical
// mode the following input should be read in, whether tokenization must
// pause for a script, and whether CDATA sections are currently legal
// (foreign content only).
type tokenDirective struct {
	raw        rawKind
	pause      bool
	allowCDATA bool
}

// tokenSink consumes tokens as the lexer produces them. Both the tree
// builder and the prefetch scanner implement it.
type tokenSink interface {
	process(t *Token) tokenDirective
}

// htmlLexer is an incremental HTML lexical engine. It holds all partial
// state across feed calls, so input may be split at arbitrary byte
// boundaries, and it can stop mid-chunk when the sink asks for a pause,
// handing back the unconsumed remainder.
type htmlLexer struct {
	sink tokenSink
	b    *TokenBuilder

	state        lexState
	isEndTag     bool
	rawKind      rawKind
	rawTag       string
	lastStartTag string
	allowCDATA   bool

	text    strings.Builder
	textRaw bool

	line         uint64
	pausePending bool
	ended        bool
}

func newHTMLLexer(sink tokenSink) *htmlLexer {
	return &htmlLexer{
		sink:  sink,
		b:     newTokenBuilder(),
		state: dataState,
		line:  1,
	}
}

// feed consumes as much of the queue as possible. It returns true if the
// sink requested a pause; the unconsumed remainder has then been pushed
// back onto the front of the queue.
func (l *htmlLexer) feed(q *BufferQueue) bool {
	for {
		chunk, ok := q.PopFront()
		if !ok {
			l.flushTextPartial()
			return false
		}
		remainder, paused := l.run(chunk)
		if paused {
			q.PushFront(remainder)
			return true
		}
	}
}

func (l *htmlLexer) run(chunk string) (string, bool) {
	i := 0
	for i < len(chunk) {
		r, size := utf8.DecodeRuneInString(chunk[i:])
		if l.step(r) {
			i += size
			if r == '\n' {
				l.line++
			}
		}
		if l.pausePending {
			l.pausePending = false
			return chunk[i:], true
		}
	}
	return "", false
}

// end signals permanent end of stream, flushing whatever token was in
// flight and emitting the end-of-file token.
func (l *htmlLexer) end() {
	if l.ended {
		return
	}
	l.ended = true
	switch l.state {
	case bogusCommentState, commentStartState, commentStartDashState, commentState,
		commentEndDashState, commentEndState, commentEndBangState:
		l.emit(l.b.CommentToken(l.line))
	case doctypeState, beforeDoctypeNameState, doctypeNameState, afterDoctypeNameState,
		afterDoctypePublicKeywordState, beforeDoctypePublicIdentifierState,
		doctypePublicIdentifierDoubleQuotedState, doctypePublicIdentifierSingleQuotedState,
		afterDoctypePublicIdentifierState, betweenDoctypePublicAndSystemIdentifiersState,
		afterDoctypeSystemKeywordState, beforeDoctypeSystemIdentifierState,
		doctypeSystemIdentifierDoubleQuotedState, doctypeSystemIdentifierSingleQuotedState,
		afterDoctypeSystemIdentifierState, bogusDoctypeState:
		l.b.EnableForceQuirks()
		l.emit(l.b.DocTypeToken(l.line))
	case rawTextEndTagOpenState, rawTextEndTagNameState:
		l.appendText('<')
		l.appendText('/')
		for _, r := range l.b.TempBuffer() {
			l.appendText(r)
		}
	case tagOpenState:
		l.appendText('<')
	}
	l.flushText()
	l.emitToken(l.b.EndOfFileToken())
}

// setRawMode places the lexer directly into a raw lexical state, as
// fragment parsing requires for context elements like textarea or
// script.
func (l *htmlLexer) setRawMode(kind rawKind, tag string) {
	switch kind {
	case rawNone:
	case plainText:
		l.setPlaintext()
	default:
		l.state = rawTextState
		l.rawKind = kind
		l.rawTag = tag
		l.textRaw = kind != rcData
	}
}

// setPlaintext forces raw-text lexing for the remainder of the stream.
func (l *htmlLexer) setPlaintext() {
	l.flushText()
	l.state = plaintextState
	l.rawKind = plainText
	l.textRaw = true
}

func (l *htmlLexer) parseError(msg string) {
	logrus.WithField("line", l.line).Debugf("parse error: %s", msg)
}

func (l *htmlLexer) appendText(r rune) {
	if r == 0 {
		r = '�'
	}
	l.text.WriteRune(r)
}

func (l *htmlLexer) flushText() {
	if l.text.Len() == 0 {
		return
	}
	data := l.text.String()
	l.text.Reset()
	if !l.textRaw {
		data = html.UnescapeString(data)
	}
	l.emitToken(l.b.CharacterToken(data, l.line))
}

// flushTextPartial flushes pending text at the end of a feed, but holds
// back a trailing candidate character reference so an entity split
// across chunk boundaries still decodes as one unit.
func (l *htmlLexer) flushTextPartial() {
	if l.text.Len() == 0 {
		return
	}
	if l.textRaw {
		l.flushText()
		return
	}
	data := l.text.String()
	keep := ""
	if i := strings.LastIndexByte(data, '&'); i >= 0 {
		tail := data[i:]
		if len(tail) < 32 && !strings.ContainsAny(tail[1:], "&; \t\n\f<") {
			keep = tail
			data = data[:i]
		}
	}
	l.text.Reset()
	l.text.WriteString(keep)
	if data != "" {
		l.emitToken(l.b.CharacterToken(html.UnescapeString(data), l.line))
	}
}

func (l *htmlLexer) emitToken(t *Token) {
	dir := l.sink.process(t)
	l.allowCDATA = dir.allowCDATA
	if dir.pause {
		l.pausePending = true
	}
	switch dir.raw {
	case rawText, scriptData:
		l.rawKind = dir.raw
		l.rawTag = t.TagName
		l.state = rawTextState
		l.textRaw = true
	case rcData:
		l.rawKind = rcData
		l.rawTag = t.TagName
		l.state = rawTextState
		l.textRaw = false
	case plainText:
		l.rawKind = plainText
		l.state = plaintextState
		l.textRaw = true
	}
}

func (l *htmlLexer) emit(t *Token) {
	l.flushText()
	l.emitToken(t)
}

func (l *htmlLexer) emitTag() {
	var t *Token
	if l.isEndTag {
		t = l.b.EndTagToken(l.line)
	} else {
		t = l.b.StartTagToken(l.line)
		l.lastStartTag = t.TagName
		for i := range t.Attributes {
			t.Attributes[i].Value = html.UnescapeString(t.Attributes[i].Value)
		}
	}
	l.isEndTag = false
	l.emit(t)
}

func isASCIIAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func toLower(r rune) rune {
	if isASCIIUpper(r) {
		return r + 0x20
	}
	return r
}

func isASCIIWhitespace(r rune) bool {
	switch r {
	case 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	default:
		return false
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) <= len(prefix) && strings.EqualFold(s, prefix[:len(s)])
}

// step processes one code point; it returns false when the code point
// must be reconsumed in the new state.
func (l *htmlLexer) step(r rune) bool {
	switch l.state {
	case dataState:
		switch r {
		case '<':
			l.flushText()
			l.state = tagOpenState
		default:
			l.appendText(r)
		}

	case tagOpenState:
		switch {
		case r == '!':
			l.b.ResetTempBuffer()
			l.state = markupDeclarationOpenState
		case r == '/':
			l.state = endTagOpenState
		case isASCIIAlpha(r):
			l.b.NewToken()
			l.isEndTag = false
			l.state = tagNameState
			return false
		case r == '?':
			l.parseError("unexpected-question-mark-instead-of-tag-name")
			l.b.NewToken()
			l.state = bogusCommentState
			return false
		default:
			l.parseError("invalid-first-character-of-tag-name")
			l.appendText('<')
			l.state = dataState
			return false
		}

	case endTagOpenState:
		switch {
		case isASCIIAlpha(r):
			l.b.NewToken()
			l.isEndTag = true
			l.state = tagNameState
			return false
		case r == '>':
			l.parseError("missing-end-tag-name")
			l.state = dataState
		default:
			l.parseError("invalid-first-character-of-tag-name")
			l.b.NewToken()
			l.state = bogusCommentState
			return false
		}

	case tagNameState:
		switch {
		case isASCIIWhitespace(r):
			l.state = beforeAttributeNameState
		case r == '/':
			l.state = selfClosingStartTagState
		case r == '>':
			l.state = dataState
			l.emitTag()
		case r == 0:
			l.b.WriteName('�')
		default:
			l.b.WriteName(toLower(r))
		}

	case beforeAttributeNameState:
		switch {
		case isASCIIWhitespace(r):
		case r == '/' || r == '>':
			l.state = afterAttributeNameState
			return false
		case r == '=':
			l.parseError("unexpected-equals-sign-before-attribute-name")
			l.b.WriteAttributeName('=')
			l.state = attributeNameState
		default:
			l.state = attributeNameState
			return false
		}

	case attributeNameState:
		switch {
		case isASCIIWhitespace(r) || r == '/' || r == '>':
			l.b.RemoveDuplicateAttributeName()
			l.state = afterAttributeNameState
			return false
		case r == '=':
			l.b.RemoveDuplicateAttributeName()
			l.state = beforeAttributeValueState
		case r == 0:
			l.b.WriteAttributeName('�')
		case r == '"' || r == '\'' || r == '<':
			l.parseError("unexpected-character-in-attribute-name")
			l.b.WriteAttributeName(r)
		default:
			l.b.WriteAttributeName(toLower(r))
		}

	case afterAttributeNameState:
		switch {
		case isASCIIWhitespace(r):
		case r == '/':
			l.b.CommitAttribute()
			l.state = selfClosingStartTagState
		case r == '=':
			l.state = beforeAttributeValueState
		case r == '>':
			l.b.CommitAttribute()
			l.state = dataState
			l.emitTag()
		default:
			l.b.CommitAttribute()
			l.state = attributeNameState
			return false
		}

	case beforeAttributeValueState:
		switch {
		case isASCIIWhitespace(r):
		case r == '"':
			l.state = attributeValueDoubleQuotedState
		case r == '\'':
			l.state = attributeValueSingleQuotedState
		case r == '>':
			l.parseError("missing-attribute-value")
			l.b.CommitAttribute()
			l.state = dataState
			l.emitTag()
		default:
			l.state = attributeValueUnquotedState
			return false
		}

	case attributeValueDoubleQuotedState:
		switch r {
		case '"':
			l.b.CommitAttribute()
			l.state = afterAttributeValueQuotedState
		case 0:
			l.b.WriteAttributeValue('�')
		default:
			l.b.WriteAttributeValue(r)
		}

	case attributeValueSingleQuotedState:
		switch r {
		case '\'':
			l.b.CommitAttribute()
			l.state = afterAttributeValueQuotedState
		case 0:
			l.b.WriteAttributeValue('�')
		default:
			l.b.WriteAttributeValue(r)
		}

	case attributeValueUnquotedState:
		switch {
		case isASCIIWhitespace(r):
			l.b.CommitAttribute()
			l.state = beforeAttributeNameState
		case r == '>':
			l.b.CommitAttribute()
			l.state = dataState
			l.emitTag()
		case r == 0:
			l.b.WriteAttributeValue('�')
		default:
			l.b.WriteAttributeValue(r)
		}

	case afterAttributeValueQuotedState:
		switch {
		case isASCIIWhitespace(r):
			l.state = beforeAttributeNameState
		case r == '/':
			l.state = selfClosingStartTagState
		case r == '>':
			l.state = dataState
			l.emitTag()
		default:
			l.parseError("missing-whitespace-between-attributes")
			l.state = beforeAttributeNameState
			return false
		}

	case selfClosingStartTagState:
		switch r {
		case '>':
			l.b.EnableSelfClosing()
			l.state = dataState
			l.emitTag()
		default:
			l.parseError("unexpected-solidus-in-tag")
			l.state = beforeAttributeNameState
			return false
		}

	case markupDeclarationOpenState:
		candidate := l.b.TempBuffer() + string(r)
		switch {
		case candidate == "--":
			l.b.NewToken()
			l.b.ResetTempBuffer()
			l.state = commentStartState
		case strings.EqualFold(candidate, "DOCTYPE"):
			l.b.ResetTempBuffer()
			l.state = doctypeState
		case candidate == "[CDATA[":
			l.b.ResetTempBuffer()
			if l.allowCDATA {
				l.state = cdataSectionState
			} else {
				l.parseError("cdata-in-html-content")
				l.b.NewToken()
				for _, c := range candidate {
					l.b.WriteData(c)
				}
				l.state = bogusCommentState
			}
		case hasPrefixFold(candidate, "DOCTYPE") || strings.HasPrefix("[CDATA[", candidate) || candidate == "-":
			l.b.WriteTempBuffer(r)
		default:
			l.parseError("incorrectly-opened-comment")
			buffered := l.b.TempBuffer()
			l.b.NewToken()
			for _, c := range buffered {
				l.b.WriteData(c)
			}
			l.b.ResetTempBuffer()
			l.state = bogusCommentState
			return false
		}

	case bogusCommentState:
		switch r {
		case '>':
			l.state = dataState
			l.emit(l.b.CommentToken(l.line))
		case 0:
			l.b.WriteData('�')
		default:
			l.b.WriteData(r)
		}

	case commentStartState:
		switch r {
		case '-':
			l.state = commentStartDashState
		case '>':
			l.parseError("abrupt-closing-of-empty-comment")
			l.state = dataState
			l.emit(l.b.CommentToken(l.line))
		default:
			l.state = commentState
			return false
		}

	case commentStartDashState:
		switch r {
		case '-':
			l.state = commentEndState
		case '>':
			l.parseError("abrupt-closing-of-empty-comment")
			l.state = dataState
			l.emit(l.b.CommentToken(l.line))
		default:
			l.b.WriteData('-')
			l.state = commentState
			return false
		}

	case commentState:
		switch r {
		case '-':
			l.state = commentEndDashState
		case 0:
			l.b.WriteData('�')
		default:
			l.b.WriteData(r)
		}

	case commentEndDashState:
		switch r {
		case '-':
			l.state = commentEndState
		default:
			l.b.WriteData('-')
			l.state = commentState
			return false
		}

	case commentEndState:
		switch r {
		case '>':
			l.state = dataState
			l.emit(l.b.CommentToken(l.line))
		case '!':
			l.state = commentEndBangState
		case '-':
			l.b.WriteData('-')
		default:
			l.b.WriteData('-')
			l.b.WriteData('-')
			l.state = commentState
			return false
		}

	case commentEndBangState:
		switch r {
		case '-':
			l.b.WriteData('-')
			l.b.WriteData('-')
			l.b.WriteData('!')
			l.state = commentEndDashState
		case '>':
			l.parseError("incorrectly-closed-comment")
			l.state = dataState
			l.emit(l.b.CommentToken(l.line))
		default:
			l.b.WriteData('-')
			l.b.WriteData('-')
			l.b.WriteData('!')
			l.state = commentState
			return false
		}

	case doctypeState:
		switch {
		case isASCIIWhitespace(r):
			l.state = beforeDoctypeNameState
		default:
			l.parseError("missing-whitespace-before-doctype-name")
			l.state = beforeDoctypeNameState
			return false
		}

	case beforeDoctypeNameState:
		switch {
		case isASCIIWhitespace(r):
		case r == '>':
			l.parseError("missing-doctype-name")
			l.b.NewToken()
			l.b.EnableForceQuirks()
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		case r == 0:
			l.b.NewToken()
			l.b.WriteName('�')
			l.state = doctypeNameState
		default:
			l.b.NewToken()
			l.b.WriteName(toLower(r))
			l.state = doctypeNameState
		}

	case doctypeNameState:
		switch {
		case isASCIIWhitespace(r):
			l.b.ResetTempBuffer()
			l.state = afterDoctypeNameState
		case r == '>':
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		case r == 0:
			l.b.WriteName('�')
		default:
			l.b.WriteName(toLower(r))
		}

	case afterDoctypeNameState:
		buffered := l.b.TempBuffer()
		switch {
		case isASCIIWhitespace(r) && buffered == "":
		case r == '>' && buffered == "":
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		default:
			candidate := buffered + string(r)
			switch {
			case strings.EqualFold(candidate, "PUBLIC"):
				l.b.ResetTempBuffer()
				l.state = afterDoctypePublicKeywordState
			case strings.EqualFold(candidate, "SYSTEM"):
				l.b.ResetTempBuffer()
				l.state = afterDoctypeSystemKeywordState
			case hasPrefixFold(candidate, "PUBLIC") || hasPrefixFold(candidate, "SYSTEM"):
				l.b.WriteTempBuffer(r)
			default:
				l.parseError("invalid-character-sequence-after-doctype-name")
				l.b.ResetTempBuffer()
				l.b.EnableForceQuirks()
				l.state = bogusDoctypeState
				return false
			}
		}

	case afterDoctypePublicKeywordState:
		switch {
		case isASCIIWhitespace(r):
			l.state = beforeDoctypePublicIdentifierState
		case r == '"':
			l.parseError("missing-whitespace-after-doctype-public-keyword")
			l.b.ResetPublicIdentifier()
			l.state = doctypePublicIdentifierDoubleQuotedState
		case r == '\'':
			l.parseError("missing-whitespace-after-doctype-public-keyword")
			l.b.ResetPublicIdentifier()
			l.state = doctypePublicIdentifierSingleQuotedState
		case r == '>':
			l.parseError("missing-doctype-public-identifier")
			l.b.EnableForceQuirks()
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		default:
			l.parseError("missing-quote-before-doctype-public-identifier")
			l.b.EnableForceQuirks()
			l.state = bogusDoctypeState
			return false
		}

	case beforeDoctypePublicIdentifierState:
		switch {
		case isASCIIWhitespace(r):
		case r == '"':
			l.b.ResetPublicIdentifier()
			l.state = doctypePublicIdentifierDoubleQuotedState
		case r == '\'':
			l.b.ResetPublicIdentifier()
			l.state = doctypePublicIdentifierSingleQuotedState
		case r == '>':
			l.parseError("missing-doctype-public-identifier")
			l.b.EnableForceQuirks()
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		default:
			l.parseError("missing-quote-before-doctype-public-identifier")
			l.b.EnableForceQuirks()
			l.state = bogusDoctypeState
			return false
		}

	case doctypePublicIdentifierDoubleQuotedState, doctypePublicIdentifierSingleQuotedState:
		quote := rune('"')
		if l.state == doctypePublicIdentifierSingleQuotedState {
			quote = '\''
		}
		switch r {
		case quote:
			l.state = afterDoctypePublicIdentifierState
		case 0:
			l.b.WritePublicIdentifier('�')
		case '>':
			l.parseError("abrupt-doctype-public-identifier")
			l.b.EnableForceQuirks()
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		default:
			l.b.WritePublicIdentifier(r)
		}

	case afterDoctypePublicIdentifierState:
		switch {
		case isASCIIWhitespace(r):
			l.state = betweenDoctypePublicAndSystemIdentifiersState
		case r == '>':
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		case r == '"':
			l.parseError("missing-whitespace-between-doctype-public-and-system-identifiers")
			l.b.ResetSystemIdentifier()
			l.state = doctypeSystemIdentifierDoubleQuotedState
		case r == '\'':
			l.parseError("missing-whitespace-between-doctype-public-and-system-identifiers")
			l.b.ResetSystemIdentifier()
			l.state = doctypeSystemIdentifierSingleQuotedState
		default:
			l.parseError("missing-quote-before-doctype-system-identifier")
			l.b.EnableForceQuirks()
			l.state = bogusDoctypeState
			return false
		}

	case betweenDoctypePublicAndSystemIdentifiersState:
		switch {
		case isASCIIWhitespace(r):
		case r == '>':
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		case r == '"':
			l.b.ResetSystemIdentifier()
			l.state = doctypeSystemIdentifierDoubleQuotedState
		case r == '\'':
			l.b.ResetSystemIdentifier()
			l.state = doctypeSystemIdentifierSingleQuotedState
		default:
			l.parseError("missing-quote-before-doctype-system-identifier")
			l.b.EnableForceQuirks()
			l.state = bogusDoctypeState
			return false
		}

	case afterDoctypeSystemKeywordState:
		switch {
		case isASCIIWhitespace(r):
			l.state = beforeDoctypeSystemIdentifierState
		case r == '"':
			l.parseError("missing-whitespace-after-doctype-system-keyword")
			l.b.ResetSystemIdentifier()
			l.state = doctypeSystemIdentifierDoubleQuotedState
		case r == '\'':
			l.parseError("missing-whitespace-after-doctype-system-keyword")
			l.b.ResetSystemIdentifier()
			l.state = doctypeSystemIdentifierSingleQuotedState
		case r == '>':
			l.parseError("missing-doctype-system-identifier")
			l.b.EnableForceQuirks()
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		default:
			l.parseError("missing-quote-before-doctype-system-identifier")
			l.b.EnableForceQuirks()
			l.state = bogusDoctypeState
			return false
		}

	case beforeDoctypeSystemIdentifierState:
		switch {
		case isASCIIWhitespace(r):
		case r == '"':
			l.b.ResetSystemIdentifier()
			l.state = doctypeSystemIdentifierDoubleQuotedState
		case r == '\'':
			l.b.ResetSystemIdentifier()
			l.state = doctypeSystemIdentifierSingleQuotedState
		case r == '>':
			l.parseError("missing-doctype-system-identifier")
			l.b.EnableForceQuirks()
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		default:
			l.parseError("missing-quote-before-doctype-system-identifier")
			l.b.EnableForceQuirks()
			l.state = bogusDoctypeState
			return false
		}

	case doctypeSystemIdentifierDoubleQuotedState, doctypeSystemIdentifierSingleQuotedState:
		quote := rune('"')
		if l.state == doctypeSystemIdentifierSingleQuotedState {
			quote = '\''
		}
		switch r {
		case quote:
			l.state = afterDoctypeSystemIdentifierState
		case 0:
			l.b.WriteSystemIdentifier('�')
		case '>':
			l.parseError("abrupt-doctype-system-identifier")
			l.b.EnableForceQuirks()
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		default:
			l.b.WriteSystemIdentifier(r)
		}

	case afterDoctypeSystemIdentifierState:
		switch {
		case isASCIIWhitespace(r):
		case r == '>':
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		default:
			l.parseError("unexpected-character-after-doctype-system-identifier")
			l.state = bogusDoctypeState
			return false
		}

	case bogusDoctypeState:
		switch r {
		case '>':
			l.state = dataState
			l.emit(l.b.DocTypeToken(l.line))
		}

	case rawTextState:
		switch r {
		case '<':
			l.state = rawTextLessThanSignState
		default:
			l.appendText(r)
		}

	case rawTextLessThanSignState:
		switch r {
		case '/':
			l.b.ResetTempBuffer()
			l.state = rawTextEndTagOpenState
		default:
			l.appendText('<')
			l.state = rawTextState
			return false
		}

	case rawTextEndTagOpenState:
		switch {
		case isASCIIAlpha(r):
			l.state = rawTextEndTagNameState
			return false
		default:
			l.appendText('<')
			l.appendText('/')
			l.state = rawTextState
			return false
		}

	case rawTextEndTagNameState:
		appropriate := strings.ToLower(l.b.TempBuffer()) == l.rawTag
		switch {
		case isASCIIAlpha(r):
			l.b.WriteTempBuffer(r)
		case isASCIIWhitespace(r) && appropriate:
			l.beginRawEndTag()
			l.state = beforeAttributeNameState
		case r == '/' && appropriate:
			l.beginRawEndTag()
			l.state = selfClosingStartTagState
		case r == '>' && appropriate:
			l.beginRawEndTag()
			l.state = dataState
			l.emitTag()
		default:
			l.appendText('<')
			l.appendText('/')
			for _, c := range l.b.TempBuffer() {
				l.appendText(c)
			}
			l.state = rawTextState
			return false
		}

	case plaintextState:
		l.appendText(r)

	case cdataSectionState:
		switch r {
		case ']':
			l.state = cdataSectionBracketState
		default:
			l.textRaw = true
			l.appendText(r)
		}

	case cdataSectionBracketState:
		switch r {
		case ']':
			l.state = cdataSectionEndState
		default:
			l.appendText(']')
			l.state = cdataSectionState
			return false
		}

	case cdataSectionEndState:
		switch r {
		case ']':
			l.appendText(']')
		case '>':
			l.flushText()
			l.textRaw = false
			l.state = dataState
		default:
			l.appendText(']')
			l.appendText(']')
			l.state = cdataSectionState
			return false
		}
	}

	return true
}

// beginRawEndTag moves the buffered end tag name into the token builder.
func (l *htmlLexer) beginRawEndTag() {
	// The buffered content is still raw; flush it before leaving raw
	// mode so it escapes entity decoding.
	l.flushText()
	l.rawKind = rawNone
	l.textRaw = false
	l.b.NewToken()
	l.isEndTag = true
	for _, c := range strings.ToLower(l.b.TempBuffer()) {
		l.b.WriteName(c)
	}
	l.b.ResetTempBuffer()
}
