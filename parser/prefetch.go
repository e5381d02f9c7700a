package parser

import (
	"net/url"
	"strings"

	"github.com/heathj/webstream/parser/spec"
)

// PrefetchScanner is an independent lexical pass over network input that
// surfaces fetchable resource references before the authoritative parse
// reaches them. It never suspends and never mutates the tree; wasted
// work when a script rewrites the document is an accepted inefficiency.
type PrefetchScanner struct {
	document *spec.Document
	base     *url.URL
	lexer    *htmlLexer
}

func newPrefetchScanner(document *spec.Document, documentURL string) *PrefetchScanner {
	s := &PrefetchScanner{document: document}
	if u, err := url.Parse(documentURL); err == nil {
		s.base = u
	}
	s.lexer = newHTMLLexer(s)
	return s
}

// scan consumes every chunk on the queue.
func (s *PrefetchScanner) scan(q *BufferQueue) {
	s.lexer.feed(q)
}

// process implements tokenSink. Only start tags matter; raw-mode
// directives keep script and style bodies from being rescanned as
// markup.
func (s *PrefetchScanner) process(t *Token) tokenDirective {
	if t.TokenType != startTagToken {
		return tokenDirective{}
	}
	switch t.TagName {
	case "script":
		if src, ok := t.GetAttribute("src"); ok && src != "" {
			s.hint(src, spec.ResourceScript)
		}
		return tokenDirective{raw: scriptData}
	case "style":
		return tokenDirective{raw: rawText}
	case "title", "textarea":
		return tokenDirective{raw: rcData}
	case "img":
		if src, ok := t.GetAttribute("src"); ok && src != "" {
			s.hint(src, spec.ResourceImage)
		}
	case "input":
		if typ, ok := t.GetAttribute("type"); ok && strings.EqualFold(typ, "image") {
			if src, ok := t.GetAttribute("src"); ok && src != "" {
				s.hint(src, spec.ResourceImage)
			}
		}
	case "link":
		href, ok := t.GetAttribute("href")
		if !ok || href == "" {
			break
		}
		switch rel, _ := t.GetAttribute("rel"); strings.ToLower(rel) {
		case "stylesheet":
			s.hint(href, spec.ResourceStyle)
		case "preload", "prefetch":
			s.hint(href, spec.ResourceFetch)
		}
	case "base":
		if href, ok := t.GetAttribute("href"); ok && s.base != nil {
			if u, err := s.base.Parse(href); err == nil {
				s.base = u
			}
		}
	}
	return tokenDirective{}
}

func (s *PrefetchScanner) hint(ref string, kind spec.ResourceKind) {
	resolved := ref
	if s.base != nil {
		if u, err := s.base.Parse(ref); err == nil {
			resolved = u.String()
		}
	}
	s.document.Prefetch(spec.ResourceHint{URL: resolved, Kind: kind})
}
