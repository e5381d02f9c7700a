package parser

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/heathj/webstream/parser/spec"
	"github.com/heathj/webstream/parser/webidl"
)

type NetworkErrorKind uint8

const (
	NetworkErrorOther NetworkErrorKind = iota
	NetworkErrorSSLValidation
	NetworkErrorInternal
	NetworkErrorCrash
)

// NetworkError classifies a failed fetch. The first three kinds get a
// built-in error document in place of the real body; everything else is
// logged and otherwise ignored.
type NetworkError struct {
	Kind      NetworkErrorKind
	Reason    string
	CertBytes []byte
	Details   string
}

func (e *NetworkError) Error() string {
	return e.Reason
}

// Metadata is the response header information delivered once, before
// any body chunks.
type Metadata struct {
	FinalURL    string
	ContentType string
	Headers     http.Header
	Status      int
}

// ResourceTiming accumulates fetch timing observations relevant to the
// navigation entry.
type ResourceTiming struct {
	RedirectCount int
}

// privilegedSecret is a per-process value substituted into the bad
// certificate page so its override form can prove it came from us.
var privilegedSecret = rand.Uint32()

const badCertPage = `<!DOCTYPE html>
<html>
<head><title>Certificate error</title></head>
<body>
<h1>This site's certificate could not be validated</h1>
<p id="reason">${reason}</p>
<form action="about:certerror">
<input type="hidden" name="secret" value="${secret}">
<input type="hidden" name="bytes" value="${bytes}">
<input type="submit" value="Proceed anyway">
</form>
</body>
</html>`

const netErrorPage = `<!DOCTYPE html>
<html>
<head><title>Page could not be loaded</title></head>
<body>
<h1>Could not load page</h1>
<p id="reason">${reason}</p>
</body>
</html>`

const crashPage = `<!DOCTYPE html>
<html>
<head><title>Tab crashed</title></head>
<body>
<h1>This tab has crashed</h1>
<p id="details">${details}</p>
</body>
</html>`

// ParserContext drives a Parser from a streaming fetch response
// addressed to a document-owning context: metadata once, then body
// chunks, then exactly one completion.
type ParserContext struct {
	// parser is resolved from the context when headers arrive.
	parser *Parser
	// isSynthesizedDocument marks responses whose body is replaced by a
	// built-in page; their real body chunks are dropped.
	isSynthesizedDocument bool
	id                    string
	url                   string
	resourceTiming        ResourceTiming
	pushedEntryIndex      int

	// headersAvailable activates and returns the parser for the owning
	// context once response metadata is known, or nil to stop.
	headersAvailable func(id string, metadata *Metadata) *Parser
}

func NewParserContext(id, url string, headersAvailable func(id string, metadata *Metadata) *Parser) *ParserContext {
	return &ParserContext{
		id:               id,
		url:              url,
		pushedEntryIndex: -1,
		headersAvailable: headersAvailable,
	}
}

func (ctx *ParserContext) ResourceTiming() *ResourceTiming {
	return &ctx.resourceTiming
}

// ProcessResponse handles response metadata arrival, dispatching on the
// MIME type and synthesizing replacement documents where needed.
func (ctx *ParserContext) ProcessResponse(metadata *Metadata, netErr *NetworkError) {
	if netErr != nil {
		switch netErr.Kind {
		case NetworkErrorSSLValidation, NetworkErrorInternal, NetworkErrorCrash:
			metadata = &Metadata{FinalURL: ctx.url, ContentType: "text/html"}
		default:
			metadata = nil
		}
	}

	// https://www.w3.org/TR/CSP/#initialize-document-csp
	var cspList []string
	if metadata != nil && metadata.Headers != nil {
		for _, value := range metadata.Headers.Values("Content-Security-Policy") {
			// A header with invalid text is silently skipped.
			if !utf8.ValidString(value) {
				continue
			}
			cspList = append(cspList, value)
		}
	}

	parser := ctx.headersAvailable(ctx.id, metadata)
	if parser == nil || parser.aborted {
		return
	}

	parser.document.SetCSPList(cspList)
	ctx.parser = parser
	ctx.submitResourceTiming()

	if metadata == nil || metadata.ContentType == "" {
		// No content-type header and no content sniffing; the body is
		// handed to the HTML tokenizer as-is.
		return
	}
	mediaType, _, err := mime.ParseMediaType(metadata.ContentType)
	if err != nil {
		return
	}
	top, sub, suffix := splitMIME(mediaType)

	switch {
	case top == "image":
		ctx.isSynthesizedDocument = true
		parser.pushStringInputChunk("<html><body></body></html>")
		parser.parseSync()

		body := parser.document.Body()
		img := spec.NewDOMElement(parser.document, "img", spec.Htmlns)
		img.SetAttributeFromParser(&spec.Attr{
			LocalName: "src",
			Value:     string(webidl.USVString(ctx.url)),
		})
		body.AppendChild(img)
	case top == "text" && sub == "plain":
		// https://html.spec.whatwg.org/multipage/#read-text
		parser.pushStringInputChunk("<pre>\n")
		parser.parseSync()
		parser.tokenizer.setPlaintextState()
	case top == "text" && sub == "html":
		if netErr == nil {
			return
		}
		switch netErr.Kind {
		case NetworkErrorSSLValidation:
			ctx.isSynthesizedDocument = true
			page := badCertPage
			page = strings.ReplaceAll(page, "${reason}", netErr.Reason)
			encoded := base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString(netErr.CertBytes)
			page = strings.ReplaceAll(page, "${bytes}", encoded)
			page = strings.ReplaceAll(page, "${secret}", fmt.Sprint(privilegedSecret))
			parser.pushStringInputChunk(page)
			parser.parseSync()
		case NetworkErrorInternal:
			ctx.isSynthesizedDocument = true
			page := strings.ReplaceAll(netErrorPage, "${reason}", netErr.Reason)
			parser.pushStringInputChunk(page)
			parser.parseSync()
		case NetworkErrorCrash:
			ctx.isSynthesizedDocument = true
			page := strings.ReplaceAll(crashPage, "${details}", netErr.Details)
			parser.pushStringInputChunk(page)
			parser.parseSync()
		}
	case top == "text" && sub == "xml",
		top == "application" && sub == "xml",
		top == "application" && sub == "json",
		top == "application" && sub == "xhtml" && suffix == "xml":
		// Parsed by the XML tokenizer when constructed as XML; no
		// special handling here.
	default:
		// Warning page for unknown mime types.
		ctx.isSynthesizedDocument = true
		page := fmt.Sprintf(
			"<html><body><p>Unknown content type (%s/%s).</p></body></html>",
			top, sub,
		)
		parser.pushStringInputChunk(page)
		parser.parseSync()
	}
}

// ProcessResponseChunk handles one body chunk.
func (ctx *ParserContext) ProcessResponseChunk(payload []byte) {
	if ctx.isSynthesizedDocument {
		return
	}
	parser := ctx.parser
	if parser == nil || parser.aborted {
		return
	}
	parser.parseBytesChunk(payload)
}

// ProcessResponseEOF handles fetch completion, successful or not.
func (ctx *ParserContext) ProcessResponseEOF(netErr *NetworkError) {
	parser := ctx.parser
	if parser == nil || parser.aborted {
		return
	}

	if netErr != nil {
		logrus.WithFields(logrus.Fields{
			"url": ctx.url,
		}).Debugf("failed to load page: %v", netErr)
	}

	parser.document.SetRedirectCount(ctx.resourceTiming.RedirectCount)

	parser.lastChunkReceived = true
	if !parser.suspended {
		parser.parseSync()
	}

	if ctx.pushedEntryIndex >= 0 {
		parser.document.UpdateNavigationEntry(ctx.pushedEntryIndex)
	}
}

func (ctx *ParserContext) submitResourceTiming() {
	if ctx.parser == nil || ctx.parser.aborted {
		return
	}
	ctx.pushedEntryIndex = ctx.parser.document.QueueNavigationEntry()
}

// splitMIME breaks a media type into top-level type, subtype, and
// structured-syntax suffix ("application/xhtml+xml" -> application,
// xhtml, xml).
func splitMIME(mediaType string) (string, string, string) {
	top, sub, ok := strings.Cut(mediaType, "/")
	if !ok {
		return mediaType, "", ""
	}
	if base, suffix, ok := strings.Cut(sub, "+"); ok {
		return top, base, suffix
	}
	return top, sub, ""
}
