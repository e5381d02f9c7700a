package parser

import (
	"testing"

	"github.com/heathj/webstream/parser/spec"
)

func TestCustomElementConstructionBracketing(t *testing.T) {
	document := spec.NewDocument(testURL)
	constructed := 0
	document.DefineCustomElement(&spec.CustomElementDefinition{
		Name:      "x-widget",
		LocalName: "x-widget",
		Construct: func(d *spec.Document, n *spec.Node) {
			constructed++
			if d.ElementQueueDepth() != 1 {
				t.Errorf("Expected element queue depth 1 during construction, got %d", d.ElementQueueDepth())
			}
			if d.ThrowOnDynamicMarkupInsertionCounter() != 1 {
				t.Errorf("Expected throw counter 1 during construction, got %d", d.ThrowOnDynamicMarkupInsertionCounter())
			}
			if d.MicrotaskCheckpoints == 0 {
				t.Error("Expected a microtask checkpoint before construction")
			}
		},
	})

	p := ParseHTMLDocument(document, nil, testURL)
	p.parseStringChunk("<!DOCTYPE html><x-widget></x-widget>")
	p.lastChunkReceived = true
	p.parseSync()

	if constructed != 1 {
		t.Errorf("Expected 1 construction, got %d", constructed)
	}
	if document.ElementQueueDepth() != 0 {
		t.Errorf("Expected element queue depth 0 after parsing, got %d", document.ElementQueueDepth())
	}
	if document.ThrowOnDynamicMarkupInsertionCounter() != 0 {
		t.Errorf("Expected throw counter 0 after parsing, got %d", document.ThrowOnDynamicMarkupInsertionCounter())
	}
}

func TestCustomElementIsOverride(t *testing.T) {
	document := spec.NewDocument(testURL)
	constructed := 0
	document.DefineCustomElement(&spec.CustomElementDefinition{
		Name:      "x-btn",
		LocalName: "button",
		Construct: func(d *spec.Document, n *spec.Node) {
			constructed++
		},
	})

	p := ParseHTMLDocument(document, nil, testURL)
	p.parseStringChunk(`<!DOCTYPE html><button></button><button is="x-btn"></button>`)
	p.lastChunkReceived = true
	p.parseSync()

	// only the is="x-btn" button matches the definition
	if constructed != 1 {
		t.Errorf("Expected 1 construction, got %d", constructed)
	}
}

func TestInputValueSanitizedOnce(t *testing.T) {
	document := parseDocumentString(`<!DOCTYPE html><input value="a&#13;b&#10;c" type="text">`)
	body := document.Body()
	input := body.ChildNodes[0]
	if input.NodeName != "input" {
		t.Fatalf("Expected an input, got %s", input.NodeName)
	}
	if input.Element.Input.Value != "abc" {
		t.Errorf("Expected the sanitized value %q, got %q", "abc", input.Element.Input.Value)
	}
	if input.Element.Input.SanitizeCount != 1 {
		t.Errorf("Expected exactly one sanitization pass, got %d", input.Element.Input.SanitizeCount)
	}
	// the raw attribute keeps the control characters
	if v, _ := input.GetAttribute("value"); v != "a\rb\nc" {
		t.Errorf("Expected the attribute to keep its raw value, got %q", v)
	}
}

func TestInputWithoutValueStillSanitizes(t *testing.T) {
	document := parseDocumentString("<!DOCTYPE html><input>")
	input := document.Body().ChildNodes[0]
	if input.Element.Input.SanitizeCount != 1 {
		t.Errorf("Expected exactly one sanitization pass, got %d", input.Element.Input.SanitizeCount)
	}
}

func TestSinkTextRunMerging(t *testing.T) {
	document := spec.NewDocument(testURL)
	s := newSink(testURL, document, NormalParsing)
	parent := spec.NewDOMElement(document, "div", spec.Htmlns)

	s.append(parent, nodeOrText{text: "a"})
	s.append(parent, nodeOrText{text: "b"})
	if len(parent.ChildNodes) != 1 {
		t.Fatalf("Expected adjacent text to merge into one node, got %d", len(parent.ChildNodes))
	}
	if parent.FirstChild.Text.Data != "ab" {
		t.Errorf("Expected %q, got %q", "ab", parent.FirstChild.Text.Data)
	}

	s.append(parent, nodeOrText{node: spec.NewDOMElement(document, "span", spec.Htmlns)})
	s.append(parent, nodeOrText{text: "c"})
	if len(parent.ChildNodes) != 3 {
		t.Fatalf("Expected an element to break the text run, got %d nodes", len(parent.ChildNodes))
	}
}

var foreignContentTests = []treeTest{
	// annotation-xml with an html encoding is an integration point; the
	// p element nests inside it
	{`<!DOCTYPE html><math><annotation-xml encoding="text/HTML"><p>x</p></annotation-xml></math>`, tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <math math>",
		"|       <math annotation-xml>",
		"|         encoding=\"text/HTML\"",
		"|         <p>",
		"|           \"x\"",
	)},
	// without it, p is a breakout tag and pops the foreign subtree
	{"<!DOCTYPE html><math><annotation-xml><p>x", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <math math>",
		"|       <math annotation-xml>",
		"|     <p>",
		"|       \"x\"",
	)},
	// mi is a text integration point
	{"<!DOCTYPE html><math><mi>x</mi></math>", tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <math math>",
		"|       <math mi>",
		"|         \"x\"",
	)},
	{`<!DOCTYPE html><math definitionurl="d"></math>`, tree(
		"#document",
		"| <!DOCTYPE html>",
		"| <html>",
		"|   <head>",
		"|   <body>",
		"|     <math math>",
		"|       definitionURL=\"d\"",
	)},
}

func TestForeignContentIntegrationPoints(t *testing.T) {
	for _, test := range foreignContentTests {
		runTreeConstructionTest(test, t)
	}
}
