package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/heathj/webstream/parser"
	"github.com/heathj/webstream/parser/spec"
	"github.com/heathj/webstream/parser/webidl"
)

func newParseCmd() *cobra.Command {
	var asXML bool
	var fragment string
	var chunkSize int
	var pageURL string

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a document from a file or stdin and dump its tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return errors.Wrap(err, "read input")
			}

			if fragment != "" {
				return runParseFragment(fragment, pageURL, data)
			}
			return runParseDocument(asXML, pageURL, chunkSize, data)
		},
	}

	cmd.Flags().BoolVar(&asXML, "xml", false, "parse with the XML grammar engine")
	cmd.Flags().StringVar(&fragment, "fragment", "", "parse as a fragment relative to a context element with this tag name")
	cmd.Flags().IntVar(&chunkSize, "chunk", 4096, "feed the input in chunks of this many bytes")
	cmd.Flags().StringVar(&pageURL, "url", "file:///stdin", "document URL")

	return cmd
}

func runParseFragment(contextTag, pageURL string, data []byte) error {
	document := spec.NewDocument(pageURL)
	context := spec.NewDOMElement(document, contextTag, spec.Htmlns)
	document.Node.AppendChild(context)

	nodes := parser.ParseHTMLFragment(context, webidl.DOMString(data))
	for _, node := range nodes {
		fmt.Println(node.String())
	}
	return nil
}

func runParseDocument(asXML bool, pageURL string, chunkSize int, data []byte) error {
	if chunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}

	document := spec.NewDocument(pageURL)
	var p *parser.Parser
	contentType := "text/html"
	if asXML {
		p = parser.ParseXMLDocument(document, nil, pageURL)
		contentType = "application/xml"
	} else {
		p = parser.ParseHTMLDocument(document, nil, pageURL)
	}

	ctx := parser.NewParserContext("cli", pageURL, func(string, *parser.Metadata) *parser.Parser {
		return p
	})
	ctx.ProcessResponse(&parser.Metadata{
		FinalURL:    pageURL,
		ContentType: contentType,
		Headers:     http.Header{},
		Status:      http.StatusOK,
	}, nil)

	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		ctx.ProcessResponseChunk(data[:n])
		data = data[n:]
	}
	ctx.ProcessResponseEOF(nil)

	fmt.Println(document.Node.String())
	return nil
}
