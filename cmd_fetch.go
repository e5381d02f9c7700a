package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/heathj/webstream/parser"
	"github.com/heathj/webstream/parser/spec"
)

func newFetchCmd() *cobra.Command {
	var showHints bool

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a URL through the response bridge and dump the parsed tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(args[0], showHints)
		},
	}

	cmd.Flags().BoolVar(&showHints, "hints", false, "print speculative prefetch hints as they are discovered")

	return cmd
}

func runFetch(pageURL string, showHints bool) error {
	document := spec.NewDocument(pageURL)
	document.BrowsingContext = true
	if showHints {
		document.OnPrefetch = func(hint spec.ResourceHint) {
			fmt.Printf("prefetch %-6s %s\n", hint.Kind, hint.URL)
		}
	}

	p := parser.ParseHTMLDocument(document, nil, pageURL)
	ctx := parser.NewParserContext("fetch", pageURL, func(string, *parser.Metadata) *parser.Parser {
		return p
	})

	resp, err := http.Get(pageURL)
	if err != nil {
		ctx.ProcessResponse(nil, &parser.NetworkError{
			Kind:   parser.NetworkErrorInternal,
			Reason: err.Error(),
		})
		ctx.ProcessResponseEOF(nil)
		fmt.Println(document.Node.String())
		return nil
	}
	defer resp.Body.Close()

	ctx.ProcessResponse(&parser.Metadata{
		FinalURL:    pageURL,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     resp.Header,
		Status:      resp.StatusCode,
	}, nil)

	buf := make([]byte, 8192)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			ctx.ProcessResponseChunk(chunk)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			logrus.WithField("url", pageURL).Debugf("body read failed: %v", err)
			ctx.ProcessResponseEOF(&parser.NetworkError{Reason: err.Error()})
			fmt.Println(document.Node.String())
			return errors.Wrap(err, "read response body")
		}
	}
	ctx.ProcessResponseEOF(nil)

	fmt.Println(document.Node.String())
	return nil
}
