package parser

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/heathj/webstream/parser/spec"
	"github.com/heathj/webstream/parser/webidl"
)

// chunkReader adapts push-driven chunk arrival to the pull-driven
// io.Reader the XML decoder wants. Each Read first signals the driver on
// need, then blocks until a chunk arrives; a closed data channel is end
// of stream.
type chunkReader struct {
	data <-chan string
	need chan<- struct{}
	buf  []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		r.need <- struct{}{}
		chunk, ok := <-r.data
		if !ok {
			return 0, io.EOF
		}
		r.buf = []byte(chunk)
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// XMLTokenizer drives an XML grammar engine against the tree
// construction adapter. The engine runs on its own goroutine because
// the decoder pulls input, while the parser pushes it; feed hands
// chunks across a rendezvous. XML documents never block on scripts, so
// feed always drains the queue.
type XMLTokenizer struct {
	documentURL string
	sink        *Sink

	data chan string
	need chan struct{}
	done chan error

	// idle is set when the engine has requested input that has not been
	// supplied yet.
	idle     bool
	finished bool
}

func newXMLTokenizer(sink *Sink, url string) *XMLTokenizer {
	t := &XMLTokenizer{
		documentURL: url,
		sink:        sink,
		data:        make(chan string),
		need:        make(chan struct{}),
		done:        make(chan error, 1),
	}
	go t.engine()
	return t
}

func (t *XMLTokenizer) engine() {
	dec := xml.NewDecoder(&chunkReader{data: t.data, need: t.need})
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var open []*spec.Node
	current := func() *spec.Node {
		if len(open) == 0 {
			return t.sink.document.Node
		}
		return open[len(open)-1]
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			for len(open) > 0 {
				n := open[len(open)-1]
				open = open[:len(open)-1]
				t.sink.pop(n)
			}
			if err == io.EOF {
				err = nil
			}
			t.done <- err
			return
		}
		switch v := tok.(type) {
		case xml.StartElement:
			attrs := make([]ElementAttribute, 0, len(v.Attr))
			for _, a := range v.Attr {
				attrs = append(attrs, ElementAttribute{
					Namespace: spec.Namespace(a.Name.Space),
					LocalName: a.Name.Local,
					Value:     webidl.DOMString(a.Value),
				})
			}
			el := t.sink.createElement(qualName{space: spec.Namespace(v.Name.Space), local: v.Name.Local}, attrs)
			t.sink.append(current(), nodeOrText{node: el})
			open = append(open, el)
		case xml.EndElement:
			if len(open) > 0 {
				n := open[len(open)-1]
				open = open[:len(open)-1]
				t.sink.pop(n)
			}
		case xml.CharData:
			t.sink.append(current(), nodeOrText{text: string(v)})
		case xml.Comment:
			t.sink.append(current(), nodeOrText{node: t.sink.createComment(string(v))})
		case xml.ProcInst:
			t.sink.append(current(), nodeOrText{node: t.sink.createPI(v.Target, string(v.Inst))})
		case xml.Directive:
			fields := strings.Fields(string(v))
			if len(fields) >= 2 && strings.EqualFold(fields[0], "DOCTYPE") {
				t.sink.appendDoctypeToDocument(fields[1], "", "")
			}
		}
	}
}

func (t *XMLTokenizer) feed(q *BufferQueue) *spec.Node {
	for {
		chunk, ok := q.PopFront()
		if !ok {
			return nil
		}
		if t.finished {
			continue
		}
		if !t.idle {
			select {
			case <-t.need:
				t.idle = true
			case err := <-t.done:
				t.finish(err)
				continue
			}
		}
		t.data <- chunk
		t.idle = false
		// Wait for the engine to come back for input before touching
		// the queue again. The need receive is the happens-before edge
		// that makes the engine's tree mutations visible to the caller
		// once feed returns.
		select {
		case <-t.need:
			t.idle = true
		case err := <-t.done:
			t.finish(err)
		}
	}
}

func (t *XMLTokenizer) end() {
	if t.finished {
		return
	}
	if !t.idle {
		select {
		case <-t.need:
			t.idle = true
		case err := <-t.done:
			t.finish(err)
			return
		}
	}
	close(t.data)
	t.finish(<-t.done)
}

func (t *XMLTokenizer) finish(err error) {
	t.finished = true
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"url": t.documentURL,
		}).Debugf("xml parse error: %v", err)
	}
}

func (t *XMLTokenizer) url() string {
	return t.documentURL
}

func (t *XMLTokenizer) setPlaintextState() {
	panic("parser: cannot set plaintext state on an XML tokenizer")
}
