package parser

import (
	"github.com/heathj/webstream/parser/spec"
)

type tokenizerOp uint8

const (
	opFeed tokenizerOp = iota
	opEnd
	opPlaintext
)

type tokenizerCmd struct {
	op    tokenizerOp
	queue *BufferQueue
}

type tokenizerResult struct {
	script *spec.Node
}

// AsyncHTMLTokenizer runs the HTML grammar engine on its own goroutine.
// Every operation is a rendezvous: the caller blocks until the worker
// answers, so the parser's cooperative suspension model is unchanged;
// only the stack the engine runs on moves.
type AsyncHTMLTokenizer struct {
	inner   *HTMLTokenizer
	cmds    chan tokenizerCmd
	results chan tokenizerResult
	ended   bool
}

func newAsyncHTMLTokenizer(sink *Sink, url string) *AsyncHTMLTokenizer {
	a := &AsyncHTMLTokenizer{
		inner:   newHTMLTokenizer(sink, url),
		cmds:    make(chan tokenizerCmd),
		results: make(chan tokenizerResult),
	}
	go a.loop()
	return a
}

func (a *AsyncHTMLTokenizer) loop() {
	for cmd := range a.cmds {
		switch cmd.op {
		case opFeed:
			a.results <- tokenizerResult{script: a.inner.feed(cmd.queue)}
		case opEnd:
			a.inner.end()
			a.results <- tokenizerResult{}
		case opPlaintext:
			a.inner.setPlaintextState()
			a.results <- tokenizerResult{}
		}
	}
}

func (a *AsyncHTMLTokenizer) feed(q *BufferQueue) *spec.Node {
	if a.ended {
		return nil
	}
	a.cmds <- tokenizerCmd{op: opFeed, queue: q}
	return (<-a.results).script
}

// end finalizes the engine and stops the worker goroutine.
func (a *AsyncHTMLTokenizer) end() {
	if a.ended {
		return
	}
	a.cmds <- tokenizerCmd{op: opEnd}
	<-a.results
	close(a.cmds)
	a.ended = true
}

func (a *AsyncHTMLTokenizer) url() string {
	return a.inner.url()
}

func (a *AsyncHTMLTokenizer) setPlaintextState() {
	a.cmds <- tokenizerCmd{op: opPlaintext}
	<-a.results
}
