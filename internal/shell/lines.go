package shell

import (
	"bufio"
	"context"
	"io"
)

type lineResult struct {
	text string
	err  error // io.EOF at end of input
}

// lineReader reads input lines in its own goroutine, one line per request,
// so the engine can wait for input and controller events at the same time.
// Nothing is read ahead of a request, which leaves the input free for
// password prompts between requests.
type lineReader struct {
	scanner *bufio.Scanner
	req     chan struct{}
	resp    chan lineResult
	pending bool // a request is outstanding
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{
		scanner: bufio.NewScanner(r),
		req:     make(chan struct{}),
		resp:    make(chan lineResult, 1),
	}
	go lr.run()
	return lr
}

func (lr *lineReader) run() {
	for range lr.req {
		if lr.scanner.Scan() {
			lr.resp <- lineResult{text: lr.scanner.Text()}
			continue
		}
		err := lr.scanner.Err()
		if err == nil {
			err = io.EOF
		}
		lr.resp <- lineResult{err: err}
	}
}

// request asks for the next line unless one is already on its way
func (lr *lineReader) request() {
	if lr.pending {
		return
	}
	lr.pending = true
	lr.req <- struct{}{}
}

// results delivers the answers to requests. Call received after taking one.
func (lr *lineReader) results() <-chan lineResult {
	return lr.resp
}

func (lr *lineReader) received() {
	lr.pending = false
}

// readLine blocks until the next line arrives
func (lr *lineReader) readLine(ctx context.Context) (string, error) {
	lr.request()
	select {
	case r := <-lr.resp:
		lr.received()
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// close stops the reader goroutine once its current read returns
func (lr *lineReader) close() {
	close(lr.req)
}
