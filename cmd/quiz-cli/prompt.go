package main

import (
	"bufio"
	"context"
	"io"
)

type inputLine struct {
	text string
	err  error
}

// lineReader reads stdin on its own goroutine so a prompt can give up on
// interrupt instead of waiting for Enter.
type lineReader struct {
	lines chan inputLine
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{lines: make(chan inputLine)}
	go func() {
		defer close(lr.lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lr.lines <- inputLine{text: sc.Text()}
		}
		if err := sc.Err(); err != nil {
			lr.lines <- inputLine{err: err}
		}
	}()
	return lr
}

// next returns the next line, ctx.Err() once ctx ends, or io.EOF.
func (lr *lineReader) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case in, ok := <-lr.lines:
		if !ok {
			return "", io.EOF
		}
		return in.text, in.err
	}
}
