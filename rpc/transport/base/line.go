package base

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrLineTooLong is returned by ReadLine for a line above the size limit.
// The rest of the line has been consumed when it is returned.
var ErrLineTooLong = errors.New("line too long")

// LineReader reads "\n" terminated lines of bounded length from a stream
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader creates a reader for lines of at most maxLine bytes (without terminator)
func NewLineReader(r io.Reader, maxLine int) *LineReader {
	return &LineReader{
		r:   bufio.NewReaderSize(r, maxLine+2),
		max: maxLine,
	}
}

// ReadLine returns the next line without its "\n" or "\r\n" terminator.
// A last line without terminator is returned as is, the following call returns io.EOF.
func (l *LineReader) ReadLine() (string, error) {
	line, err := l.r.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		if err := l.discardLine(); err != nil {
			return "", err
		}
		return "", ErrLineTooLong
	case err == io.EOF && len(line) > 0:
	default:
		return "", err
	}

	line = bytes.TrimSuffix(line, []byte{'\n'})
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(line) > l.max {
		return "", ErrLineTooLong
	}
	return string(line), nil
}

// ReadFull reads exactly n bytes, e.g. the payload of a length prefixed reply
func (l *LineReader) ReadFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(l.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// discardLine skips everything up to and including the next "\n"
func (l *LineReader) discardLine() error {
	for {
		_, err := l.r.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}
