package parser

// readers.go holds the io.Reader wrappers applied to delimited input before
// the CSV reader sees it:
//
//   - countingReader: counts raw bytes pulled from the upload
//   - textReader: drops a leading UTF-8 BOM and replaces invalid UTF-8 bytes
//     with '?' so a stray Latin-1 byte cannot break a record
//
// Both keep memory constant regardless of file size.

import (
	"bufio"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

const textBufferSize = 64 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// countingReader tracks how many bytes have been read from the wrapped
// reader. BytesRead is safe to call from other goroutines.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func newCountingReader(r io.Reader) *countingReader {
	return &countingReader{r: r}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

func (c *countingReader) BytesRead() int64 {
	return c.n.Load()
}

// textReader normalizes text input on the fly.
type textReader struct {
	br         *bufio.Reader
	bomChecked bool
	pending    []byte // Tail of a rune that did not fit the caller's buffer
}

func newTextReader(r io.Reader) *textReader {
	return &textReader{br: bufio.NewReaderSize(r, textBufferSize)}
}

func (t *textReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !t.bomChecked {
		t.bomChecked = true
		if head, err := t.br.Peek(len(utf8BOM)); err == nil && string(head) == string(utf8BOM) {
			_, _ = t.br.Discard(len(utf8BOM))
		}
	}

	n := 0
	for n < len(p) {
		if len(t.pending) > 0 {
			c := copy(p[n:], t.pending)
			t.pending = t.pending[c:]
			n += c
			continue
		}

		// Never block for more input once we have something to return.
		if n > 0 && t.br.Buffered() == 0 {
			break
		}

		b, err := t.br.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if b < utf8.RuneSelf {
			p[n] = b
			n++
			continue
		}

		_ = t.br.UnreadByte()
		r, size, err := t.br.ReadRune()
		if err != nil {
			return n, err
		}
		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
			continue
		}

		var enc [utf8.UTFMax]byte
		w := utf8.EncodeRune(enc[:], r)
		c := copy(p[n:], enc[:w])
		n += c
		if c < w {
			t.pending = append(t.pending[:0], enc[c:w]...)
		}
	}

	return n, nil
}
