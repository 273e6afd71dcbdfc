package transform

import (
	"bytes"
	"io"
)

// maxTokenBytes bounds the longest possible token's encoded length:
// "◈PG:" (6 bytes: 3 for ◈, 3 ascii) + up to 8 kind bytes + "_" (1) +
// 12 hash hex digits + "◈" (3 bytes) = 30.
const maxTokenBytes = 30

const tokenOpenMarker = "◈PG:"
const tokenCloseMarker = "◈"

const readChunkSize = 32 * 1024

// StreamReader wraps an upstream SSE (or any chunked text) body, replacing
// vault tokens with their original values as bytes arrive.
//
// A provider may emit a single token split across two or more read chunks
// (a streamed text delta can be as short as one character per event), so
// this cannot simply detokenize each chunk independently. Instead it
// accumulates bytes in buf and only emits the prefix it can prove contains
// no partially-received token — the remainder is held back for the next
// read.
type StreamReader struct {
	src     io.ReadCloser
	t       *Transformer
	buf     []byte
	pending []byte
	done    bool
}

// NewStreamReader returns a StreamReader detokenizing src through t.
func (t *Transformer) NewStreamReader(src io.ReadCloser) *StreamReader {
	return &StreamReader{src: src, t: t}
}

func (s *StreamReader) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.done {
			return 0, io.EOF
		}

		chunk := make([]byte, readChunkSize)
		n, err := s.src.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}

		if err != nil {
			s.done = true
			out, terr := s.t.UnprotectText(string(s.buf))
			s.buf = nil
			if terr != nil {
				return 0, terr
			}
			s.pending = []byte(out)
			if err != io.EOF {
				return 0, err
			}
			continue
		}

		if n == 0 {
			continue
		}

		cut := safeCutPoint(s.buf, len(s.buf))
		if cut == 0 {
			continue
		}

		out, terr := s.t.UnprotectText(string(s.buf[:cut]))
		if terr != nil {
			return 0, terr
		}
		s.buf = s.buf[cut:]
		s.pending = []byte(out)
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close releases the wrapped source.
func (s *StreamReader) Close() error {
	return s.src.Close()
}

// safeCutPoint returns the largest prefix length of buf[:limit] that is
// guaranteed not to end inside a token. It scans the trailing
// maxTokenBytes-sized window for an open-token marker that is not yet
// followed by a matching close marker within limit, or for a trailing
// partial open marker; if found, the cut point backs off to just before
// that marker so the next read can complete it.
func safeCutPoint(buf []byte, limit int) int {
	lowerBound := limit - maxTokenBytes
	if lowerBound < 0 {
		lowerBound = 0
	}
	open := []byte(tokenOpenMarker)
	closeB := []byte(tokenCloseMarker)

	for i := lowerBound; i < limit; i++ {
		rest := buf[i:limit]
		if !bytes.HasPrefix(rest, open) {
			if len(rest) < len(open) && bytes.HasPrefix(open, rest) {
				return i
			}
			continue
		}
		afterOpen := i + len(open)
		closeRel := bytes.Index(buf[afterOpen:limit], closeB)
		if closeRel < 0 {
			return i
		}
		// A close marker was found within the scanned window, so this
		// candidate token is complete before limit; skip past it and keep
		// scanning in case a later marker is still open.
		i = afterOpen + closeRel + len(closeB) - 1
	}
	return limit
}
