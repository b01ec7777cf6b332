package engine

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// tailWriter keeps the last max bytes written to it and forwards complete
// lines to a debug logger. It is safe for concurrent use.
type tailWriter struct {
	mu      sync.Mutex
	max     int
	buf     []byte
	partial []byte
	log     zerolog.Logger
}

func newTailWriter(max int, log zerolog.Logger) *tailWriter {
	return &tailWriter{max: max, log: log}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(p) >= w.max {
		w.buf = append(w.buf[:0], p[len(p)-w.max:]...)
	} else {
		w.buf = append(w.buf, p...)
		if over := len(w.buf) - w.max; over > 0 {
			w.buf = append(w.buf[:0], w.buf[over:]...)
		}
	}
	if w.log.GetLevel() <= zerolog.DebugLevel {
		w.forwardLines(p)
	}
	return len(p), nil
}

// forwardLines logs each newline-terminated line. An unterminated remainder is
// held, capped at max bytes, until its newline arrives.
func (w *tailWriter) forwardLines(p []byte) {
	for {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			break
		}
		line := append(w.partial, p[:i]...)
		w.log.Debug().Bytes("line", bytes.TrimRight(line, "\r")).Msg("llama-server")
		w.partial = w.partial[:0]
		p = p[i+1:]
	}
	if room := w.max - len(w.partial); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		w.partial = append(w.partial, p...)
	}
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf)
}
