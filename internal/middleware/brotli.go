package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

const brotliMinLength = 1024

// Types that are already compressed; gofpdf deflates review PDFs itself.
var incompressible = []string{"application/pdf", "image/", "application/zip", "application/octet-stream"}

type encodeMode int

const (
	modePending encodeMode = iota
	modeBrotli
	modePlain
)

// brotliWriter buffers the first brotliMinLength bytes before deciding.
// Short bodies and incompressible types are sent unchanged.
type brotliWriter struct {
	gin.ResponseWriter
	level   int
	mode    encodeMode
	pending []byte
	enc     *brotli.Writer
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	switch w.mode {
	case modeBrotli:
		return w.enc.Write(data)
	case modePlain:
		return w.ResponseWriter.Write(data)
	}

	w.pending = append(w.pending, data...)
	if len(w.pending) < brotliMinLength {
		return len(data), nil
	}
	if err := w.decide(true); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// decide picks brotli when the body is large enough and its type benefits,
// then releases the pending bytes.
func (w *brotliWriter) decide(large bool) error {
	h := w.ResponseWriter.Header()
	if large && compressible(h.Get("Content-Type")) && h.Get("Content-Encoding") == "" {
		w.mode = modeBrotli
		h.Set("Content-Encoding", "br")
		h.Del("Content-Length")
		w.enc = brotli.NewWriterLevel(w.ResponseWriter, w.level)
	} else {
		w.mode = modePlain
	}

	pending := w.pending
	w.pending = nil
	if len(pending) == 0 {
		return nil
	}
	if w.mode == modeBrotli {
		_, err := w.enc.Write(pending)
		return err
	}
	_, err := w.ResponseWriter.Write(pending)
	return err
}

func (w *brotliWriter) Flush() {
	if w.mode == modePending {
		_ = w.decide(len(w.pending) >= brotliMinLength)
	}
	if w.enc != nil {
		_ = w.enc.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *brotliWriter) close() error {
	if w.mode == modePending {
		if err := w.decide(false); err != nil {
			return err
		}
	}
	if w.enc != nil {
		return w.enc.Close()
	}
	return nil
}

// Brotli compresses responses for clients that accept br. WebSocket
// upgrades and event streams pass through untouched.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isStreaming(c.Request) || !acceptsBrotli(c.GetHeader("Accept-Encoding")) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{ResponseWriter: c.Writer, level: brotli.DefaultCompression}
		c.Writer = bw
		defer func() {
			if err := bw.close(); err != nil {
				_ = c.Error(err)
			}
		}()
		c.Next()
	}
}

func isStreaming(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") ||
		strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func compressible(contentType string) bool {
	for _, prefix := range incompressible {
		if strings.HasPrefix(contentType, prefix) {
			return false
		}
	}
	return true
}

// acceptsBrotli honours an explicit q=0 refusal.
func acceptsBrotli(header string) bool {
	for _, part := range strings.Split(header, ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(enc), "br") {
			continue
		}
		q := strings.ReplaceAll(params, " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}
