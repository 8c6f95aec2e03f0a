package edge

import "net/http"

// headerWriter runs decorate exactly once, right before the origin's
// status line is written, so appended headers land after the origin's own.
type headerWriter struct {
	http.ResponseWriter
	decorate    func(http.Header)
	wroteHeader bool
}

func newHeaderWriter(w http.ResponseWriter, decorate func(http.Header)) *headerWriter {
	return &headerWriter{ResponseWriter: w, decorate: decorate}
}

func (hw *headerWriter) WriteHeader(code int) {
	if hw.wroteHeader {
		return
	}
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		hw.ResponseWriter.WriteHeader(code)
		return
	}
	hw.wroteHeader = true
	hw.decorate(hw.ResponseWriter.Header())
	hw.ResponseWriter.WriteHeader(code)
}

func (hw *headerWriter) Write(b []byte) (int, error) {
	if !hw.wroteHeader {
		hw.WriteHeader(http.StatusOK)
	}
	return hw.ResponseWriter.Write(b)
}

func (hw *headerWriter) Flush() {
	if !hw.wroteHeader {
		hw.WriteHeader(http.StatusOK)
	}
	if f, ok := hw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (hw *headerWriter) Unwrap() http.ResponseWriter {
	return hw.ResponseWriter
}

// finish covers origins that return without writing anything.
func (hw *headerWriter) finish() {
	if !hw.wroteHeader {
		hw.WriteHeader(http.StatusOK)
	}
}
