package toolserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/codescope/codescope/internal/log"
)

// maxFrameBytes bounds a single request line.
const maxFrameBytes = 10 * 1024 * 1024

// StdioServer serves the framed protocol over a line-delimited byte
// stream. One reader, one writer: in-flight requests are processed
// strictly in order.
type StdioServer struct {
	registry *Registry
	in       io.Reader
	out      io.Writer
	logger   *log.Logger
}

// NewStdioServer creates a StdioServer reading requests from in and
// writing responses to out.
func NewStdioServer(registry *Registry, in io.Reader, out io.Writer, logger *log.Logger) *StdioServer {
	if logger == nil {
		logger = log.Discard()
	}
	return &StdioServer{registry: registry, in: in, out: out, logger: logger}
}

// Serve reads frames until EOF or context cancellation. A line that fails
// to parse yields an error frame with no id; the stream keeps going.
func (s *StdioServer) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxFrameBytes)
	encoder := json.NewEncoder(s.out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("unparseable request frame", "error", err)
			if err := encoder.Encode(Response{
				OK:        false,
				Error:     "invalid request frame: " + err.Error(),
				ErrorType: string(KindParse),
			}); err != nil {
				return err
			}
			continue
		}

		resp := s.registry.Dispatch(ctx, req)
		s.logger.Debug("dispatched tool",
			"tool", req.Tool, "ok", resp.OK, "timing_ms", resp.TimingMS)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
