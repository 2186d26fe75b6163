package console

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/codescope/codescope/infrastructure/toolserver"
)

// Adapter sends one framed request to the application runtime and returns
// its framed response. Both construction modes implement this shape.
type Adapter interface {
	Name() string
	Send(ctx context.Context, req toolserver.Request) toolserver.Response
}

// BridgeAdapter talks to an out-of-process runtime over the line-delimited
// wire protocol. Requests are serialized: the stream carries one frame at
// a time.
type BridgeAdapter struct {
	mu      sync.Mutex
	out     io.Writer
	scanner *bufio.Scanner
}

// NewBridgeAdapter creates a BridgeAdapter writing requests to out and
// reading responses from in.
func NewBridgeAdapter(in io.Reader, out io.Writer) *BridgeAdapter {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxBridgeFrame)
	return &BridgeAdapter{out: out, scanner: scanner}
}

const maxBridgeFrame = 10 * 1024 * 1024

// Name identifies the adapter in status output.
func (a *BridgeAdapter) Name() string { return "bridge" }

// Send writes the request frame and blocks until the matching response
// line arrives.
func (a *BridgeAdapter) Send(ctx context.Context, req toolserver.Request) toolserver.Response {
	a.mu.Lock()
	defer a.mu.Unlock()

	fail := func(kind toolserver.Kind, message string) toolserver.Response {
		return toolserver.Response{
			ID:        req.ID,
			OK:        false,
			Error:     message,
			ErrorType: string(kind),
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(toolserver.KindExecution, err.Error())
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fail(toolserver.KindExecution, "encode request: "+err.Error())
	}
	if _, err := a.out.Write(append(data, '\n')); err != nil {
		return fail(toolserver.KindExecution, "write request: "+err.Error())
	}

	if !a.scanner.Scan() {
		message := "bridge closed"
		if err := a.scanner.Err(); err != nil {
			message = "read response: " + err.Error()
		}
		return fail(toolserver.KindExecution, message)
	}

	var resp toolserver.Response
	if err := json.Unmarshal(a.scanner.Bytes(), &resp); err != nil {
		return fail(toolserver.KindParse, "decode response: "+err.Error())
	}
	return resp
}

// EmbeddedAdapter dispatches requests in process against a registry. It
// gives the console the same send_request shape without a child process.
type EmbeddedAdapter struct {
	registry *toolserver.Registry
}

// NewEmbeddedAdapter creates an EmbeddedAdapter over registry.
func NewEmbeddedAdapter(registry *toolserver.Registry) *EmbeddedAdapter {
	return &EmbeddedAdapter{registry: registry}
}

// Name identifies the adapter in status output.
func (a *EmbeddedAdapter) Name() string { return "embedded" }

// Send dispatches the request directly.
func (a *EmbeddedAdapter) Send(ctx context.Context, req toolserver.Request) toolserver.Response {
	return a.registry.Dispatch(ctx, req)
}
