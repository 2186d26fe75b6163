package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestStdioServer_FramedRoundTrip(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoTool("echo"))

	in := strings.NewReader(
		`{"id":"1","tool":"echo","params":{"text":"hello"}}` + "\n" +
			`{"id":"2","tool":"missing","params":{}}` + "\n")
	var out bytes.Buffer

	server := NewStdioServer(registry, in, &out, nil)
	if err := server.Serve(context.Background()); err != nil {
		t.Fatal(err)
	}

	var responses []Response
	decoder := json.NewDecoder(&out)
	for decoder.More() {
		var resp Response
		if err := decoder.Decode(&resp); err != nil {
			t.Fatal(err)
		}
		responses = append(responses, resp)
	}

	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if !responses[0].OK || responses[0].ID != "1" || responses[0].Result != "hello" {
		t.Errorf("unexpected first response %+v", responses[0])
	}
	if responses[1].OK || responses[1].ErrorType != string(KindUnknownTool) {
		t.Errorf("unexpected second response %+v", responses[1])
	}
}

func TestStdioServer_ParseErrorKeepsStreamAlive(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoTool("echo"))

	in := strings.NewReader(
		"this is not json\n" +
			`{"id":"after","tool":"echo","params":{"text":"still here"}}` + "\n")
	var out bytes.Buffer

	if err := NewStdioServer(registry, in, &out, nil).Serve(context.Background()); err != nil {
		t.Fatal(err)
	}

	var responses []Response
	decoder := json.NewDecoder(&out)
	for decoder.More() {
		var resp Response
		if err := decoder.Decode(&resp); err != nil {
			t.Fatal(err)
		}
		responses = append(responses, resp)
	}

	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].OK || responses[0].ErrorType != string(KindParse) || responses[0].ID != "" {
		t.Errorf("expected an id-less parse error, got %+v", responses[0])
	}
	if !responses[1].OK || responses[1].ID != "after" {
		t.Errorf("expected the stream to continue, got %+v", responses[1])
	}
}

func TestStdioServer_SkipsBlankLines(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoTool("echo"))

	in := strings.NewReader("\n\n" + `{"tool":"echo","params":{"text":"x"}}` + "\n")
	var out bytes.Buffer

	if err := NewStdioServer(registry, in, &out, nil).Serve(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out.String(), "\n"); n != 1 {
		t.Errorf("expected exactly one response line, got %d", n)
	}
}
