package toolserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newHTTPFixture(t *testing.T) *httptest.Server {
	t.Helper()
	registry := NewRegistry()
	registry.Register(echoTool("echo"))
	server := NewHTTPServer(registry, ":0", nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPServer_Healthz(t *testing.T) {
	ts := newHTTPFixture(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHTTPServer_ListTools(t *testing.T) {
	ts := newHTTPFixture(t)

	resp, err := http.Get(ts.URL + "/tools")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Tools []string `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tools) != 1 || body.Tools[0] != "echo" {
		t.Errorf("unexpected tool list %v", body.Tools)
	}
}

func TestHTTPServer_Call(t *testing.T) {
	ts := newHTTPFixture(t)

	resp, err := http.Post(ts.URL+"/tools/call", "application/json",
		strings.NewReader(`{"id":"h1","tool":"echo","params":{"text":"over http"}}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var framed Response
	if err := json.NewDecoder(resp.Body).Decode(&framed); err != nil {
		t.Fatal(err)
	}
	if !framed.OK || framed.ID != "h1" || framed.Result != "over http" {
		t.Errorf("unexpected response %+v", framed)
	}
}

func TestHTTPServer_ToolErrorStaysHTTP200(t *testing.T) {
	ts := newHTTPFixture(t)

	resp, err := http.Post(ts.URL+"/", "application/json",
		strings.NewReader(`{"tool":"missing","params":{}}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected protocol errors framed with 200, got %d", resp.StatusCode)
	}

	var framed Response
	if err := json.NewDecoder(resp.Body).Decode(&framed); err != nil {
		t.Fatal(err)
	}
	if framed.OK || framed.ErrorType != string(KindUnknownTool) {
		t.Errorf("unexpected response %+v", framed)
	}
}

func TestHTTPServer_BadJSONIs400(t *testing.T) {
	ts := newHTTPFixture(t)

	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader("{broken"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}

	var framed Response
	if err := json.NewDecoder(resp.Body).Decode(&framed); err != nil {
		t.Fatal(err)
	}
	if framed.OK || framed.ErrorType != string(KindParse) {
		t.Errorf("unexpected response %+v", framed)
	}
}
