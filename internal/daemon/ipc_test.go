package daemon

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"
)

// echoHandler answers Ping with Pong and everything else with Ok.
type echoHandler struct{}

func (echoHandler) Handle(req Request) Response {
	if req.Kind == ReqPing {
		return Response{Kind: RespPong}
	}
	return Response{Kind: RespOk, Message: string(req.Kind)}
}

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "netdiag-test.sock")
	srv := NewServer(socketPath, echoHandler{}, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Server.Start: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Shutdown)
	return srv, socketPath
}

// TestHandshakeAndConnectionReuse: a Ping request receives exactly one
// Pong and the connection stays open for subsequent requests.
func TestHandshakeAndConnectionReuse(t *testing.T) {
	_, socketPath := startTestServer(t)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	reader := bufio.NewScanner(conn)
	send := func(req Request) Response {
		t.Helper()
		encoded, _ := json.Marshal(req)
		if _, err := conn.Write(append(encoded, '\n')); err != nil {
			t.Fatalf("write: %v", err)
		}
		if !reader.Scan() {
			t.Fatalf("no response line: %v", reader.Err())
		}
		var resp Response
		if err := json.Unmarshal(reader.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	if resp := send(Request{Kind: ReqPing}); resp.Kind != RespPong {
		t.Errorf("first response = %v, want Pong", resp.Kind)
	}
	if resp := send(Request{Kind: ReqStatus}); resp.Kind != RespOk {
		t.Errorf("second response on same connection = %v, want Ok", resp.Kind)
	}
}

func TestMalformedJSONClosesConnection(t *testing.T) {
	_, socketPath := startTestServer(t)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 64)
	if n, err := conn.Read(buf); err == nil {
		t.Errorf("expected the server to close the connection, read %q", buf[:n])
	}
}

func TestClientRequestRoundTrip(t *testing.T) {
	_, socketPath := startTestServer(t)

	c := NewClient(socketPath)
	if !c.Ping() {
		t.Fatal("expected Ping to succeed against a live server")
	}
	resp, err := c.Request(Request{Kind: ReqResumeMonitoring})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Kind != RespOk || resp.Message != string(ReqResumeMonitoring) {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestClientFailsWhenNoDaemonListening(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "absent.sock"))
	if _, err := c.Request(Request{Kind: ReqPing}); err == nil {
		t.Error("expected an error dialing a socket nobody listens on")
	}
}
