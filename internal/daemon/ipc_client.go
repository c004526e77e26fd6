/**
 * IPC Client.
 *
 * Dials the daemon's UNIX domain socket and exchanges a single
 * request/response pair per call; used by cmd/netdiagctl.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package daemon

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/netdiag/netdiag/internal/errs"
)

// defaultClientTimeout bounds how long a client waits for a dial or a
// response before giving up.
const defaultClientTimeout = 5 * time.Second

// Client is a short-lived connection to a running daemon's IPC socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient constructs a Client for socketPath using the default timeout.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: defaultClientTimeout}
}

// Request dials, sends one Request, reads one Response, and closes the
// connection.
func (c *Client) Request(req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return Response{}, errs.Wrap(errs.Transport, "daemon.Client.Request", "failed to connect to daemon", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	encoded, err := json.Marshal(req)
	if err != nil {
		return Response{}, errs.Wrap(errs.Transport, "daemon.Client.Request", "failed to encode request", err)
	}
	if _, err := conn.Write(append(encoded, '\n')); err != nil {
		return Response{}, errs.Wrap(errs.Transport, "daemon.Client.Request", "failed to send request", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Response{}, errs.Wrap(errs.Transport, "daemon.Client.Request", "failed to read response", err)
		}
		return Response{}, errs.New(errs.Transport, "daemon.Client.Request", "daemon closed the connection without a response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return Response{}, errs.Wrap(errs.Transport, "daemon.Client.Request", "failed to decode response", err)
	}
	return resp, nil
}

// Ping reports whether a daemon is listening and responsive on socketPath.
func (c *Client) Ping() bool {
	resp, err := c.Request(Request{Kind: ReqPing})
	return err == nil && resp.Kind == RespPong
}
