package ctlsock

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client is the CLI side of the control socket.
type Client struct {
	conn net.Conn

	// Token, when set, is attached to mutating requests. Bodies carry their
	// own token field; Do fills it only for the typed request structs that
	// declare one.
	Token string
}

// Dial connects to the control socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to mstpd at %s: %w", path, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears the connection down.
func (c *Client) Close() error { return c.conn.Close() }

// RemoteError carries a non-OK reply status; the CLI exits with the status
// value.
type RemoteError struct {
	Status Status
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Detail)
	}
	return e.Status.String()
}

// Do sends one request and decodes the reply into out (which may be nil for
// replies without a payload). A non-OK status surfaces as *RemoteError.
func (c *Client) Do(op Opcode, body interface{}, out interface{}) error {
	if err := writeRequest(c.conn, op, body); err != nil {
		return err
	}
	status, payload, err := readReply(c.conn)
	if err != nil {
		return err
	}
	if status != StatusOK {
		var er ErrorReply
		_ = json.Unmarshal(payload, &er)
		return &RemoteError{Status: status, Detail: er.Detail}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(payload, out)
}

// Authenticate exchanges passphrase for a bearer token and stores it on the
// client for subsequent mutating requests.
func (c *Client) Authenticate(passphrase string) error {
	var rep AuthReply
	if err := c.Do(OpAuthToken, AuthReq{Passphrase: passphrase}, &rep); err != nil {
		return err
	}
	c.Token = rep.Token
	return nil
}
