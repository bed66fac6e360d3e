package comm

import (
	"fmt"
	"strings"
	"time"

	"crypto/tls"
)

// Functions

// ReliableConnect attempts to connect to the defined remote
// node as long as the error from previous attempts is
// possible to be dealt with.
func ReliableConnect(remoteName string, remoteAddr string, tlsConfig *tls.Config, retry int) (*tls.Conn, error) {

	var err error
	var c *tls.Conn

	// Connection refusals happen while the remote node is
	// still starting up, keep retrying through those.
	for {

		c, err = tls.Dial("tcp", remoteAddr, tlsConfig)
		if err == nil {
			return c, nil
		}

		if strings.Contains(err.Error(), "connection refused") {
			time.Sleep(time.Duration(retry) * time.Millisecond)
			continue
		}

		return nil, fmt.Errorf("could not connect to sync port of node '%s': %v", remoteName, err)
	}
}

// ReliableSend sends one sync message line to the specified
// node and tries to reconnect in case of simple disconnects.
// It returns the connection in use afterwards, which replaces
// the supplied one if a reconnect happened.
func ReliableSend(conn *tls.Conn, text string, remoteName string, remoteAddr string, tlsConfig *tls.Config, timeout int, retry int) (*tls.Conn, error) {

	// Test the long-lived connection with a ping the
	// receiving side discards.
	conn.SetWriteDeadline(time.Now().Add(time.Duration(timeout) * time.Millisecond))

	_, err := conn.Write([]byte("> ping <\r\n"))
	if err == nil {
		_, err = fmt.Fprintf(conn, "%s\r\n", text)
	}

	// Disable the write deadline again for future calls.
	conn.SetDeadline(time.Time{})

	if err == nil {
		return conn, nil
	}

	// Connection was lost somewhere along the way.
	// Reconnect and retry the transfer once.
	replacedConn, err := ReliableConnect(remoteName, remoteAddr, tlsConfig, retry)
	if err != nil {
		return nil, fmt.Errorf("could not reestablish connection with '%s': %v", remoteName, err)
	}

	_, err = fmt.Fprintf(replacedConn, "> ping <\r\n%s\r\n", text)
	if err != nil {
		return nil, fmt.Errorf("retried send to node '%s' failed with: %v", remoteName, err)
	}

	return replacedConn, nil
}
