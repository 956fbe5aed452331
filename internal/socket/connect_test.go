package socket_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"httpconn/internal/socket"

	"github.com/stretchr/testify/require"
)

func TestDialHTTPConnectSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var gotLine, gotAuthHeader string
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		line, _ := br.ReadString('\n')
		gotLine = strings.TrimRight(line, "\r\n")

		for {
			h, err := br.ReadString('\n')
			if err != nil || strings.TrimRight(h, "\r\n") == "" {
				break
			}
			if strings.HasPrefix(h, "Proxy-Authorization:") {
				gotAuthHeader = strings.TrimSpace(strings.TrimPrefix(h, "Proxy-Authorization:"))
			}
		}

		conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
	}()

	auth := &socket.HTTPProxyAuth{Username: "u", Password: "p"}
	conn, err := socket.DialHTTPConnect(context.Background(), &net.Dialer{}, ln.Addr().String(), auth, "origin.example:443")
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("proxy did not finish handshake in time")
	}

	require.Equal(t, "CONNECT origin.example:443 HTTP/1.1", gotLine)
	require.Equal(t, "Basic dTpw", gotAuthHeader) // base64("u:p")
}

func TestDialHTTPConnectRejected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		for {
			h, err := br.ReadString('\n')
			if err != nil || strings.TrimRight(h, "\r\n") == "" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))
	}()

	_, err = socket.DialHTTPConnect(context.Background(), &net.Dialer{}, ln.Addr().String(), nil, "origin.example:443")
	require.Error(t, err)
}
