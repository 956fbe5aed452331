package socket_test

import (
	"context"
	"net"
	"testing"
	"time"

	"httpconn/internal/socket"

	"github.com/stretchr/testify/require"
)

// fakeSOCKS5Server accepts one connection and runs a minimal greeting +
// connect-request exchange, recording what the client asked to connect to.
type fakeSOCKS5Server struct {
	ln net.Listener

	authRequired bool
	replyCode    byte

	gotUsername string
	gotPassword string
	gotAtyp     byte
	gotHost     string
	gotPort     int
}

func newFakeSOCKS5Server(t *testing.T) *fakeSOCKS5Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &fakeSOCKS5Server{ln: ln}
}

func (f *fakeSOCKS5Server) addr() string { return f.ln.Addr().String() }

func (f *fakeSOCKS5Server) serveOnce(t *testing.T) {
	conn, err := f.ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	greeting := make([]byte, 2)
	_, err = readFullTest(conn, greeting)
	require.NoError(t, err)
	nmethods := int(greeting[1])
	methods := make([]byte, nmethods)
	_, err = readFullTest(conn, methods)
	require.NoError(t, err)

	method := byte(0x00)
	if f.authRequired {
		method = 0x02
	}
	_, err = conn.Write([]byte{0x05, method})
	require.NoError(t, err)

	if f.authRequired {
		hdr := make([]byte, 2)
		_, err = readFullTest(conn, hdr)
		require.NoError(t, err)
		ulen := int(hdr[1])
		uname := make([]byte, ulen)
		_, err = readFullTest(conn, uname)
		require.NoError(t, err)
		f.gotUsername = string(uname)

		plenBuf := make([]byte, 1)
		_, err = readFullTest(conn, plenBuf)
		require.NoError(t, err)
		pword := make([]byte, int(plenBuf[0]))
		_, err = readFullTest(conn, pword)
		require.NoError(t, err)
		f.gotPassword = string(pword)

		_, err = conn.Write([]byte{0x01, 0x00})
		require.NoError(t, err)
	}

	head := make([]byte, 4)
	_, err = readFullTest(conn, head)
	require.NoError(t, err)
	f.gotAtyp = head[3]

	switch head[3] {
	case 0x01: // IPv4
		ip := make([]byte, 4)
		_, err = readFullTest(conn, ip)
		require.NoError(t, err)
		f.gotHost = net.IP(ip).String()
	case 0x03: // domain
		l := make([]byte, 1)
		_, err = readFullTest(conn, l)
		require.NoError(t, err)
		name := make([]byte, int(l[0]))
		_, err = readFullTest(conn, name)
		require.NoError(t, err)
		f.gotHost = string(name)
	case 0x04: // IPv6
		ip := make([]byte, 16)
		_, err = readFullTest(conn, ip)
		require.NoError(t, err)
		f.gotHost = net.IP(ip).String()
	}

	portBuf := make([]byte, 2)
	_, err = readFullTest(conn, portBuf)
	require.NoError(t, err)
	f.gotPort = int(portBuf[0])<<8 | int(portBuf[1])

	code := f.replyCode
	reply := []byte{0x05, code, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	_, err = conn.Write(reply)
	require.NoError(t, err)
}

func readFullTest(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestDialSOCKS5DomainName(t *testing.T) {
	srv := newFakeSOCKS5Server(t)
	defer srv.ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveOnce(t)
	}()

	conn, err := socket.DialSOCKS5(context.Background(), &net.Dialer{}, srv.addr(), nil, "example.com", 8080, true)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server did not finish handshake in time")
	}

	require.EqualValues(t, 0x03, srv.gotAtyp)
	require.Equal(t, "example.com", srv.gotHost)
	require.Equal(t, 8080, srv.gotPort)
}

func TestDialSOCKS5IPv4Literal(t *testing.T) {
	srv := newFakeSOCKS5Server(t)
	defer srv.ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveOnce(t)
	}()

	conn, err := socket.DialSOCKS5(context.Background(), &net.Dialer{}, srv.addr(), nil, "203.0.113.5", 443, false)
	require.NoError(t, err)
	defer conn.Close()

	<-done
	require.EqualValues(t, 0x01, srv.gotAtyp)
	require.Equal(t, "203.0.113.5", srv.gotHost)
}

func TestDialSOCKS5WithAuth(t *testing.T) {
	srv := newFakeSOCKS5Server(t)
	srv.authRequired = true
	defer srv.ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveOnce(t)
	}()

	auth := &socket.SOCKS5Auth{Username: "alice", Password: "hunter2"}
	conn, err := socket.DialSOCKS5(context.Background(), &net.Dialer{}, srv.addr(), auth, "example.com", 80, true)
	require.NoError(t, err)
	defer conn.Close()

	<-done
	require.Equal(t, "alice", srv.gotUsername)
	require.Equal(t, "hunter2", srv.gotPassword)
}

func TestDialSOCKS5ConnectFailure(t *testing.T) {
	srv := newFakeSOCKS5Server(t)
	srv.replyCode = 0x05 // connection refused by destination
	defer srv.ln.Close()

	go srv.serveOnce(t)

	_, err := socket.DialSOCKS5(context.Background(), &net.Dialer{}, srv.addr(), nil, "example.com", 80, true)
	require.Error(t, err)
}
