package socket_test

import (
	"context"
	"net"
	"testing"
	"time"

	"httpconn/internal/socket"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// ConnTestSuite exercises socket.Conn against a real loopback TCP pair,
// grounded on the teacher's transport/test.ConnTestSuite pattern (two
// live endpoints, a safety-net timer, goleak on teardown).
type ConnTestSuite struct {
	suite.Suite

	ln         net.Listener
	serverConn net.Conn
	client     *socket.Conn
}

func (s *ConnTestSuite) SetupTest() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.ln = ln

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := socket.DialPlain(context.Background(), &net.Dialer{}, ln.Addr().String())
	s.Require().NoError(err)
	s.client = client

	select {
	case s.serverConn = <-accepted:
	case <-time.After(time.Second):
		s.FailNow("server did not accept in time")
	}

	time.AfterFunc(5*time.Second, func() {
		s.client.Close()
		s.serverConn.Close()
	})
}

func (s *ConnTestSuite) TearDownTest() {
	s.client.Close()
	s.serverConn.Close()
	s.ln.Close()
	goleak.VerifyNone(s.T())
}

func (s *ConnTestSuite) TestReadWrite() {
	go s.serverConn.Write([]byte("hello"))

	buf := make([]byte, 5)
	n, err := s.client.Read(buf)
	s.Require().NoError(err)
	s.Equal("hello", string(buf[:n]))
}

func (s *ConnTestSuite) TestClose() {
	s.Require().NoError(s.client.Close())
	_, err := s.client.Write([]byte("x"))
	s.ErrorIs(err, socket.ErrClosed)
}

func (s *ConnTestSuite) TestSetDeadlineTimesOutRead() {
	s.Require().NoError(s.client.SetDeadline(time.Now().Add(10 * time.Millisecond)))
	_, err := s.client.Read(make([]byte, 1))
	s.ErrorIs(err, socket.ErrDeadlineExceeded)
}

func TestConnSuite(t *testing.T) {
	suite.Run(t, new(ConnTestSuite))
}

func TestWrapAroundExistingConn(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	s := socket.Wrap(client)
	go server.Write([]byte("ping"))

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
}
