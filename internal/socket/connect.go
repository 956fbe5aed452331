package socket

import (
	"bufio"
	"context"
	"encoding/base64"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// HTTPProxyAuth carries Basic auth credentials for a CONNECT tunnel or a
// plain HTTP-proxy request.
type HTTPProxyAuth struct {
	Username, Password string
}

// DialHTTPConnect opens a connection to proxyAddr, issues an HTTP CONNECT
// for target ("host:port") and returns the tunneled connection once the
// proxy replies 200. TLS, if any, is layered on top by the caller via
// Conn.UpgradeTLS — this only establishes the raw tunnel.
func DialHTTPConnect(ctx context.Context, dialer *net.Dialer, proxyAddr string, auth *HTTPProxyAuth, target string) (net.Conn, error) {
	conn, err := dialer.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, errors.Wrap(err, "dialing HTTP proxy")
	}

	if err := httpConnect(conn, auth, target); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func httpConnect(conn net.Conn, auth *HTTPProxyAuth, target string) error {
	bw := bufio.NewWriter(conn)

	if _, err := bw.WriteString("CONNECT " + target + " HTTP/1.1\r\n"); err != nil {
		return errors.Wrap(err, "writing CONNECT line")
	}
	if _, err := bw.WriteString("Host: " + target + "\r\n"); err != nil {
		return errors.Wrap(err, "writing CONNECT Host header")
	}
	if auth != nil {
		if _, err := bw.WriteString("Proxy-Authorization: Basic " + basicAuth(auth.Username, auth.Password) + "\r\n"); err != nil {
			return errors.Wrap(err, "writing Proxy-Authorization header")
		}
	}
	if _, err := bw.WriteString("Connection: keep-alive\r\n\r\n"); err != nil {
		return errors.Wrap(err, "writing CONNECT terminator")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing CONNECT request")
	}

	br := bufio.NewReader(conn)
	code, err := readConnectStatusLine(br)
	if err != nil {
		return errors.Wrap(err, "reading CONNECT status line")
	}
	if err := skipHeaders(br); err != nil {
		return errors.Wrap(err, "reading CONNECT response headers")
	}
	if code != 200 {
		return errors.Errorf("HTTP proxy CONNECT failed: status %d", code)
	}

	return nil
}

func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

func readConnectStatusLine(br *bufio.Reader) (int, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimRight(line, "\r\n")

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, errors.Errorf("malformed status line: %q", line)
	}

	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrap(err, "parsing status code")
	}

	return code, nil
}

func skipHeaders(br *bufio.Reader) error {
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.TrimRight(line, "\r\n") == "" {
			return nil
		}
	}
}
