package socket

import (
	"context"
	"net"

	"httpconn/internal/ipaddr/ipv4"
	"httpconn/internal/ipaddr/ipv6"

	"github.com/pkg/errors"
)

// SOCKS5Auth carries optional username/password auth for a proxy.
type SOCKS5Auth struct {
	Username, Password string
}

const (
	socks5Version = 0x05

	socks5MethodNoAuth   = 0x00
	socks5MethodUserPass = 0x02
	socks5MethodNoAccept = 0xFF

	socks5CmdConnect = 0x01

	socks5AtypIPv4   = 0x01
	socks5AtypDomain = 0x03
	socks5AtypIPv6   = 0x04
)

// DialSOCKS5 opens a connection to proxyAddr and issues a CONNECT for
// targetHost:targetPort. When resolveRemotely is true (or targetHost is
// not a literal IP address), the hostname is sent to the proxy as a
// domain-name ATYP so the proxy performs DNS resolution — the SOCKS5
// counterpart of the original's "proxy_hostnames" setting.
func DialSOCKS5(
	ctx context.Context,
	dialer *net.Dialer,
	proxyAddr string,
	auth *SOCKS5Auth,
	targetHost string,
	targetPort int,
	resolveRemotely bool,
) (net.Conn, error) {
	conn, err := dialer.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, errors.Wrap(err, "dialing SOCKS5 proxy")
	}

	if err := socks5Handshake(conn, auth, targetHost, targetPort, resolveRemotely); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func socks5Handshake(conn net.Conn, auth *SOCKS5Auth, targetHost string, targetPort int, resolveRemotely bool) error {
	methods := []byte{socks5MethodNoAuth}
	if auth != nil {
		methods = []byte{socks5MethodUserPass, socks5MethodNoAuth}
	}

	greeting := append([]byte{socks5Version, byte(len(methods))}, methods...)
	if _, err := conn.Write(greeting); err != nil {
		return errors.Wrap(err, "writing SOCKS5 greeting")
	}

	resp := make([]byte, 2)
	if _, err := readFull(conn, resp); err != nil {
		return errors.Wrap(err, "reading SOCKS5 greeting response")
	}
	if resp[0] != socks5Version {
		return errors.New("SOCKS5: unexpected version in greeting response")
	}

	switch resp[1] {
	case socks5MethodNoAuth:
	case socks5MethodUserPass:
		if auth == nil {
			return errors.New("SOCKS5: proxy requires auth but none was configured")
		}
		if err := socks5Authenticate(conn, auth); err != nil {
			return err
		}
	case socks5MethodNoAccept:
		return errors.New("SOCKS5: no acceptable auth method")
	default:
		return errors.New("SOCKS5: unsupported auth method selected")
	}

	req, err := socks5ConnectRequest(targetHost, targetPort, resolveRemotely)
	if err != nil {
		return err
	}
	if _, err := conn.Write(req); err != nil {
		return errors.Wrap(err, "writing SOCKS5 connect request")
	}

	return socks5ReadConnectReply(conn)
}

func socks5Authenticate(conn net.Conn, auth *SOCKS5Auth) error {
	if len(auth.Username) > 255 || len(auth.Password) > 255 {
		return errors.New("SOCKS5: username/password must each be <= 255 bytes")
	}

	req := []byte{0x01, byte(len(auth.Username))}
	req = append(req, auth.Username...)
	req = append(req, byte(len(auth.Password)))
	req = append(req, auth.Password...)

	if _, err := conn.Write(req); err != nil {
		return errors.Wrap(err, "writing SOCKS5 auth request")
	}

	resp := make([]byte, 2)
	if _, err := readFull(conn, resp); err != nil {
		return errors.Wrap(err, "reading SOCKS5 auth response")
	}
	if resp[1] != 0x00 {
		return errors.New("SOCKS5: username/password authentication failed")
	}

	return nil
}

func socks5ConnectRequest(targetHost string, targetPort int, resolveRemotely bool) ([]byte, error) {
	req := []byte{socks5Version, socks5CmdConnect, 0x00}

	if !resolveRemotely {
		if addr, err := ipv4.ParseAddr(targetHost); err == nil {
			req = append(req, socks5AtypIPv4)
			req = append(req, addr[:]...)
			return appendPort(req, targetPort), nil
		}
		if addr, err := ipv6.ParseAddr(targetHost); err == nil {
			req = append(req, socks5AtypIPv6)
			req = append(req, addr[:]...)
			return appendPort(req, targetPort), nil
		}
	}

	if len(targetHost) > 255 {
		return nil, errors.New("SOCKS5: domain name too long")
	}
	req = append(req, socks5AtypDomain, byte(len(targetHost)))
	req = append(req, targetHost...)
	return appendPort(req, targetPort), nil
}

func appendPort(req []byte, port int) []byte {
	return append(req, byte((port>>8)&0xFF), byte(port&0xFF))
}

func socks5ReadConnectReply(conn net.Conn) error {
	head := make([]byte, 4)
	if _, err := readFull(conn, head); err != nil {
		return errors.Wrap(err, "reading SOCKS5 connect reply header")
	}
	if head[0] != socks5Version {
		return errors.New("SOCKS5: unexpected version in connect reply")
	}
	if head[1] != 0x00 {
		return errors.Errorf("SOCKS5: connect request failed, reply code 0x%02x", head[1])
	}

	var addrLen int
	switch head[3] {
	case socks5AtypIPv4:
		addrLen = 4
	case socks5AtypDomain:
		l := make([]byte, 1)
		if _, err := readFull(conn, l); err != nil {
			return errors.Wrap(err, "reading SOCKS5 bound domain length")
		}
		addrLen = int(l[0])
	case socks5AtypIPv6:
		addrLen = 16
	default:
		return errors.New("SOCKS5: unknown address type in connect reply")
	}

	if addrLen > 0 {
		buf := make([]byte, addrLen)
		if _, err := readFull(conn, buf); err != nil {
			return errors.Wrap(err, "reading SOCKS5 bound address")
		}
	}

	port := make([]byte, 2)
	if _, err := readFull(conn, port); err != nil {
		return errors.Wrap(err, "reading SOCKS5 bound port")
	}

	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
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
