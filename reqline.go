package httpconn

import (
	"encoding/base64"
	"net"
	"strconv"
	"strings"

	"httpconn/internal/uri"
)

// buildRequestLine composes the request line and header block exactly
// per the wire-behavior rules: Host always present, User-Agent /
// Accept-Encoding / Authorization / Proxy-Authorization each only when
// applicable, Connection: close always last.
func buildRequestLine(scheme, host string, port int, target string, opts GetOptions, auth string, sendProxyAuth bool) string {
	var b strings.Builder

	b.WriteString("GET ")
	b.WriteString(target)
	b.WriteString(" HTTP/1.1\r\n")

	b.WriteString("Host: ")
	b.WriteString(hostHeaderValue(scheme, host, port))
	b.WriteString("\r\n")

	if opts.UserAgent != "" {
		b.WriteString("User-Agent: ")
		b.WriteString(opts.UserAgent)
		b.WriteString("\r\n")
	}

	if opts.Bottled {
		b.WriteString("Accept-Encoding: gzip\r\n")
	}

	if auth != "" {
		b.WriteString("Authorization: Basic ")
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(auth)))
		b.WriteString("\r\n")
	}

	if sendProxyAuth && opts.Proxy != nil && opts.Proxy.Username != "" {
		b.WriteString("Proxy-Authorization: Basic ")
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(opts.Proxy.Username + ":" + opts.Proxy.Password)))
		b.WriteString("\r\n")
	}

	b.WriteString("Connection: close\r\n\r\n")

	return b.String()
}

// hostHeaderValue omits the port when it equals the scheme's default, per
// RFC 9110 4.2.3.
func hostHeaderValue(scheme, host string, port int) string {
	if port == uri.DefaultPort(scheme) {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// requestTarget picks origin-form ("/path?query") except for a plain-HTTP
// request going through an HTTP proxy, which must use absolute-form.
func requestTarget(rawURL, path string, scheme string, proxy *ProxyConfig) (target string, viaProxy bool) {
	if proxy != nil && proxy.Kind == ProxyHTTP && scheme != "https" {
		return rawURL, true
	}
	return path, false
}
