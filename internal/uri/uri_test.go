package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

var examplePairs = []struct {
	desc string
	raw  string
	uri  URI
}{
	{
		raw: "ftp://ftp.is.co.za/rfc/rfc1808.txt",
		uri: URI{
			Scheme:    "ftp",
			Authority: &Authority{Host: "ftp.is.co.za", Port: -1},
			Path:      "/rfc/rfc1808.txt",
		},
	},
	{
		raw: "http://www.ietf.org/rfc/rfc2396.txt",
		uri: URI{
			Scheme:    "http",
			Authority: &Authority{Host: "www.ietf.org", Port: -1},
			Path:      "/rfc/rfc2396.txt",
		},
	},
	{
		raw: "ldap://[2001:db8::7]/c=GB?objectClass?one",
		uri: URI{
			Scheme:    "ldap",
			Authority: &Authority{Host: "[2001:db8::7]", Port: -1},
			Path:      "/c=GB",
			Query:     strPtr("objectClass?one"),
		},
	},
	{
		raw: "mailto:John.Doe@example.com",
		uri: URI{
			Scheme: "mailto",
			Path:   "John.Doe@example.com",
		},
	},
	{
		raw: "news:comp.infosystems.www.servers.unix",
		uri: URI{
			Scheme: "news",
			Path:   "comp.infosystems.www.servers.unix",
		},
	},
	{
		raw: "tel:+1-816-555-1212",
		uri: URI{
			Scheme: "tel",
			Path:   "+1-816-555-1212",
		},
	},
	{
		raw: "telnet://192.0.2.16:80/",
		uri: URI{
			Scheme:    "telnet",
			Authority: &Authority{Host: "192.0.2.16", Port: 80},
			Path:      "/",
		},
	},
	{
		raw: "urn:oasis:names:specification:docbook:dtd:xml:4.1.2",
		uri: URI{
			Scheme: "urn",
			Path:   "oasis:names:specification:docbook:dtd:xml:4.1.2",
		},
	},
	{
		desc: "relative reference (network-path)",
		raw:  "//localhost/",
		uri: URI{
			Authority: &Authority{Host: "localhost", Port: -1},
			Path:      "/",
		},
	},
	{
		desc: "relative reference (relative-path)",
		raw:  "path/relative/ref",
		uri:  URI{Path: "path/relative/ref"},
	},
	{
		desc: "relative reference (empty)",
		raw:  "",
		uri:  URI{},
	},
}

func TestIsValid(t *testing.T) {
	for _, example := range examplePairs {
		desc := example.desc
		if desc == "" {
			desc = example.raw
		}
		t.Run(desc, func(t *testing.T) {
			assert.NoError(t, example.uri.IsValid())
		})
	}
}

func TestURIString(t *testing.T) {
	for _, example := range examplePairs {
		desc := example.desc
		if desc == "" {
			desc = example.raw
		}
		t.Run(desc, func(t *testing.T) {
			assert.Equal(t, example.raw, example.uri.String())
		})
	}
}

func TestNormalize(t *testing.T) {
	testcases := []struct {
		desc   string
		input  URI
		output URI
	}{
		{
			desc: "lowercase scheme and host",
			input: URI{
				Scheme:    "HTTP",
				Authority: &Authority{Host: "www.EXAMPLE.com", Port: -1},
			},
			output: URI{
				Scheme:    "http",
				Authority: &Authority{Host: "www.example.com", Port: -1},
			},
		},
		{
			desc: "removes percent encoding",
			input: URI{
				Scheme:    "example",
				Authority: &Authority{Host: "a", Port: -1},
				Path:      "/b/c/%7Bfoo%7D",
			},
			output: URI{
				Scheme:    "example",
				Authority: &Authority{Host: "a", Port: -1},
				Path:      "/b/c/{foo}",
			},
		},
		{
			desc: "removes dot segments",
			input: URI{
				Scheme: "example",
				Path:   "/a/b/c/./../../g",
			},
			output: URI{
				Scheme: "example",
				Path:   "/a/g",
			},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			out, err := Normalize(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.output, out)
		})
	}
}

func TestParse(t *testing.T) {
	testcases := []struct {
		desc    string
		input   string
		uri     URI
		wantErr bool
	}{
		{
			desc:  "scheme is lowercased",
			input: "HTTP://localhost",
			uri: URI{
				Scheme:    "http",
				Authority: &Authority{Host: "localhost", Port: -1},
			},
		},
		{
			desc:  "host is lowercased",
			input: "http://LOcalHOST",
			uri: URI{
				Scheme:    "http",
				Authority: &Authority{Host: "localhost", Port: -1},
			},
		},
		{
			desc:    "contains CTL (control byte)",
			input:   "\t",
			wantErr: true,
		},
		{
			desc:    "malformed IP literal",
			input:   "http://[::1",
			wantErr: true,
		},
		{
			desc:    "port with leading zero",
			input:   "http://localhost:0080",
			wantErr: true,
		},
	}
	for _, example := range examplePairs {
		desc := example.desc
		if desc == "" {
			desc = example.raw
		}
		testcases = append(testcases, struct {
			desc    string
			input   string
			uri     URI
			wantErr bool
		}{desc: desc, input: example.raw, uri: example.uri})
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := Parse(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.uri, got)
		})
	}
}

func TestParseAuthority(t *testing.T) {
	testcases := []struct {
		desc      string
		input     string
		authority Authority
		wantErr   bool
	}{
		{
			desc:  "userinfo, host and port",
			input: "user:pass@example.com:8080",
			authority: Authority{
				UserInfo: "user:pass",
				Host:     "example.com",
				Port:     8080,
			},
		},
		{
			desc:  "no user info",
			input: "example.com:8080",
			authority: Authority{
				Host: "example.com",
				Port: 8080,
			},
		},
		{
			desc:  "no port",
			input: "example.com",
			authority: Authority{
				Host: "example.com",
				Port: -1,
			},
		},
		{
			desc:  "no host",
			input: "user:pass@:8080",
			authority: Authority{
				UserInfo: "user:pass",
				Port:     8080,
			},
		},
		{
			desc:  "IP literal with port",
			input: "[::1]:8080",
			authority: Authority{
				Host: "[::1]",
				Port: 8080,
			},
		},
		{
			desc:    "malformed IP literal",
			input:   "[::1",
			wantErr: true,
		},
		{
			desc:    "port exceeds 16 bits",
			input:   "example.com:100000",
			wantErr: true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			authority, err := parseAuthority(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.authority, authority)
		})
	}
}
