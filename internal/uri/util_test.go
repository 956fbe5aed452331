package uri

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidComponent(t *testing.T) {
	testcases := []struct {
		desc  string
		input string
		extra string
		valid bool
	}{
		{desc: "unreserved only", input: "abc-123._~", valid: true},
		{desc: "sub-delim always allowed", input: "a;b=c", valid: true},
		{desc: "percent-encoded", input: "100%25", valid: true},
		{desc: "extra byte allowed for this component", input: "a:b", extra: ":", valid: true},
		{desc: "extra byte rejected outside its component", input: "a:b", valid: false},
		{desc: "truncated percent escape", input: "a%2", valid: false},
	}
	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.valid, isValidComponent(tc.input, tc.extra))
		})
	}
}

func TestAssertValidScheme(t *testing.T) {
	testcases := []struct {
		desc    string
		input   string
		wantErr bool
	}{
		{desc: "single char (alpha)", input: "A"},
		{desc: "example", input: "http"},
		{desc: "'+', '-', '.' are allowed", input: "ht+-.tp"},
		{desc: "empty", input: "", wantErr: true},
		{desc: "first char not alpha", input: "+http", wantErr: true},
		{desc: "invalid char", input: "ht=tp", wantErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			err := assertValidScheme(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAssertValidHost(t *testing.T) {
	testcases := []struct {
		desc    string
		input   string
		wantErr bool
	}{
		{desc: "example (reg-name)", input: "example.com"},
		{desc: "example (ipv4)", input: "127.0.0.1"},
		{desc: "example (ip literal, ipv6)", input: "[::]"},
		{desc: "example (ip literal, ipvfuture)", input: "[vF.0:1:32342442:1]"},
		{desc: "empty (valid)", input: ""},
		{desc: "length limit exceeded", input: strings.Repeat("A", 256), wantErr: true},
		{desc: "invalid char", input: "example/.com", wantErr: true},
		{desc: "malformed ip literal", input: "[hey trust me]", wantErr: true},
		{desc: "isn't even ip literal", input: "[example.com", wantErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			err := assertValidHost(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIsIPvFuture(t *testing.T) {
	testcases := []struct {
		desc  string
		input string
		valid bool
	}{
		{desc: "example", input: "v8.123:123:123", valid: true},
		{desc: "non-hex", input: "vz.53:123"},
		{desc: "no v", input: "3.53:123"},
		{desc: "no .", input: "v353:123"},
		{desc: "too short", input: "v3"},
		{desc: "reserved character", input: "v3.123:/123"},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.valid, isIPvFuture(tc.input))
		})
	}
}

func TestAssertValidPath(t *testing.T) {
	testcases := []struct {
		desc         string
		input        string
		hasAuthority bool
		isRelative   bool
		wantErr      bool
	}{
		{desc: "absolute path", input: "/path/to/resource"},
		{desc: "non-relative path starts with '//'", input: "//path/to/resource", wantErr: true},
		{desc: "relative path (rootless)", input: "path/to/resource", isRelative: true},
		{desc: "relative path (rootless) 2", input: "../path/to/resource", isRelative: true},
		{desc: "relative reference with absolute path", input: "/hey/there", isRelative: true},
		{
			desc:       "relative path with colon on first segment",
			input:      "oh:/hey/there",
			isRelative: true,
			wantErr:    true,
		},
		{desc: "has authority", input: "/path/to/resource", hasAuthority: true},
		{desc: "has authority (empty)", input: "", hasAuthority: true},
		{
			desc:         "has authority (wrong start char)",
			input:        "v/path/to/resource",
			hasAuthority: true,
			isRelative:   true,
			wantErr:      true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			err := assertValidPath(tc.input, tc.hasAuthority, tc.isRelative)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRemoveDotSegments(t *testing.T) {
	testcases := []struct {
		desc  string
		input string
		want  string
	}{
		{desc: "rfc example", input: "/a/b/c/./../../g", want: "/a/g"},
		{desc: "rfc example 2", input: "mid/content=5/../6", want: "mid/6"},
		{desc: "leading dot-dot dropped", input: "../a", want: "a"},
		{desc: "trailing dot-dot at root stays at root", input: "/a/..", want: "/"},
		{desc: "no dot segments", input: "/a/b/c", want: "/a/b/c"},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, removeDotSegments(tc.input))
		})
	}
}
