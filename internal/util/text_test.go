package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadRight(t *testing.T) {
	tests := []struct {
		name     string
		str      string
		width    int
		expected string
	}{
		{"Empty string", "", 5, "     "},
		{"Short string", "abc", 10, "abc       "},
		{"Exact width", "hello", 5, "hello"},
		{"String too long", "this is a very long string", 10, "this is..."},
		{"Wide characters", "你好", 8, "你好    "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PadRight(tt.str, tt.width))
		})
	}
}

func TestEncodeTXT(t *testing.T) {
	tests := []struct {
		name     string
		attrs    map[string]string
		expected []string
	}{
		{"Nil map", nil, nil},
		{"Empty map", map[string]string{}, nil},
		{"Single pair", map[string]string{"path": "/api"}, []string{"path=/api"}},
		{"Sorted keys", map[string]string{"ver": "2", "desc": "printer", "path": "/"},
			[]string{"desc=printer", "path=/", "ver=2"}},
		{"Empty value", map[string]string{"secure": ""}, []string{"secure="}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EncodeTXT(tt.attrs))
		})
	}
}

func TestDecodeTXT(t *testing.T) {
	tests := []struct {
		name     string
		pairs    []string
		expected map[string]string
	}{
		{"Nil slice", nil, nil},
		{"Empty strings only", []string{""}, nil},
		{"Single pair", []string{"path=/api"}, map[string]string{"path": "/api"}},
		{"Value containing equals", []string{"query=a=b"}, map[string]string{"query": "a=b"}},
		{"Flag without value", []string{"secure"}, map[string]string{"secure": ""}},
		{"Duplicate key keeps last", []string{"v=1", "v=2"}, map[string]string{"v": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DecodeTXT(tt.pairs))
		})
	}
}
