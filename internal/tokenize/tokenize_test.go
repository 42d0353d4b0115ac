package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"HTMLParser", []string{"HTML", "Parser"}},
		{"parseXMLStream", []string{"parse", "XML", "Stream"}},
		{"init", []string{"init"}},
		{"base64Decode", []string{"base", "64", "Decode"}},
		{"HTTP", []string{"HTTP"}},
		{"simple", []string{"simple"}},
		{"ID", []string{"ID"}},
		{"IOError", []string{"IO", "Error"}},
		{"toJSON", []string{"to", "JSON"}},
		{"a2b", []string{"a", "2", "b"}},
	}
	for _, tc := range cases {
		got := SplitIdentifier(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"HTMLParser", []string{"html", "parser"}},
		{"parseXMLStream", []string{"parse", "xml", "stream"}},
		{"__init__", []string{"init"}},
		{"base64Decode", []string{"base", "64", "decode"}},
		{"HTTP", []string{"http"}},
		{"snake_case_name", []string{"snake", "case", "name"}},
		{"", nil},
		{"___", nil},
		{"func getUserByID(ctx Context) error", []string{
			"func", "get", "user", "by", "id", "ctx", "context", "error",
		}},
	}
	for _, tc := range cases {
		got := Tokenize(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestTokenize_DigitRun(t *testing.T) {
	got := Tokenize("md5sum")
	assert.Equal(t, []string{"md", "5", "sum"}, got)
}

func TestSplitIdentifier_Empty(t *testing.T) {
	assert.Nil(t, SplitIdentifier(""))
}
