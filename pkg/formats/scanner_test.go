package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotedPairRule(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
		value   string
		want    string
		matched bool
	}{
		{
			name:    "tab separated",
			content: "\t\"key\"\t\"old\"\n",
			key:     "key", value: "new",
			want: "\t\"key\"\t\"new\"\n", matched: true,
		},
		{
			name:    "trailing text kept",
			content: "\"key\" \"old\" // comment\n",
			key:     "key", value: "new",
			want: "\"key\" \"new\" // comment\n", matched: true,
		},
		{
			name:    "only first match",
			content: "\"k\" \"1\"\n\"k\" \"2\"\n",
			key:     "k", value: "9",
			want: "\"k\" \"9\"\n\"k\" \"2\"\n", matched: true,
		},
		{
			name:    "key prefix does not match",
			content: "\"keyed\" \"old\"\n",
			key:     "key", value: "new",
			want: "\"keyed\" \"old\"\n", matched: false,
		},
		{
			name:    "unquoted value does not match",
			content: "\"key\" 5\n",
			key:     "key", value: "6",
			want: "\"key\" 5\n", matched: false,
		},
		{
			name:    "empty old value",
			content: "\"key\" \"\"",
			key:     "key", value: "x",
			want: "\"key\" \"x\"", matched: true,
		},
		{
			name:    "crlf kept",
			content: "\"a\" \"1\"\r\n\"key\" \"old\"\r\n",
			key:     "key", value: "new",
			want: "\"a\" \"1\"\r\n\"key\" \"new\"\r\n", matched: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := replaceFirst(tt.content, quotedPairRule(tt.key, tt.value))
			assert.Equal(t, tt.matched, matched)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssignmentRule(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
		value   string
		want    string
		matched bool
	}{
		{
			name:    "canonical",
			content: "key = old\n",
			key:     "key", value: "new",
			want: "key = new\n", matched: true,
		},
		{
			name:    "no spaces",
			content: "key=old\n",
			key:     "key", value: "new",
			want: "key=new\n", matched: true,
		},
		{
			name:    "indented",
			content: "[s]\n\tkey  =  old value here\n",
			key:     "key", value: "\"v\"",
			want: "[s]\n\tkey  =  \"v\"\n", matched: true,
		},
		{
			name:    "longer key does not match",
			content: "keys = old\n",
			key:     "key", value: "new",
			want: "keys = old\n", matched: false,
		},
		{
			name:    "empty value",
			content: "key =\nnext = 1\n",
			key:     "key", value: "1",
			want: "key =1\nnext = 1\n", matched: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := replaceFirst(tt.content, assignmentRule(tt.key, tt.value))
			assert.Equal(t, tt.matched, matched)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"a\n", "b"}, splitLines("a\nb"))
	assert.Empty(t, splitLines(""))
}
