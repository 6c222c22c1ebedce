package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLiteral(t *testing.T) {
	src := `var a = 1; window.masterPlaylist = { url: 'x}y', params: { token: "a{b" } }; window.next = {};`

	lit, ok := extractLiteral(src, "window.masterPlaylist", '{', '}')
	require.True(t, ok)
	assert.Equal(t, `{ url: 'x}y', params: { token: "a{b" } }`, lit)

	_, ok = extractLiteral(src, "window.missing", '{', '}')
	assert.False(t, ok)

	_, ok = extractLiteral(`window.masterPlaylist = { unterminated`, "window.masterPlaylist", '{', '}')
	assert.False(t, ok)
}

func TestDecodeJSLiteral(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]interface{}
	}{
		{
			name:     "bare keys and single quotes",
			input:    `{url: 'https://a/b?c=1', n: 2}`,
			expected: map[string]interface{}{"url": "https://a/b?c=1", "n": float64(2)},
		},
		{
			name:     "trailing commas",
			input:    `{a: [1, 2,], b: {'c': 'd',},}`,
			expected: map[string]interface{}{"a": []interface{}{float64(1), float64(2)}, "b": map[string]interface{}{"c": "d"}},
		},
		{
			name:     "embedded quotes",
			input:    `{a: 'say "hi"', b: 'it\'s'}`,
			expected: map[string]interface{}{"a": `say "hi"`, "b": "it's"},
		},
		{
			name:     "literals and comments",
			input:    "{a: true, // comment\n b: null}",
			expected: map[string]interface{}{"a": true, "b": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]interface{}
			require.NoError(t, decodeJSLiteral(tt.input, &got))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeJSLiteral_MasterPlaylist(t *testing.T) {
	lit := `{
    params: {
        'token': 'abc123',
        'expires': 4102444800,
    },
    url: 'https://vixsrc.to/playlist/98765?b=1',
}`

	cand := decodeMasterPlaylist(lit)
	require.NotNil(t, cand)
	assert.Equal(t, "https://vixsrc.to/playlist/98765?b=1", cand.rawURL)
	assert.Equal(t, "abc123", cand.token)
	assert.Equal(t, "4102444800", cand.expires)
}
