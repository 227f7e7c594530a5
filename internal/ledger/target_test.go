package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "clean url", in: "https://www.linkedin.com/in/jane", want: "https://www.linkedin.com/in/jane"},
		{name: "query params", in: "https://www.linkedin.com/in/jane?miniProfileUrn=urn%3Ali", want: "https://www.linkedin.com/in/jane"},
		{name: "trailing slash", in: "https://www.linkedin.com/in/jane/", want: "https://www.linkedin.com/in/jane"},
		{name: "fragment", in: "https://www.linkedin.com/in/jane/#experience", want: "https://www.linkedin.com/in/jane"},
		{name: "upper case host", in: "https://WWW.LinkedIn.com/in/jane", want: "https://www.linkedin.com/in/jane"},
		{name: "plain http", in: "http://www.linkedin.com/in/jane", want: "https://www.linkedin.com/in/jane"},
		{name: "bare domain", in: "https://linkedin.com/in/jane/", want: "https://www.linkedin.com/in/jane"},
		{name: "bare domain over http", in: "http://LinkedIn.com/in/jane?trk=x", want: "https://www.linkedin.com/in/jane"},
		{name: "other host keeps scheme", in: "http://example.com/in/jane", want: "http://example.com/in/jane"},
		{name: "surrounding space", in: "  https://x/in/a  ", want: "https://x/in/a"},
		{name: "display name", in: "  Jane   Doe ", want: "Jane Doe"},
		{name: "not http", in: "mailto:jane@example.com", want: "mailto:jane@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHostVariantsShareOneKey(t *testing.T) {
	l := NewMemory()
	require.NoError(t, l.RecordContacted(context.Background(), "http://linkedin.com/in/jane", "hi"))

	assert.True(t, l.HasContacted("https://www.linkedin.com/in/jane"))
	assert.True(t, l.HasContacted("https://linkedin.com/in/jane/"))
	assert.Equal(t, 1, l.Len())
}

func TestNormalizeBlank(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrEmptyTarget)
	}
}

func TestIsProfileURL(t *testing.T) {
	assert.True(t, IsProfileURL("https://www.linkedin.com/in/jane"))
	assert.False(t, IsProfileURL("https://www.linkedin.com/in/"))
	assert.False(t, IsProfileURL("https://www.linkedin.com/company/acme"))
	assert.False(t, IsProfileURL("Jane Doe"))
}
