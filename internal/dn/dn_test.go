package dn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse("uid=bob,ou=People,dc=example,dc=com")
	require.NoError(t, err)
	assert.Equal(t, 4, d.NumRDNs())
	assert.Equal(t, "uid=bob,ou=People,dc=example,dc=com", d.String())
	assert.Equal(t, "uid=bob,ou=people,dc=example,dc=com", d.Normalized())
}

func TestParseRoot(t *testing.T) {
	for _, s := range []string{"", "   "} {
		d, err := Parse(s)
		require.NoError(t, err)
		assert.True(t, d.IsRoot())
		assert.Equal(t, "", d.String())
		assert.Nil(t, d.Parent())
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"not a dn", "uid=bob,,dc=com", "=value"} {
		_, err := Parse(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, ErrInvalidDN), s)
	}
}

func TestParent(t *testing.T) {
	d := MustParse("uid=bob,dc=example,dc=com")

	parent := d.Parent()
	require.NotNil(t, parent)
	assert.Equal(t, "dc=example,dc=com", parent.String())

	assert.Nil(t, MustParse("dc=com").Parent())
}

func TestParentInSuffix(t *testing.T) {
	suffix := MustParse("dc=example,dc=com")
	isSuffix := func(d *DN) bool { return d.Equal(suffix) }

	assert.Nil(t, suffix.ParentInSuffix(isSuffix))
	assert.Equal(t, "dc=example,dc=com",
		MustParse("ou=people,dc=example,dc=com").ParentInSuffix(isSuffix).String())
	assert.Nil(t, MustParse("o=orphan").ParentInSuffix(isSuffix))
}

func TestEqualAndDescendant(t *testing.T) {
	a := MustParse("UID=Bob,DC=Example,DC=com")
	b := MustParse("uid=bob,dc=example,dc=com")
	base := MustParse("dc=example,dc=com")

	assert.True(t, a.Equal(b))
	assert.True(t, a.IsDescendantOf(base))
	assert.False(t, base.IsDescendantOf(a))
	assert.True(t, base.IsWithin(base))
	assert.True(t, a.IsDescendantOf(Root()))
	assert.False(t, Root().IsDescendantOf(Root()))
	assert.True(t, Root().Equal(&DN{}))
	assert.False(t, Root().Equal(base))
}

func TestParseRDN(t *testing.T) {
	r, err := ParseRDN("cn=Robert Smith")
	require.NoError(t, err)
	assert.Equal(t, []AVA{{Type: "cn", Value: "Robert Smith"}}, r.AVAs())

	_, err = ParseRDN("cn=a,dc=com")
	assert.True(t, errors.Is(err, ErrInvalidRDN))

	_, err = ParseRDN("")
	assert.True(t, errors.Is(err, ErrInvalidRDN))
}

func TestChild(t *testing.T) {
	r, err := ParseRDN("uid=carol")
	require.NoError(t, err)

	child := MustParse("ou=people,dc=example,dc=com").Child(r)
	assert.Equal(t, "uid=carol,ou=people,dc=example,dc=com", child.String())
	assert.Equal(t, "uid=carol", Root().Child(r).String())
}

func TestEscapeValue(t *testing.T) {
	tests := map[string]string{
		"plain":      "plain",
		"a,b":        `a\,b`,
		"#hash":      `\#hash`,
		" lead":      `\ lead`,
		"trail ":     `trail\ `,
		`back\slash`: `back\\slash`,
		"a=b":        "a=b",
		"nul\x00":    `nul\00`,
	}
	for in, want := range tests {
		assert.Equal(t, want, EscapeValue(in), in)
	}
}
