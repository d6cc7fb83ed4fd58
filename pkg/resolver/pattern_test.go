package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	t.Run("must start with a slash", func(t *testing.T) {
		_, err := Compile("api/users")
		assert.Error(t, err)
		_, err = Compile("")
		assert.Error(t, err)
	})

	t.Run("rejects empty segments", func(t *testing.T) {
		_, err := Compile("/api//users")
		assert.Error(t, err)
	})

	t.Run("counts literal segments", func(t *testing.T) {
		p, err := Compile("/api/users/{userId}/orders")
		require.NoError(t, err)
		assert.Equal(t, 3, p.literals)
		assert.Equal(t, "/api/users/{userId}/orders", p.Raw())
	})
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/api/users", "/api/users", true},
		{"/api/users", "/api/users/", true},
		{"/api/users", "/api/orders", false},
		{"/api/users/{userId}", "/api/users/42", true},
		{"/api/users/{userId}", "/api/users", false},
		{"/api/users/{userId}", "/api/users/42/orders", false},
		{"/api/{x}/orders", "/api//orders", false},
		{"/api/users/{userId}", "/api/users//", false},
		{"/api/{resource}/{id}", "/api/users/42", true},
		{"/", "/", true},
		{"/", "/api", false},
	}
	for _, tt := range tests {
		p, err := Compile(tt.pattern)
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.Match(tt.path), "%s vs %s", tt.pattern, tt.path)
	}
}

func TestSpecificity(t *testing.T) {
	compile := func(raw string) *Pattern {
		p, err := Compile(raw)
		require.NoError(t, err)
		return p
	}

	t.Run("more literals wins", func(t *testing.T) {
		literal := compile("/api/users/me")
		variable := compile("/api/users/{userId}")
		assert.True(t, literal.MoreSpecificThan(variable))
		assert.False(t, variable.MoreSpecificThan(literal))
	})

	t.Run("equal literals, leftmost literal position wins", func(t *testing.T) {
		a := compile("/api/{x}/users")
		b := compile("/{x}/api/users")
		assert.True(t, a.MoreSpecificThan(b))
		assert.False(t, b.MoreSpecificThan(a))
	})

	t.Run("full tie breaks lexicographically", func(t *testing.T) {
		a := compile("/api/{x}/alpha")
		b := compile("/api/{x}/beta")
		assert.True(t, a.MoreSpecificThan(b))
		assert.False(t, b.MoreSpecificThan(a))
	})

	t.Run("ordering is total for distinct matching patterns", func(t *testing.T) {
		a := compile("/api/users/{id}")
		b := compile("/api/{resource}/42")
		// same literal count; positions 0 match, position 1 differs
		assert.True(t, a.MoreSpecificThan(b) != b.MoreSpecificThan(a))
	})
}
