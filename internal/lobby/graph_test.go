package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestGraph(t *testing.T) {
	g := newRequestGraph()

	assert.True(t, g.add("a", "b"))
	assert.False(t, g.add("a", "b"))
	assert.True(t, g.add("b", "a"))
	assert.True(t, g.add("c", "a"))
	assert.Equal(t, 3, g.size())

	assert.Equal(t, []string{"b"}, g.outgoing("a"))
	assert.Equal(t, []string{"b", "c"}, g.incoming("a"))
	assert.Equal(t, []string{}, g.outgoing("nobody"))

	assert.True(t, g.remove("b", "a"))
	assert.False(t, g.remove("b", "a"))
	assert.Equal(t, []string{"c"}, g.incoming("a"))

	assert.Equal(t, []string{"b", "c"}, g.detach("a"))
	assert.Zero(t, g.size())
	assert.Empty(t, g.out)
	assert.Empty(t, g.in)
}
