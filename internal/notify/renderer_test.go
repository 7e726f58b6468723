package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkazmier/projectwatch/internal/domain"
)

func TestRenderer_Render(t *testing.T) {
	r, err := NewRenderer("https://scratch.mit.edu")
	require.NoError(t, err)

	body, err := r.Render("alice", domain.Project{ID: "104", Title: "Pong Remix"})
	require.NoError(t, err)

	assert.Equal(t,
		"New project by **alice**!\nTitle: Pong Remix\nLink: https://scratch.mit.edu/projects/104/",
		body)
}

func TestRenderer_Render_Deterministic(t *testing.T) {
	r, err := NewRenderer("https://scratch.mit.edu")
	require.NoError(t, err)

	item := domain.Project{ID: "7", Title: "Maze"}

	first, err := r.Render("bob", item)
	require.NoError(t, err)
	second, err := r.Render("bob", item)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderer_Render_EmptyTitle(t *testing.T) {
	r, err := NewRenderer("https://scratch.mit.edu")
	require.NoError(t, err)

	body, err := r.Render("alice", domain.Project{ID: "9"})
	require.NoError(t, err)

	assert.Contains(t, body, "Title: \n")
	assert.Contains(t, body, "https://scratch.mit.edu/projects/9/")
}

func TestRenderer_ProjectURL(t *testing.T) {
	r, err := NewRenderer("https://scratch.mit.edu/")
	require.NoError(t, err)

	assert.Equal(t, "https://scratch.mit.edu/projects/104/", r.ProjectURL("104"),
		"trailing slash in the base must not double up")
}
