package ownership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

func TestAuthorize_EveryEntityType(t *testing.T) {
	owner, stranger := shared.NewID(), shared.NewID()

	item, err := content.NewPost(owner, "hi")
	require.NoError(t, err)
	playlist, err := content.NewPlaylist(owner, "mix", "")
	require.NoError(t, err)
	comment, err := content.NewComment(owner, item.ID, "nice")
	require.NoError(t, err)

	for name, e := range map[string]Owned{"item": item, "playlist": playlist, "comment": comment} {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, Authorize(owner, e))
			assert.ErrorIs(t, Authorize(stranger, e), shared.ErrForbidden)
			assert.ErrorIs(t, Authorize("", e), shared.ErrForbidden)
		})
	}
}

func TestOwnerGuard(t *testing.T) {
	var g Guard = OwnerGuard{}
	assert.True(t, shared.IsForbidden(g.Authorize("a", nil)))
}
