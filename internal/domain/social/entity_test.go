package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

func TestParseEdgeKind(t *testing.T) {
	k, err := ParseEdgeKind("follow")
	require.NoError(t, err)
	assert.Equal(t, KindFollow, k)

	_, err = ParseEdgeKind("block")
	assert.True(t, shared.IsInvalidInput(err))
}

func TestEdgeKind_Accepts(t *testing.T) {
	assert.True(t, KindFollow.Accepts(TargetActor))
	assert.False(t, KindFollow.Accepts(TargetContent))
	assert.True(t, KindLike.Accepts(TargetContent))
	assert.True(t, KindLike.Accepts(TargetComment))
	assert.False(t, KindLike.Accepts(TargetActor))
}

func TestPresence_Toggle(t *testing.T) {
	p := Absent
	for i := 0; i < 4; i++ {
		p = p.Toggle()
	}
	assert.Equal(t, Absent, p)
	assert.Equal(t, Present, p.Toggle())
	assert.Equal(t, "present", Present.String())
}

func TestNewEdge(t *testing.T) {
	a, b := shared.NewID(), shared.NewID()

	e, err := NewEdge(NewEdgeParams{SourceID: a, TargetID: b, Kind: KindFollow, TargetType: TargetActor})
	require.NoError(t, err)
	assert.Equal(t, Key{SourceID: a, TargetID: b, Kind: KindFollow}, e.Key())

	_, err = NewEdge(NewEdgeParams{SourceID: a, TargetID: a, Kind: KindFollow, TargetType: TargetActor})
	assert.True(t, shared.IsInvalidOperation(err))

	_, err = NewEdge(NewEdgeParams{SourceID: a, TargetID: b, Kind: KindLike, TargetType: TargetActor})
	assert.True(t, shared.IsInvalidInput(err))

	_, err = NewEdge(NewEdgeParams{SourceID: "x", TargetID: b, Kind: KindLike, TargetType: TargetContent})
	assert.True(t, shared.IsInvalidInput(err))

	_, err = NewEdge(NewEdgeParams{SourceID: a, TargetID: b, TargetType: TargetContent})
	assert.True(t, shared.IsInvalidInput(err))
}
