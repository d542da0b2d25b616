package streaming

import (
	"testing"

	"github.com/OCAP2/tetrad/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestMessageConstructors(t *testing.T) {
	snap := &core.FrameSnapshot{Frame: 7, Units: make([]core.WorldUnit, 2)}

	u := Update(snap)
	assert.Equal(t, KindUpdate, u.Kind)
	assert.Same(t, snap, u.Snapshot)
	assert.False(t, u.IsStop())
	assert.Equal(t, "update frame=7 units=2 ballistics=0", u.String())

	s := Stop()
	assert.True(t, s.IsStop())
	assert.Nil(t, s.Snapshot)
	assert.Equal(t, "stop", s.String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "update", KindUpdate.String())
	assert.Equal(t, "stop", KindStop.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
