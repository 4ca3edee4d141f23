package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformModifiedTracking(t *testing.T) {
	tr := TransformFromPosition(NewVec3(1, 2, 3))
	assert.True(t, tr.IsModified())

	tr.MarkClean()
	assert.False(t, tr.IsModified())

	tr.Translate(NewVec3(1, 0, 0))
	assert.True(t, tr.IsModified())
	assert.True(t, tr.GetWorld().Translation().Compare(NewVec3(2, 2, 3), K_FLOAT_EPSILON))
}

func TestTransformParentPropagatesModified(t *testing.T) {
	parent := TransformCreate()
	child := TransformFromPosition(NewVec3(0, 1, 0))
	child.Parent = parent
	parent.MarkClean()
	child.MarkClean()

	parent.SetPosition(NewVec3(5, 0, 0))
	assert.True(t, child.IsModified())
	assert.True(t, child.GetWorld().Translation().Compare(NewVec3(5, 1, 0), K_FLOAT_EPSILON))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(7, 0, 3))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
	assert.Equal(t, -1.0, Clamp(-4.0, -1.0, 1.0))
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	view := NewMat4LookAt(eye, NewVec3Zero(), NewVec3(0, 1, 0))
	// translation column brings the eye to the origin
	assert.InDelta(t, 0, view.Data[12], 1e-5)
	assert.InDelta(t, 0, view.Data[13], 1e-5)
	assert.InDelta(t, -5, view.Data[14], 1e-5)
	assert.InDelta(t, 1, view.Data[15], 1e-5)
}

func TestPerspective(t *testing.T) {
	p := NewMat4Perspective(DegToRad(90), 2, 0.1, 100)
	assert.InDelta(t, 0.5, p.Data[0], 1e-5)
	assert.InDelta(t, 1, p.Data[5], 1e-5)
	assert.Equal(t, float32(-1), p.Data[11])
}
