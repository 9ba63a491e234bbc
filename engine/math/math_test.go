package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-5

func assertVec3(t *testing.T, want, got Vec3) {
	t.Helper()
	assert.Truef(t, want.Compare(got, tolerance), "want %+v, got %+v", want, got)
}

func TestMat4IdentityMul(t *testing.T) {
	tr := NewMat4Translation(NewVec3(1, 2, 3))
	assert.Equal(t, tr, NewMat4Identity().Mul(tr))
	assert.Equal(t, tr, tr.Mul(NewMat4Identity()))
}

func TestQuaternionMatchesEuler(t *testing.T) {
	angle := DegToRad(30)
	q := NewQuatFromAxisAngle(NewVec3Up(), angle, true)
	want := NewMat4EulerY(angle)
	got := q.ToMat4()
	for i := range want.Data {
		assert.InDelta(t, want.Data[i], got.Data[i], tolerance, "element %d", i)
	}
}

func TestLookAtPlacesTargetInFront(t *testing.T) {
	eye := NewVec3(0, 0, 3)
	view := NewMat4LookAt(eye, NewVec3Zero(), NewVec3Up())

	assertVec3(t, NewVec3(0, 0, -3), NewVec3Zero().Transform(view))
	assertVec3(t, NewVec3Zero(), eye.Transform(view))
}

func TestTransformLocal(t *testing.T) {
	tf := TransformFromPositionRotationScale(
		NewVec3(0, 0, 5),
		NewQuatFromAxisAngle(NewVec3Up(), K_HALF_PI, true),
		NewVec3(2, 2, 2),
	)
	assert.True(t, tf.IsDirty)
	assertVec3(t, NewVec3(0, 0, 3), NewVec3(1, 0, 0).Transform(tf.GetLocal()))
	assert.False(t, tf.IsDirty)

	var nilTransform *Transform
	assert.Equal(t, NewMat4Identity(), nilTransform.GetLocal())
}

func TestGeometryGenerateNormals(t *testing.T) {
	vertices := []Vertex3D{
		{Position: NewVec3(0, 0, 0)},
		{Position: NewVec3(1, 0, 0)},
		{Position: NewVec3(0, 1, 0)},
	}
	GeometryGenerateNormals(vertices, []uint32{0, 1, 2})
	for _, v := range vertices {
		assertVec3(t, NewVec3(0, 0, 1), v.Normal)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(7, 1, 3))
	assert.Equal(t, 1, Clamp(-2, 1, 3))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))

	v, changed := Clamped(uint32(9), 1, 4)
	assert.Equal(t, uint32(4), v)
	assert.True(t, changed)
	_, changed = Clamped(2.5, 1, 4)
	assert.False(t, changed)
}
