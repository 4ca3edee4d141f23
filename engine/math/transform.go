package math

func TransformCreate() *Transform {
	return TransformFromPositionRotationScale(NewVec3Zero(), NewQuatIdentity(), NewVec3One())
}

func TransformFromPosition(position Vec3) *Transform {
	return TransformFromPositionRotationScale(position, NewQuatIdentity(), NewVec3One())
}

func TransformFromPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) *Transform {
	t := &Transform{
		Local: NewMat4Identity(),
	}
	t.SetPositionRotationScale(position, rotation, scale)
	return t
}

func (t *Transform) touch() {
	t.IsDirty = true
	t.modified = true
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
	t.touch()
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
	t.touch()
}

func (t *Transform) SetRotation(rotation Quaternion) {
	t.Rotation = rotation
	t.touch()
}

func (t *Transform) Rotate(rotation Quaternion) {
	t.Rotation = t.Rotation.Mul(rotation)
	t.touch()
}

func (t *Transform) SetScale(scale Vec3) {
	t.Scale = scale
	t.touch()
}

func (t *Transform) SetPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) {
	t.Position = position
	t.Rotation = rotation
	t.Scale = scale
	t.touch()
}

// IsModified reports whether the world matrix changed since the last MarkClean.
// A modified parent counts as a modified child.
func (t *Transform) IsModified() bool {
	if t == nil {
		return false
	}
	return t.modified || t.Parent.IsModified()
}

func (t *Transform) MarkClean() {
	if t != nil {
		t.modified = false
	}
}

func (t *Transform) GetLocal() Mat4 {
	if t != nil {
		if t.IsDirty {
			m := t.Rotation.ToMat4()
			tr := m.Mul(NewMat4Translation(t.Position))
			s := NewMat4Scale(t.Scale)
			tr = s.Mul(tr)
			t.Local = tr
			t.IsDirty = false
		}
		return t.Local
	}
	return NewMat4Identity()
}

func (t *Transform) GetWorld() Mat4 {
	if t != nil {
		l := t.GetLocal()
		if t.Parent != nil {
			p := t.Parent.GetWorld()
			return l.Mul(p)
		}
		return l
	}
	return NewMat4Identity()
}
