package math

import (
	m "math"
)

const (
	/** @brief An approximate representation of PI. */
	K_PI float32 = 3.14159265358979323846
	/** @brief A multiplier used to convert degrees to radians. */
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	/** @brief Smallest positive number where 1.0 + FLOAT_EPSILON != 0 */
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func ksin(x float32) float32 {
	return float32(m.Sin(float64(x)))
}

func kcos(x float32) float32 {
	return float32(m.Cos(float64(x)))
}

func ksqrt(x float32) float32 {
	return float32(m.Sqrt(float64(x)))
}

func kabs(x float32) float32 {
	return float32(m.Abs(float64(x)))
}

func NewVec2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func NewVec3Zero() Vec3 {
	return Vec3{}
}

func NewVec3One() Vec3 {
	return Vec3{1.0, 1.0, 1.0}
}

func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{X: x, Y: y, Z: z, W: w}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

func (v Vec3) Mul(other Vec3) Vec3 {
	return Vec3{v.X * other.X, v.Y * other.Y, v.Z * other.Z}
}

func (v Vec3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vec3) Length() float32 {
	return ksqrt(v.LengthSquared())
}

func (v Vec3) Distance(other Vec3) float32 {
	return v.Sub(other).Length()
}

/**
 * @brief Compares all elements of v and other and ensures the difference
 * is less than tolerance.
 */
func (v Vec3) Compare(other Vec3, tolerance float32) bool {
	return kabs(v.X-other.X) <= tolerance &&
		kabs(v.Y-other.Y) <= tolerance &&
		kabs(v.Z-other.Z) <= tolerance
}

/**
 * @brief Creates and returns an identity matrix:
 *
 * {
 *   {1, 0, 0, 0},
 *   {0, 1, 0, 0},
 *   {0, 0, 1, 0},
 *   {0, 0, 0, 1}
 * }
 */
func NewMat4Identity() Mat4 {
	out_matrix := Mat4{}
	out_matrix.Data[0] = 1.0
	out_matrix.Data[5] = 1.0
	out_matrix.Data[10] = 1.0
	out_matrix.Data[15] = 1.0
	return out_matrix
}

/**
 * @brief Returns the result of multiplying mt and other.
 */
func (mt Mat4) Mul(other Mat4) Mat4 {
	out_matrix := NewMat4Identity()

	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out_matrix.Data[row*4+col] = sum
		}
	}

	return out_matrix
}

func NewMat4Translation(position Vec3) Mat4 {
	out_matrix := NewMat4Identity()
	out_matrix.Data[12] = position.X
	out_matrix.Data[13] = position.Y
	out_matrix.Data[14] = position.Z
	return out_matrix
}

func NewMat4Scale(scale Vec3) Mat4 {
	out_matrix := NewMat4Identity()
	out_matrix.Data[0] = scale.X
	out_matrix.Data[5] = scale.Y
	out_matrix.Data[10] = scale.Z
	return out_matrix
}

// Translation returns the position part of the matrix.
func (mt Mat4) Translation() Vec3 {
	return Vec3{mt.Data[12], mt.Data[13], mt.Data[14]}
}

func NewQuatIdentity() Quaternion {
	return Quaternion{0, 0, 0, 1.0}
}

func (q Quaternion) Normal() float32 {
	return ksqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

func (q Quaternion) Normalize() Quaternion {
	normal := q.Normal()
	return Quaternion{q.X / normal, q.Y / normal, q.Z / normal, q.W / normal}
}

func (q Quaternion) Mul(other Quaternion) Quaternion {
	return Quaternion{
		X: q.X*other.W + q.Y*other.Z - q.Z*other.Y + q.W*other.X,
		Y: -q.X*other.Z + q.Y*other.W + q.Z*other.X + q.W*other.Y,
		Z: q.X*other.Y - q.Y*other.X + q.Z*other.W + q.W*other.Z,
		W: -q.X*other.X - q.Y*other.Y - q.Z*other.Z + q.W*other.W,
	}
}

/**
 * @brief Creates a rotation matrix from the given quaternion.
 */
func (q Quaternion) ToMat4() Mat4 {
	out_matrix := NewMat4Identity()

	n := q.Normalize()

	out_matrix.Data[0] = 1.0 - 2.0*n.Y*n.Y - 2.0*n.Z*n.Z
	out_matrix.Data[1] = 2.0*n.X*n.Y - 2.0*n.Z*n.W
	out_matrix.Data[2] = 2.0*n.X*n.Z + 2.0*n.Y*n.W

	out_matrix.Data[4] = 2.0*n.X*n.Y + 2.0*n.Z*n.W
	out_matrix.Data[5] = 1.0 - 2.0*n.X*n.X - 2.0*n.Z*n.Z
	out_matrix.Data[6] = 2.0*n.Y*n.Z - 2.0*n.X*n.W

	out_matrix.Data[8] = 2.0*n.X*n.Z - 2.0*n.Y*n.W
	out_matrix.Data[9] = 2.0*n.Y*n.Z + 2.0*n.X*n.W
	out_matrix.Data[10] = 1.0 - 2.0*n.X*n.X - 2.0*n.Y*n.Y

	return out_matrix
}

func NewQuatFromAxisAngle(axis Vec3, angle float32, normalize bool) Quaternion {
	half_angle := 0.5 * angle
	s := ksin(half_angle)
	c := kcos(half_angle)

	q := Quaternion{s * axis.X, s * axis.Y, s * axis.Z, c}
	if normalize {
		return q.Normalize()
	}
	return q
}

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

// Sin is the float32 sine.
func Sin(x float32) float32 {
	return ksin(x)
}

func ktan(x float32) float32 {
	return float32(m.Tan(float64(x)))
}

func (v Vec3) Normalize() Vec3 {
	length := v.Length()
	if length == 0 {
		return v
	}
	return Vec3{
		v.X / length,
		v.Y / length,
		v.Z / length}
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X}
}

/**
 * @brief Creates and returns a perspective matrix. Typically used to render 3d scenes.
 *
 * @param fovRadians The field of view in radians.
 * @param aspectRatio The aspect ratio.
 * @param nearClip The near clipping plane distance.
 * @param farClip The far clipping plane distance.
 * @return A new perspective matrix.
 */
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	halfTanFov := ktan(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out.Data[5] = 1.0 / halfTanFov
	out.Data[10] = -((farClip + nearClip) / (farClip - nearClip))
	out.Data[11] = -1.0
	out.Data[14] = -((2.0 * farClip * nearClip) / (farClip - nearClip))
	return out
}

/**
 * @brief Creates and returns a matrix looking at target from the
 * perspective of position.
 */
func NewMat4LookAt(position, target, up Vec3) Mat4 {
	zAxis := target.Sub(position).Normalize()
	xAxis := up.Cross(zAxis).Normalize()
	yAxis := zAxis.Cross(xAxis)

	out := Mat4{}
	out.Data[0] = xAxis.X
	out.Data[1] = yAxis.X
	out.Data[2] = -zAxis.X
	out.Data[4] = xAxis.Y
	out.Data[5] = yAxis.Y
	out.Data[6] = -zAxis.Y
	out.Data[8] = xAxis.Z
	out.Data[9] = yAxis.Z
	out.Data[10] = -zAxis.Z
	out.Data[12] = -xAxis.Dot(position)
	out.Data[13] = -yAxis.Dot(position)
	out.Data[14] = zAxis.Dot(position)
	out.Data[15] = 1.0
	return out
}
