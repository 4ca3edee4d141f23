package renderer

import (
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

// SortDrawables orders drawables the way BatchSetup expects: rendering order
// first, transparent ones back to front, then by state so that compatible
// drawables end up next to each other, and finally front to back.
func SortDrawables(drawables []*metadata.Drawable) {
	slices.SortStableFunc(drawables, func(a, b *metadata.Drawable) int {
		switch {
		case lessDrawable(a, b):
			return -1
		case lessDrawable(b, a):
			return 1
		}
		return 0
	})
}

func lessDrawable(a, b *metadata.Drawable) bool {
	ma, mb := a.Modes(), b.Modes()
	if ma.RenderingOrder != mb.RenderingOrder {
		return ma.RenderingOrder < mb.RenderingOrder
	}
	if ma.IsTransparent() && a.CameraDistance != b.CameraDistance {
		return a.CameraDistance > b.CameraDistance
	}

	matA, matB := a.Material(), b.Material()
	shaderA, shaderB := shaderKey(matA), shaderKey(matB)
	if shaderA != shaderB {
		return shaderA < shaderB
	}
	if len(a.Passes) != len(b.Passes) {
		return len(a.Passes) < len(b.Passes)
	}
	nameA, nameB := materialName(matA), materialName(matB)
	if nameA != nameB {
		return nameA < nameB
	}
	if matA != matB {
		// same name, different instances
		return materialID(matA) < materialID(matB)
	}
	if ma.CullFace != mb.CullFace {
		return ma.CullFace < mb.CullFace
	}
	if a.Fingerprint() != b.Fingerprint() {
		return a.Fingerprint() < b.Fingerprint()
	}
	dynA, dynB := a.Mesh != nil && a.Mesh.Dynamic, b.Mesh != nil && b.Mesh.Dynamic
	if dynA != dynB {
		return !dynA
	}
	return a.CameraDistance < b.CameraDistance
}

func shaderKey(m *metadata.Material) string {
	if m == nil {
		return ""
	}
	return m.ShaderKey()
}

func materialName(m *metadata.Material) string {
	if m == nil {
		return ""
	}
	return m.Name
}

func materialID(m *metadata.Material) uint32 {
	if m == nil {
		return 0
	}
	return m.ID
}
