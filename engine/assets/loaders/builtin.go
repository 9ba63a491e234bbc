package loaders

import (
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

const (
	BuiltinQuad    = "quad"
	BuiltinChecker = "checker"
)

// QuadMesh is a unit quad facing +Z, two triangles.
func QuadMesh() *renderer.MeshData {
	normal := math.NewVec3(0, 0, 1)
	return &renderer.MeshData{
		Name: BuiltinQuad,
		Vertices: []math.Vertex3D{
			{Position: math.NewVec3(-0.5, -0.5, 0), Normal: normal, Texcoord: math.NewVec2(0, 1)},
			{Position: math.NewVec3(0.5, -0.5, 0), Normal: normal, Texcoord: math.NewVec2(1, 1)},
			{Position: math.NewVec3(0.5, 0.5, 0), Normal: normal, Texcoord: math.NewVec2(1, 0)},
			{Position: math.NewVec3(-0.5, 0.5, 0), Normal: normal, Texcoord: math.NewVec2(0, 0)},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

// CheckerTexture alternates white and magenta pixels on a size x size grid.
func CheckerTexture(size uint32) *renderer.TextureData {
	pixels := make([]uint8, 0, size*size*4)
	for y := uint32(0); y < size; y++ {
		for x := uint32(0); x < size; x++ {
			if (x+y)%2 == 0 {
				pixels = append(pixels, 255, 255, 255, 255)
			} else {
				pixels = append(pixels, 255, 0, 255, 255)
			}
		}
	}
	return &renderer.TextureData{
		Name:   BuiltinChecker,
		Width:  size,
		Height: size,
		Pixels: pixels,
	}
}
