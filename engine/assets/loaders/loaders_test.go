package loaders

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
	"github.com/spaghettifunk/texture-renderer/engine/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirvBytes(words ...uint32) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, append([]uint32{spirvMagic}, words...))
	return buf.Bytes()
}

func TestBytesToBytecode(t *testing.T) {
	code, err := BytesToBytecode(spirvBytes(0x00010000, 7))
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010000, 7}, code)

	_, err = BytesToBytecode([]byte{1, 2, 3})
	assert.Error(t, err, "not a multiple of 4")
	_, err = BytesToBytecode(nil)
	assert.Error(t, err)
	_, err = BytesToBytecode([]byte{0, 0, 0, 0})
	assert.Error(t, err, "bad magic")
}

func TestBinaryLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.vert.spv")
	require.NoError(t, os.WriteFile(path, spirvBytes(1, 2), 0o644))

	loader := &BinaryLoader{}
	res, err := loader.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, resources.ResourceTypeBinary, res.Type)
	assert.Equal(t, "shader.vert.spv", res.Name)
	assert.Equal(t, uint64(12), res.DataSize)
	assert.Equal(t, []uint32{spirvMagic, 1, 2}, res.Data)

	require.NoError(t, loader.Unload(res))
	assert.Nil(t, res.Data)
}

func TestImageLoader(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "tiles.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loader := &ImageLoader{}
	res, err := loader.Load(path, nil)
	require.NoError(t, err)
	texture := res.Data.(*renderer.TextureData)
	assert.Equal(t, uint32(2), texture.Width)
	assert.Equal(t, uint32(2), texture.Height)
	assert.Equal(t, []uint8{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 255, 255, 255, 255,
	}, texture.Pixels)

	res, err = loader.Load(path, &ImageResourceParams{FlipY: true})
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 255, 255, 255, 255, 255, 255}, res.Data.(*renderer.TextureData).Pixels[:8], "bottom row first")

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = loader.Load(bad, nil)
	assert.Error(t, err)
}

func TestToTextureDataPalettedImage(t *testing.T) {
	palette := color.Palette{color.NRGBA{A: 255}, color.NRGBA{R: 10, G: 20, B: 30, A: 255}}
	img := image.NewPaletted(image.Rect(5, 5, 7, 6), palette)
	img.SetColorIndex(6, 5, 1)

	texture := ToTextureData("p", img, false)
	assert.Equal(t, uint32(2), texture.Width)
	assert.Equal(t, uint32(1), texture.Height)
	assert.Equal(t, []uint8{0, 0, 0, 255, 10, 20, 30, 255}, texture.Pixels)
}

const cubeFace = `# a quad with shared corners
o plane
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseOBJ(t *testing.T) {
	mesh, err := ParseOBJ("fallback", strings.NewReader(cubeFace))
	require.NoError(t, err)

	assert.Equal(t, "plane", mesh.Name)
	require.Len(t, mesh.Vertices, 4, "shared corners are deduplicated")
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices, "quads become a fan")
	assert.Equal(t, math.NewVec3(1, 1, 0), mesh.Vertices[2].Position)
	assert.Equal(t, math.NewVec2(1, 0), mesh.Vertices[2].Texcoord, "v is flipped")
	assert.Equal(t, math.NewVec3(0, 0, 1), mesh.Vertices[2].Normal)
}

func TestParseOBJFaceForms(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nvn 0 0 1\nf 1//1 2//1 -1//1\nf 1 2 3\n"
	mesh, err := ParseOBJ("tri", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "tri", mesh.Name)
	assert.Len(t, mesh.Vertices, 6, "with and without normals are different vertices")
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, mesh.Indices)
	assert.Equal(t, math.NewVec3Zero(), mesh.Vertices[3].Normal)
}

func TestParseOBJGeneratesNormals(t *testing.T) {
	mesh, err := ParseOBJ("tri", strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
	require.NoError(t, err)
	for _, v := range mesh.Vertices {
		assert.Equal(t, math.NewVec3(0, 0, 1), v.Normal)
	}
}

func TestParseOBJErrors(t *testing.T) {
	tests := map[string]string{
		"no faces":       "v 0 0 0\n",
		"short face":     "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"out of range":   "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n",
		"bad number":     "v 0 zero 0\n",
		"no position":    "v 0 0 0\nf /1 /1 /1\n",
		"missing coords": "v 0 0\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOBJ("bad", strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}

func TestBuiltins(t *testing.T) {
	quad := QuadMesh()
	assert.Len(t, quad.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 2, 3, 0}, quad.Indices)

	checker := CheckerTexture(4)
	assert.Equal(t, uint32(4), checker.Width)
	assert.Len(t, checker.Pixels, 4*4*4)
	assert.Equal(t, []uint8{255, 255, 255, 255}, checker.Pixels[0:4])
	assert.Equal(t, []uint8{255, 0, 255, 255}, checker.Pixels[4:8])
	assert.Equal(t, []uint8{255, 0, 255, 255}, checker.Pixels[16:20], "rows alternate")
}
