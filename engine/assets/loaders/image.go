package loaders

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Decoders register themselves with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
	"github.com/spaghettifunk/texture-renderer/engine/resources"
)

type ImageResourceParams struct {
	/** @brief Flip the rows so the first one is the bottom of the image. */
	FlipY bool
}

type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	var flip bool
	if p, ok := params.(*ImageResourceParams); ok && p != nil {
		flip = p.FlipY
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	core.LogDebug("decoded %s as %s", path, format)

	name := filepath.Base(path)
	texture := ToTextureData(name, img, flip)
	return &resources.Resource{
		ID:       uuid.New(),
		Name:     name,
		FullPath: path,
		Type:     resources.ResourceTypeImage,
		DataSize: uint64(len(texture.Pixels)),
		Data:     texture,
	}, nil
}

func (il *ImageLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

// ToTextureData converts any decoded image to tightly packed RGBA8.
func ToTextureData(name string, img image.Image, flipY bool) *renderer.TextureData {
	bounds := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	if flipY {
		stride := rgba.Stride
		row := make([]uint8, stride)
		for top, bottom := 0, bounds.Dy()-1; top < bottom; top, bottom = top+1, bottom-1 {
			t := rgba.Pix[top*stride : (top+1)*stride]
			b := rgba.Pix[bottom*stride : (bottom+1)*stride]
			copy(row, t)
			copy(t, b)
			copy(b, row)
		}
	}

	return &renderer.TextureData{
		Name:   name,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: rgba.Pix,
	}
}
