package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRender_DownscalesKeepingAspect(t *testing.T) {
	r := NewRenderer(80)

	out, err := r.Render(encodePNG(t, 200, 100), 50)
	require.NoError(t, err)

	w, h, err := Dimensions(out)
	require.NoError(t, err)
	assert.Equal(t, 50, w)
	assert.Equal(t, 25, h)
}

func TestRender_NeverUpscales(t *testing.T) {
	out, err := NewRenderer(0).Render(encodePNG(t, 40, 30), 320)
	require.NoError(t, err)

	w, h, err := Dimensions(out)
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)
}

func TestRender_RejectsGarbage(t *testing.T) {
	_, err := NewRenderer(85).Render([]byte("not an image"), 100)
	assert.Error(t, err)

	_, err = NewRenderer(85).Render(encodePNG(t, 4, 4), 0)
	assert.Error(t, err)
}
