package imaging

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shokucho.jp/portal/internal/apperr"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

// withEXIF splices an APP1 Exif segment right after the SOI marker.
func withEXIF(jpegData []byte, payload string) []byte {
	body := append([]byte("Exif\x00\x00"), payload...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(body)+2))
	seg = append(seg, body...)

	out := append([]byte{}, jpegData[:2]...)
	out = append(out, seg...)
	return append(out, jpegData[2:]...)
}

// tiffHeader is a big-endian TIFF header followed by an empty IFD0.
const tiffHeader = "MM\x00\x2a\x00\x00\x00\x08\x00\x00\x00\x00\x00\x00"

func newTestConverter() *Converter {
	return NewConverter(DefaultQuality, zerolog.Nop())
}

func TestConvertImages_SkipsCorruptFile(t *testing.T) {
	c := newTestConverter()

	files := []Source{
		{Name: "site.png", Data: encodePNG(t, solidImage(8, 8, color.NRGBA{R: 200, A: 255}))},
		{Name: "broken.heic", Data: []byte("definitely not an image")},
		{Name: "photo.jpeg", Data: encodeJPEG(t, solidImage(8, 8, color.NRGBA{B: 200, A: 255}))},
	}

	batch, err := c.ConvertImages(files)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Converted())
	require.Len(t, batch.Skipped, 1)
	assert.Equal(t, "broken.heic", batch.Skipped[0].Name)

	archive, err := batch.Archive()
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "site.jpg", zr.File[0].Name)
	assert.Equal(t, "photo.jpg", zr.File[1].Name)

	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)

		_, format, err := image.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	}
}

func TestConvertImages_NoValidInput(t *testing.T) {
	c := newTestConverter()

	batch, err := c.ConvertImages([]Source{
		{Name: "a.heic", Data: []byte("garbage")},
		{Name: "empty.png", Data: nil},
	})
	assert.ErrorIs(t, err, apperr.ErrNoValidInput)
	require.NotNil(t, batch)
	assert.Equal(t, 0, batch.Converted())
	assert.Len(t, batch.Skipped, 2)

	_, err = c.ConvertImages(nil)
	assert.ErrorIs(t, err, apperr.ErrNoValidInput)
}

func TestConvertImages_FlattensTransparencyOnWhite(t *testing.T) {
	c := newTestConverter()

	batch, err := c.ConvertImages([]Source{
		{Name: "clear.png", Data: encodePNG(t, solidImage(4, 4, color.NRGBA{}))},
	})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(batch.Outputs[0].Data))
	require.NoError(t, err)
	r, g, b, _ := img.At(1, 1).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestConvertImages_PreservesEXIF(t *testing.T) {
	c := newTestConverter()

	src := withEXIF(encodeJPEG(t, solidImage(8, 8, color.NRGBA{G: 120, A: 255})), tiffHeader)
	srcSeg := extractEXIF(src)
	require.NotNil(t, srcSeg)
	assert.True(t, bytes.HasPrefix(srcSeg.Data, []byte("Exif\x00\x00")))

	batch, err := c.ConvertImages([]Source{{Name: "dsc0001.jpg", Data: src}})
	require.NoError(t, err)

	out := batch.Outputs[0].Data
	outSeg := extractEXIF(out)
	require.NotNil(t, outSeg)
	assert.Equal(t, srcSeg.Data, outSeg.Data)

	_, err = jpeg.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestInsertSegment_RejectsNonJPEG(t *testing.T) {
	seg := extractEXIF(withEXIF(encodeJPEG(t, solidImage(2, 2, color.Black)), tiffHeader))
	require.NotNil(t, seg)

	_, err := insertSegment([]byte("not a jpeg at all"), seg)
	assert.Error(t, err)
}

func TestConvertImages_PNGHasNoEXIF(t *testing.T) {
	c := newTestConverter()

	batch, err := c.ConvertImages([]Source{{Name: "a.png", Data: encodePNG(t, solidImage(2, 2, color.White))}})
	require.NoError(t, err)
	assert.Nil(t, extractEXIF(batch.Outputs[0].Data))
}

func TestOutputName(t *testing.T) {
	seen := map[string]bool{}

	assert.Equal(t, "IMG_0001.jpg", outputName("IMG_0001.HEIC", seen))
	assert.Equal(t, "IMG_0001_1.jpg", outputName("IMG_0001.png", seen))
	assert.Equal(t, "IMG_0001_2.jpg", outputName(`C:\photos\IMG_0001.jpg`, seen))
	assert.Equal(t, "image.jpg", outputName("", seen))
	assert.Equal(t, "現場.jpg", outputName("dir/現場.webp", seen))
}

func TestExtractEXIF_Malformed(t *testing.T) {
	assert.Nil(t, extractEXIF(nil))
	assert.Nil(t, extractEXIF([]byte{0xFF, 0xD8}))
	assert.Nil(t, extractEXIF([]byte{0xFF, 0xD8, 0xFF, 0xE1, 0xFF, 0xFF}))
	assert.Nil(t, extractEXIF([]byte("not a jpeg at all")))
}

func TestNewConverter_ClampsQuality(t *testing.T) {
	assert.Equal(t, DefaultQuality, NewConverter(0, zerolog.Nop()).quality)
	assert.Equal(t, DefaultQuality, NewConverter(101, zerolog.Nop()).quality)
	assert.Equal(t, 75, NewConverter(75, zerolog.Nop()).quality)
}
