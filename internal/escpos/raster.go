package escpos

import (
	"fmt"
	"image"
)

// DefaultRasterDots is the printable width of an 80mm head at 203 dpi in
// image mode on most clones.
const DefaultRasterDots = 576

// EncodeImage produces a raster print job (GS v 0) for img scaled to
// widthDots. The init, feed and cut commands match Encode.
func (e Encoder) EncodeImage(img image.Image, widthDots int) (Payload, error) {
	if widthDots <= 0 || widthDots%8 != 0 {
		return Payload{}, fmt.Errorf("raster width %d must be a positive multiple of 8", widthDots)
	}
	raster, err := rasterize(resizeToWidth(img, widthDots))
	if err != nil {
		return Payload{}, err
	}

	buf := append([]byte(nil), cmdInit...)
	buf = append(buf, raster...)
	buf = append(buf, e.epilogue()...)
	return Payload{data: buf}, nil
}

// rasterize converts img to a 1-bit GS v 0 block, dark pixels printed.
func rasterize(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	width := bounds.Dx() - bounds.Dx()%8
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image %dx%d is too small to print", bounds.Dx(), height)
	}
	if height > 0xFFFF {
		return nil, fmt.Errorf("image height %d exceeds raster limit", height)
	}

	rowBytes := width / 8
	raster := make([]byte, rowBytes*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if (r+g+b)/3 < 0x8000 {
				raster[y*rowBytes+x/8] |= 1 << (7 - x%8)
			}
		}
	}

	header := []byte{
		gs, 'v', '0', 0x00,
		byte(rowBytes), byte(rowBytes >> 8),
		byte(height), byte(height >> 8),
	}
	return append(header, raster...), nil
}

// resizeToWidth scales src with nearest-neighbour sampling.
func resizeToWidth(src image.Image, targetWidth int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || w == targetWidth {
		return src
	}

	scale := float64(targetWidth) / float64(w)
	newHeight := int(float64(h) * scale)
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, newHeight))
	for y := 0; y < newHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			sx := bounds.Min.X + int(float64(x)/scale)
			sy := bounds.Min.Y + int(float64(y)/scale)
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
