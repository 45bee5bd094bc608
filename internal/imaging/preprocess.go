package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ContrastFactor is the fixed contrast multiplier applied before OCR.
const ContrastFactor = 2.0

// Preprocess prepares a bitmap for OCR: grayscale, then contrast boosted by
// ContrastFactor around the mean luma. The result is single-channel.
func Preprocess(img image.Image) *image.Gray {
	gray := imaging.Grayscale(img)
	lut := contrastLUT(meanLuma(gray), ContrastFactor)
	enhanced := imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		v := lut[c.R]
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
	return toGray(enhanced)
}

// meanLuma averages the R channel of an already-gray image, rounded half up.
func meanLuma(img *image.NRGBA) uint8 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	var sum uint64
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			sum += uint64(row[x])
		}
	}
	mean := float64(sum)/float64(w*h) + 0.5
	return uint8(mean)
}

// contrastLUT maps each level v to mean + factor*(v-mean), truncated and
// clamped to [0,255].
func contrastLUT(mean uint8, factor float64) [256]uint8 {
	var lut [256]uint8
	m := float64(mean)
	for v := 0; v < 256; v++ {
		out := m + factor*(float64(v)-m)
		switch {
		case out <= 0:
			lut[v] = 0
		case out >= 255:
			lut[v] = 255
		default:
			lut[v] = uint8(out)
		}
	}
	return lut
}

func toGray(img *image.NRGBA) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			dst[x] = src[x*4]
		}
	}
	return out
}
