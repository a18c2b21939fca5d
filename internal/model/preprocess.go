package model

import (
	"image"

	"golang.org/x/image/draw"
)

const ratingImageSize = 384

// PreprocessImage resizes img to the model's square input and returns a
// float32 tensor in [1, 3, 384, 384] CHW layout scaled to [-1, 1].
func PreprocessImage(img image.Image) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, ratingImageSize, ratingImageSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return imageToTensor(dst)
}

// imageToTensor converts an RGBA image to a CHW float32 tensor normalized
// with mean 0.5 and std 0.5 per channel.
func imageToTensor(img *image.RGBA) []float32 {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	tensor := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			idx := y*w + x
			for c := 0; c < 3; c++ {
				v := float32(img.Pix[off+c]) / 255
				tensor[c*h*w+idx] = (v - 0.5) / 0.5
			}
		}
	}
	return tensor
}
