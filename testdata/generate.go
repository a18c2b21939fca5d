// This program generates a small tagged dataset for trying tagcluster by
// hand and for the integration tests. Each outfit gets its own colors so the
// contact sheets are easy to tell apart.
//
//go:build ignore

package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

type outfit struct {
	tags  string
	top   color.RGBA
	under color.RGBA
}

var outfits = []outfit{
	{"solo, long hair, maid, apron, maid headdress, indoors", color.RGBA{30, 30, 30, 255}, color.RGBA{240, 240, 240, 255}},
	{"solo, long hair, school uniform, pleated skirt, outdoors, sky", color.RGBA{30, 40, 120, 255}, color.RGBA{200, 200, 210, 255}},
	{"solo, short hair, kimono, obi, outdoors, tree", color.RGBA{180, 40, 60, 255}, color.RGBA{220, 180, 60, 255}},
}

func main() {
	dir := filepath.Join("testdata", "dataset", "5_sample")
	if err := os.MkdirAll(dir, 0755); err != nil {
		panic(err)
	}

	n := 0
	for _, o := range outfits {
		for j := 0; j < 4; j++ {
			base := filepath.Join(dir, fmt.Sprintf("img_%02d", n))
			img := generateFigure(o.top, o.under, j)
			if n%2 == 0 {
				savePNG(base+".png", img)
			} else {
				saveJPEG(base+".jpg", img)
			}
			line := fmt.Sprintf("sample, %s", o.tags)
			if j == 3 {
				line += ", smile"
			}
			os.WriteFile(base+".txt", []byte(line+"\n"), 0644)
			n++
		}
	}

	// An image without an annotation is skipped by the loader.
	saveJPEG(filepath.Join(dir, "untagged.jpg"), generateFigure(color.RGBA{0, 0, 0, 255}, color.RGBA{0, 0, 0, 255}, 0))
}

// generateFigure draws a crude standing figure: a skin-tone head, a torso in
// top and a lower half in under, over a gradient background shifted by seed.
func generateFigure(top, under color.RGBA, seed int) *image.RGBA {
	const w, h = 256, 384
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(150 + int(60*math.Sin(float64(y+seed*40)/50)))
			img.Set(x, y, color.RGBA{v, v, 200, 255})
		}
	}
	fill(img, image.Rect(104, 40, 152, 96), color.RGBA{250, 220, 190, 255})
	fill(img, image.Rect(80, 96, 176, 220), top)
	fill(img, image.Rect(70, 220, 186, 340), under)
	return img
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

func saveJPEG(path string, img image.Image) {
	f, _ := os.Create(path)
	defer f.Close()
	jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}

func savePNG(path string, img image.Image) {
	f, _ := os.Create(path)
	defer f.Close()
	png.Encode(f, img)
}
