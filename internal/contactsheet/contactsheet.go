// Package contactsheet composes sample images of a cluster into one picture
// for review.
package contactsheet

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// SingleRowHeight is the tile height when all samples fit in one row.
	SingleRowHeight = 512
	// DoubleRowHeight is the tile height for two-row sheets.
	DoubleRowHeight = 256
	// singleRowMax is the largest sample count laid out in one row.
	singleRowMax = 4
	jpegQuality  = 90
)

// ErrNoImages is returned when none of the sample images could be decoded.
var ErrNoImages = errors.New("no sample image could be loaded")

// Sheet is a composed contact sheet.
type Sheet struct {
	img *image.RGBA
}

// Image returns the composed picture.
func (s *Sheet) Image() image.Image { return s.img }

// JPEG encodes the sheet.
func (s *Sheet) JPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, s.img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode contact sheet: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the sheet as a JPEG file, creating parent directories.
func (s *Sheet) Save(path string) error {
	data, err := s.JPEG()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Builder loads images from disk and composes them.
type Builder struct {
	Logger *slog.Logger
}

// Build decodes paths, skipping unreadable files, and composes a sheet.
func (b *Builder) Build(paths []string) (*Sheet, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var imgs []image.Image
	for _, p := range paths {
		img, err := decode(p)
		if err != nil {
			logger.Warn("cannot read sample image", "path", p, "error", err)
			continue
		}
		imgs = append(imgs, img)
	}
	return Compose(imgs)
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("cannot decode image: %w", err)
	}
	return img, nil
}

// Compose lays images out left to right. Up to four images share one row at
// SingleRowHeight; more are split over two rows at DoubleRowHeight, filling
// columns top to bottom. Every image keeps its aspect ratio.
func Compose(imgs []image.Image) (*Sheet, error) {
	if len(imgs) == 0 {
		return nil, ErrNoImages
	}

	rows, height := 1, SingleRowHeight
	if len(imgs) > singleRowMax {
		rows, height = 2, DoubleRowHeight
	}

	scaled := make([]image.Image, len(imgs))
	rowWidth := make([]int, rows)
	for i, img := range imgs {
		scaled[i] = resizeToHeight(img, height)
		rowWidth[i%rows] += scaled[i].Bounds().Dx()
	}
	width := 0
	for _, w := range rowWidth {
		width = max(width, w)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height*rows))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	offsets := make([]int, rows)
	for i, img := range scaled {
		row := i % rows
		w := img.Bounds().Dx()
		r := image.Rect(offsets[row], row*height, offsets[row]+w, (row+1)*height)
		draw.Draw(dst, r, img, img.Bounds().Min, draw.Src)
		offsets[row] += w
	}
	return &Sheet{img: dst}, nil
}

func resizeToHeight(img image.Image, height int) image.Image {
	b := img.Bounds()
	if b.Dy() == 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, height))
	}
	width := b.Dx() * height / b.Dy()
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
