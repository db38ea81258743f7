package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Регистрация декодеров для image.Decode
	_ "image/gif"
	_ "image/png"
)

// photosDelimiter разделяет закодированные изображения внутри одного blob.
// Последовательность выбрана так, чтобы не встречаться в бинарных данных JPEG.
var photosDelimiter = []byte("$!%")

// Размеры миниатюры листинга
const (
	ThumbnailWidth  = 150
	ThumbnailHeight = 100
)

const jpegQuality = 85

// JoinImages склеивает закодированные изображения в один blob для хранения.
func JoinImages(encoded [][]byte) []byte {
	return bytes.Join(encoded, photosDelimiter)
}

// SplitImages разбирает blob обратно на закодированные изображения.
func SplitImages(blob []byte) [][]byte {
	if len(blob) == 0 {
		return nil
	}
	return bytes.Split(blob, photosDelimiter)
}

// DecodeImage декодирует изображение любого зарегистрированного формата.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// EncodeJPEG кодирует изображение в JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ScaleToThumbnail приводит изображение к размеру миниатюры листинга.
// Миниатюры сравниваются только между собой, поэтому качества
// nearest neighbor достаточно.
func ScaleToThumbnail(img image.Image) image.Image {
	return scaleNearest(img, ThumbnailWidth, ThumbnailHeight)
}

func scaleNearest(src image.Image, w, h int) image.Image {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == w && srcH == h {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcY := bounds.Min.Y + y*srcH/h
		for x := 0; x < w; x++ {
			srcX := bounds.Min.X + x*srcW/w
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}
