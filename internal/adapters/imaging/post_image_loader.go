package imaging

import (
	"context"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"
)

// PostImageLoader - реализация PostImageLoaderPort поверх blob-хранения
// фотографий в записи поста.
type PostImageLoader struct{}

func NewPostImageLoader() *PostImageLoader {
	return &PostImageLoader{}
}

// LoadPostImages декодирует миниатюру и фотографии поста.
// Отдельное битое изображение пропускается с warn-логом, остальные
// продолжают участвовать в сравнении.
func (l *PostImageLoader) LoadPostImages(ctx context.Context, post *domain.Post) ([]port.PostImage, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	loaderLogger := logger.WithFields(port.Fields{
		"component": "PostImageLoader",
		"post_id":   post.ID.String(),
	})

	var images []port.PostImage

	if len(post.Thumbnail) > 0 {
		img, err := DecodeImage(post.Thumbnail)
		if err != nil {
			loaderLogger.Warn("Skipping undecodable thumbnail", port.Fields{"error": err.Error()})
		} else {
			images = append(images, port.PostImage{Pos: nil, Img: img})
		}
	}

	for pos, encoded := range SplitImages(post.PhotosBlob) {
		img, err := DecodeImage(encoded)
		if err != nil {
			loaderLogger.Warn("Skipping undecodable photo", port.Fields{
				"pos":   pos,
				"error": err.Error(),
			})
			continue
		}
		p := pos
		images = append(images, port.PostImage{Pos: &p, Img: img})
	}

	return images, nil
}
