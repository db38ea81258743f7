package port

import (
	"context"
	"image"

	"flat-crawler-service/internal/core/domain"
)

// PostImage — одно декодированное изображение поста.
// Pos — позиция в списке фотографий, nil означает миниатюру.
type PostImage struct {
	Pos *int
	Img image.Image
}

// PostImageLoaderPort декодирует миниатюру и фотографии поста.
// Битые отдельные изображения пропускаются, не валя весь пост.
type PostImageLoaderPort interface {
	LoadPostImages(ctx context.Context, post *domain.Post) ([]PostImage, error)
}
