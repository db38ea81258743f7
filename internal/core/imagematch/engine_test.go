package imagematch

import (
	"bytes"
	"context"
	"testing"

	"flat-crawler-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMatchStore — кэш вердиктов в памяти
type fakeMatchStore struct {
	rows  []*domain.ImageMatch
	saves int

	// forcedRows подменяет результат FindByPair, когда не nil
	forcedRows []*domain.ImageMatch
}

func (s *fakeMatchStore) FindByPair(ctx context.Context, post1 uuid.UUID, pos1 *int, post2 uuid.UUID, pos2 *int) ([]*domain.ImageMatch, error) {
	if s.forcedRows != nil {
		return s.forcedRows, nil
	}
	var found []*domain.ImageMatch
	for _, row := range s.rows {
		if row.Post1ID == post1 && row.Post2ID == post2 &&
			posEqual(row.ImgPos1, pos1) && posEqual(row.ImgPos2, pos2) {
			found = append(found, row)
		}
	}
	return found, nil
}

func (s *fakeMatchStore) SaveImageMatch(ctx context.Context, match *domain.ImageMatch) error {
	s.rows = append(s.rows, match)
	s.saves++
	return nil
}

func (s *fakeMatchStore) DeleteAllImageMatches(ctx context.Context) error {
	s.rows = nil
	return nil
}

func posEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtr(v int) *int { return &v }

func TestGetImageMatchRefusesSamePost(t *testing.T) {
	store := &fakeMatchStore{}
	engine := NewEngine(store, nopLogger{})

	postID := uuid.New()
	img := noiseImage(16, 16, 3)
	ref1 := PostImageRef{PostID: postID, Pos: nil, Img: img}
	ref2 := PostImageRef{PostID: postID, Pos: intPtr(0), Img: img}

	_, err := engine.GetImageMatch(context.Background(), ref1, ref2, false)
	require.ErrorIs(t, err, domain.ErrSamePostComparison)

	// В dry-режиме сравнение внутри поста разрешено
	match, err := engine.GetImageMatch(context.Background(), ref1, ref2, true)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Zero(t, store.saves, "dry mode must not persist")
}

func TestGetImageMatchComputesAndCaches(t *testing.T) {
	store := &fakeMatchStore{}
	engine := NewEngine(store, nopLogger{})

	id1 := uuid.New()
	id2 := uuid.New()
	img := noiseImage(16, 16, 5)
	ref1 := PostImageRef{PostID: id1, Pos: intPtr(0), Img: img}
	ref2 := PostImageRef{PostID: id2, Pos: intPtr(1), Img: img}

	first, err := engine.GetImageMatch(context.Background(), ref1, ref2, false)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, engine.NumComparers(), first.NumConfirmed)

	// Повторный вызов с перевернутой парой попадает в ту же каноническую
	// запись: второй записи не появляется
	second, err := engine.GetImageMatch(context.Background(), ref2, ref1, false)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetImageMatchCanonicalOrder(t *testing.T) {
	store := &fakeMatchStore{}
	engine := NewEngine(store, nopLogger{})

	id1 := uuid.New()
	id2 := uuid.New()
	img := noiseImage(16, 16, 5)

	match, err := engine.GetImageMatch(context.Background(),
		PostImageRef{PostID: id2, Pos: nil, Img: img},
		PostImageRef{PostID: id1, Pos: nil, Img: img},
		false)
	require.NoError(t, err)
	require.NotNil(t, match)

	// Запись канонична независимо от порядка аргументов
	assert.Negative(t, bytes.Compare(match.Post1ID[:], match.Post2ID[:]),
		"Post1ID must sort before Post2ID")
}

func TestGetImageMatchNoSignalNotPersisted(t *testing.T) {
	store := &fakeMatchStore{}
	engine := NewEngine(store, nopLogger{})

	// Несравнимая пара: нет вердикта, нет записи, нет ошибки
	match, err := engine.GetImageMatch(context.Background(),
		PostImageRef{PostID: uuid.New(), Pos: nil, Img: noiseImage(16, 16, 1)},
		PostImageRef{PostID: uuid.New(), Pos: nil, Img: noiseImage(8, 8, 2)},
		false)
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Zero(t, store.saves)
}

func TestGetImageMatchDuplicateRowsIsInvariantViolation(t *testing.T) {
	store := &fakeMatchStore{forcedRows: []*domain.ImageMatch{{}, {}}}
	engine := NewEngine(store, nopLogger{})

	_, err := engine.GetImageMatch(context.Background(),
		PostImageRef{PostID: uuid.New(), Pos: nil, Img: noiseImage(16, 16, 1)},
		PostImageRef{PostID: uuid.New(), Pos: nil, Img: noiseImage(16, 16, 1)},
		false)
	require.ErrorIs(t, err, domain.ErrDuplicateImageMatch)
}
