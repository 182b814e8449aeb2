package store

import (
	"context"

	"github.com/gin728/ginblog/internal/blog"
	"github.com/jmoiron/sqlx"
)

type MusicStore struct {
	db *sqlx.DB
}

func NewMusicStore(db *sqlx.DB) *MusicStore {
	return &MusicStore{db: db}
}

func (s *MusicStore) Insert(ctx context.Context, track *blog.Track) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO music (id, title, artist, url, cover, created_at)
		VALUES (:id, :title, :artist, :url, :cover, :created_at)
	`, track)
	return err
}

func (s *MusicStore) ListAll(ctx context.Context) ([]*blog.Track, error) {
	var tracks []*blog.Track
	err := s.db.SelectContext(ctx, &tracks, "SELECT * FROM music ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return tracks, nil
}
