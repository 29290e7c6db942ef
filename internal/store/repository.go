package store

import (
	"context"
	"sync"

	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/shortener"
)

// Repository implements shortener.Repository over a snapshot Backend.
// A single mutex covers each load-mutate-save, readers included.
type Repository struct {
	mu      sync.Mutex
	backend Backend
}

var _ shortener.Repository = (*Repository)(nil)

func NewRepository(backend Backend) *Repository {
	return &Repository{backend: backend}
}

func (r *Repository) CreateLink(ctx context.Context, link shortener.Link) (shortener.Link, error) {
	const op = "store.repo.CreateLink"

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.backend.Load(ctx)
	if err != nil {
		return shortener.Link{}, errx.E(op, errx.Internal, err)
	}
	if _, exists := snap[link.Code]; exists {
		return shortener.Link{}, errx.E(op, errx.Conflict, shortener.ErrCodeTaken)
	}

	snap[link.Code] = link
	if err := r.backend.Save(ctx, snap); err != nil {
		return shortener.Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (r *Repository) GetLinkByCode(ctx context.Context, code string) (shortener.Link, error) {
	const op = "store.repo.GetLinkByCode"

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.backend.Load(ctx)
	if err != nil {
		return shortener.Link{}, errx.E(op, errx.Internal, err)
	}
	link, ok := snap[code]
	if !ok {
		return shortener.Link{}, errx.E(op, errx.NotFound, shortener.ErrLinkNotFound)
	}
	return link, nil
}

func (r *Repository) TrackClick(ctx context.Context, code string, guard shortener.ClickGuard) (shortener.Link, error) {
	const op = "store.repo.TrackClick"

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.backend.Load(ctx)
	if err != nil {
		return shortener.Link{}, errx.E(op, errx.Internal, err)
	}
	link, ok := snap[code]
	if !ok {
		return shortener.Link{}, errx.E(op, errx.NotFound, shortener.ErrLinkNotFound)
	}
	if guard != nil {
		if err := guard(link); err != nil {
			return shortener.Link{}, err
		}
	}

	link.Clicks++
	snap[code] = link
	if err := r.backend.Save(ctx, snap); err != nil {
		return shortener.Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}
