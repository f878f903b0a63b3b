package questionnaire

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// prefetchLimit caps concurrent image lookups.
const prefetchLimit = 4

// ImageFetcher resolves a card image URL for a recommendation title.
type ImageFetcher func(ctx context.Context, title string) (string, error)

// ImageBoard is the shared title -> image URL mapping. Entries are written
// independently in whatever order fetches complete.
type ImageBoard struct {
	mu   sync.RWMutex
	urls map[string]string
}

func NewImageBoard() *ImageBoard {
	return &ImageBoard{urls: make(map[string]string)}
}

func (b *ImageBoard) Set(title, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.urls[title] = url
}

func (b *ImageBoard) Get(title string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	url, ok := b.urls[title]
	return url, ok
}

func (b *ImageBoard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.urls)
}

func fetchOne(ctx context.Context, fetch ImageFetcher, board *ImageBoard, title string) (string, bool) {
	url, err := fetch(ctx, title)
	if err != nil || url == "" {
		log.Warn().Err(err).Str("title", title).Msg("card image unavailable")
		return "", false
	}
	board.Set(title, url)
	return url, true
}

// PrefetchAll fetches every image and returns once all lookups finished. A
// failed lookup leaves its entry empty; it does not fail the batch.
func PrefetchAll(ctx context.Context, titles []string, fetch ImageFetcher, board *ImageBoard) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	for _, title := range titles {
		g.Go(func() error {
			fetchOne(gctx, fetch, board, title)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// PrefetchStream starts the lookups and returns at once. onEach fires for every
// image as it lands. The returned channel closes after the last lookup.
func PrefetchStream(ctx context.Context, titles []string, fetch ImageFetcher, board *ImageBoard, onEach func(title, url string)) <-chan struct{} {
	done := make(chan struct{})
	var g errgroup.Group
	g.SetLimit(prefetchLimit)
	go func() {
		defer close(done)
		for _, title := range titles {
			g.Go(func() error {
				if url, ok := fetchOne(ctx, fetch, board, title); ok && onEach != nil {
					onEach(title, url)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
	return done
}
