package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/pkg/clock"
	"github.com/go-filegate/internal/pkg/id"
)

// ItemStore persists catalog metadata.
type ItemStore interface {
	Put(ctx context.Context, it *domain.Item) error
	Get(ctx context.Context, itemID string) (*domain.Item, error)
	ScanActive(ctx context.Context) ([]domain.Item, error)
	Deactivate(ctx context.Context, itemID string) error
	IncrementSearches(ctx context.Context, itemID string) error
}

// Uploader streams artifact bytes into object storage.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// SearchResult pairs a matched item with its similarity score.
type SearchResult struct {
	Item  domain.Item `json:"item"`
	Score float64     `json:"score"`
}

type Service interface {
	AddItem(ctx context.Context, req *domain.CreateItemRequest, uploadedBy, filename, contentType string, size int64, body io.Reader) (*domain.Item, error)
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
	RemoveItem(ctx context.Context, itemID string) error
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Options carries search tuning.
type Options struct {
	SearchThreshold float64 // minimum similarity, 0..1
	MaxResults      int
	CallTimeout     time.Duration
}

type service struct {
	items  ItemStore
	upload Uploader
	clk    clock.Clock
	opts   Options
}

func NewService(items ItemStore, upload Uploader, clk clock.Clock, opts Options) Service {
	if opts.SearchThreshold <= 0 {
		opts.SearchThreshold = 0.6
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	return &service{items: items, upload: upload, clk: clk, opts: opts}
}

// AddItem uploads the artifact first, then records the metadata. A failed
// metadata write leaves an orphan object, never a dangling catalog row.
func (s *service) AddItem(ctx context.Context, req *domain.CreateItemRequest, uploadedBy, filename, contentType string, size int64, body io.Reader) (*domain.Item, error) {
	itemID := id.New()
	key := fmt.Sprintf("artifacts/%s%s", itemID, path.Ext(filename))

	if _, err := s.upload.Upload(ctx, key, body, contentType); err != nil {
		return nil, fmt.Errorf("upload artifact: %w", err)
	}

	now := s.clk.Now()
	it := &domain.Item{
		ItemID:      itemID,
		Title:       req.Title,
		Year:        req.Year,
		Quality:     req.Quality,
		Language:    req.Language,
		Object:      key,
		Size:        size,
		ContentType: contentType,
		UploadedBy:  uploadedBy,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	storeCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	if err := s.items.Put(storeCtx, it); err != nil {
		return nil, fmt.Errorf("persist catalog item: %w", domain.ErrStoreUnavailable)
	}

	slog.Info("catalog item added", "item_id", itemID, "title", it.Title, "size", size)
	return it, nil
}

func (s *service) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	it, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !it.Active {
		return nil, fmt.Errorf("catalog item %s: %w", itemID, domain.ErrNotFound)
	}
	return it, nil
}

// RemoveItem deactivates the catalog row. The stored object is left for
// the bucket lifecycle policy.
func (s *service) RemoveItem(ctx context.Context, itemID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	if _, err := s.items.Get(ctx, itemID); err != nil {
		return err
	}
	if err := s.items.Deactivate(ctx, itemID); err != nil {
		return fmt.Errorf("deactivate catalog item: %w", domain.ErrStoreUnavailable)
	}
	slog.Info("catalog item removed", "item_id", itemID)
	return nil
}

// Search ranks active items against the query by title similarity and
// returns those at or above the threshold, best first.
func (s *service) Search(ctx context.Context, query string) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	items, err := s.items.ScanActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", domain.ErrStoreUnavailable)
	}

	q := normalize(query)
	if q == "" {
		return nil, nil
	}

	var results []SearchResult
	for _, it := range items {
		score := similarity(q, normalize(it.Title))
		if score >= s.opts.SearchThreshold {
			results = append(results, SearchResult{Item: it, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > s.opts.MaxResults {
		results = results[:s.opts.MaxResults]
	}

	for _, r := range results {
		if err := s.items.IncrementSearches(ctx, r.Item.ItemID); err != nil {
			slog.Warn("failed to bump search count", "item_id", r.Item.ItemID, "err", err)
		}
	}
	return results, nil
}

// normalize lowercases and collapses everything non-alphanumeric to
// single spaces so punctuation and separators never affect matching.
func normalize(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// similarity scores query against title in [0,1]. A contained query is a
// full match; otherwise the Dice coefficient over character bigrams.
func similarity(query, title string) float64 {
	if query == title || strings.Contains(title, query) {
		return 1
	}
	qb := bigrams(query)
	tb := bigrams(title)
	if len(qb) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g, n := range qb {
		if m, ok := tb[g]; ok {
			if m < n {
				shared += m
			} else {
				shared += n
			}
		}
	}
	total := 0
	for _, n := range qb {
		total += n
	}
	for _, n := range tb {
		total += n
	}
	return float64(2*shared) / float64(total)
}

func bigrams(s string) map[string]int {
	grams := make(map[string]int)
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}
