package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zhfeed/hnzh/internal/hn"
	"github.com/zhfeed/hnzh/internal/logger"
	"github.com/zhfeed/hnzh/internal/models"
	"github.com/zhfeed/hnzh/internal/store"
)

// Fetcher lists category ids and resolves item details.
type Fetcher interface {
	ListIDs(ctx context.Context, category models.Category) []int64
	FetchMany(ctx context.Context, ids []int64) []hn.Item
}

// Translator localizes an item's title and body.
type Translator interface {
	TranslateStory(ctx context.Context, title, text string) models.Translation
}

// Gateway is the slice of the persistence layer the pipeline needs.
type Gateway interface {
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, item models.Item, tr models.Translation) (*models.Item, error)
}

// Outcome classifies how the pipeline finished for one item.
type Outcome int

const (
	// OutcomeCreated means the item was translated and persisted.
	OutcomeCreated Outcome = iota
	// OutcomeSkipped means the item was already persisted.
	OutcomeSkipped
	// OutcomeFailed means a per-item step failed; siblings are unaffected.
	OutcomeFailed
)

// ItemResult is the per-item pipeline outcome.
type ItemResult struct {
	ID      int64
	Type    string
	Title   string
	Outcome Outcome
	Err     error
}

// CreatedItem is the summary entry for one newly persisted item.
type CreatedItem struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// CategoryError records a failure isolated to one category.
type CategoryError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Summary aggregates one ingestion run.
type Summary struct {
	Created []CreatedItem   `json:"results"`
	Errors  []CategoryError `json:"errors,omitempty"`
	Elapsed time.Duration   `json:"-"`
}

// Runner drives the ingestion pipeline: listing fetch, detail fetch,
// dedupe check, translation, and persistence, category by category.
type Runner struct {
	fetcher    Fetcher
	translator Translator
	gateway    Gateway
	batchSize  int
}

// NewRunner wires the pipeline collaborators. batchSize caps how many
// per-item pipelines run concurrently within a category.
func NewRunner(fetcher Fetcher, translator Translator, gateway Gateway, batchSize int) *Runner {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Runner{
		fetcher:    fetcher,
		translator: translator,
		gateway:    gateway,
		batchSize:  batchSize,
	}
}

// Run processes the given categories strictly sequentially, taking up to
// limit listing ids per category. A category failure is recorded and the
// run proceeds to the next category.
func (r *Runner) Run(ctx context.Context, categories []models.Category, limit int) Summary {
	log := logger.Get()
	start := time.Now()
	summary := Summary{Created: []CreatedItem{}}

	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			summary.Errors = append(summary.Errors, CategoryError{
				Type:  string(category),
				Error: err.Error(),
			})
			break
		}

		log.Info().Str("category", string(category)).Msg("Fetching category listing")

		ids := r.fetcher.ListIDs(ctx, category)
		if len(ids) > limit {
			ids = ids[:limit]
		}
		items := r.fetcher.FetchMany(ctx, ids)

		log.Info().
			Str("category", string(category)).
			Int("listed", len(ids)).
			Int("fetched", len(items)).
			Msg("Fetched item details")

		results := r.processBatches(ctx, category, items)
		for _, res := range results {
			switch res.Outcome {
			case OutcomeCreated:
				summary.Created = append(summary.Created, CreatedItem{
					ID:    res.ID,
					Type:  res.Type,
					Title: res.Title,
				})
			case OutcomeFailed:
				log.Error().
					Err(res.Err).
					Int64("id", res.ID).
					Str("category", string(category)).
					Msg("Item ingestion failed")
			}
		}
	}

	summary.Elapsed = time.Since(start)
	log.Info().
		Int("created", len(summary.Created)).
		Int("category_errors", len(summary.Errors)).
		Dur("elapsed", summary.Elapsed).
		Msg("Ingestion run finished")

	return summary
}

// processBatches fans out fixed-size concurrent batches; batches run
// sequentially so total concurrency stays capped at the batch size.
// Results are collected by input position, so the aggregate order
// matches the input id order.
func (r *Runner) processBatches(ctx context.Context, category models.Category, items []hn.Item) []ItemResult {
	results := make([]ItemResult, len(items))

	for offset := 0; offset < len(items); offset += r.batchSize {
		end := offset + r.batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = r.processItem(ctx, category, items[i])
			}(i)
		}
		wg.Wait()
	}

	return results
}

// processItem runs one item through the exists-translate-persist path.
// Any failure is contained at the item boundary.
func (r *Runner) processItem(ctx context.Context, category models.Category, item hn.Item) ItemResult {
	result := ItemResult{ID: item.ID, Type: category.StoredType()}

	exists, err := r.gateway.Exists(ctx, item.ID)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	if exists {
		logger.Get().Debug().Int64("id", item.ID).Msg("Item already persisted, skipping")
		result.Outcome = OutcomeSkipped
		return result
	}

	tr := r.translator.TranslateStory(ctx, item.Title, item.Text)

	created, err := r.gateway.Create(ctx, toModel(item, category), tr)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost the insert race against a concurrent run.
			result.Outcome = OutcomeSkipped
			return result
		}
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	result.Outcome = OutcomeCreated
	result.Title = created.DisplayTitle()
	return result
}

// toModel converts a wire item into the persisted shape, mapping the
// listing category onto the stored type and normalizing optional fields.
func toModel(item hn.Item, category models.Category) models.Item {
	m := models.Item{
		ID:          item.ID,
		Title:       item.Title,
		By:          item.By,
		Score:       item.Score,
		Descendants: item.Descendants,
		Time:        time.Unix(item.Time, 0).UTC(),
		Type:        category.StoredType(),
		Dead:        item.Dead,
		Deleted:     item.Deleted,
		Kids:        item.Kids,
	}
	if item.URL != "" {
		url := item.URL
		m.URL = &url
	}
	if item.Text != "" {
		text := item.Text
		m.Text = &text
	}
	return m
}
