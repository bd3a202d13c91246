package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/zhfeed/hnzh/internal/logger"
	"github.com/zhfeed/hnzh/internal/models"
)

var (
	// ErrNotFound is returned when no item exists for the requested id.
	ErrNotFound = errors.New("item not found")
	// ErrDuplicate is returned when an insert lost the race against a
	// concurrent ingestion run for the same id.
	ErrDuplicate = errors.New("item already exists")
)

const (
	retryAttempts  = 3
	retryBaseDelay = 1 * time.Second
	retryMaxDelay  = 10 * time.Second
)

// Store is the persistence gateway for ingested items. The connection
// pool is constructed once in main and shared across all requests.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType

	retryBase time.Duration
	retryMax  time.Duration
}

// Page is one page of an ordered category listing.
type Page struct {
	Items      []models.Item `json:"items"`
	Total      int           `json:"total"`
	TotalPages int           `json:"totalPages"`
}

// TypeStat summarizes one stored item type for the debug endpoint.
type TypeStat struct {
	Type     string        `json:"type"`
	Count    int           `json:"count"`
	Examples []models.Item `json:"examples"`
}

// Open connects to Postgres, configures the pool, and bootstraps the schema.
func Open(ctx context.Context, databaseURL string, maxConns, maxIdle int) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := New(db)
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing sql.DB.
func New(db *sql.DB) *Store {
	return &Store{
		db:        db,
		sb:        sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		retryBase: retryBaseDelay,
		retryMax:  retryMaxDelay,
	}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the items table and the indexes backing the
// category/score/time pagination queries.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL,
			title_zh TEXT NOT NULL DEFAULT '',
			url TEXT,
			text TEXT,
			text_zh TEXT,
			"by" TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			descendants INTEGER NOT NULL DEFAULT 0,
			time TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			dead BOOLEAN NOT NULL DEFAULT FALSE,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			kids BIGINT[] NOT NULL DEFAULT '{}',
			translated BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_type_score_time ON items (type, score DESC, time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_items_type_time ON items (type, time DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// Exists reports whether an item with the given id is already persisted.
// It is the dedupe gate that runs before any translation work.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.withRetry(ctx, func() error {
		query, args, err := s.sb.Select("1").From("items").Where(sq.Eq{"id": id}).Limit(1).ToSql()
		if err != nil {
			return err
		}
		var one int
		err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("existence check for %d: %w", id, err)
	}
	return exists, nil
}

// Create inserts an item together with its translation in a single
// atomic insert-if-absent statement. A concurrent duplicate resolves to
// ErrDuplicate instead of relying on a check-then-write sequence.
// Unlike reads, a terminal create failure propagates to the caller.
func (s *Store) Create(ctx context.Context, item models.Item, tr models.Translation) (*models.Item, error) {
	item.TitleZh = tr.TitleZh
	item.TextZh = tr.TextZh
	item.Translated = true

	kids := item.Kids
	if kids == nil {
		kids = []int64{}
	}

	err := s.withRetry(ctx, func() error {
		query, args, err := s.sb.Insert("items").
			Columns("id", "title", "title_zh", "url", "text", "text_zh", `"by"`,
				"score", "descendants", "time", "type", "dead", "deleted", "kids", "translated").
			Values(item.ID, item.Title, item.TitleZh, item.URL, item.Text, item.TextZh, item.By,
				item.Score, item.Descendants, item.Time, item.Type, item.Dead, item.Deleted,
				pq.Array(kids), item.Translated).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}

		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrDuplicate
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert item %d: %w", item.ID, err)
	}

	return &item, nil
}

// ListByCategory returns one ordered, filtered page for a category.
// Terminal read failure degrades to an empty page.
func (s *Store) ListByCategory(ctx context.Context, category models.Category, page, pageSize int) Page {
	if page < 1 {
		page = 1
	}

	var (
		items []models.Item
		total int
	)
	err := s.withRetry(ctx, func() error {
		countQuery, countArgs, err := s.sb.Select("COUNT(*)").
			From("items").
			Where(baseFilter(category)).
			ToSql()
		if err != nil {
			return err
		}
		if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return err
		}

		query, args, err := buildListQuery(s.sb, category, page, pageSize)
		if err != nil {
			return err
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		items, err = scanItems(rows)
		return err
	})
	if err != nil {
		logger.Get().Error().Err(err).Str("category", string(category)).Msg("Category listing failed")
		return Page{Items: []models.Item{}}
	}

	return Page{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, pageSize),
	}
}

// ListByCategories returns one ordered result set per input category,
// in input order. Used to assemble the multi-category home view.
// Terminal failure degrades to empty result sets.
func (s *Store) ListByCategories(ctx context.Context, categories []models.Category, pageSize int) [][]models.Item {
	results := make([][]models.Item, len(categories))
	for i, category := range categories {
		results[i] = s.ListByCategory(ctx, category, 1, pageSize).Items
	}
	return results
}

// GetByID returns one item or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	var item *models.Item
	err := s.withRetry(ctx, func() error {
		query, args, err := s.sb.Select(itemColumns...).
			From("items").
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		items, err := scanItems(rows)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrNotFound
		}
		item = &items[0]
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

// DebugStats returns per-type counts with a few recent samples each.
func (s *Store) DebugStats(ctx context.Context) []TypeStat {
	types := []string{"story", "ask", "show", "job"}
	stats := make([]TypeStat, 0, len(types))

	for _, t := range types {
		stat := TypeStat{Type: t, Examples: []models.Item{}}

		err := s.withRetry(ctx, func() error {
			countQuery, countArgs, err := s.sb.Select("COUNT(*)").
				From("items").
				Where(sq.Eq{"type": t}).
				ToSql()
			if err != nil {
				return err
			}
			if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&stat.Count); err != nil {
				return err
			}

			query, args, err := s.sb.Select(itemColumns...).
				From("items").
				Where(sq.Eq{"type": t}).
				OrderBy("time DESC").
				Limit(3).
				ToSql()
			if err != nil {
				return err
			}
			rows, err := s.db.QueryContext(ctx, query, args...)
			if err != nil {
				return err
			}
			stat.Examples, err = scanItems(rows)
			return err
		})
		if err != nil {
			logger.Get().Error().Err(err).Str("type", t).Msg("Debug stats query failed")
		}

		stats = append(stats, stat)
	}
	return stats
}

// DebugListByType returns the full ordered listing for one category.
func (s *Store) DebugListByType(ctx context.Context, category models.Category) []models.Item {
	var items []models.Item
	err := s.withRetry(ctx, func() error {
		query, args, err := s.sb.Select(itemColumns...).
			From("items").
			Where(sq.Eq{"type": category.StoredType()}).
			OrderBy("score DESC", "time DESC").
			ToSql()
		if err != nil {
			return err
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		items, err = scanItems(rows)
		return err
	})
	if err != nil {
		logger.Get().Error().Err(err).Str("category", string(category)).Msg("Debug listing failed")
		return []models.Item{}
	}
	return items
}

var itemColumns = []string{
	"id", "title", "title_zh", "url", "text", "text_zh", `"by"`,
	"score", "descendants", "time", "type", "dead", "deleted", "kids", "translated",
}

// baseFilter hides dead and deleted items and narrows to the stored type
// behind the category.
func baseFilter(category models.Category) sq.Eq {
	return sq.Eq{
		"deleted": false,
		"dead":    false,
		"type":    category.StoredType(),
	}
}

// orderColumns encodes the per-category ordering policy: "top" ranks by
// score with recency as tie-break, "new" by recency alone, "best" by
// score alone; ask/show/job follow the "top" profile.
func orderColumns(category models.Category) []string {
	switch category {
	case models.CategoryNew:
		return []string{"time DESC"}
	case models.CategoryBest:
		return []string{"score DESC"}
	default:
		return []string{"score DESC", "time DESC"}
	}
}

func buildListQuery(sb sq.StatementBuilderType, category models.Category, page, pageSize int) (string, []interface{}, error) {
	return sb.Select(itemColumns...).
		From("items").
		Where(baseFilter(category)).
		OrderBy(orderColumns(category)...).
		Offset(uint64((page - 1) * pageSize)).
		Limit(uint64(pageSize)).
		ToSql()
}

func totalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

func scanItems(rows *sql.Rows) ([]models.Item, error) {
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var (
			item models.Item
			kids pq.Int64Array
		)
		if err := rows.Scan(
			&item.ID, &item.Title, &item.TitleZh, &item.URL, &item.Text, &item.TextZh, &item.By,
			&item.Score, &item.Descendants, &item.Time, &item.Type, &item.Dead, &item.Deleted,
			&kids, &item.Translated,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Kids = []int64(kids)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

// withRetry runs op with bounded retry and exponential backoff capped at
// retryMaxDelay. A connection-class error triggers a reconnect attempt
// before the next try. ErrNotFound and ErrDuplicate are terminal.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || errors.Is(lastErr, ErrNotFound) || errors.Is(lastErr, ErrDuplicate) {
			return lastErr
		}

		logger.Get().Warn().Err(lastErr).Int("attempt", attempt+1).Msg("Database operation failed")
		if attempt == retryAttempts-1 {
			break
		}

		if isConnectionError(lastErr) {
			if pingErr := s.db.PingContext(ctx); pingErr != nil {
				logger.Get().Warn().Err(pingErr).Msg("Reconnect attempt failed")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}
	return lastErr
}

func (s *Store) backoff(attempt int) time.Duration {
	delay := s.retryBase << attempt
	if delay > s.retryMax {
		return s.retryMax
	}
	return delay
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return strings.Contains(err.Error(), "connection")
}
