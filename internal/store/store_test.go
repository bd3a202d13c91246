package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/zhfeed/hnzh/internal/logger"
	"github.com/zhfeed/hnzh/internal/models"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.Config{Level: "error", Output: "stderr"})
	os.Exit(m.Run())
}

// fastStore shrinks retry backoff so the bounded-retry tests run in
// milliseconds.
func fastStore(db *sql.DB) *Store {
	s := New(db)
	s.retryBase = time.Millisecond
	s.retryMax = 4 * time.Millisecond
	return s
}

func TestWithRetrySucceedsOnThirdAttempt(t *testing.T) {
	s := fastStore(nil)
	attempts := 0
	err := s.withRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryGivesUpAfterBoundedAttempts(t *testing.T) {
	s := fastStore(nil)
	attempts := 0
	err := s.withRetry(context.Background(), func() error {
		attempts++
		return errors.New("persistent failure")
	})

	if err == nil {
		t.Error("Expected terminal error")
	}
	if attempts != retryAttempts {
		t.Errorf("Expected %d attempts, got %d", retryAttempts, attempts)
	}
}

func TestWithRetryDoesNotRetrySentinels(t *testing.T) {
	s := New(nil)
	for _, sentinel := range []error{ErrNotFound, ErrDuplicate} {
		attempts := 0
		err := s.withRetry(context.Background(), func() error {
			attempts++
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Errorf("Expected %v, got %v", sentinel, err)
		}
		if attempts != 1 {
			t.Errorf("Expected single attempt for %v, got %d", sentinel, attempts)
		}
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	s := New(nil)
	if d := s.backoff(0); d != 1*time.Second {
		t.Errorf("backoff(0) = %v, want 1s", d)
	}
	if d := s.backoff(1); d != 2*time.Second {
		t.Errorf("backoff(1) = %v, want 2s", d)
	}
	if d := s.backoff(10); d != retryMaxDelay {
		t.Errorf("backoff(10) = %v, want cap %v", d, retryMaxDelay)
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, pageSize, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{7, 3, 3},
	}
	for _, c := range cases {
		if got := totalPages(c.total, c.pageSize); got != c.want {
			t.Errorf("totalPages(%d, %d) = %d, want %d", c.total, c.pageSize, got, c.want)
		}
	}
}

func TestBuildListQueryOrdering(t *testing.T) {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	cases := []struct {
		category models.Category
		wantOrd  string
	}{
		{models.CategoryTop, "ORDER BY score DESC, time DESC"},
		{models.CategoryNew, "ORDER BY time DESC"},
		{models.CategoryBest, "ORDER BY score DESC"},
		{models.CategoryAsk, "ORDER BY score DESC, time DESC"},
		{models.CategoryJob, "ORDER BY score DESC, time DESC"},
	}

	for _, c := range cases {
		query, args, err := buildListQuery(sb, c.category, 2, 20)
		if err != nil {
			t.Fatalf("buildListQuery(%s): %v", c.category, err)
		}
		if !strings.Contains(query, c.wantOrd) {
			t.Errorf("%s query missing %q: %s", c.category, c.wantOrd, query)
		}
		if !strings.Contains(query, "OFFSET 20") || !strings.Contains(query, "LIMIT 20") {
			t.Errorf("%s query missing pagination: %s", c.category, query)
		}
		// deleted, dead, and type filters travel as placeholder args.
		if len(args) != 3 {
			t.Errorf("%s query expected 3 filter args, got %v", c.category, args)
		}
	}
}

func TestBaseFilterMapsCategoryToStoredType(t *testing.T) {
	filter := baseFilter(models.CategoryTop)
	if filter["type"] != "story" {
		t.Errorf("top filter type = %v, want story", filter["type"])
	}
	if filter["deleted"] != false || filter["dead"] != false {
		t.Errorf("filter must hide deleted and dead items: %v", filter)
	}

	filter = baseFilter(models.CategoryShow)
	if filter["type"] != "show" {
		t.Errorf("show filter type = %v, want show", filter["type"])
	}
}
