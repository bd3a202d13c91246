package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/zhfeed/hnzh/internal/cache"
	"github.com/zhfeed/hnzh/internal/config"
	"github.com/zhfeed/hnzh/internal/ingest"
	"github.com/zhfeed/hnzh/internal/logger"
	"github.com/zhfeed/hnzh/internal/models"
	"github.com/zhfeed/hnzh/internal/store"
)

const defaultPageSize = 20

// homePageSize is how many items each category contributes to the
// multi-category home view.
const homePageSize = 8

// Runner triggers one ingestion run.
type Runner interface {
	Run(ctx context.Context, categories []models.Category, limit int) ingest.Summary
}

// Reader is the read surface of the persistence gateway.
type Reader interface {
	ListByCategory(ctx context.Context, category models.Category, page, pageSize int) store.Page
	ListByCategories(ctx context.Context, categories []models.Category, pageSize int) [][]models.Item
	GetByID(ctx context.Context, id int64) (*models.Item, error)
	DebugStats(ctx context.Context) []store.TypeStat
	DebugListByType(ctx context.Context, category models.Category) []models.Item
}

// Archiver persists run summaries out of band.
type Archiver interface {
	StoreRunSummary(ctx context.Context, trigger string, summary ingest.Summary)
}

type Handlers struct {
	config   *config.Config
	reader   Reader
	runner   Runner
	cache    cache.PageCache
	archiver Archiver // nil when R2 is not configured
}

func NewHandlers(cfg *config.Config, reader Reader, runner Runner, pageCache cache.PageCache, archiver Archiver) *Handlers {
	return &Handlers{
		config:   cfg,
		reader:   reader,
		runner:   runner,
		cache:    pageCache,
		archiver: archiver,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Cron handles GET /api/v1/cron: the scheduled full-category refresh.
func (h *Handlers) Cron(c *fiber.Ctx) error {
	return h.runIngestion(c, "cron", models.Categories, h.config.CronLimit,
		func(s ingest.Summary) string {
			return fmt.Sprintf("定时任务完成 (%.1f秒)：成功获取 %d 篇文章", s.Elapsed.Seconds(), len(s.Created))
		})
}

// Fetch handles GET /api/v1/fetch: the manual refresh of the "new"
// listing with a larger fetch volume.
func (h *Handlers) Fetch(c *fiber.Ctx) error {
	return h.runIngestion(c, "fetch", []models.Category{models.CategoryNew}, h.config.FetchLimit,
		func(s ingest.Summary) string {
			return fmt.Sprintf("成功获取内容：%d 篇文章", len(s.Created))
		})
}

func (h *Handlers) runIngestion(c *fiber.Ctx, trigger string, categories []models.Category, limit int, message func(ingest.Summary) string) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.config.RunTimeout)
	defer cancel()

	logger.Get().Info().
		Str("trigger", trigger).
		Int("limit", limit).
		Msg("Starting ingestion run")

	summary := h.runner.Run(ctx, categories, limit)

	if h.archiver != nil {
		h.archiver.StoreRunSummary(context.WithoutCancel(ctx), trigger, summary)
	}

	resp := fiber.Map{
		"success": true,
		"message": message(summary),
		"results": summary.Created,
	}
	if len(summary.Errors) > 0 {
		resp["errors"] = summary.Errors
	}
	return c.JSON(resp)
}

// ListStories handles GET /api/v1/stories?type=top&page=1
func (h *Handlers) ListStories(c *fiber.Ctx) error {
	category, err := models.ParseCategory(c.Query("type", "top"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}

	key := cache.Key("stories", fmt.Sprintf("%s:%d", category, page))
	if payload, ok := h.cache.Get(c.Context(), key); ok {
		return sendCachedJSON(c, payload)
	}

	result := h.reader.ListByCategory(c.Context(), category, page, defaultPageSize)

	return h.sendAndCache(c, key, fiber.Map{
		"type":       category,
		"page":       page,
		"pageSize":   defaultPageSize,
		"total":      result.Total,
		"totalPages": result.TotalPages,
		"items":      result.Items,
	})
}

// GetStory handles GET /api/v1/stories/:id
func (h *Handlers) GetStory(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid story id",
		})
	}

	key := "story:" + strconv.FormatInt(id, 10)
	if payload, ok := h.cache.Get(c.Context(), key); ok {
		return sendCachedJSON(c, payload)
	}

	item, err := h.reader.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Story not found",
			})
		}
		logger.Get().Error().Err(err).Int64("id", id).Msg("Error getting story")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get story",
		})
	}

	return h.sendAndCache(c, key, item)
}

// Home handles GET /api/v1/home: one batched round trip building the
// multi-category home view.
func (h *Handlers) Home(c *fiber.Ctx) error {
	key := "home"
	if payload, ok := h.cache.Get(c.Context(), key); ok {
		return sendCachedJSON(c, payload)
	}

	results := h.reader.ListByCategories(c.Context(), models.Categories, homePageSize)

	sections := make([]fiber.Map, len(models.Categories))
	for i, category := range models.Categories {
		sections[i] = fiber.Map{
			"type":  category,
			"items": results[i],
		}
	}

	return h.sendAndCache(c, key, fiber.Map{"sections": sections})
}

// Debug handles GET /api/v1/debug[?type=]: per-type counts and samples,
// or the full ordered listing of one category.
func (h *Handlers) Debug(c *fiber.Ctx) error {
	if typeParam := c.Query("type"); typeParam != "" {
		category, err := models.ParseCategory(typeParam)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		items := h.reader.DebugListByType(c.Context(), category)
		return c.JSON(fiber.Map{
			"type":    category,
			"count":   len(items),
			"stories": items,
		})
	}

	return c.JSON(fiber.Map{
		"results": h.reader.DebugStats(c.Context()),
	})
}

func (h *Handlers) sendAndCache(c *fiber.Ctx, key string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		logger.Get().Error().Err(err).Msg("Failed to marshal response")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
		})
	}

	h.cache.Set(c.Context(), key, payload, h.config.CacheTTL)
	return sendCachedJSON(c, payload)
}

func sendCachedJSON(c *fiber.Ctx, payload []byte) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}
