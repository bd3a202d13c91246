package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestItemOmitsAbsentOptionalFields(t *testing.T) {
	item := Item{
		ID:      42,
		Title:   "Test Title",
		TitleZh: "测试标题",
		By:      "tester",
		Score:   10,
		Time:    time.Now(),
		Type:    "story",
	}

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Failed to marshal Item: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	for _, key := range []string{"url", "text", "textZh", "kids"} {
		if _, present := result[key]; present {
			t.Errorf("Expected %s to be omitted when absent, got %v", key, result[key])
		}
	}

	if result["titleZh"] != "测试标题" {
		t.Errorf("Expected titleZh to be '测试标题', got %v", result["titleZh"])
	}
}

func TestDisplayTitleFallsBackToOriginal(t *testing.T) {
	item := Item{Title: "Original", TitleZh: "翻译"}
	if got := item.DisplayTitle(); got != "翻译" {
		t.Errorf("Expected translated title, got %q", got)
	}

	item.TitleZh = ""
	if got := item.DisplayTitle(); got != "Original" {
		t.Errorf("Expected original title fallback, got %q", got)
	}
}

func TestCategoryStoredType(t *testing.T) {
	cases := map[Category]string{
		CategoryTop:  "story",
		CategoryNew:  "story",
		CategoryBest: "story",
		CategoryAsk:  "ask",
		CategoryShow: "show",
		CategoryJob:  "job",
	}
	for cat, want := range cases {
		if got := cat.StoredType(); got != want {
			t.Errorf("StoredType(%s) = %q, want %q", cat, got, want)
		}
	}
}

func TestParseCategoryRejectsUnknown(t *testing.T) {
	if _, err := ParseCategory("frontpage"); err == nil {
		t.Error("Expected error for unknown category")
	}
	if cat, err := ParseCategory("show"); err != nil || cat != CategoryShow {
		t.Errorf("ParseCategory(show) = %v, %v", cat, err)
	}
}
