package services

import (
	"sync"
	"sync/atomic"
	"testing"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/styling"
	"github.com/Corphon/Ravlo/internal/utils"
)

func newTestFormatter() (*FormatterService, *utils.MetricsCollector) {
	collector := utils.NewMetricsCollector()
	metrics := utils.NewAppMetrics(collector, quietLogger())
	return NewFormatterService(storage.NewMemoryStore(), metrics, quietLogger()), collector
}

func TestFormatSelection(t *testing.T) {
	svc, collector := newTestFormatter()

	resp, err := svc.Format(models.FormatRequest{Text: "Hello world", Start: 0, End: 5, Op: "bold"})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	want := styling.Encode("Hello", styling.AlphabetBoldSerif) + " world"
	if resp.Text != want {
		t.Fatalf("text = %q, want %q", resp.Text, want)
	}
	if resp.Start != 0 || resp.SelectionEnd != 5 {
		t.Fatalf("selection = %d..%d", resp.Start, resp.SelectionEnd)
	}
	if resp.Stats.CodePoints != 11 || resp.Stats.Visible != 11 || resp.Stats.Words != 2 {
		t.Fatalf("stats = %+v", resp.Stats)
	}
	if collector.GetCounterValue("format_operations_bold") != 1 {
		t.Fatalf("format metric not recorded")
	}
}

func TestFormatWholeBuffer(t *testing.T) {
	svc, _ := newTestFormatter()

	resp, err := svc.Format(models.FormatRequest{Text: "ab", Whole: true, Op: "underline"})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if resp.Text != styling.ApplyUnderline("ab") || resp.SelectionEnd != 4 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestFormatSnapsToGraphemes(t *testing.T) {
	svc, _ := newTestFormatter()
	underlined := styling.ApplyUnderline("ab") // a_ b_

	// 选区起点落在 a 与其下划线之间
	resp, err := svc.Format(models.FormatRequest{Text: underlined, Start: 1, End: 2, Op: "reset"})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if resp.Text != "a"+styling.ApplyUnderline("b") {
		t.Fatalf("text = %q", resp.Text)
	}
	if resp.Start != 0 || resp.SelectionEnd != 1 {
		t.Fatalf("selection = %d..%d", resp.Start, resp.SelectionEnd)
	}
}

func TestFormatErrors(t *testing.T) {
	svc, _ := newTestFormatter()

	cases := []models.FormatRequest{
		{Text: "abc", Start: 0, End: 2, Op: "strike"},
		{Text: "abc", Start: 2, End: 1, Op: "bold"},
		{Text: "abc", Start: 0, End: 4, Op: "bold"},
		{Text: "abc", Start: -1, End: 1, Op: "bold"},
	}
	for _, req := range cases {
		if _, err := svc.Format(req); !apperrors.IsValidationError(err) {
			t.Errorf("%+v: expected validation error, got %v", req, err)
		}
	}
}

func TestStats(t *testing.T) {
	text := styling.ApplyUnderline("Hi") + " " + styling.Encode("you", styling.AlphabetMonospace)
	got := Stats(text)
	if got.CodePoints != 8 || got.Visible != 6 || got.Words != 2 {
		t.Fatalf("stats = %+v", got)
	}
	if got.Bytes <= got.CodePoints {
		t.Fatalf("styled text should be multi-byte: %+v", got)
	}
}

func TestPreloadConsumedOnce(t *testing.T) {
	svc, _ := newTestFormatter()

	if _, ok, _ := svc.ConsumePreload(); ok {
		t.Fatalf("nothing preloaded yet")
	}

	if err := svc.SetPreload("first"); err != nil {
		t.Fatalf("preload: %v", err)
	}
	if err := svc.SetPreload("second\nline"); err != nil {
		t.Fatalf("preload: %v", err)
	}

	text, ok, err := svc.ConsumePreload()
	if err != nil || !ok || text != "second\nline" {
		t.Fatalf("consume = %q %v %v", text, ok, err)
	}
	if _, ok, _ := svc.ConsumePreload(); ok {
		t.Fatalf("preload must be consumed only once")
	}

	if err := svc.SetPreload("  "); !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPreloadConcurrentConsumers(t *testing.T) {
	svc, _ := newTestFormatter()

	for round := 0; round < 20; round++ {
		if err := svc.SetPreload("handoff"); err != nil {
			t.Fatalf("preload: %v", err)
		}

		var got int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok, _ := svc.ConsumePreload(); ok {
					atomic.AddInt32(&got, 1)
				}
			}()
		}
		wg.Wait()

		if got != 1 {
			t.Fatalf("round %d: preload consumed %d times", round, got)
		}
	}
}

func TestResetKeepsForeignDecorativeLetters(t *testing.T) {
	svc, _ := newTestFormatter()
	text := styling.Encode("hi", styling.AlphabetBoldSerif) + " \U0001D468\U0001D7CE"

	resp, err := svc.Format(models.FormatRequest{Text: text, Whole: true, Op: "reset"})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if resp.Text != "hi \U0001D468\U0001D7CE" {
		t.Fatalf("text = %q", resp.Text)
	}

	resp, err = svc.Format(models.FormatRequest{Text: text, Whole: true, Op: "normalize"})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if resp.Text != "hi A0" {
		t.Fatalf("normalized text = %q", resp.Text)
	}
}

func TestPreferenceTheme(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewPreferenceService(store, quietLogger())

	if svc.Theme() != models.ThemeLight {
		t.Fatalf("default theme should be light")
	}

	next, err := svc.ToggleTheme()
	if err != nil || next != models.ThemeDark {
		t.Fatalf("toggle = %q %v", next, err)
	}
	if svc.Theme() != models.ThemeDark {
		t.Fatalf("theme not persisted")
	}

	if err := svc.SetTheme("sepia"); !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// 旧版本直接写入未加引号的值
	store.Put(models.ThemeKey, []byte("dark"))
	if svc.Theme() != models.ThemeDark {
		t.Fatalf("raw theme value not accepted")
	}
	store.Put(models.ThemeKey, []byte(`"purple"`))
	if svc.Theme() != models.ThemeLight {
		t.Fatalf("invalid stored theme should read as light")
	}
}
