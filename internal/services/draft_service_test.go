package services

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/styling"
	"github.com/Corphon/Ravlo/internal/utils"
)

var testClock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *utils.Logger {
	return utils.NewLogger(&bytes.Buffer{}, utils.ERROR)
}

func newTestDraftService(store storage.BlobStore) *DraftService {
	n := 0
	return NewDraftService(store, nil, quietLogger(),
		WithClock(func() time.Time { return testClock }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("draft-id-%04d", n)
		}),
	)
}

// failingStore 模拟存储写入失败
type failingStore struct {
	storage.BlobStore
}

func (failingStore) Put(string, []byte) error { return errors.New("disk full") }

func TestSaveCreatesNewestFirst(t *testing.T) {
	s := newTestDraftService(storage.NewMemoryStore())

	first, err := s.Save(models.SaveDraftRequest{Content: "hello"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.Updated || first.Draft.Title != "Draft #1" {
		t.Fatalf("unexpected first result %+v", first)
	}
	if first.Draft.Timestamp != testClock.UnixMilli() {
		t.Fatalf("timestamp = %d", first.Draft.Timestamp)
	}

	second, err := s.Save(models.SaveDraftRequest{Title: "  Launch post ", Content: "world"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if second.Draft.Title != "Launch post" {
		t.Fatalf("title = %q", second.Draft.Title)
	}

	list := s.List()
	if len(list) != 2 || list[0].ID != second.Draft.ID || list[1].ID != first.Draft.ID {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestSaveEditKeepsIDAndPosition(t *testing.T) {
	s := newTestDraftService(storage.NewMemoryStore())

	a, _ := s.Save(models.SaveDraftRequest{Content: "a"})
	b, _ := s.Save(models.SaveDraftRequest{Content: "b"})

	res, err := s.Save(models.SaveDraftRequest{EditingID: a.Draft.ID, Content: "a2"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !res.Updated {
		t.Fatalf("expected update")
	}
	if res.Draft.Title != "Draft #0001" {
		t.Fatalf("title = %q, want last four id chars", res.Draft.Title)
	}

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].ID != b.Draft.ID || list[1].ID != a.Draft.ID || list[1].Content != "a2" {
		t.Fatalf("edit moved or lost draft: %+v", list)
	}
}

func TestSaveUnknownEditingIDIsPrepended(t *testing.T) {
	s := newTestDraftService(storage.NewMemoryStore())
	s.Save(models.SaveDraftRequest{Content: "a"})

	res, err := s.Save(models.SaveDraftRequest{EditingID: "gone-1234", Content: "x"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Updated {
		t.Fatalf("unknown id should insert")
	}
	if list := s.List(); list[0].ID != "gone-1234" {
		t.Fatalf("expected prepended draft, got %+v", list)
	}
}

func TestSaveRejectsBlankContent(t *testing.T) {
	store := storage.NewMemoryStore()
	s := newTestDraftService(store)
	s.Save(models.SaveDraftRequest{Content: "keep"})
	before, _, _ := store.Get(models.DraftsKey)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := s.Save(models.SaveDraftRequest{Content: content})
		if !apperrors.IsValidationError(err) {
			t.Fatalf("content %q: expected validation error, got %v", content, err)
		}
		if err.Error() != "Cannot save an empty draft." {
			t.Fatalf("message = %q", err.Error())
		}
	}

	after, _, _ := store.Get(models.DraftsKey)
	if !bytes.Equal(before, after) {
		t.Fatalf("store changed after rejected save")
	}
}

func TestLoadCorruptBlobIsEmpty(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Put(models.DraftsKey, []byte("{not json"))

	s := newTestDraftService(store)
	if list := s.List(); len(list) != 0 {
		t.Fatalf("corrupt blob should read as empty, got %+v", list)
	}

	res, err := s.Save(models.SaveDraftRequest{Content: "fresh"})
	if err != nil {
		t.Fatalf("save after corrupt: %v", err)
	}
	if res.Draft.Title != "Draft #1" {
		t.Fatalf("title = %q", res.Draft.Title)
	}
}

func TestRemove(t *testing.T) {
	s := newTestDraftService(storage.NewMemoryStore())
	a, _ := s.Save(models.SaveDraftRequest{Content: "a"})
	s.Save(models.SaveDraftRequest{Content: "b"})

	if err := s.Remove("missing"); err != nil {
		t.Fatalf("remove unknown: %v", err)
	}
	if len(s.List()) != 2 {
		t.Fatalf("unknown remove changed list")
	}

	if err := s.Remove(a.Draft.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(a.Draft.ID); !apperrors.IsNotFoundError(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertRequiresID(t *testing.T) {
	s := newTestDraftService(storage.NewMemoryStore())
	if err := s.Upsert(models.Draft{Content: "x"}); !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveStorageFailure(t *testing.T) {
	s := newTestDraftService(failingStore{storage.NewMemoryStore()})
	_, err := s.Save(models.SaveDraftRequest{Content: "x"})
	if !apperrors.IsStorageError(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSaveManyRandomDrafts(t *testing.T) {
	faker := gofakeit.New(42)
	s := newTestDraftService(storage.NewMemoryStore())

	const n = 25
	for i := 0; i < n; i++ {
		if _, err := s.Save(models.SaveDraftRequest{
			Title:   faker.Sentence(3),
			Content: faker.Sentence(12) + "\n\n" + faker.Sentence(8),
		}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	list := s.List()
	if len(list) != n {
		t.Fatalf("len = %d", len(list))
	}
	seen := make(map[string]bool)
	for _, d := range list {
		if seen[d.ID] {
			t.Fatalf("duplicate id %s", d.ID)
		}
		seen[d.ID] = true
	}
}

func TestImportLegacyPreservesOrder(t *testing.T) {
	s := newTestDraftService(storage.NewMemoryStore())
	s.Save(models.SaveDraftRequest{Content: "existing"})

	data := []byte(`[
		{"id": 1700000000002, "title": "Newest", "content": "<b>Hi</b> there", "timestamp": 1700000000002},
		{"id": "abc", "title": "", "content": "<p>one</p><p>two</p>", "timestamp": 1700000000001},
		{"id": "empty", "title": "skip", "content": "<br>&nbsp;", "timestamp": 1}
	]`)

	res, err := s.ImportLegacy(data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if strings.Join(res.IDs, ",") != "1700000000002,abc" {
		t.Fatalf("ids = %v", res.IDs)
	}

	list := s.List()
	if len(list) != 3 || list[0].ID != "1700000000002" || list[1].ID != "abc" {
		t.Fatalf("unexpected order %+v", list)
	}
	if want := styling.Encode("Hi", styling.AlphabetBoldSerif) + " there"; list[0].Content != want {
		t.Fatalf("content = %q, want %q", list[0].Content, want)
	}
	if list[1].Content != "one\ntwo" || list[1].Title != "Draft #abc" {
		t.Fatalf("second draft = %+v", list[1])
	}
}

func TestImportLegacyRejectsNonArray(t *testing.T) {
	s := newTestDraftService(storage.NewMemoryStore())
	if _, err := s.ImportLegacy([]byte(`{"id":1}`)); !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHTMLToStyledText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"<i>it</i>", styling.ApplyItalic("it")},
		{"<u>ab</u>", styling.ApplyUnderline("ab")},
		{"<code>x</code>", styling.Encode("x", styling.AlphabetMonospace)},
		{"a<br>b", "a\nb"},
		{"<script>alert(1)</script>ok", "ok"},
	}
	for _, tt := range tests {
		got, err := HTMLToStyledText(tt.in)
		if err != nil {
			t.Fatalf("%q: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("HTMLToStyledText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExportXLSX(t *testing.T) {
	s := newTestDraftService(storage.NewMemoryStore())
	bold := styling.Encode("Bold", styling.AlphabetBoldSerif)
	s.Save(models.SaveDraftRequest{Title: "First", Content: bold + " start"})
	s.Save(models.SaveDraftRequest{Title: "Second", Content: "plain"})

	var buf bytes.Buffer
	n, err := s.ExportXLSX(&buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d", n)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(draftSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0] != "id" || rows[0][3] != "plain_content" {
		t.Fatalf("header = %v", rows[0])
	}
	// 最新的在前
	if rows[1][1] != "Second" || rows[2][1] != "First" {
		t.Fatalf("order = %v / %v", rows[1], rows[2])
	}
	if rows[2][3] != "Bold start" {
		t.Fatalf("plain content = %q", rows[2][3])
	}
	if rows[2][4] != "2024-05-01T12:00:00Z" {
		t.Fatalf("saved_at = %q", rows[2][4])
	}
}
