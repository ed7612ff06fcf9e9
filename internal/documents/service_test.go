package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/query"
	"docflow-backend/internal/shared/storage/object"
	"docflow-backend/internal/shared/storage/object/local"
	"docflow-backend/internal/shared/telemetry"
)

var pdfPayload = []byte("%PDF-1.4\n0123456789") // 20 bytes

// flakyStore wraps a real store and can fail or slow down deletes.
type flakyStore struct {
	object.ObjectStore
	deleteErr   error
	deleteDelay time.Duration
	deletes     atomic.Int32
}

func (f *flakyStore) Delete(ctx context.Context, relPath string) error {
	f.deletes.Add(1)
	if f.deleteDelay > 0 {
		time.Sleep(f.deleteDelay)
	}
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.ObjectStore.Delete(ctx, relPath)
}

type fixture struct {
	svc   *Service
	repo  *MemoryRepo
	store *flakyStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base, err := local.New(t.TempDir())
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	store := &flakyStore{ObjectStore: base}
	repo := NewMemoryRepo()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &Service{Repo: repo, Store: store, Now: func() time.Time {
		now = now.Add(time.Second)
		return now
	}}
	return fixture{svc: svc, repo: repo, store: store}
}

func (f fixture) save(t *testing.T, userID, name string, payload []byte) object.Blob {
	t.Helper()
	blob, err := f.store.Save(context.Background(), userID, name, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return blob
}

func (f fixture) create(t *testing.T, userID, title string) Document {
	t.Helper()
	blob := f.save(t, userID, "report.pdf", pdfPayload)
	res, err := f.svc.Create(context.Background(), userID, Metadata{Title: title}, blob)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc, err := f.svc.FindBy(context.Background(), Lookup{ID: res.ID})
	if err != nil || doc == nil {
		t.Fatalf("FindBy after create: doc=%v err=%v", doc, err)
	}
	return *doc
}

func (f fixture) blobExists(t *testing.T, relPath string) bool {
	t.Helper()
	ok, err := f.store.Exists(context.Background(), relPath)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	return ok
}

func strPtr(s string) *string { return &s }

func TestCreateStoresRelativePath(t *testing.T) {
	f := newFixture(t)
	blob := f.save(t, "user-1", "report.pdf", pdfPayload)

	res, err := f.svc.Create(context.Background(), "user-1", Metadata{Title: "Quarterly", Description: strPtr("numbers")}, blob)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.ID == "" || res.Message != MsgCreated {
		t.Fatalf("unexpected result %+v", res)
	}

	doc, _ := f.svc.FindBy(context.Background(), Lookup{ID: res.ID})
	if filepath.IsAbs(doc.FilePath) {
		t.Fatalf("expected relative file path, got %s", doc.FilePath)
	}
	if doc.FilePath != f.store.ToRelative(blob.Location) {
		t.Fatalf("file path %s does not match blob %s", doc.FilePath, blob.Location)
	}
	if doc.MimeType != object.MimePDF || doc.SizeBytes != int64(len(pdfPayload)) {
		t.Fatalf("unexpected blob metadata %s/%d", doc.MimeType, doc.SizeBytes)
	}
	if doc.Version != 1 || doc.Description == nil || *doc.Description != "numbers" {
		t.Fatalf("unexpected record %+v", doc)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	f := newFixture(t)
	blob := f.save(t, "user-1", "report.pdf", pdfPayload)
	_, err := f.svc.Create(context.Background(), "user-1", Metadata{Title: "  "}, blob)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateDuplicatePathConflicts(t *testing.T) {
	f := newFixture(t)
	blob := f.save(t, "user-1", "report.pdf", pdfPayload)
	if _, err := f.svc.Create(context.Background(), "user-1", Metadata{Title: "a"}, blob); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := f.svc.Create(context.Background(), "user-1", Metadata{Title: "b"}, blob)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateWithoutChangesIsValidation(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Original")

	_, err := f.svc.Update(context.Background(), doc.ID, Changes{Title: strPtr(""), Description: nil}, doc, nil)
	if apperr.KindOf(err) != apperr.KindValidation || apperr.MessageOf(err) != msgNoUpdateData {
		t.Fatalf("expected validation error, got %v", err)
	}

	after, _ := f.svc.FindBy(context.Background(), Lookup{ID: doc.ID})
	if after.Version != doc.Version || after.Title != "Original" || !after.UpdatedAt.Equal(doc.UpdatedAt) {
		t.Fatalf("record mutated: %+v", after)
	}
	if f.store.deletes.Load() != 0 {
		t.Fatalf("expected no blob deletes")
	}
}

func TestUpdateMetadataOnlyKeepsBlob(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Original")

	updated, err := f.svc.Update(context.Background(), doc.ID, Changes{Title: strPtr("Renamed")}, doc, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Renamed" || updated.Version != doc.Version+1 {
		t.Fatalf("unexpected updated doc %+v", updated)
	}
	if !f.blobExists(t, doc.FilePath) {
		t.Fatalf("metadata-only update must keep the blob")
	}
	if f.store.deletes.Load() != 0 {
		t.Fatalf("expected no blob deletes, got %d", f.store.deletes.Load())
	}
}

func TestUpdateReplacesBlob(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Original")
	newBlob := f.save(t, "user-1", "v2.pdf", []byte("%PDF-1.7 second version"))

	updated, err := f.svc.Update(context.Background(), doc.ID, Changes{}, doc, &newBlob)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if f.blobExists(t, doc.FilePath) {
		t.Fatalf("expected previous blob deleted")
	}
	stored, _ := f.svc.FindBy(context.Background(), Lookup{ID: doc.ID})
	if stored.FilePath != f.store.ToRelative(newBlob.Location) || stored.FilePath != updated.FilePath {
		t.Fatalf("expected new file path, got %s", stored.FilePath)
	}
	if stored.SizeBytes != newBlob.SizeBytes || stored.FileName != "v2.pdf" {
		t.Fatalf("expected new blob metadata, got %+v", stored)
	}
}

func TestUpdateBlobDeleteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Original")
	newBlob := f.save(t, "user-1", "v2.pdf", pdfPayload)
	f.store.deleteErr = errors.New("disk unavailable")
	f.store.deleteDelay = 20 * time.Millisecond

	if _, err := f.svc.Update(context.Background(), doc.ID, Changes{}, doc, &newBlob); err != nil {
		t.Fatalf("expected success despite blob failure, got %v", err)
	}
	stored, _ := f.svc.FindBy(context.Background(), Lookup{ID: doc.ID})
	if stored.Version != doc.Version+1 {
		t.Fatalf("expected metadata write to land, got version %d", stored.Version)
	}
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Original")

	if _, err := f.svc.Update(context.Background(), doc.ID, Changes{Title: strPtr("first")}, doc, nil); err != nil {
		t.Fatalf("first update: %v", err)
	}
	newBlob := f.save(t, "user-1", "late.pdf", pdfPayload)
	_, err := f.svc.Update(context.Background(), doc.ID, Changes{Title: strPtr("second")}, doc, &newBlob)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.blobExists(t, f.store.ToRelative(newBlob.Location)) {
		t.Fatalf("expected rejected upload to be discarded")
	}
	stored, _ := f.svc.FindBy(context.Background(), Lookup{ID: doc.ID})
	if stored.Title != "first" {
		t.Fatalf("stale update overwrote record: %s", stored.Title)
	}
}

func TestUpdateStaleVersionKeepsLiveBlob(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Original")

	if _, err := f.svc.Update(context.Background(), doc.ID, Changes{Title: strPtr("first")}, doc, nil); err != nil {
		t.Fatalf("first update: %v", err)
	}
	newBlob := f.save(t, "user-1", "late.pdf", []byte("%PDF-1.7 late upload"))
	_, err := f.svc.Update(context.Background(), doc.ID, Changes{}, doc, &newBlob)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := f.store.deletes.Load(); got != 1 {
		t.Fatalf("expected only the rejected upload deleted, got %d deletes", got)
	}

	live, _ := f.svc.FindBy(context.Background(), Lookup{ID: doc.ID})
	if live.FilePath != doc.FilePath || !f.blobExists(t, live.FilePath) {
		t.Fatalf("live record lost its blob: %+v", live)
	}
	dl, err := f.svc.Download(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Download after conflict: %v", err)
	}
	defer dl.Body.Close()
	got, err := io.ReadAll(dl.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(got, pdfPayload) {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestUpdateDeletedDocumentNotFound(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Original")
	if err := f.svc.SoftDelete(context.Background(), doc, false); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	_, err := f.svc.Update(context.Background(), doc.ID, Changes{Title: strPtr("x")}, doc, nil)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSoftDeleteRemovesBlob(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Doomed")

	if err := f.svc.SoftDelete(context.Background(), doc, true); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if f.blobExists(t, doc.FilePath) {
		t.Fatalf("expected blob removed")
	}
	active, err := f.svc.FindBy(context.Background(), Lookup{ID: doc.ID})
	if err != nil || active != nil {
		t.Fatalf("expected no active record, got %v err=%v", active, err)
	}
	withDeleted, err := f.svc.FindBy(context.Background(), Lookup{ID: doc.ID, WithDeleted: true})
	if err != nil || withDeleted == nil || withDeleted.DeletedAt == nil {
		t.Fatalf("expected soft-deleted record, got %v err=%v", withDeleted, err)
	}
}

func TestSoftDeleteMissingBlobSucceeds(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Ghost")
	if err := f.store.ObjectStore.Delete(context.Background(), doc.FilePath); err != nil {
		t.Fatalf("pre-delete blob: %v", err)
	}

	if err := f.svc.SoftDelete(context.Background(), doc, true); err != nil {
		t.Fatalf("expected success with missing blob, got %v", err)
	}
	stored, _ := f.svc.FindBy(context.Background(), Lookup{ID: doc.ID, WithDeleted: true})
	if stored.DeletedAt == nil {
		t.Fatalf("expected deleted_at set")
	}
}

func TestSoftDeleteBlobFailureStillDeletesRecord(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Sticky")
	f.store.deleteErr = errors.New("permission denied")

	if err := f.svc.SoftDelete(context.Background(), doc, true); err != nil {
		t.Fatalf("expected blob failure to be ignored, got %v", err)
	}
	stored, _ := f.svc.FindBy(context.Background(), Lookup{ID: doc.ID, WithDeleted: true})
	if stored.DeletedAt == nil {
		t.Fatalf("expected deleted_at set")
	}
}

func TestSoftDeleteTwiceIsInternal(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Once")
	if err := f.svc.SoftDelete(context.Background(), doc, false); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	err := f.svc.SoftDelete(context.Background(), doc, false)
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestSoftDeleteKeepsBlobWhenAsked(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Archive")
	if err := f.svc.SoftDelete(context.Background(), doc, false); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if !f.blobExists(t, doc.FilePath) {
		t.Fatalf("expected blob kept")
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Annual Report")

	dl, err := f.svc.Download(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer dl.Body.Close()
	got, err := io.ReadAll(dl.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(got, pdfPayload) {
		t.Fatalf("unexpected content %q", got)
	}
	if dl.FileName != "Annual Report.pdf" {
		t.Fatalf("unexpected file name %q", dl.FileName)
	}
	if dl.MimeType != object.MimePDF {
		t.Fatalf("unexpected mime %q", dl.MimeType)
	}
}

func TestDownloadMissingBlob(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Vanished")
	_ = f.store.ObjectStore.Delete(context.Background(), doc.FilePath)

	_, err := f.svc.Download(context.Background(), doc.ID)
	if apperr.KindOf(err) != apperr.KindNotFound || apperr.MessageOf(err) != msgFileMissing {
		t.Fatalf("expected missing file error, got %v", err)
	}
}

func TestDownloadDeletedDocument(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Gone")
	_ = f.svc.SoftDelete(context.Background(), doc, false)

	_, err := f.svc.Download(context.Background(), doc.ID)
	if apperr.KindOf(err) != apperr.KindNotFound || apperr.MessageOf(err) != msgNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDetails(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, "user-1", "Spec")

	got, err := f.svc.Details(context.Background(), doc.ID)
	if err != nil || got.Title != "Spec" {
		t.Fatalf("Details: %+v err=%v", got, err)
	}
	_, err = f.svc.Details(context.Background(), "missing")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListFiltersScopesAndPages(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "user-1", "Alpha report")
	f.create(t, "user-1", "Beta")
	c := f.create(t, "user-2", "Gamma report")
	f.create(t, "user-2", "Delta")
	_ = f.svc.SoftDelete(context.Background(), a, false)

	res, err := f.svc.List(context.Background(), ListFilter{Title: "REPORT"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.TotalCount != 1 || len(res.Items) != 1 || res.Items[0].ID != c.ID {
		t.Fatalf("expected only active gamma, got %+v", res)
	}
	if strings.Join(res.Fields, ",") != strings.Join(DefaultFields, ",") {
		t.Fatalf("expected default projection, got %v", res.Fields)
	}

	res, _ = f.svc.List(context.Background(), ListFilter{Title: "report", Scope: query.ScopeAll})
	if res.TotalCount != 2 {
		t.Fatalf("expected 2 with all scope, got %d", res.TotalCount)
	}
	res, _ = f.svc.List(context.Background(), ListFilter{Scope: query.ScopeDeleted})
	if res.TotalCount != 1 || res.Items[0].ID != a.ID {
		t.Fatalf("expected only deleted alpha, got %+v", res)
	}

	res, _ = f.svc.List(context.Background(), ListFilter{MimeType: "pdf", Page: 2, Limit: 2, SortOrder: query.SortAsc})
	if res.TotalCount != 3 || res.TotalPages != 2 || len(res.Items) != 1 {
		t.Fatalf("unexpected page %+v", res)
	}
	if res.Items[0].Title != "Delta" {
		t.Fatalf("expected ascending by updated_at, got %s", res.Items[0].Title)
	}

	res, _ = f.svc.List(context.Background(), ListFilter{UserID: "user-2", Select: []string{"id", "filePath"}})
	if res.TotalCount != 2 {
		t.Fatalf("expected user-2 documents, got %d", res.TotalCount)
	}
	for _, item := range res.Items {
		if item.FilePath == "" || item.Title != "" {
			t.Fatalf("expected only id and filePath populated, got %+v", item)
		}
	}
}

func TestListRejectsUnknownField(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), ListFilter{Select: []string{"password"}})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFindByWarnsOnMiss(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := telemetry.Logger()
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(prev) })

	f := newFixture(t)
	doc, err := f.svc.FindBy(context.Background(), Lookup{ID: "nope"})
	if err != nil || doc != nil {
		t.Fatalf("expected nil result, got %v err=%v", doc, err)
	}
	entries := logs.FilterMessage("document.not_found").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn entry, got %d", len(entries))
	}
}

func TestFindByRequiresCriteria(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.FindBy(context.Background(), Lookup{})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type brokenRepo struct{ MemoryRepo }

func (b *brokenRepo) FindOne(ctx context.Context, l Lookup) (*Document, error) {
	return nil, errors.New("connection reset")
}

func TestFindByStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.svc.Repo = &brokenRepo{}
	_, err := f.svc.FindBy(context.Background(), Lookup{ID: "x"})
	if apperr.KindOf(err) != apperr.KindInternal || apperr.MessageOf(err) != "Failed to fetch document" {
		t.Fatalf("expected internal error, got %v", err)
	}
}
