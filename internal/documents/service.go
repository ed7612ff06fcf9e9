package documents

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/metrics"
	"docflow-backend/internal/shared/query"
	"docflow-backend/internal/shared/storage/object"
	"docflow-backend/internal/shared/telemetry"
)

const (
	msgNotFound        = "Document not found"
	msgFileMissing     = "File does not exist on server"
	msgNoUpdateData    = "no update data provided"
	msgVersionConflict = "Document was modified by another request"

	MsgCreated = "Document successfully uploaded"
	MsgUpdated = "Document Updated Successfully"
)

// failure messages reported when an operation fails for an untyped reason.
var failureMessages = map[string]string{
	"create":   "Failed to save document",
	"find":     "Failed to fetch document",
	"update":   "Failed to update document",
	"delete":   "Failed to update document metadata",
	"download": "Failed to download document",
	"details":  "Failed to fetch document",
	"list":     "Failed to fetch documents",
}

// Service contains business logic for documents.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Now   func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, store object.ObjectStore) *Service {
	return &Service{Repo: repo, Store: store, Now: time.Now}
}

// Create records a document whose blob has already been written.
func (s *Service) Create(ctx context.Context, ownerID string, meta Metadata, blob object.Blob) (CreateResult, error) {
	var result CreateResult
	fields := map[string]any{"user_id": ownerID}
	err := s.run(ctx, "create", fields, func() error {
		title := strings.TrimSpace(meta.Title)
		if title == "" {
			return apperr.Validation("title is required")
		}
		if ownerID == "" {
			return apperr.Validation("owner is required")
		}
		now := s.now()
		doc := Document{
			ID:          uuid.NewString(),
			UserID:      ownerID,
			Title:       title,
			Description: nonEmpty(meta.Description),
			FileName:    blob.FileName,
			FilePath:    s.Store.ToRelative(blob.Location),
			MimeType:    blob.MimeType,
			SizeBytes:   blob.SizeBytes,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		id, err := s.Repo.Create(ctx, doc)
		if err != nil {
			return err
		}
		if id == "" {
			return apperr.Internal("Document creation failed, no ID returned", nil)
		}
		fields["document_id"] = id
		result = CreateResult{ID: id, Message: MsgCreated}
		return nil
	})
	return result, err
}

// FindBy returns the matching document, or nil when there is none.
func (s *Service) FindBy(ctx context.Context, l Lookup) (*Document, error) {
	var doc *Document
	fields := map[string]any{"document_id": l.ID, "user_id": l.UserID, "with_deleted": l.WithDeleted}
	err := s.run(ctx, "find", fields, func() error {
		if l.ID == "" && l.UserID == "" {
			return apperr.Validation("lookup requires an id or user id")
		}
		found, err := s.Repo.FindOne(ctx, l)
		if err != nil {
			return err
		}
		if found == nil && l.ID != "" {
			telemetry.Warn("document.not_found", telemetry.Fields(ctx, fields, 1))
		}
		doc = found
		return nil
	})
	return doc, err
}

// Update merges changes and an optional replacement blob into current. The
// previous blob is deleted only when newBlob replaces it.
func (s *Service) Update(ctx context.Context, id string, changes Changes, current Document, newBlob *object.Blob) (Document, error) {
	var updated Document
	fields := map[string]any{"document_id": id, "user_id": current.UserID}
	err := s.run(ctx, "update", fields, func() error {
		title := nonEmpty(changes.Title)
		desc := nonEmpty(changes.Description)
		if title == nil && desc == nil && newBlob == nil {
			return apperr.Validation(msgNoUpdateData)
		}

		merged := clone(current)
		merged.ID = id
		if title != nil {
			merged.Title = strings.TrimSpace(*title)
		}
		if desc != nil {
			merged.Description = desc
		}
		if newBlob != nil {
			merged.FileName = newBlob.FileName
			merged.FilePath = s.Store.ToRelative(newBlob.Location)
			merged.MimeType = newBlob.MimeType
			merged.SizeBytes = newBlob.SizeBytes
		}
		merged.UpdatedAt = s.now()

		var blobOp func() error
		if newBlob != nil && current.FilePath != "" && current.FilePath != merged.FilePath {
			// The previous blob is deleted only while the caller's version is
			// still live. A writer landing between this check and the versioned write
			// below still wins with a record whose blob was just deleted.
			if err := s.ensureVersion(ctx, id, current.Version); err != nil {
				s.discard(ctx, merged.FilePath, fields)
				return err
			}
			previous := current.FilePath
			blobOp = func() error { return s.Store.Delete(ctx, previous) }
		}
		metaOp := func() error {
			rows, err := s.Repo.Update(ctx, merged, current.Version)
			if err != nil {
				return err
			}
			if rows == 0 {
				return s.missingOrStale(ctx, id)
			}
			return nil
		}

		blobErr, metaErr := settle(blobOp, metaOp)
		if err := applyCleanupPolicy("update", fields, blobErr, metaErr); err != nil {
			if newBlob != nil {
				s.discard(ctx, merged.FilePath, fields)
			}
			return err
		}
		merged.Version = current.Version + 1
		updated = merged
		return nil
	})
	return updated, err
}

// SoftDelete marks current as deleted and, when deleteBlob is set, removes its
// blob. Only the metadata write decides the outcome.
func (s *Service) SoftDelete(ctx context.Context, current Document, deleteBlob bool) error {
	fields := map[string]any{"document_id": current.ID, "user_id": current.UserID}
	return s.run(ctx, "delete", fields, func() error {
		var blobOp func() error
		if deleteBlob && current.FilePath != "" {
			blobOp = func() error { return s.Store.Delete(ctx, current.FilePath) }
		}
		metaOp := func() error {
			rows, err := s.Repo.SoftDelete(ctx, current.ID, s.now())
			if err != nil {
				return apperr.Internal(failureMessages["delete"], err)
			}
			if rows == 0 {
				return apperr.Internal(failureMessages["delete"], errors.New("no active row"))
			}
			return nil
		}
		blobErr, metaErr := settle(blobOp, metaOp)
		return applyCleanupPolicy("delete", fields, blobErr, metaErr)
	})
}

// Download opens the blob of an active document.
func (s *Service) Download(ctx context.Context, id string) (Download, error) {
	var out Download
	fields := map[string]any{"document_id": id}
	err := s.run(ctx, "download", fields, func() error {
		doc, err := s.Repo.FindOne(ctx, Lookup{ID: id})
		if err != nil {
			return err
		}
		if doc == nil {
			return apperr.NotFound(msgNotFound)
		}
		ok, err := s.Store.Exists(ctx, doc.FilePath)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound(msgFileMissing)
		}
		body, err := s.Store.Open(ctx, doc.FilePath)
		if errors.Is(err, object.ErrNotFound) {
			return apperr.NotFound(msgFileMissing)
		}
		if err != nil {
			return err
		}
		out = Download{
			Body:     body,
			MimeType: doc.MimeType,
			FileName: doc.Title + filepath.Ext(doc.FilePath),
		}
		return nil
	})
	return out, err
}

// Details returns an active document.
func (s *Service) Details(ctx context.Context, id string) (Document, error) {
	var out Document
	err := s.run(ctx, "details", map[string]any{"document_id": id}, func() error {
		doc, err := s.Repo.FindOne(ctx, Lookup{ID: id})
		if err != nil {
			return err
		}
		if doc == nil {
			return apperr.NotFound(msgNotFound)
		}
		out = *doc
		return nil
	})
	return out, err
}

// List returns one page of documents matching f.
func (s *Service) List(ctx context.Context, f ListFilter) (ListResult, error) {
	var out ListResult
	fields := map[string]any{"user_id": f.UserID, "scope": string(f.Scope)}
	err := s.run(ctx, "list", fields, func() error {
		selected, err := query.Projection(f.Select, AllFields, DefaultFields)
		if err != nil {
			return apperr.Validation(err.Error())
		}
		page := query.NewPage(f.Page, f.Limit)
		if f.Scope == "" {
			f.Scope = query.ScopeActive
		}
		items, total, err := s.Repo.List(ctx, f, selected, page)
		if err != nil {
			return err
		}
		out = ListResult{
			Items:      items,
			Fields:     selected,
			TotalCount: total,
			TotalPages: page.TotalPages(total),
			Page:       page.Page,
			Limit:      page.Limit,
		}
		return nil
	})
	return out, err
}

// missingOrStale explains a zero-row update.
func (s *Service) missingOrStale(ctx context.Context, id string) error {
	existing, err := s.Repo.FindOne(ctx, Lookup{ID: id})
	if err != nil {
		return err
	}
	if existing == nil {
		return apperr.NotFound(msgNotFound)
	}
	return apperr.Conflict(msgVersionConflict)
}

// ensureVersion fails when the active record is gone or has moved past version.
func (s *Service) ensureVersion(ctx context.Context, id string, version int) error {
	existing, err := s.Repo.FindOne(ctx, Lookup{ID: id})
	if err != nil {
		return err
	}
	if existing == nil {
		return apperr.NotFound(msgNotFound)
	}
	if existing.Version != version {
		return apperr.Conflict(msgVersionConflict)
	}
	return nil
}

// discard removes a blob that no record references.
func (s *Service) discard(ctx context.Context, relPath string, fields map[string]any) {
	if err := s.Store.Delete(ctx, relPath); err != nil {
		logFields := copyFields(fields)
		logFields["file_path"] = relPath
		logFields["error"] = err
		telemetry.Warn("document.orphan_cleanup_failed", logFields)
	}
}

// run executes one operation, logs its outcome and translates untyped errors.
func (s *Service) run(ctx context.Context, op string, fields map[string]any, fn func() error) error {
	err := fn()
	logFields := telemetry.Fields(ctx, fields, 1)
	if err == nil {
		metrics.ObserveDocumentOp(op, "")
		telemetry.Info("document."+op, logFields)
		return nil
	}
	msg, ok := failureMessages[op]
	if !ok {
		msg = fmt.Sprintf("Failed to %s document", op)
	}
	err = apperr.Translate(err, msg)
	logFields["error"] = err
	kind := apperr.KindOf(err)
	metrics.ObserveDocumentOp(op, string(kind))
	if kind == apperr.KindInternal {
		telemetry.Error("document."+op+".failed", logFields)
	} else {
		telemetry.Warn("document."+op+".failed", logFields)
	}
	return err
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// nonEmpty treats blank strings as absent.
func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}
