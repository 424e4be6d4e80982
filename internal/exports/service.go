// Package exports renders the shopping list to CSV or PDF and keeps the files
// either in object storage or next to their metadata.
package exports

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fdg312/meal-hub/internal/apperr"
	"github.com/fdg312/meal-hub/internal/blob"
	"github.com/fdg312/meal-hub/internal/shoppinglist"
	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/google/uuid"
)

// ListSource provides the grouped shopping list to render.
type ListSource interface {
	List(ctx context.Context, userID string) (*shoppinglist.ListResponse, error)
}

// Service handles exports business logic
type Service struct {
	exports   storage.ExportsStorage
	lists     ListSource
	blobStore blob.Store
	now       func() time.Time
}

// NewService creates an exports service. A nil blobStore means local mode.
func NewService(exports storage.ExportsStorage, lists ListSource, blobStore blob.Store) *Service {
	return &Service{
		exports:   exports,
		lists:     lists,
		blobStore: blobStore,
		now:       time.Now,
	}
}

// LocalMode reports whether export bytes are kept in the metadata store.
func (s *Service) LocalMode() bool {
	return s.blobStore == nil
}

// Create renders the current list for userID and records the export.
func (s *Service) Create(ctx context.Context, userID string, req CreateExportRequest) (*storage.ExportMeta, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	list, err := s.lists.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch req.Format {
	case FormatCSV:
		data, err = RenderCSV(list)
	default:
		data, err = RenderPDF(list, s.now().UTC())
	}
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", req.Format, err)
	}

	meta := &storage.ExportMeta{
		ID:        uuid.New().String(),
		UserID:    userID,
		Format:    req.Format,
		ItemCount: list.Total,
		SizeBytes: int64(len(data)),
		Status:    StatusReady,
	}

	if s.LocalMode() {
		meta.Data = data
	} else {
		objectKey := fmt.Sprintf("exports/%s/%s_%s.%s",
			userID,
			s.now().UTC().Format("20060102T150405"),
			meta.ID,
			req.Format,
		)
		if _, err := s.blobStore.PutObject(ctx, objectKey, data, contentType(req.Format)); err != nil {
			return nil, apperr.Store("upload export", err)
		}
		meta.ObjectKey = &objectKey
	}

	if err := s.exports.CreateExport(ctx, meta); err != nil {
		return nil, apperr.Store("save export metadata", err)
	}

	return meta, nil
}

// Get returns an export owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*storage.ExportMeta, error) {
	meta, err := s.exports.GetExport(ctx, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("export not found")
	}
	if err != nil {
		return nil, apperr.Store("get export", err)
	}
	return meta, nil
}

// List returns the user's exports, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]storage.ExportMeta, error) {
	list, err := s.exports.ListExports(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Store("list exports", err)
	}
	return list, nil
}

// Delete removes the export metadata and, in S3 mode, the object.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	meta, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if !s.LocalMode() && meta.ObjectKey != nil {
		if err := s.blobStore.DeleteObject(ctx, *meta.ObjectKey); err != nil {
			log.Printf("WARN exports: failed to delete object %s: %v", *meta.ObjectKey, err)
		}
	}

	if err := s.exports.DeleteExport(ctx, userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("export not found")
		}
		return apperr.Store("delete export", err)
	}
	return nil
}

// DownloadURL builds the link clients use to fetch the file.
func (s *Service) DownloadURL(ctx context.Context, meta *storage.ExportMeta, baseURL string) (string, error) {
	if s.LocalMode() || meta.ObjectKey == nil {
		return fmt.Sprintf("%s/v1/exports/%s/download", strings.TrimSuffix(baseURL, "/"), meta.ID), nil
	}

	url, err := s.blobStore.DownloadURL(ctx, *meta.ObjectKey)
	if err != nil {
		return "", apperr.Store("export download url", err)
	}
	return url, nil
}

// Data returns the raw file bytes and their content type.
func (s *Service) Data(ctx context.Context, meta *storage.ExportMeta) ([]byte, string, error) {
	if meta.ObjectKey == nil {
		return meta.Data, contentType(meta.Format), nil
	}
	if s.LocalMode() {
		return nil, "", apperr.Store("export data", fmt.Errorf("object %s stored remotely but no blob store configured", *meta.ObjectKey))
	}

	data, err := s.blobStore.GetObject(ctx, *meta.ObjectKey)
	if errors.Is(err, blob.ErrObjectNotFound) {
		return nil, "", apperr.NotFound("export file is gone")
	}
	if err != nil {
		return nil, "", apperr.Store("fetch export", err)
	}
	return data, contentType(meta.Format), nil
}

func (s *Service) toDTO(ctx context.Context, meta *storage.ExportMeta, baseURL string) (ExportDTO, error) {
	url, err := s.DownloadURL(ctx, meta, baseURL)
	if err != nil {
		return ExportDTO{}, err
	}
	return ExportDTO{
		ID:          meta.ID,
		Format:      meta.Format,
		ItemCount:   meta.ItemCount,
		SizeBytes:   meta.SizeBytes,
		Status:      meta.Status,
		DownloadURL: url,
		CreatedAt:   meta.CreatedAt,
	}, nil
}
