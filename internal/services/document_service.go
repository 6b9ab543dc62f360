package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serviceportal/internal/models"
	"serviceportal/internal/store"
)

const MaxDocumentSize = 10 << 20

// DocumentService records applicant uploads. File contents are never inspected.
type DocumentService struct {
	store   store.Store
	storage ObjectStorage
	log     *zap.Logger
}

func NewDocumentService(st store.Store, storage ObjectStorage, log *zap.Logger) *DocumentService {
	return &DocumentService{store: st, storage: storage, log: orNop(log)}
}

type UploadInput struct {
	RequestID   uint
	Kind        string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*models.Document, error) {
	var fields []string
	kind := strings.TrimSpace(in.Kind)
	if kind == "" {
		fields = append(fields, "kind")
	}
	if in.Body == nil || in.Size <= 0 {
		fields = append(fields, "file")
	}
	if in.Size > MaxDocumentSize {
		fields = append(fields, "file")
	}
	if len(fields) > 0 {
		return nil, newValidationError(fields)
	}

	req, err := s.store.GetRequestByID(ctx, in.RequestID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ext := strings.ToLower(path.Ext(in.Filename))
	key := fmt.Sprintf("requests/%s/%s/%s%s", req.RequestNumber, kind, uuid.NewString(), ext)

	url, err := s.storage.Put(ctx, key, contentType, in.Body)
	if err != nil {
		s.log.Error("documentService.Upload storage error",
			zap.String("request_number", req.RequestNumber),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, err
	}

	doc := &models.Document{
		RequestID:   req.ID,
		Kind:        kind,
		Path:        key,
		PublicURL:   url,
		ContentType: contentType,
		Size:        in.Size,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.log.Info("documentService.Upload stored document",
		zap.String("request_number", req.RequestNumber),
		zap.String("kind", kind),
		zap.Int64("size", in.Size),
	)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, requestID uint) ([]models.Document, error) {
	return s.store.Documents(ctx, requestID)
}
