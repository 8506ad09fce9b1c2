package services

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/elobot/ladder-system/storage"
)

// EvidenceService кладёт скриншоты результатов в объектное хранилище
// и возвращает публичный URL, который прикладывается к отправленному
// результату.
type EvidenceService interface {
	Upload(ctx context.Context, matchID int, contentType string, reader io.Reader) (string, error)
}

type evidenceService struct {
	uploader storage.FileUploader
}

func NewEvidenceService(uploader storage.FileUploader) EvidenceService {
	return &evidenceService{uploader: uploader}
}

func (s *evidenceService) Upload(ctx context.Context, matchID int, contentType string, reader io.Reader) (string, error) {
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("evidence/%d/%s%s", matchID, uuid.New().String(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence for match %d: %w", matchID, err)
	}
	return result.Location, nil
}
