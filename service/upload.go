package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"io"
	"media-library/config"
	"media-library/constant"
	"media-library/dto"
	"media-library/entities"
	"media-library/pkg/fingerprint"
	"media-library/repository"
	"media-library/session"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const maxChunksPerUpload = 10000

// TranscodeRequester hands a freshly assembled original to the external
// transcoding worker. The core never drives transcoding beyond this.
type TranscodeRequester interface {
	RequestTranscode(ctx context.Context, msg dto.TranscodeMessage) error
}

type UploadService interface {
	Init(ctx context.Context, req dto.UploadInitRequest, callerID string) (*dto.UploadInitResponse, error)
	Ingest(ctx context.Context, sessionID string, index int, payload io.Reader, callerID string) (*dto.ChunkProgress, error)
	Complete(ctx context.Context, sessionID string, req dto.CompleteRequest, callerID string) (*entities.MediaRecord, error)
	Cancel(ctx context.Context, sessionID string, callerID string) error
	Status(ctx context.Context, sessionID string, callerID string) (*dto.UploadStatus, error)
}

type uploadService struct {
	sessions   session.Store
	catalog    repository.Catalog
	cfg        *config.Config
	transcoder TranscodeRequester
	prober     Prober
}

func NewUploadService(sessions session.Store, catalog repository.Catalog, cfg *config.Config, transcoder TranscodeRequester, prober Prober) UploadService {
	return &uploadService{
		sessions:   sessions,
		catalog:    catalog,
		cfg:        cfg,
		transcoder: transcoder,
		prober:     prober,
	}
}

func (u *uploadService) Init(ctx context.Context, req dto.UploadInitRequest, callerID string) (*dto.UploadInitResponse, error) {
	if req.FileName == "" {
		return nil, errors.New("file name is required")
	}
	if req.TotalSize <= 0 {
		return nil, errors.New("total size must be positive")
	}
	if u.cfg.Storage.MaxUploadBytes > 0 && req.TotalSize > u.cfg.Storage.MaxUploadBytes {
		return nil, fmt.Errorf("upload size %d exceeds maximum %d", req.TotalSize, u.cfg.Storage.MaxUploadBytes)
	}
	if req.TotalChunks <= 0 || req.TotalChunks > maxChunksPerUpload {
		return nil, fmt.Errorf("total chunks must be in 1..%d", maxChunksPerUpload)
	}

	s := &session.Session{
		ID:          uuid.New().String(),
		FileName:    sanitizeFileName(req.FileName),
		TotalSize:   req.TotalSize,
		TotalChunks: req.TotalChunks,
		OwnerID:     callerID,
		CreatedAt:   time.Now(),
	}
	if err := u.sessions.Put(ctx, s); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", s.ID).
		Str("file_name", s.FileName).
		Int("total_chunks", s.TotalChunks).
		Msg("upload session created")

	return &dto.UploadInitResponse{
		SessionID: s.ID,
		ChunkMax:  u.cfg.Storage.MaxChunkBytes,
	}, nil
}

func (u *uploadService) ownedSession(ctx context.Context, sessionID, callerID string) (*session.Session, error) {
	s, err := u.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != callerID {
		return nil, fmt.Errorf("%w: session %s", ErrForbidden, sessionID)
	}
	return s, nil
}

func (u *uploadService) chunkPath(sessionID string, index int) string {
	return filepath.Join(u.cfg.Storage.ChunkDir, fmt.Sprintf("%s_%05d.part", sessionID, index))
}

// Ingest persists one chunk. The payload lands on disk before the session
// record acknowledges it, so metadata is never ahead of reality.
func (u *uploadService) Ingest(ctx context.Context, sessionID string, index int, payload io.Reader, callerID string) (*dto.ChunkProgress, error) {
	s, err := u.ownedSession(ctx, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= s.TotalChunks {
		return nil, fmt.Errorf("%w: %d of %d", session.ErrChunkOutOfRange, index, s.TotalChunks)
	}

	if err := os.MkdirAll(u.cfg.Storage.ChunkDir, os.ModePerm); err != nil {
		return nil, err
	}

	chunkFile := u.chunkPath(sessionID, index)
	tmp := chunkFile + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}

	maxBytes := u.cfg.Storage.MaxChunkBytes
	written, err := io.Copy(out, io.LimitReader(payload, maxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	if written > maxBytes {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, maxBytes)
	}
	if err := os.Rename(tmp, chunkFile); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}

	count, err := u.sessions.RecordChunk(ctx, sessionID, index)
	if err != nil {
		// Session update failed; drop the chunk so orphaned chunk files
		// do not accumulate.
		_ = os.Remove(chunkFile)
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("session_id", sessionID).
		Int("chunk_index", index).
		Int("received", count).
		Msg("chunk ingested")

	return &dto.ChunkProgress{
		SessionID:      sessionID,
		ChunkIndex:     index,
		ChunksReceived: count,
		TotalChunks:    s.TotalChunks,
		Complete:       count == s.TotalChunks,
	}, nil
}

// Complete assembles the chunks in index order into the final media file,
// registers it with the catalog and releases the session. Each chunk is
// deleted immediately after consumption so a second completion attempt
// cannot double-consume it.
func (u *uploadService) Complete(ctx context.Context, sessionID string, req dto.CompleteRequest, callerID string) (*entities.MediaRecord, error) {
	s, err := u.ownedSession(ctx, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if !s.Complete() {
		return nil, &IncompleteUploadError{Missing: s.MissingChunks()}
	}

	if err := os.MkdirAll(u.cfg.Storage.MediaDir, os.ModePerm); err != nil {
		return nil, err
	}

	finalPath := filepath.Join(u.cfg.Storage.MediaDir, storedFileName(s.FileName))
	assembling := finalPath + ".assembling"
	out, err := os.Create(assembling)
	if err != nil {
		return nil, err
	}

	hasher := sha256.New()
	w := io.MultiWriter(out, hasher)
	for index := 0; index < s.TotalChunks; index++ {
		chunkFile := u.chunkPath(sessionID, index)
		in, err := os.Open(chunkFile)
		if err != nil {
			out.Close()
			_ = os.Remove(assembling)
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: index %d", ErrChunkMissing, index)
			}
			return nil, err
		}
		_, err = io.Copy(w, in)
		in.Close()
		if err != nil {
			out.Close()
			_ = os.Remove(assembling)
			return nil, err
		}
		_ = os.Remove(chunkFile)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(assembling)
		return nil, err
	}
	if err := os.Rename(assembling, finalPath); err != nil {
		_ = os.Remove(assembling)
		return nil, err
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, err
	}

	quality, duration, probeErr := u.prober.Probe(ctx, finalPath)
	if probeErr != nil {
		zerolog.Ctx(ctx).Warn().Err(probeErr).Str("path", finalPath).Msg("resolution probe failed")
	}

	title := req.Title
	if title == "" {
		title = fingerprint.Normalize(s.FileName)
	}
	category := req.Category
	if category == "" {
		category = constant.CategoryMovie
	}

	record := &entities.MediaRecord{
		ID:               uuid.New(),
		Title:            title,
		OriginalFileName: s.FileName,
		StoragePath:      finalPath,
		SizeBytes:        info.Size(),
		ContentHash:      hex.EncodeToString(hasher.Sum(nil)),
		Resolution:       quality,
		DurationSeconds:  duration,
		Category:         category,
		Season:           req.Season,
		Episode:          req.Episode,
		OwnerID:          s.OwnerID,
	}
	if err := u.catalog.CreateMedia(ctx, record); err != nil {
		return nil, err
	}

	if err := u.sessions.Delete(ctx, sessionID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("failed to delete completed session")
	}

	if u.transcoder != nil {
		msg := dto.TranscodeMessage{
			MediaID:     record.ID,
			StoragePath: record.StoragePath,
			FileName:    record.OriginalFileName,
		}
		if err := u.transcoder.RequestTranscode(ctx, msg); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("media_id", record.ID.String()).Msg("failed to publish transcode request")
		}
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Str("media_id", record.ID.String()).
		Str("path", finalPath).
		Int64("size", record.SizeBytes).
		Msg("upload assembled")

	return record, nil
}

func (u *uploadService) Cancel(ctx context.Context, sessionID string, callerID string) error {
	s, err := u.ownedSession(ctx, sessionID, callerID)
	if err != nil {
		return err
	}

	for index := 0; index < s.TotalChunks; index++ {
		if err := os.Remove(u.chunkPath(sessionID, index)); err != nil && !os.IsNotExist(err) {
			zerolog.Ctx(ctx).Warn().Err(err).Int("chunk_index", index).Msg("failed to remove chunk on cancel")
		}
	}
	return u.sessions.Delete(ctx, sessionID)
}

func (u *uploadService) Status(ctx context.Context, sessionID string, callerID string) (*dto.UploadStatus, error) {
	s, err := u.ownedSession(ctx, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	return &dto.UploadStatus{
		SessionID:      s.ID,
		FileName:       s.FileName,
		ChunksReceived: len(s.ReceivedChunks),
		TotalChunks:    s.TotalChunks,
		MissingChunks:  s.MissingChunks(),
		Complete:       s.Complete(),
		CreatedAt:      s.CreatedAt,
	}, nil
}

var unsafeNamePattern = regexp.MustCompile(`[^a-zA-Z0-9._\- ]`)

func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	return unsafeNamePattern.ReplaceAllString(name, "_")
}

// storedFileName injects a unique <unix-millis>-<short-id> suffix so the
// stored name never collides and variants can be matched back to it by id.
func storedFileName(original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	shortID := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s_%d-%s%s", base, time.Now().UnixMilli(), shortID, ext)
}
