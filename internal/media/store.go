package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/naperu/wabarelay/internal/domain"
	"github.com/naperu/wabarelay/internal/transcode"
	"go.uber.org/zap"
)

// Archive is an optional secondary copy of staged files, keyed by the
// path relative to the upload root.
type Archive interface {
	PutFile(ctx context.Context, key, filePath, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, int64, string, error)
}

type Config struct {
	// Root is the local upload directory.
	Root string
	// BaseURL is the public origin; files are served under BaseURL/uploads/.
	BaseURL string
}

// Store stages uploaded media under a content-addressed name. Identical
// bytes always map to the same file, and a digest that was already
// processed is served from disk without being converted again.
//
// Two concurrent stages of the same new content may both convert it.
type Store struct {
	root       string
	baseURL    string
	transcoder transcode.Transcoder
	archive    Archive
	logger     *zap.Logger
}

func NewStore(cfg Config, tc transcode.Transcoder, archive Archive, logger *zap.Logger) (*Store, error) {
	dirs := []string{
		filepath.Join(cfg.Root, PermanentDir),
		filepath.Join(cfg.Root, TemporalDir, domain.CategoryImages),
		filepath.Join(cfg.Root, TemporalDir, domain.CategoryVideos),
		filepath.Join(cfg.Root, TemporalDir, domain.CategoryDocuments),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create media dir %s: %w", d, err)
		}
	}
	return &Store{
		root:       cfg.Root,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		transcoder: tc,
		archive:    archive,
		logger:     logger,
	}, nil
}

func (s *Store) Root() string { return s.root }

// Digest is the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Store) publicURL(rel string) string {
	return s.baseURL + "/uploads/" + filepath.ToSlash(rel)
}

func exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// candidates lists every name a processed copy of digest can have, in the
// order they are checked.
func candidates(digest, ext string) []string {
	return []string{
		path.Join(TemporalDir, domain.CategoryImages, digest+".jpg"),
		path.Join(TemporalDir, domain.CategoryImages, digest+ext),
		path.Join(TemporalDir, domain.CategoryVideos, digest+".mp4"),
		path.Join(TemporalDir, domain.CategoryVideos, digest+ext),
		path.Join(TemporalDir, domain.CategoryDocuments, digest+".ogg"),
		path.Join(TemporalDir, domain.CategoryDocuments, digest+ext),
	}
}

// Stage stores data and returns where it ended up.
func (s *Store) Stage(ctx context.Context, data []byte, originalName string) (*domain.StagedFile, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file: %w", domain.ErrBadInput)
	}

	digest := Digest(data)
	mimeType := DetectType(data, originalName)
	ext := Extension(originalName, mimeType)
	log := s.logger.With(zap.String("digest", digest), zap.String("mime", mimeType))

	staged := &domain.StagedFile{
		Digest:   digest,
		MimeType: mimeType,
		Category: Category(mimeType),
		FileName: originalName,
	}

	permanent := path.Join(PermanentDir, digest+ext)
	if exists(filepath.Join(s.root, permanent)) {
		log.Debug("permanent cache hit")
		return s.hit(staged, permanent), nil
	}
	for _, rel := range candidates(digest, ext) {
		if exists(filepath.Join(s.root, rel)) {
			log.Debug("staging cache hit", zap.String("path", rel))
			staged.Category = path.Base(path.Dir(rel))
			if path.Ext(rel) != ext {
				staged.MimeType = ContentType(rel)
			}
			return s.hit(staged, rel), nil
		}
	}

	if staged.Category == domain.CategoryVideos && s.audioOnly(ctx, data, digest, ext, log) {
		staged.Category = domain.CategoryDocuments
	}

	dir := filepath.Join(s.root, TemporalDir, staged.Category)
	source := filepath.Join(dir, digest+ext)
	final := source

	switch {
	case staged.Category == domain.CategoryImages:
		clean, err := SanitizeImage(data)
		if err != nil {
			log.Warn("image sanitization failed, storing original", zap.Error(err))
			if err := os.WriteFile(source, data, 0o644); err != nil {
				return nil, fmt.Errorf("write image: %w", err)
			}
			break
		}
		final = filepath.Join(dir, digest+".jpg")
		if err := os.WriteFile(final, clean, 0o644); err != nil {
			return nil, fmt.Errorf("write image: %w", err)
		}
		staged.MimeType = "image/jpeg"

	case staged.Category == domain.CategoryVideos:
		if err := os.WriteFile(source, data, 0o644); err != nil {
			return nil, fmt.Errorf("write video: %w", err)
		}
		if out, ok := s.convert(ctx, s.transcoder.TranscodeVideo, source, dir, digest, ".mp4", log); ok {
			final = out
			staged.MimeType = "video/mp4"
		}

	case strings.HasPrefix(mimeType, "audio/") || strings.HasPrefix(mimeType, "video/"):
		if err := os.WriteFile(source, data, 0o644); err != nil {
			return nil, fmt.Errorf("write audio: %w", err)
		}
		if out, ok := s.convert(ctx, s.transcoder.TranscodeAudio, source, dir, digest, ".ogg", log); ok {
			final = out
			staged.MimeType = "audio/ogg"
		}

	default:
		if err := os.WriteFile(source, data, 0o644); err != nil {
			return nil, fmt.Errorf("write document: %w", err)
		}
	}

	rel, err := filepath.Rel(s.root, final)
	if err != nil {
		return nil, err
	}
	staged.Path = final
	staged.PublicURL = s.publicURL(rel)
	s.mirror(ctx, filepath.ToSlash(rel), final, staged.MimeType, log)

	log.Info("media staged", zap.String("category", staged.Category), zap.String("path", rel))
	return staged, nil
}

func (s *Store) hit(staged *domain.StagedFile, rel string) *domain.StagedFile {
	staged.Path = filepath.Join(s.root, filepath.FromSlash(rel))
	staged.PublicURL = s.publicURL(rel)
	staged.CacheHit = true
	return staged
}

// audioOnly writes a transient probe copy of a video upload, inspects its
// streams and removes the probe before returning.
func (s *Store) audioOnly(ctx context.Context, data []byte, digest, ext string, log *zap.Logger) bool {
	f, err := os.CreateTemp(filepath.Join(s.root, TemporalDir), digest+"_probe_*"+ext)
	if err != nil {
		log.Warn("failed to create probe file", zap.Error(err))
		return false
	}
	probe := f.Name()
	defer func() {
		if err := os.Remove(probe); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove probe file", zap.String("path", probe), zap.Error(err))
		}
	}()

	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Warn("failed to write probe file", zap.Error(err))
		return false
	}
	streams, err := s.transcoder.ProbeStreams(ctx, probe)
	if err != nil {
		log.Warn("stream probe failed, keeping video category", zap.Error(err))
		return false
	}
	return transcode.AudioOnly(streams)
}

type convertFunc func(ctx context.Context, in, out string) error

// convert runs fn into a uniquely named intermediate file and swaps it in
// for source, so only one of the two survives. On failure source is kept
// as is.
func (s *Store) convert(ctx context.Context, fn convertFunc, source, dir, digest, ext string, log *zap.Logger) (string, bool) {
	final := filepath.Join(dir, digest+ext)
	tmp, err := os.CreateTemp(dir, digest+"_gateway_*"+ext)
	if err != nil {
		log.Warn("failed to create transcode target, storing original", zap.Error(err))
		return source, false
	}
	intermediate := tmp.Name()
	_ = tmp.Close()

	if err := fn(ctx, source, intermediate); err != nil {
		log.Warn("transcode failed, storing original", zap.Error(err))
		_ = os.Remove(intermediate)
		return source, false
	}
	if source != final {
		if err := os.Remove(source); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove pre-transcode file", zap.Error(err))
		}
	}
	if err := os.Rename(intermediate, final); err != nil {
		log.Warn("failed to rename transcoded file, serving intermediate", zap.Error(err))
		return intermediate, true
	}
	return final, true
}

func (s *Store) mirror(ctx context.Context, key, filePath, contentType string, log *zap.Logger) {
	if s.archive == nil {
		return
	}
	if err := s.archive.PutFile(ctx, key, filePath, contentType); err != nil {
		log.Warn("archive mirror failed", zap.String("key", key), zap.Error(err))
	}
}

// OpenArchived reads name from the archive, trying the same ordered
// locations as the local lookup.
func (s *Store) OpenArchived(ctx context.Context, name string) (io.ReadCloser, int64, string, error) {
	if s.archive == nil {
		return nil, 0, "", fmt.Errorf("file %s: %w", name, domain.ErrNotFound)
	}
	if !ValidName(name) {
		return nil, 0, "", fmt.Errorf("file name %q: %w", name, domain.ErrBadInput)
	}
	for _, root := range RetrievalRoots("") {
		key := path.Join(filepath.ToSlash(root), name)
		rc, size, ct, err := s.archive.Open(ctx, key)
		if err == nil {
			return rc, size, ct, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, 0, "", err
		}
	}
	return nil, 0, "", fmt.Errorf("file %s: %w", name, domain.ErrNotFound)
}
