// Package library lists a user's audio files and pairs each one with its
// companion metadata document to produce display records.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"looplib/internal/metadata"
	"looplib/internal/storage"
)

var ErrInvalidName = errors.New("library: invalid file name")

type Options struct {
	FetchConcurrency int
	ListTimeout      time.Duration
	CacheTTL         time.Duration
}

type Service struct {
	storage *storage.Client
	opts    Options
	cache   *listingCache
	log     *slog.Logger
}

func New(st *storage.Client, opts Options, logger *slog.Logger) *Service {
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage: st,
		opts:    opts,
		cache:   newListingCache(opts.CacheTTL),
		log:     logger.With("component", "library"),
	}
}

// List returns one record per audio object under the user's prefix, in listing
// order. A metadata document that is missing, unreadable or malformed only
// degrades its own record to sentinel values.
func (s *Service) List(ctx context.Context, uid string) ([]Record, error) {
	if records, ok := s.cache.get(uid); ok {
		listings.WithLabelValues("hit").Inc()
		return records, nil
	}

	timer := prometheus.NewTimer(listDuration)
	defer timer.ObserveDuration()

	gen := s.cache.generation(uid)

	if s.opts.ListTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ListTimeout)
		defer cancel()
	}

	keys, err := s.storage.List(ctx, storage.UserPrefix(uid))
	if err != nil {
		listings.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list %s: %w", storage.UserPrefix(uid), err)
	}

	var audioKeys []string
	metadataKeys := make(map[string]bool)
	for _, key := range keys {
		switch {
		case storage.IsAudioKey(key):
			audioKeys = append(audioKeys, key)
		case storage.IsMetadataKey(key):
			metadataKeys[key] = true
		}
	}

	records := make([]Record, len(audioKeys))
	sem := make(chan struct{}, s.opts.FetchConcurrency)
	var wg sync.WaitGroup
	var failed atomic.Bool

	for i, key := range audioKeys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var doc *metadata.Document
			if metaKey := storage.MetadataKeyFor(key); metadataKeys[metaKey] {
				var err error
				if doc, err = s.fetchMetadata(ctx, key, metaKey); err != nil {
					failed.Store(true)
				}
			}
			records[i] = NewRecord(key, s.storage.ObjectURL(key), doc)
		}(i, key)
	}
	wg.Wait()

	listings.WithLabelValues("miss").Inc()
	// Fetch failures may be transient, so only a clean listing is cached.
	if !failed.Load() {
		s.cache.put(uid, gen, records)
	}
	return records, nil
}

// fetchMetadata returns a nil document with a nil error for a document that
// is stored but malformed; err is set only when the fetch itself failed.
func (s *Service) fetchMetadata(ctx context.Context, audioKey, metaKey string) (*metadata.Document, error) {
	obj, err := s.storage.Download(ctx, metaKey)
	if err != nil {
		metadataFetches.WithLabelValues("fetch_error").Inc()
		s.log.Warn("error fetching metadata", "key", audioKey, "error", err)
		return nil, err
	}
	defer obj.Body.Close()

	doc, err := metadata.Decode(obj.Body)
	if err != nil {
		metadataFetches.WithLabelValues("decode_error").Inc()
		s.log.Warn("error decoding metadata", "key", audioKey, "error", err)
		return nil, nil
	}
	metadataFetches.WithLabelValues("ok").Inc()
	return doc, nil
}

// Delete removes a file and its metadata companion. The file disappears from
// the cached listing before any backend call is made, so it stays hidden even
// when the backend delete fails. A file that is not stored yields
// storage.ErrNotFound. Metadata cleanup failures are logged only.
func (s *Service) Delete(ctx context.Context, uid, name string) error {
	if !storage.ValidName(name) {
		return ErrInvalidName
	}

	s.cache.remove(uid, name)

	audioKey := storage.AudioKey(uid, name)
	exists, err := s.storage.Exists(ctx, audioKey)
	switch {
	case err != nil:
		s.log.Warn("error checking file before delete", "key", audioKey, "error", err)
	case !exists:
		deletions.WithLabelValues("audio", "missing").Inc()
		return fmt.Errorf("delete %s: %w", audioKey, storage.ErrNotFound)
	}

	if err := s.storage.Delete(ctx, audioKey); err != nil {
		deletions.WithLabelValues("audio", "error").Inc()
		s.log.Error("error deleting file", "key", audioKey, "error", err)
		return fmt.Errorf("delete %s: %w", audioKey, err)
	}
	deletions.WithLabelValues("audio", "ok").Inc()

	metaKey := storage.MetadataKeyFor(audioKey)
	if err := s.storage.Delete(ctx, metaKey); err != nil {
		deletions.WithLabelValues("metadata", "error").Inc()
		s.log.Warn("error deleting metadata, left orphaned", "key", metaKey, "error", err)
	} else {
		deletions.WithLabelValues("metadata", "ok").Inc()
	}

	s.log.Info("file deleted", "uid", uid, "name", name)
	return nil
}

// Open streams an audio object for playback.
func (s *Service) Open(ctx context.Context, uid, name string) (*storage.FileObject, error) {
	if !storage.ValidName(name) {
		return nil, ErrInvalidName
	}
	return s.storage.Download(ctx, storage.AudioKey(uid, name))
}

// Invalidate forgets the cached listing of uid.
func (s *Service) Invalidate(uid string) {
	s.cache.invalidate(uid)
}
