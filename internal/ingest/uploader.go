// Package ingest takes user uploads: it previews embedded tags, stamps the
// form values into the file, and stores the audio object next to its
// metadata document.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"looplib/internal/metadata"
	"looplib/internal/storage"
	"looplib/internal/utils"
)

var (
	jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "looplib_upload_jobs_total",
			Help: "Total upload jobs",
		},
		[]string{"status"},
	)
	duration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "looplib_upload_duration_seconds",
			Help:    "Processing time",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(jobs, duration)
}

// Invalidator drops a user's cached listing after a new file lands.
type Invalidator interface {
	Invalidate(uid string)
}

// DurationProbe returns the length of a local audio file in seconds.
type DurationProbe func(ctx context.Context, path string) (float64, error)

type Preview struct {
	Filename  string  `json:"filename"`
	SizeKB    float64 `json:"size_kb"`
	Format    string  `json:"format,omitempty"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Album     string  `json:"album"`
	Genre     string  `json:"genre"`
	Year      string  `json:"year"`
	BPM       string  `json:"bpm"`
	Key       string  `json:"key"`
	Publisher string  `json:"publisher"`
}

// Form holds the values the user confirmed after the preview.
type Form struct {
	Title     string `form:"title"`
	Artist    string `form:"artist"`
	Album     string `form:"album"`
	Genre     string `form:"genre"`
	Year      string `form:"year"`
	BPM       string `form:"bpm"`
	Key       string `form:"key"`
	Publisher string `form:"publisher"`
}

type Result struct {
	Name        string             `json:"name"`
	Key         string             `json:"key"`
	MetadataKey string             `json:"metadataKey"`
	URL         string             `json:"url"`
	Metadata    *metadata.Document `json:"metadata"`
}

type Uploader struct {
	storage *storage.Client
	lib     Invalidator
	limits  Limits
	tempDir string
	log     *slog.Logger

	// Probe measures duration after stamping. Nil skips it.
	Probe DurationProbe
}

func New(st *storage.Client, lib Invalidator, limits Limits, tempDir string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		storage: st,
		lib:     lib,
		limits:  limits,
		tempDir: tempDir,
		log:     logger.With("component", "ingest"),
		Probe:   metadata.ProbeDuration,
	}
}

func (u *Uploader) Limits() Limits { return u.limits }

// Analyze reads embedded tags without storing anything. Unreadable tags give
// a preview built from the file name alone.
func (u *Uploader) Analyze(fileHeader *multipart.FileHeader) (*Preview, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	p := &Preview{
		Filename: fileHeader.Filename,
		SizeKB:   math.Round(float64(fileHeader.Size)/1024*100) / 100,
	}

	tags, err := metadata.ReadTags(file)
	if err != nil {
		u.log.Debug("tags unreadable, falling back to filename", "filename", fileHeader.Filename, "error", err)
		p.Title = utils.CleanFilename(fileHeader.Filename)
		return p, nil
	}

	p.Format = tags.Format
	p.Title = tags.Title
	if p.Title == "" {
		p.Title = utils.CleanFilename(fileHeader.Filename)
	}
	p.Artist = tags.Artist
	p.Album = tags.Album
	p.Genre = tags.Genre
	p.Year = tags.Year
	p.BPM = tags.BPM
	p.Key = tags.Key
	p.Publisher = tags.Publisher
	return p, nil
}

// Store validates the upload, stamps form values into its tags and writes
// the audio object followed by its metadata document.
func (u *Uploader) Store(ctx context.Context, uid string, fileHeader *multipart.FileHeader, form Form) (*Result, error) {
	timer := prometheus.NewTimer(duration)
	defer timer.ObserveDuration()

	res, err := u.store(ctx, uid, fileHeader, form)
	if err != nil {
		jobs.WithLabelValues("failure").Inc()
		return nil, err
	}
	jobs.WithLabelValues("success").Inc()
	return res, nil
}

func (u *Uploader) store(ctx context.Context, uid string, fileHeader *multipart.FileHeader, form Form) (*Result, error) {
	if err := u.limits.Validate(fileHeader); err != nil {
		return nil, err
	}
	name := utils.SanitizeFilename(fileHeader.Filename)
	if name == "" || !storage.ValidName(name) {
		return nil, fmt.Errorf("%w: invalid filename", ErrInvalidUpload)
	}
	ext := strings.ToLower(filepath.Ext(name))

	// 1. Temp copy
	tempFile, err := os.CreateTemp(u.tempDir, "looplib-upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	src, err := fileHeader.Open()
	if err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("open upload: %w", err)
	}
	_, err = io.Copy(tempFile, src)
	src.Close()
	if cerr := tempFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}

	// 2. Stamp tags. A file we cannot tag is still stored.
	u.stamp(tempFile.Name(), ext, form)

	// 3. Duration
	var length string
	if u.Probe != nil {
		if secs, err := u.Probe(ctx, tempFile.Name()); err != nil {
			u.log.Debug("duration probe failed", "name", name, "error", err)
		} else {
			length = utils.FormatDuration(secs)
		}
	}

	// 4. Audio object
	final, err := os.Open(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("reopen temp file: %w", err)
	}
	defer final.Close()

	audioKey := storage.AudioKey(uid, name)
	if err := u.storage.Upload(ctx, audioKey, final, contentTypeFor(fileHeader, ext), ""); err != nil {
		return nil, fmt.Errorf("upload %s: %w", audioKey, err)
	}

	// 5. Metadata document
	doc := &metadata.Document{
		Publisher: metadata.String(strings.TrimSpace(form.Publisher)),
		Duration:  metadata.String(length),
		BPM:       bpmValue(form.BPM),
		Key:       metadata.String(strings.TrimSpace(form.Key)),
		Genre:     metadata.String(strings.TrimSpace(form.Genre)),
	}
	body, err := doc.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	metaKey := storage.MetadataKeyFor(audioKey)
	if err := u.storage.Upload(ctx, metaKey, bytes.NewReader(body), "application/json", "no-cache"); err != nil {
		u.lib.Invalidate(uid)
		return nil, fmt.Errorf("upload %s: %w", metaKey, err)
	}

	u.lib.Invalidate(uid)
	u.log.Info("upload stored", "uid", uid, "key", audioKey)

	return &Result{
		Name:        name,
		Key:         audioKey,
		MetadataKey: metaKey,
		URL:         u.storage.ObjectURL(audioKey),
		Metadata:    doc,
	}, nil
}

func (u *Uploader) stamp(path, ext string, form Form) {
	tags := map[string]string{
		"TITLE":     strings.TrimSpace(form.Title),
		"ARTIST":    strings.TrimSpace(form.Artist),
		"ALBUM":     strings.TrimSpace(form.Album),
		"GENRE":     strings.TrimSpace(form.Genre),
		"DATE":      utils.SanitizeYear(strings.TrimSpace(form.Year)),
		"BPM":       strings.TrimSpace(form.BPM),
		"KEY":       strings.TrimSpace(form.Key),
		"PUBLISHER": strings.TrimSpace(form.Publisher),
	}

	var err error
	switch ext {
	case ".mp3":
		err = metadata.StampMP3(path, tags)
	case ".flac":
		err = metadata.StampFLAC(path, tags)
	default:
		return
	}
	if err != nil {
		u.log.Warn("failed to tag file", "ext", ext, "error", err)
	}
}

// bpmValue keeps numeric tempos numeric in the document.
func bpmValue(s string) metadata.Value {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return metadata.Number(f)
	}
	return metadata.String(s)
}

func contentTypeFor(fileHeader *multipart.FileHeader, ext string) string {
	if ct := fileHeader.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
