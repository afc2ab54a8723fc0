package library

import (
	"looplib/internal/metadata"
	"looplib/internal/storage"
)

const (
	Unknown            = "Unknown"
	AnonymousPublisher = "Anonymous Publisher"
)

// Record is the flattened view of one audio file.
type Record struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	Publisher  string `json:"publisher"`
	Duration   string `json:"duration"`
	BPM        string `json:"bpm"`
	MusicalKey string `json:"musicalKey"`
	Genre      string `json:"genre"`
}

// NewRecord builds the view of audioKey. doc may be nil when the file has no
// readable metadata; every display field then falls back to its sentinel.
func NewRecord(audioKey, url string, doc *metadata.Document) Record {
	if doc == nil {
		doc = &metadata.Document{}
	}
	return Record{
		Name:       storage.NameOf(audioKey),
		URL:        url,
		Publisher:  doc.Publisher.Or(AnonymousPublisher),
		Duration:   doc.Duration.Or(Unknown),
		BPM:        doc.BPM.Or(Unknown),
		MusicalKey: doc.Key.Or(Unknown),
		Genre:      doc.Genre.Or(Unknown),
	}
}
