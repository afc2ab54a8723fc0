package metadata

// Tags is what can be read back from an audio file's embedded tags.
type Tags struct {
	Format    string `json:"format"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Genre     string `json:"genre"`
	Year      string `json:"year"`
	Publisher string `json:"publisher"`
	BPM       string `json:"bpm"`
	Key       string `json:"key"`
}
