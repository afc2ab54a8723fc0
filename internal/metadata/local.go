package metadata

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/dhowden/tag"
	"github.com/go-flac/go-flac"
)

// ReadTags extracts embedded tags (ID3, MP4, FLAC/Vorbis) from r.
func ReadTags(r io.ReadSeeker) (Tags, error) {
	m, err := tag.ReadFrom(r)
	if err != nil {
		return Tags{}, err
	}

	t := Tags{
		Format: string(m.FileType()),
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Genre:  strings.TrimSpace(m.Genre()),
	}
	if m.Year() != 0 {
		t.Year = strconv.Itoa(m.Year())
	}

	// BPM, key and label live in format-specific frames.
	raw := m.Raw()
	t.BPM = rawTag(raw, "TBPM", "bpm", "BPM", "tmpo")
	t.Key = rawTag(raw, "TKEY", "initialkey", "INITIALKEY", "key", "KEY")
	t.Publisher = rawTag(raw, "TPUB", "label", "LABEL", "publisher", "PUBLISHER", "organization", "ORGANIZATION")
	return t, nil
}

func rawTag(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				return s
			}
		case int:
			if val != 0 {
				return strconv.Itoa(val)
			}
		case *tag.Comm:
			if s := strings.TrimSpace(val.Text); s != "" {
				return s
			}
		}
	}
	return ""
}

// ProbeDuration asks ffprobe for the container duration in seconds.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "quiet", "-print_format", "json", "-show_format", path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var data struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &data); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(data.Format.Duration, 64)
}

// StampMP3 writes the non-empty entries of tags into the file's ID3v2 tag.
// Recognised keys: TITLE, ARTIST, ALBUM, GENRE, DATE, BPM, KEY, PUBLISHER.
func StampMP3(path string, tags map[string]string) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer t.Close()

	if v := tags["TITLE"]; v != "" {
		t.SetTitle(v)
	}
	if v := tags["ARTIST"]; v != "" {
		t.SetArtist(v)
	}
	if v := tags["ALBUM"]; v != "" {
		t.SetAlbum(v)
	}
	if v := tags["GENRE"]; v != "" {
		t.SetGenre(v)
	}
	if v := tags["DATE"]; v != "" {
		t.SetYear(v)
	}

	frames := map[string]string{
		"TBPM": tags["BPM"],
		"TKEY": tags["KEY"],
		"TPUB": tags["PUBLISHER"],
	}
	for id, v := range frames {
		if v != "" {
			t.AddTextFrame(id, t.DefaultEncoding(), v)
		}
	}

	return t.Save()
}

// StampFLAC replaces the Vorbis comment block. go-flac is low level, so the
// block is assembled by hand.
func StampFLAC(path string, tags map[string]string) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return err
	}

	var newMeta []*flac.MetaDataBlock
	for _, m := range f.Meta {
		if m.Type != flac.VorbisComment {
			newMeta = append(newMeta, m)
		}
	}

	// [vendor len][vendor][comment count]([comment len][KEY=VALUE])...
	vendor := "looplib"

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(vendor)))
	buf.WriteString(vendor)

	var comments []string
	for k, v := range tags {
		if v != "" {
			comments = append(comments, k+"="+v)
		}
	}

	binary.Write(&buf, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		binary.Write(&buf, binary.LittleEndian, uint32(len(c)))
		buf.WriteString(c)
	}

	// StreamInfo stays first; the comment block goes after the existing blocks.
	newMeta = append(newMeta, &flac.MetaDataBlock{
		Type: flac.VorbisComment,
		Data: buf.Bytes(),
	})
	f.Meta = newMeta

	return f.Save(path)
}
