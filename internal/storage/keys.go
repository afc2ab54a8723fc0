package storage

import (
	"path"
	"strings"
)

// Bucket layout:
//
//	users/{uid}/audio/{name}
//	users/{uid}/metadata/{name}.metadata.json
const (
	UsersRoot       = "users/"
	audioSegment    = "/audio/"
	metadataSegment = "/metadata/"
	MetadataSuffix  = ".metadata.json"
	audioDirName    = "audio"
	metadataDirName = "metadata"
)

func UserPrefix(uid string) string {
	return UsersRoot + uid + "/"
}

func AudioKey(uid, name string) string {
	return UserPrefix(uid) + audioDirName + "/" + name
}

func MetadataKey(uid, name string) string {
	return UserPrefix(uid) + metadataDirName + "/" + name + MetadataSuffix
}

// MetadataKeyFor derives the companion metadata key of an audio key. Only the
// first "/audio/" segment is rewritten.
func MetadataKeyFor(audioKey string) string {
	return strings.Replace(audioKey, audioSegment, metadataSegment, 1) + MetadataSuffix
}

// AudioKeyFor is the inverse of MetadataKeyFor.
func AudioKeyFor(metadataKey string) (string, bool) {
	if !strings.Contains(metadataKey, metadataSegment) || !strings.HasSuffix(metadataKey, MetadataSuffix) {
		return "", false
	}
	trimmed := strings.TrimSuffix(metadataKey, MetadataSuffix)
	return strings.Replace(trimmed, metadataSegment, audioSegment, 1), true
}

func IsAudioKey(key string) bool {
	return strings.Contains(key, audioSegment) && !strings.HasSuffix(key, "/")
}

func IsMetadataKey(key string) bool {
	return strings.Contains(key, metadataSegment) && !strings.HasSuffix(key, "/")
}

// NameOf returns the display name of an object: its last path segment.
func NameOf(key string) string {
	return path.Base(key)
}

// SplitAudioKey extracts the owner uid and file name from a canonical audio key.
func SplitAudioKey(key string) (uid, name string, ok bool) {
	rest, found := strings.CutPrefix(key, UsersRoot)
	if !found {
		return "", "", false
	}
	uid, rest, found = strings.Cut(rest, "/")
	if !found || uid == "" {
		return "", "", false
	}
	rest, found = strings.CutPrefix(rest, audioDirName+"/")
	if !found || rest == "" {
		return "", "", false
	}
	return uid, NameOf(rest), true
}

// ValidName reports whether name can be used as a single path segment.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
