// Package fingerprint derives content identity for media files: a normalized
// title key that survives renames and re-encodes, and a streaming content hash.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	bracketPattern   = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)
	separatorPattern = regexp.MustCompile(`[._\-]+`)
	yearPattern      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	spacePattern     = regexp.MustCompile(`\s+`)

	// uniqueIDPattern matches the <unix-millis>-<short-hash> suffix the
	// assembly step injects into stored filenames.
	uniqueIDPattern      = regexp.MustCompile(`\d{10,13}-[0-9a-f]{6,16}`)
	uniqueSuffixPattern  = regexp.MustCompile(`_\d{10,13}-[0-9a-f]{6,16}$`)
	qualitySuffixPattern = regexp.MustCompile(`_(2160p|1440p|1080p|720p|480p|360p|240p|144p)$`)
)

// releaseTags are quality/source/codec/group tokens stripped from titles.
// Kept as an explicit table so the heuristic is pinned by tests, not by
// regex ordering.
var releaseTags = map[string]struct{}{
	"2160p": {}, "1440p": {}, "1080p": {}, "720p": {}, "480p": {},
	"360p": {}, "240p": {}, "144p": {},
	"4k": {}, "uhd": {}, "hdr": {}, "hdr10": {}, "10bit": {}, "8bit": {},
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {}, "avc": {},
	"aac": {}, "ac3": {}, "dts": {}, "ddp5": {}, "atmos": {},
	"bluray": {}, "brrip": {}, "bdrip": {}, "webrip": {}, "webdl": {},
	"web": {}, "hdtv": {}, "dvdrip": {}, "remux": {}, "hdcam": {}, "cam": {},
	"proper": {}, "repack": {}, "extended": {}, "unrated": {}, "multi": {},
	"yify": {}, "yts": {}, "rarbg": {}, "eztv": {},
}

// Normalize reduces a filename to a title key: extension, bracketed groups,
// year tokens, release tags and separators are stripped, the rest is
// lowercased with whitespace collapsed. Deterministic and safe for any
// input, including names without an extension.
func Normalize(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = bracketPattern.ReplaceAllString(name, " ")
	name = separatorPattern.ReplaceAllString(name, " ")
	name = yearPattern.ReplaceAllString(name, " ")
	name = strings.ToLower(name)

	words := strings.Fields(name)
	kept := words[:0]
	for _, w := range words {
		if _, tagged := releaseTags[w]; tagged {
			continue
		}
		kept = append(kept, w)
	}
	return spacePattern.ReplaceAllString(strings.TrimSpace(strings.Join(kept, " ")), " ")
}

// NormalizeTranscoded is the aggressive variant for files produced by the
// transcoding pipeline: it additionally strips the trailing quality label
// and the injected unique-id suffix before normalizing, so a variant file
// maps back to the semantic title of its original.
func NormalizeTranscoded(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = qualitySuffixPattern.ReplaceAllString(name, "")
	name = uniqueSuffixPattern.ReplaceAllString(name, "")
	return Normalize(name)
}

// UniqueID extracts the unique suffix injected at assembly time, or ""
// if the name carries none. Used by the resolver's filesystem fallback.
func UniqueID(filename string) string {
	return uniqueIDPattern.FindString(filepath.Base(filename))
}

// Hash streams the file through sha256 and returns the hex digest.
// Any I/O failure yields "" so callers treat the file as unknown instead
// of aborting a whole scan.
func Hash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
