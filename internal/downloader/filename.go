package downloader

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultExt      = "mp4"
	fallbackTitle   = "video"
	maxTitleBytes   = 200
	maxExtensionLen = 5
)

var (
	invalidChars = regexp.MustCompile(`[\\/*?:"<>|]`)
	extPattern   = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// SanitizeTitle strips characters that are invalid in file names on common
// platforms, plus control characters. The result is never empty.
func SanitizeTitle(title string) string {
	s := invalidChars.ReplaceAllString(title, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(s, " .")

	if len(s) > maxTitleBytes {
		cut := maxTitleBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimRight(s[:cut], " .")
	}

	if s == "" {
		return fallbackTitle
	}
	return s
}

// FileName builds "<title>_<quality>.<ext>"; quality is a label like "720p"
func FileName(title, quality, ext string) string {
	return SanitizeTitle(title) + "_" + invalidChars.ReplaceAllString(quality, "") + "." + ext
}

// Extension returns the media file extension found in the URL path,
// or def when there is none
func Extension(rawURL, def string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return def
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if ext == "" || len(ext) > maxExtensionLen || !extPattern.MatchString(ext) {
		return def
	}
	return strings.ToLower(ext)
}
