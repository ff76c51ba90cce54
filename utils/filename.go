package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// MaxNameLength bounds every sanitized name component.
const MaxNameLength = 100

// longest suffix UniqueBlobName appends to a base:
// "_" + 19 digit nanoseconds + "_" + 12 random + "." + 10 character extension
const blobSuffixLength = 1 + 19 + 1 + 12 + 1 + 10

// maxBaseLength leaves room for the blob suffix within MaxNameLength.
const maxBaseLength = MaxNameLength - blobSuffixLength

var (
	unsafeChars      = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace       = regexp.MustCompile(`\s+`)
	repeatedUnder    = regexp.MustCompile(`_+`)
	repeatedDots     = regexp.MustCompile(`\.{2,}`)
	nonWordChars     = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	extensionPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)
)

// SanitizeFilename makes a caller-supplied filename safe to use as a single
// path component: separators and reserved characters become underscores,
// runs of separators and dots collapse, leading dots are dropped so the name
// can never be "." or "..", and the result is truncated to MaxNameLength.
func SanitizeFilename(filename string) string {
	filename = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, filename)
	sanitized := unsafeChars.ReplaceAllString(filename, "_")
	sanitized = whitespace.ReplaceAllString(sanitized, "_")
	sanitized = repeatedDots.ReplaceAllString(sanitized, ".")
	sanitized = repeatedUnder.ReplaceAllString(sanitized, "_")
	sanitized = strings.TrimLeft(sanitized, "._")
	sanitized = strings.TrimRight(sanitized, "_")
	if len(sanitized) > MaxNameLength {
		sanitized = strings.TrimRight(truncateRunes(sanitized, MaxNameLength), "._")
	}
	if sanitized == "" {
		return "file"
	}
	return sanitized
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utfBoundary(s, n) {
		n--
	}
	return s[:n]
}

func utfBoundary(s string, i int) bool {
	return i == len(s) || s[i]&0xC0 != 0x80
}

// SplitName returns the sanitized base (all extensions removed) and the
// lower-case final extension of name.
func SplitName(name string) (base, ext string) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext = strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if !extensionPattern.MatchString(ext) {
		ext = ""
	}
	base = name
	for strings.Contains(base, ".") {
		trimmed := strings.TrimSuffix(base, filepath.Ext(base))
		if trimmed == base {
			break
		}
		base = trimmed
	}
	base = nonWordChars.ReplaceAllString(base, "_")
	base = repeatedUnder.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if len(base) > maxBaseLength {
		base = strings.Trim(base[:maxBaseLength], "_")
	}
	return base, ext
}

// UniqueBlobName builds a collision resistant blob name of the form
// <base>_<unixnano>_<random>.<ext> from a suggested filename.
func UniqueBlobName(suggested string, now time.Time) (string, error) {
	base, ext := SplitName(suggested)
	if base == "" {
		base = "blob"
	}
	suffix, err := GenerateRNS()
	if err != nil {
		return "", fmt.Errorf("generate blob suffix: %w", err)
	}
	name := fmt.Sprintf("%s_%d_%s", base, now.UnixNano(), suffix)
	if ext != "" {
		name += "." + ext
	}
	return SanitizeFilename(name), nil
}

// OutputFilename formats the download name of a conversion output:
// <base>_to_<ext>_<yyyyMMdd-HHmm>.<ext>
func OutputFilename(originalName, targetExt string, now time.Time) string {
	base, _ := SplitName(originalName)
	if base == "" {
		base = "converted"
	}
	targetExt = strings.TrimPrefix(strings.ToLower(targetExt), ".")
	return fmt.Sprintf("%s_to_%s_%s.%s", base, targetExt, now.Format("20060102-1504"), targetExt)
}
