// Package appid derives Java-style reverse-DNS application identifiers and
// filesystem-safe directory names from arbitrary, possibly non-ASCII, user
// supplied app names.
package appid

import (
	"regexp"
	"strconv"
	"strings"
)

const defaultPrefix = "com.vibecoding."

var (
	nonIdentChars = regexp.MustCompile(`[^a-z0-9]+`)
	multipleDots  = regexp.MustCompile(`\.{2,}`)
	startsLower   = regexp.MustCompile(`^[a-z]`)
	nonDirChars   = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
	multipleUnd   = regexp.MustCompile(`_{2,}`)
)

// Derive turns an arbitrary app name into a valid Java package identifier
// under the com.vibecoding. namespace, per spec.md §4.2.
func Derive(appName string) string {
	lower := strings.ToLower(appName)
	collapsed := nonIdentChars.ReplaceAllString(lower, ".")
	collapsed = multipleDots.ReplaceAllString(collapsed, ".")
	collapsed = strings.Trim(collapsed, ".")

	if collapsed == "" {
		collapsed = "app"
	}

	segments := strings.Split(collapsed, ".")
	for i, seg := range segments {
		if seg == "" {
			segments[i] = appWithIndex(i)
			continue
		}
		if !startsLower.MatchString(seg) {
			segments[i] = "a" + seg
		}
	}

	return defaultPrefix + strings.Join(segments, ".")
}

func appWithIndex(i int) string {
	return "app" + strconv.Itoa(i)
}

// SanitizeDirName produces a filesystem-safe (and external-toolchain-safe)
// directory name, distinct from Derive: it preserves case and punctuation
// allowed in common filesystems instead of forcing a Java identifier shape.
func SanitizeDirName(name string) string {
	sanitized := nonDirChars.ReplaceAllString(name, "_")
	sanitized = multipleUnd.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "project"
	}
	return sanitized
}
