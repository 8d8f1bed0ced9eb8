// Package htmlshell implements the idempotent HTML transforms spec.md
// §4.5.5 requires before an HTML document is packaged into the mobile
// shell: a viewport meta, a permissive CSP meta, and the cordova.js
// script tag, each inserted only if not already present.
package htmlshell

import (
	"regexp"
	"strings"
)

const (
	viewportTag = `<meta name="viewport" content="width=device-width, initial-scale=1.0">`
	cspTag      = `<meta http-equiv="Content-Security-Policy" content="default-src * 'self' 'unsafe-inline' 'unsafe-eval' data: gap: content:">`
	cordovaTag  = `<script src="cordova.js"></script>`
)

var (
	viewportRe = regexp.MustCompile(`(?i)<meta[^>]+name=["']viewport["']`)
	cspRe      = regexp.MustCompile(`(?i)<meta[^>]+http-equiv=["']Content-Security-Policy["']`)
	cordovaRe  = regexp.MustCompile(`(?i)<script[^>]*src=["'][^"']*cordova\.js["']`)
	headOpenRe = regexp.MustCompile(`(?i)<head[^>]*>`)
	bodyCloseRe = regexp.MustCompile(`(?i)</body>`)
)

// PrepareForMobileShell applies the three patches idempotently: calling
// it twice on its own output is a no-op, per spec.md §8 property 3.
func PrepareForMobileShell(html string) string {
	html = ensureInHead(html, viewportRe, viewportTag)
	html = ensureInHead(html, cspRe, cspTag)
	html = ensureBeforeBodyClose(html, cordovaRe, cordovaTag)
	return html
}

func ensureInHead(html string, present *regexp.Regexp, tag string) string {
	if present.MatchString(html) {
		return html
	}
	loc := headOpenRe.FindStringIndex(html)
	if loc == nil {
		// No <head>; prepend the tag so the transform is still a no-op
		// to apply twice, rather than silently dropping it.
		return tag + "\n" + html
	}
	insertAt := loc[1]
	return html[:insertAt] + "\n" + tag + html[insertAt:]
}

func ensureBeforeBodyClose(html string, present *regexp.Regexp, tag string) string {
	if present.MatchString(html) {
		return html
	}
	loc := bodyCloseRe.FindStringIndex(html)
	if loc == nil {
		return html + "\n" + tag
	}
	insertAt := loc[0]
	return html[:insertAt] + tag + "\n" + html[insertAt:]
}

// StripEntryName reports whether the HTML's referenced entry file should
// be renamed to index.html (the upload's original basename differs).
func StripEntryName(originalName string) bool {
	return strings.ToLower(originalName) != "index.html"
}
