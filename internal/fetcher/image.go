package fetcher

import (
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

// imgTagRe matches an <img> tag whose src has an image-like file extension,
// optionally followed by a query string.
var imgTagRe = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+?\.(?:jpe?g|png|gif|webp)(?:\?[^"']*)?)["']`)

// ExtractImage resolves a representative image URL for a feed item, or ""
// when none is resolvable. Resolution order, first match wins:
// structured image field, image-typed enclosure, media:content or
// media:thumbnail extension, then an <img> scan of the rendered content.
// Items without a resolvable image are dropped by the pipeline: the cards the
// API feeds are image-bearing by requirement.
func ExtractImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}

	if url := mediaExtensionImage(item); url != "" {
		return url
	}

	return scanContentImage(item.Content, item.Description)
}

// mediaExtensionImage walks the media RSS extension for a content or
// thumbnail element carrying an image URL.
func mediaExtensionImage(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}

	for _, key := range []string{"content", "thumbnail"} {
		for _, ext := range media[key] {
			url := ext.Attrs["url"]
			if url == "" {
				continue
			}
			// media:thumbnail is an image by definition; media:content
			// must declare an image medium or type.
			if key == "thumbnail" ||
				ext.Attrs["medium"] == "image" ||
				strings.HasPrefix(ext.Attrs["type"], "image/") {
				return url
			}
		}
	}

	return ""
}

// scanContentImage regex-scans rendered HTML for the first img src with an
// image-like extension.
func scanContentImage(fields ...string) string {
	for _, html := range fields {
		if html == "" {
			continue
		}
		if m := imgTagRe.FindStringSubmatch(html); m != nil {
			return m[1]
		}
	}
	return ""
}
