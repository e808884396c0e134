package utils

import (
	"crypto/sha1"
	"encoding/hex"
)

// HashString generates a SHA1 hash of a string
func HashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// ArticleID derives the stable article identifier from a feed item's GUID,
// falling back to its link when the feed supplies no globally-unique id.
func ArticleID(guid, link string) string {
	if guid != "" {
		return HashString(guid)
	}
	return HashString(link)
}
