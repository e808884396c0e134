package fetcher

import (
	"testing"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

func mediaExt(key, url, medium, mimeType string) ext.Extensions {
	return ext.Extensions{
		"media": {
			key: []ext.Extension{
				{
					Name:  key,
					Attrs: map[string]string{"url": url, "medium": medium, "type": mimeType},
				},
			},
		},
	}
}

func TestExtractImage(t *testing.T) {
	tests := []struct {
		name     string
		item     *gofeed.Item
		expected string
	}{
		{
			name: "Structured image field wins",
			item: &gofeed.Item{
				Image:      &gofeed.Image{URL: "https://example.com/lead.jpg"},
				Enclosures: []*gofeed.Enclosure{{URL: "https://example.com/enc.png", Type: "image/png"}},
			},
			expected: "https://example.com/lead.jpg",
		},
		{
			name: "Image enclosure",
			item: &gofeed.Item{
				Enclosures: []*gofeed.Enclosure{
					{URL: "https://example.com/audio.mp3", Type: "audio/mpeg"},
					{URL: "https://example.com/photo.jpg", Type: "image/jpeg"},
				},
			},
			expected: "https://example.com/photo.jpg",
		},
		{
			name: "Non-image enclosure skipped",
			item: &gofeed.Item{
				Enclosures: []*gofeed.Enclosure{{URL: "https://example.com/audio.mp3", Type: "audio/mpeg"}},
			},
			expected: "",
		},
		{
			name: "Media content with image medium",
			item: &gofeed.Item{
				Extensions: mediaExt("content", "https://example.com/media.jpg", "image", ""),
			},
			expected: "https://example.com/media.jpg",
		},
		{
			name: "Media content with image mime type",
			item: &gofeed.Item{
				Extensions: mediaExt("content", "https://example.com/media.png", "", "image/png"),
			},
			expected: "https://example.com/media.png",
		},
		{
			name: "Media content with video medium ignored",
			item: &gofeed.Item{
				Extensions: mediaExt("content", "https://example.com/clip.mp4", "video", "video/mp4"),
			},
			expected: "",
		},
		{
			name: "Media thumbnail accepted without medium",
			item: &gofeed.Item{
				Extensions: mediaExt("thumbnail", "https://example.com/thumb.jpg", "", ""),
			},
			expected: "https://example.com/thumb.jpg",
		},
		{
			name: "Img tag in content",
			item: &gofeed.Item{
				Content: `<p>Intro</p><img class="hero" src="https://example.com/inline.webp" alt="">`,
			},
			expected: "https://example.com/inline.webp",
		},
		{
			name: "Img tag in description with query string",
			item: &gofeed.Item{
				Description: `<img src='https://example.com/pic.jpeg?w=640'/>`,
			},
			expected: "https://example.com/pic.jpeg?w=640",
		},
		{
			name: "Img tag without image extension ignored",
			item: &gofeed.Item{
				Content: `<img src="https://example.com/tracker">`,
			},
			expected: "",
		},
		{
			name:     "No image anywhere",
			item:     &gofeed.Item{Title: "text only"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractImage(tt.item); got != tt.expected {
				t.Errorf("ExtractImage = %q, want %q", got, tt.expected)
			}
		})
	}
}
