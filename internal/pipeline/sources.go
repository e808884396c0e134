package pipeline

import "github.com/grantbridge/newsfeed/internal/models"

// DefaultFeedSources is the static category-to-feeds mapping used when no
// feed_sources table is populated.
func DefaultFeedSources() []models.FeedSource {
	return []models.FeedSource{
		{Name: "Philanthropy News Digest", URL: "https://philanthropynewsdigest.org/feeds/news", Category: models.CategoryGeneral, Enabled: true},
		{Name: "Nonprofit Quarterly", URL: "https://nonprofitquarterly.org/feed/", Category: models.CategoryGeneral, Enabled: true},

		{Name: "Candid Foundation News", URL: "https://philanthropynewsdigest.org/feeds/rfps", Category: models.CategoryFunder, Enabled: true},
		{Name: "Inside Philanthropy", URL: "https://www.insidephilanthropy.com/home?format=rss", Category: models.CategoryFunder, Enabled: true},

		{Name: "NonProfit PRO", URL: "https://www.nonprofitpro.com/feed/", Category: models.CategoryNonprofit, Enabled: true},
		{Name: "Chronicle of Philanthropy", URL: "https://www.philanthropy.com/feed", Category: models.CategoryNonprofit, Enabled: true},

		{Name: "CalMatters", URL: "https://calmatters.org/feed/", Category: models.CategoryCalifornia, Enabled: true},
		{Name: "LAist", URL: "https://laist.com/index.rss", Category: models.CategoryCalifornia, Enabled: true},
	}
}
