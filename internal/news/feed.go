// Package news implements NewsPipeline: concurrent feed fetch,
// dedupe, filter, cooldown-suppression, emergency scanning, and
// sentiment scoring. Grounded on the exchange client's concurrent-
// fetch/merge shape (parallel per-endpoint calls joined with a
// WaitGroup) and its errs-based failure policy, generalized from one
// exchange's REST calls to N independently-failing
// feed sources.
package news

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"tradingengine/internal/model"

	"github.com/rs/zerolog/log"
)

// FeedConfig describes one configured news/RSS source.
type FeedConfig struct {
	Name              string
	URL               string
	SourceReliability float64
	SourceWeight      float64
}

// rawItem is a fetched item before normalization into model.NewsItem.
type rawItem struct {
	feed        FeedConfig
	title       string
	description string
	publishedAt time.Time
}

const maxItemsPerSource = 10

// rssFeed is the minimal RSS 2.0 shape this package parses; feeds that
// don't fit this shape are skipped with a logged warning rather than
// failing the whole fetch.
type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// HTTPClient is the narrow port feed fetching calls through, so this
// package can be tested without a live network.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// fetchAll fetches every configured feed concurrently, capping items
// per source at maxItemsPerSource (step 1).
func fetchAll(ctx context.Context, client HTTPClient, feeds []FeedConfig) []rawItem {
	var (
		mu  sync.Mutex
		all []rawItem
		wg  sync.WaitGroup
	)
	for _, f := range feeds {
		wg.Add(1)
		go func(feed FeedConfig) {
			defer wg.Done()
			items, err := fetchOne(ctx, client, feed)
			if err != nil {
				log.Warn().Err(err).Str("feed", feed.Name).Msg("news: fetch failed")
				return
			}
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
		}(f)
	}
	wg.Wait()
	return all
}

func fetchOne(ctx context.Context, client HTTPClient, feed FeedConfig) ([]rawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("news: feed %s returned status %d", feed.Name, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed rssFeed
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("news: parsing feed %s: %w", feed.Name, err)
	}

	n := len(parsed.Channel.Items)
	if n > maxItemsPerSource {
		n = maxItemsPerSource
	}
	out := make([]rawItem, 0, n)
	for _, it := range parsed.Channel.Items[:n] {
		published := parsePubDate(it.PubDate)
		out = append(out, rawItem{feed: feed, title: strings.TrimSpace(it.Title), description: strings.TrimSpace(it.Description), publishedAt: published})
	}
	return out, nil
}

func parsePubDate(s string) time.Time {
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC3339}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func toNewsItem(r rawItem, now time.Time) model.NewsItem {
	published := r.publishedAt
	if published.IsZero() {
		published = now
	}
	idSum := sha256.Sum256([]byte(strings.ToLower(r.title) + "|" + r.feed.Name))
	return model.NewsItem{
		ID:                hex.EncodeToString(idSum[:]),
		Source:            r.feed.Name,
		SourceReliability: r.feed.SourceReliability,
		SourceWeight:      r.feed.SourceWeight,
		Title:             r.title,
		Description:       r.description,
		PublishedAt:       published,
		ReceivedAt:        now,
	}
}

// sortByPublished orders newest first, used before capping to the
// top-N items the scoring step sends to an LLM port.
func sortByPublished(items []model.NewsItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
}
