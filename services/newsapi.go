package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	appconfig "multibagger/config"
	"multibagger/models"
	"multibagger/observability"

	"github.com/go-resty/resty/v2"
)

const newsLookbackDays = 7

// NewsAPIService handles communication with NewsAPI.org
type NewsAPIService struct {
	client *resty.Client
	now    func() time.Time
}

// NewNewsAPIService creates a new NewsAPIService instance
func NewNewsAPIService(cfg *appconfig.Config) *NewsAPIService {
	client := newRestyClient("https://newsapi.org/v2")
	client.SetHeader("X-Api-Key", cfg.NewsAPI.APIKey)
	return &NewsAPIService{client: client, now: time.Now}
}

// NewsAPIResponse represents the response from NewsAPI
type NewsAPIResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// NewsQuery builds the search for Indian market coverage of a company.
func NewsQuery(name string) string {
	return fmt.Sprintf(`"%s" AND (India OR stock OR shares)`, name)
}

// GetNews returns the last week's English articles matching query, newest first.
func (s *NewsAPIService) GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	return WithCircuitBreaker(ctx, BreakerNewsAPI, func() ([]models.NewsArticle, error) {
		metrics := observability.GetMetrics()
		metrics.RecordExternalAPIRequest(BreakerNewsAPI, "everything")
		timer := metrics.NewTimer()

		var newsResp NewsAPIResponse
		err := getJSON(ctx, BreakerNewsAPI, s.client, "/everything", map[string]string{
			"q":        query,
			"language": "en",
			"sortBy":   "publishedAt",
			"pageSize": strconv.Itoa(limit),
			"from":     s.now().AddDate(0, 0, -newsLookbackDays).Format("2006-01-02"),
		}, &newsResp)

		timer.ObserveExternalAPI(BreakerNewsAPI, "everything")
		if err != nil {
			metrics.RecordExternalAPIError(BreakerNewsAPI, "everything", categorizeAPIError(err))
			return nil, err
		}
		if newsResp.Status != "" && newsResp.Status != "ok" {
			return nil, fmt.Errorf("NewsAPI returned status %q", newsResp.Status)
		}

		articles := make([]models.NewsArticle, 0, len(newsResp.Articles))
		for _, item := range newsResp.Articles {
			publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
			if err != nil {
				observability.Debug("unparseable article timestamp, using current time",
					"published_at", item.PublishedAt)
				publishedAt = s.now()
			}

			articles = append(articles, models.NewsArticle{
				Title:       item.Title,
				Description: item.Description,
				URL:         item.URL,
				Source:      item.Source.Name,
				Author:      item.Author,
				ImageURL:    item.URLToImage,
				PublishedAt: publishedAt,
			})
		}
		return articles, nil
	})
}
