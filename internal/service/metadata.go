package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tempizhere/prowly/internal/models"
	"go.uber.org/zap"
)

// ErrFetchFailed возвращается, когда страницу не удалось получить
var ErrFetchFailed = errors.New("failed to fetch page")

// fetchTimeout ограничивает время получения страницы
const fetchTimeout = 10 * time.Second

// MetadataFetcher извлекает метаданные страницы для превью ссылки
type MetadataFetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewMetadataFetcher создаёт новый экземпляр MetadataFetcher
func NewMetadataFetcher(logger *zap.Logger) *MetadataFetcher {
	return &MetadataFetcher{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// absolutize переводит относительный адрес ресурса в абсолютный
func absolutize(resource, pageURL string) string {
	if resource == "" || strings.HasPrefix(resource, "http") {
		return resource
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return resource
	}
	if strings.HasPrefix(resource, "/") {
		return base.Scheme + "://" + base.Host + resource
	}
	return base.Scheme + "://" + base.Host + "/" + resource
}

// attrFirst возвращает первый непустой атрибут из перечисленных селекторов
func attrFirst(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if val, ok := doc.Find(sel).First().Attr(attr); ok && val != "" {
			return val
		}
	}
	return ""
}

// Fetch получает страницу и извлекает заголовок, описание, превью и favicon
func (f *MetadataFetcher) Fetch(ctx context.Context, pageURL string) (models.Metadata, error) {
	if !isValidURL(pageURL) {
		return models.Metadata{}, ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return models.Metadata{}, ErrFetchFailed
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ProwlyBot/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("Metadata fetch failed", zap.String("url", pageURL), zap.Error(err))
		return models.Metadata{}, ErrFetchFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Metadata{}, ErrFetchFailed
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return models.Metadata{}, ErrFetchFailed
	}

	title := attrFirst(doc, "content",
		`meta[property="og:title"]`,
		`meta[name="twitter:title"]`,
	)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	description := attrFirst(doc, "content",
		`meta[property="og:description"]`,
		`meta[name="twitter:description"]`,
		`meta[name="description"]`,
	)

	preview := attrFirst(doc, "content",
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[name="twitter:image"]`,
	)

	favicon := attrFirst(doc, "href",
		`link[rel="icon"]`,
		`link[rel="shortcut icon"]`,
		`link[rel="apple-touch-icon"]`,
	)

	return models.Metadata{
		PageTitle:       title,
		PageDescription: description,
		PreviewImageURL: absolutize(preview, pageURL),
		FaviconURL:      absolutize(favicon, pageURL),
	}, nil
}
