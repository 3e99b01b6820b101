package service

import (
	"net/url"
	"sort"
	"time"

	"github.com/tempizhere/prowly/internal/models"
	"github.com/tempizhere/prowly/internal/repository"
	"go.uber.org/zap"
)

const (
	// defaultWindowDays — окно большинства разбивок аналитики
	defaultWindowDays = 30
	topReferrersLimit = 10
	topCountriesLimit = 10
	topDevicesLimit   = 5
	recentClicksLimit = 50
	// directBucket — корзина для переходов без разборного referer
	directBucket = "Direct"
)

// Analytics вычисляет агрегированную статистику переходов по ссылке
type Analytics struct {
	clicks repository.ClickRepository
	logger *zap.Logger
}

// NewAnalytics создаёт новый экземпляр Analytics
func NewAnalytics(clicks repository.ClickRepository, logger *zap.Logger) *Analytics {
	return &Analytics{
		clicks: clicks,
		logger: logger,
	}
}

// referrerHost возвращает хост referer или корзину Direct
func referrerHost(referer string) string {
	if referer == "" {
		return directBucket
	}
	u, err := url.Parse(referer)
	if err != nil || u.Hostname() == "" {
		return directBucket
	}
	return u.Hostname()
}

// topN превращает счётчики в топ по убыванию количества.
// Сортировка стабильная: при равенстве сохраняется порядок первого появления.
func topN(counts map[string]int, order []string, limit int) []models.CountRow {
	rows := make([]models.CountRow, 0, len(order))
	for _, value := range order {
		rows = append(rows, models.CountRow{Value: value, Count: counts[value]})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Count > rows[j].Count
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Summarize вычисляет сводку переходов по ссылке.
// Общее и уникальное количество считаются за всё время, остальные
// разбивки — только внутри скользящего окна windowDays.
func (a *Analytics) Summarize(linkID string, windowDays int) (models.Summary, error) {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	clicks, err := a.clicks.ListByLink(linkID)
	if err != nil {
		return models.Summary{}, err
	}

	uniqueIPs := make(map[string]struct{})
	for _, c := range clicks {
		uniqueIPs[c.IPAddress] = struct{}{}
	}

	windowStart := time.Now().AddDate(0, 0, -windowDays)
	var windowed []models.Click
	for _, c := range clicks {
		if !c.CreatedAt.Before(windowStart) {
			windowed = append(windowed, c)
		}
	}

	byDay := make(map[string]int)
	referrers := make(map[string]int)
	countries := make(map[string]int)
	devices := make(map[string]int)
	var referrerOrder, countryOrder, deviceOrder []string

	for _, c := range windowed {
		byDay[c.CreatedAt.Format("2006-01-02")]++

		host := referrerHost(c.Referer)
		if _, seen := referrers[host]; !seen {
			referrerOrder = append(referrerOrder, host)
		}
		referrers[host]++

		country := c.Country
		if country == "" {
			country = "Unknown"
		}
		if _, seen := countries[country]; !seen {
			countryOrder = append(countryOrder, country)
		}
		countries[country]++

		device := c.DeviceType
		if device == "" {
			device = "Unknown"
		}
		if _, seen := devices[device]; !seen {
			deviceOrder = append(deviceOrder, device)
		}
		devices[device]++
	}

	recent := windowed
	if len(recent) > recentClicksLimit {
		recent = recent[:recentClicksLimit]
	}
	recentClicks := make([]models.RecentClick, 0, len(recent))
	for _, c := range recent {
		// Сырые IP и полный user-agent в выдачу не попадают
		recentClicks = append(recentClicks, models.RecentClick{
			CreatedAt:  c.CreatedAt,
			Country:    c.Country,
			Referer:    c.Referer,
			Browser:    c.Browser,
			DeviceType: c.DeviceType,
		})
	}

	return models.Summary{
		TotalClicks:  len(clicks),
		UniqueClicks: len(uniqueIPs),
		ClicksByDay:  byDay,
		TopReferrers: topN(referrers, referrerOrder, topReferrersLimit),
		TopCountries: topN(countries, countryOrder, topCountriesLimit),
		TopDevices:   topN(devices, deviceOrder, topDevicesLimit),
		RecentClicks: recentClicks,
	}, nil
}
