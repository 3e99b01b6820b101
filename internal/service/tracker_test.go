package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempizhere/prowly/internal/geoip"
	"github.com/tempizhere/prowly/internal/models"
	"github.com/tempizhere/prowly/internal/repository"
	"go.uber.org/zap"
)

// fixedLocator всегда возвращает одну и ту же локацию
type fixedLocator struct {
	loc geoip.Location
	err error
}

func (f *fixedLocator) Locate(ctx context.Context, ip string) (geoip.Location, error) {
	return f.loc, f.err
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "cloudflare header wins",
			headers: map[string]string{"CF-Connecting-IP": "1.2.3.4", "X-Forwarded-For": "5.6.7.8", "X-Real-IP": "9.9.9.9"},
			want:    "1.2.3.4",
		},
		{
			name:    "first forwarded address",
			headers: map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1, 10.0.0.2"},
			want:    "5.6.7.8",
		},
		{
			name:    "forwarded with spaces",
			headers: map[string]string{"X-Forwarded-For": "  5.6.7.8 , 10.0.0.1"},
			want:    "5.6.7.8",
		},
		{
			name:    "real ip fallback",
			headers: map[string]string{"X-Real-IP": "9.9.9.9"},
			want:    "9.9.9.9",
		},
		{
			name:    "no headers",
			headers: map[string]string{},
			want:    "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(h))
		})
	}
}

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		wantDevice  string
		wantBrowser string
		wantOS      string
	}{
		{
			name:        "desktop chrome",
			ua:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantDevice:  "desktop",
			wantBrowser: "Chrome",
			wantOS:      "Windows",
		},
		{
			name:        "iphone safari",
			ua:          "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantDevice:  "mobile",
			wantBrowser: "Safari",
			wantOS:      "iOS",
		},
		{
			name:        "googlebot",
			ua:          "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			wantDevice:  "bot",
			wantBrowser: "Googlebot",
			wantOS:      "Unknown",
		},
		{
			name:        "empty user agent",
			ua:          "",
			wantDevice:  "desktop",
			wantBrowser: "Unknown",
			wantOS:      "Unknown",
		},
		{
			name:        "garbage user agent",
			ua:          "()()()",
			wantDevice:  "desktop",
			wantBrowser: "Unknown",
			wantOS:      "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, browser, os := parseUserAgent(tt.ua)
			assert.Equal(t, tt.wantDevice, device, "device type")
			assert.Equal(t, tt.wantBrowser, browser, "browser")
			assert.Equal(t, tt.wantOS, os, "OS")
		})
	}
}

func TestRecord(t *testing.T) {
	clicks := repository.NewMemoryClickRepository()
	locator := &fixedLocator{loc: geoip.Location{Country: "DE", City: "Berlin"}}
	tracker := NewTracker(clicks, locator, zap.NewNop())

	meta := models.RequestMeta{
		IPAddress: "93.184.216.34",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Referer:   "https://news.ycombinator.com/item?id=1",
	}

	// Тест 1: успешная запись с геолокацией
	err := tracker.Record(context.Background(), "link-1", meta)
	assert.NoError(t, err, "Record should not return error")

	recorded, err := clicks.ListByLink("link-1")
	require.NoError(t, err)
	require.Len(t, recorded, 1, "One click should be recorded")
	assert.Equal(t, "DE", recorded[0].Country)
	assert.Equal(t, "Berlin", recorded[0].City)
	assert.Equal(t, "desktop", recorded[0].DeviceType)
	assert.Equal(t, "Chrome", recorded[0].Browser)
	assert.Equal(t, meta.Referer, recorded[0].Referer)

	// Тест 2: сбой геолокации деградирует до Unknown
	tracker = NewTracker(clicks, &fixedLocator{err: geoip.ErrNoData}, zap.NewNop())
	err = tracker.Record(context.Background(), "link-2", meta)
	assert.NoError(t, err, "Geolocation failure should not fail the record")

	recorded, err = clicks.ListByLink("link-2")
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, "Unknown", recorded[0].Country)
	assert.Equal(t, "Unknown", recorded[0].City)
}

func TestTrack(t *testing.T) {
	clicks := repository.NewMemoryClickRepository()
	tracker := NewTracker(clicks, &fixedLocator{loc: geoip.Location{Country: "Local", City: "Local"}}, zap.NewNop())

	tracker.Track("link-1", models.RequestMeta{IPAddress: "127.0.0.1"})

	assert.Eventually(t, func() bool {
		count, err := clicks.CountByLink("link-1")
		return err == nil && count == 1
	}, time.Second, 10*time.Millisecond, "Track should record the click in the background")
}

func TestRequestMeta(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://localhost/abc123", nil)
	require.NoError(t, err)
	req.Header.Set("X-Real-IP", "9.9.9.9")
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Referer", "https://example.com")

	meta := RequestMeta(req)
	assert.Equal(t, "9.9.9.9", meta.IPAddress)
	assert.Equal(t, "curl/8.0", meta.UserAgent)
	assert.Equal(t, "https://example.com", meta.Referer)
}
