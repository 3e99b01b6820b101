// Package geoip определяет географию перехода по IP-адресу.
// Частные и loopback-адреса получают фиксированную псевдолокацию Local,
// публичные разрешаются через локальную базу GeoIP2 с запасным HTTP-сервисом.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

const (
	// UnknownLocation — значение для неопределённой страны или города
	UnknownLocation = "Unknown"
	// LocalLocation — псевдолокация для частных и loopback-адресов
	LocalLocation = "Local"
)

// ErrNoData возвращается, когда у локатора нет данных по адресу
var ErrNoData = errors.New("no geolocation data")

// Location представляет результат геолокации
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// Locator определяет интерфейс разрешения IP-адреса в локацию
type Locator interface {
	Locate(ctx context.Context, ip string) (Location, error)
}

// IsPrivate определяет, является ли адрес loopback или частным.
// Некорректный адрес считается частным, чтобы не ходить во внешние сервисы.
func IsPrivate(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast()
}

// FileLocator реализует Locator поверх локальной базы GeoIP2
type FileLocator struct {
	reader *geoip2.Reader
}

// NewFileLocator открывает базу GeoIP2 по указанному пути
func NewFileLocator(path string) (*FileLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileLocator{reader: reader}, nil
}

// Locate возвращает страну и город по IP из локальной базы
func (l *FileLocator) Locate(ctx context.Context, ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, ErrNoData
	}
	record, err := l.reader.City(parsed)
	if err != nil {
		return Location{}, err
	}
	if record.Country.IsoCode == "" {
		return Location{}, ErrNoData
	}
	city := record.City.Names["en"]
	if city == "" {
		city = UnknownLocation
	}
	return Location{Country: record.Country.IsoCode, City: city}, nil
}

// Close закрывает базу GeoIP2
func (l *FileLocator) Close() error {
	return l.reader.Close()
}

// HTTPLocator реализует Locator через внешний HTTP-сервис геолокации
// в формате ip-api.com: GET {base}/{ip}?fields=country,city
type HTTPLocator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLocator создаёт новый экземпляр HTTPLocator
func NewHTTPLocator(baseURL string) *HTTPLocator {
	return &HTTPLocator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Locate запрашивает страну и город у внешнего сервиса
func (l *HTTPLocator) Locate(ctx context.Context, ip string) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+ip+"?fields=country,city", nil)
	if err != nil {
		return Location{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, ErrNoData
	}

	var data Location
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Location{}, err
	}
	if data.Country == "" {
		return Location{}, ErrNoData
	}
	if data.City == "" {
		data.City = UnknownLocation
	}
	return data, nil
}

// ChainLocator реализует политику разрешения: частные адреса получают Local,
// публичные идут в локальную базу, затем во внешний сервис, иначе Unknown.
// Ошибки локаторов не выходят наружу, только логируются.
type ChainLocator struct {
	local  Locator
	remote Locator
	logger *zap.Logger
}

// NewChainLocator создаёт новый экземпляр ChainLocator.
// local и remote могут быть nil, тогда соответствующая ступень пропускается.
func NewChainLocator(local, remote Locator, logger *zap.Logger) *ChainLocator {
	return &ChainLocator{
		local:  local,
		remote: remote,
		logger: logger,
	}
}

// Locate возвращает локацию по IP, не возвращая ошибок
func (l *ChainLocator) Locate(ctx context.Context, ip string) (Location, error) {
	if IsPrivate(ip) {
		return Location{Country: LocalLocation, City: LocalLocation}, nil
	}

	if l.local != nil {
		loc, err := l.local.Locate(ctx, ip)
		if err == nil {
			return loc, nil
		}
		l.logger.Debug("Local geolocation failed", zap.String("ip", ip), zap.Error(err))
	}

	if l.remote != nil {
		loc, err := l.remote.Locate(ctx, ip)
		if err == nil {
			return loc, nil
		}
		l.logger.Debug("Remote geolocation failed", zap.String("ip", ip), zap.Error(err))
	}

	return Location{Country: UnknownLocation, City: UnknownLocation}, nil
}
