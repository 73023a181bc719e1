// PathCache — LRU-кэш путей скачивания во внешнем хранилище с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "td_path_cache_hits_total",
		Help: "Общее количество попаданий в кэш путей скачивания.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "td_path_cache_misses_total",
		Help: "Общее количество промахов кэша путей скачивания.",
	})
)

// PathCache — кэш актуальных путей скачивания по дескриптору файла.
// Пути Telegram живут ограниченное время, поэтому TTL кэша должен быть
// меньше срока жизни пути.
type PathCache struct {
	cache *expirable.LRU[string, string]
}

// NewPathCache создаёт кэш с указанным максимальным размером и TTL.
func NewPathCache(maxSize int, ttl time.Duration) *PathCache {
	return &PathCache{cache: expirable.NewLRU[string, string](maxSize, nil, ttl)}
}

// Get возвращает путь по дескриптору файла.
// Возвращает (путь, true) при hit или ("", false) при miss.
func (c *PathCache) Get(handle string) (string, bool) {
	val, ok := c.cache.Get(handle)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return "", false
}

// Set добавляет или обновляет путь.
func (c *PathCache) Set(handle, path string) {
	c.cache.Add(handle, path)
}

// Delete удаляет путь (файл удалён или путь перестал работать).
func (c *PathCache) Delete(handle string) {
	c.cache.Remove(handle)
}
