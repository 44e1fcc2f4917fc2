package matcher

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoised path decisions.
const DefaultCacheSize = 1024

// Service implements the Matcher interface
type Service struct {
	mutex          sync.RWMutex
	patterns       []string
	whitelistedIPs map[string]bool // Map for O(1) lookup
	cache          *lru.Cache[string, bool]
}

// NewService creates a Service seeded with DefaultPatterns and DefaultWhitelist.
func NewService() *Service {
	s, _ := NewServiceWithOptions(defaultPatterns, defaultWhitelist, DefaultCacheSize)
	return s
}

// NewServiceWithOptions creates a Service with explicit patterns and whitelist.
// A cacheSize <= 0 disables the decision cache.
func NewServiceWithOptions(patterns, whitelist []string, cacheSize int) (*Service, error) {
	service := &Service{
		whitelistedIPs: make(map[string]bool),
	}

	if cacheSize > 0 {
		cache, err := lru.New[string, bool](cacheSize)
		if err != nil {
			return nil, err
		}
		service.cache = cache
	}

	service.AddPatterns(patterns...)
	service.AddWhitelist(whitelist...)
	return service, nil
}

// AddPatterns adds malicious path prefixes and invalidates cached decisions.
func (s *Service) AddPatterns(patterns ...string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			s.patterns = append(s.patterns, p)
		}
	}
	if s.cache != nil {
		s.cache.Purge()
	}
}

// AddWhitelist adds identifiers that are never blocked.
func (s *Service) AddWhitelist(ips ...string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, ip := range ips {
		if ip = strings.TrimSpace(ip); ip != "" {
			s.whitelistedIPs[ip] = true
		}
	}
}

// IsMalicious checks if a path is malicious
func (s *Service) IsMalicious(path string) bool {
	normalizedPath := strings.ToLower(path)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.cache != nil {
		if hit, ok := s.cache.Get(normalizedPath); ok {
			return hit
		}
	}

	malicious := false
	for _, pattern := range s.patterns {
		if strings.HasPrefix(normalizedPath, pattern) {
			malicious = true
			break
		}
	}

	if s.cache != nil {
		s.cache.Add(normalizedPath, malicious)
	}
	return malicious
}

// IsWhitelisted checks if an IP is in the whitelist
func (s *Service) IsWhitelisted(ip string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.whitelistedIPs[ip]
}

// CacheLen returns the number of memoised path decisions.
func (s *Service) CacheLen() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

var _ Matcher = (*Service)(nil)
