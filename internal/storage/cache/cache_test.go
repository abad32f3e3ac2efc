package cache

import "house-ai/pkg/config"

func cacheConfig(typ string) config.CacheConfig {
	return config.CacheConfig{Type: typ}
}
