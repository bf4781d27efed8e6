// Package serialization provides masking of sensitive keys in the
// map-shaped values the governance core hands out (connection configs,
// event metadata) before they reach logs or API responses.
package serialization

import (
	"sync"
)

// defaultMaskedKeys are always masked regardless of configuration.
var defaultMaskedKeys = []string{"api_key", "apikey", "token", "password", "secret", "credentials"}

var (
	maskedKeysMu sync.RWMutex
	maskedKeys   = append([]string(nil), defaultMaskedKeys...)
)

// SetMaskedKeys replaces the configured list of keys to mask, keeping the
// built-in defaults.
func SetMaskedKeys(keys []string) {
	maskedKeysMu.Lock()
	defer maskedKeysMu.Unlock()
	maskedKeys = append(append([]string(nil), defaultMaskedKeys...), keys...)
}

// MaskedMap returns a copy of the given map with sensitive values replaced
// by a placeholder. The input map is not modified.
func MaskedMap(values map[string]interface{}) map[string]interface{} {
	if len(values) == 0 {
		return map[string]interface{}{}
	}

	masked := make(map[string]interface{}, len(values))
	for k, v := range values {
		masked[k] = v
	}

	maskedKeysMu.RLock()
	defer maskedKeysMu.RUnlock()
	for _, key := range maskedKeys {
		if _, ok := masked[key]; ok {
			masked[key] = "********"
		}
	}
	return masked
}
