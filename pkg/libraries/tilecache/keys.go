package tilecache

import (
	"fmt"
	"github.com/cespare/xxhash/v2"
	"net/url"
	"strconv"
	"strings"
)

const (
	keyPrefix       = "tile"
	rasterKeyPrefix = "raster"
)

// Key derives the cache key of one encoded tile. Params are normalized
// (sorted, empty values dropped) and hashed so equivalent query strings share
// a key.
func Key(layer string, z, x, y int, format string, params url.Values) string {
	return fmt.Sprintf("%s%d/%d/%d.%s:p=%016x",
		layerPrefix(layer), z, x, y, strings.ToLower(format), xxhash.Sum64String(normalizeParams(params)))
}

// RasterKey derives the cache key of one rendered raster map tile. Raster keys
// live outside the vector layer namespace, so PurgeLayer never drops them.
func RasterKey(id int64, z, x, y int, format string, params url.Values) string {
	return fmt.Sprintf("%s:%s:%d/%d/%d.%s:p=%016x",
		rasterKeyPrefix, strconv.FormatInt(id, 10), z, x, y, strings.ToLower(format), xxhash.Sum64String(normalizeParams(params)))
}

// layerPrefix is shared by all keys of a layer so they can be purged together.
func layerPrefix(layer string) string {
	return keyPrefix + ":" + sanitize(strings.TrimSpace(layer)) + ":"
}

func normalizeParams(params url.Values) string {
	clean := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v = strings.TrimSpace(v); v != "" {
				clean.Add(strings.ToLower(k), v)
			}
		}
	}
	// Encode sorts by key
	return clean.Encode()
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
