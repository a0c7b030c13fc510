package nginx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// cacheKeyMarker precedes the cache key inside an nginx cache file
// header. The key itself is the proxy_cache_key value the generator
// emits: "<sessionID>:u=<urlpath>".
const cacheKeyMarker = "\nKEY: "

// cacheHeadSize bounds how much of each cache file is read while
// looking for the key; the header always fits well within it.
const cacheHeadSize = 4096

// PurgeCache implements hosting.CachePurger by scanning the on-disk
// cache for entries whose key belongs to sessionID, removing them, and
// signalling a reload so nginx drops its in-memory references. A nil
// pattern removes every entry of the session; otherwise only entries
// whose URL path matches.
func (c *Controller) PurgeCache(ctx context.Context, sessionID string, pattern *regexp.Regexp) (int, error) {
	if c.cfg.CacheDir == "" {
		return 0, nil
	}

	purged := 0
	err := filepath.WalkDir(c.cfg.CacheDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		key, ok, err := readCacheKey(path)
		if err != nil || !ok {
			// Unreadable or keyless files are skipped; the cache may hold
			// temp files nginx is still writing.
			return nil
		}
		owner, urlpath, ok := splitCacheKey(key)
		if !ok || owner != sessionID {
			return nil
		}
		if pattern != nil && !pattern.MatchString(urlpath) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove cache entry %q: %w", path, err)
		}
		c.logger.Debug("purged cache entry", "session_id", sessionID, "path", urlpath)
		purged++
		return nil
	})
	if err != nil {
		return purged, err
	}

	if purged > 0 {
		if rerr := c.Reload(ctx); rerr != nil && rerr != ErrNotRunning {
			c.logger.Warn("reload after purge failed", "error", rerr)
		}
	}
	return purged, nil
}

// readCacheKey extracts the cache key from the header of one cache
// file. ok is false when the file carries no key marker.
func readCacheKey(path string) (key string, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	head := make([]byte, cacheHeadSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", false, err
	}
	head = head[:n]

	i := bytes.Index(head, []byte(cacheKeyMarker))
	if i < 0 {
		return "", false, nil
	}
	rest := head[i+len(cacheKeyMarker):]
	end := bytes.IndexByte(rest, '\n')
	if end < 0 {
		end = len(rest)
	}
	return string(rest[:end]), true, nil
}

// splitCacheKey splits "<sessionID>:u=<urlpath>" into its parts.
func splitCacheKey(key string) (sessionID, urlpath string, ok bool) {
	i := strings.Index(key, ":u=")
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+len(":u="):], true
}
