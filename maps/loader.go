package maps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultSDKURL = "https://api.map.baidu.com/api?v=1.0&type=webgl"
	loadTimeout   = 10 * time.Second
)

// ErrMissingKey is returned when no map key is configured.
var ErrMissingKey = errors.New("未配置地图 API Key")

// Loader makes sure the map SDK script is reachable before a page injects
// it. Concurrent callers for the same key share one probe. Success is kept
// for the life of the process; a failure is not, so the next call retries.
type Loader struct {
	base   string
	client *http.Client
	group  singleflight.Group

	mu    sync.RWMutex
	ready map[string]string
}

func NewLoader(sdkURL string, client *http.Client) *Loader {
	if sdkURL == "" {
		sdkURL = DefaultSDKURL
	}
	if client == nil {
		client = &http.Client{Timeout: loadTimeout}
	}
	return &Loader{base: sdkURL, client: client, ready: map[string]string{}}
}

// ScriptURL is the SDK URL with the key attached as the ak parameter.
func (l *Loader) ScriptURL(key string) (string, error) {
	u, err := url.Parse(l.base)
	if err != nil {
		return "", fmt.Errorf("map sdk url: %w", err)
	}
	q := u.Query()
	q.Set("ak", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Load returns the script URL once the SDK answered for key.
func (l *Loader) Load(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}
	l.mu.RLock()
	script, ok := l.ready[key]
	l.mu.RUnlock()
	if ok {
		return script, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		// the probe outlives any single caller
		pctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		script, err := l.probe(pctx, key)
		if err != nil {
			log.Printf("⚠️ map sdk probe failed: %v", err)
			return "", err
		}
		l.mu.Lock()
		l.ready[key] = script
		l.mu.Unlock()
		log.Println("✅ map sdk ready")
		return script, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Ready reports whether key has already loaded.
func (l *Loader) Ready(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ready[key]
	return ok
}

func (l *Loader) probe(ctx context.Context, key string) (string, error) {
	script, err := l.ScriptURL(key)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, script, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("map sdk: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("map sdk: status %d", resp.StatusCode)
	}
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("map sdk: %w", err)
	}
	if n == 0 {
		return "", errors.New("map sdk: empty script")
	}
	return script, nil
}
