package slotstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kevcor13/client-interface1/internal/models"
)

// HTTPConfig configures the generic HTTP slot store client.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	// Prefiltered reports that GET /slots only returns bookable rows.
	Prefiltered bool
	// ConditionalUpdates makes Patch send an expected-status
	// precondition; stores that honor it answer 409/412 when the slot
	// was taken in the meantime.
	ConditionalUpdates bool
	Timeout            time.Duration
}

// HTTPStore talks to a REST-ish slot store exposing GET /slots and
// PATCH /slots/{id}.
type HTTPStore struct {
	cfg        HTTPConfig
	httpClient *http.Client
	logger     zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewHTTPStore constructs a client with the given configuration.
func NewHTTPStore(cfg HTTPConfig, logger zerolog.Logger) *HTTPStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPStore{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "slotstore").Logger(),
	}
}

// UseRedisCache configures optional Redis caching for List. The TTL
// should stay well under the poll interval so sessions never book from
// a view older than one refresh.
func (s *HTTPStore) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	s.redis = redisClient
	s.cacheTTL = ttl
}

// Prefiltered implements Store.
func (s *HTTPStore) Prefiltered() bool { return s.cfg.Prefiltered }

// List fetches all slot rows and decodes them at the strict boundary.
func (s *HTTPStore) List(ctx context.Context) ([]models.Slot, error) {
	const cacheKey = "slots:list"
	if data, ok := s.readCache(ctx, cacheKey); ok {
		slots, _, err := decodeSlots(data)
		if err == nil {
			return slots, nil
		}
	}

	endpoint := fmt.Sprintf("%s/slots", s.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	s.addHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d", ErrNetwork, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	slots, dropped, err := decodeSlots(data)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("dropped malformed slot rows")
	}

	s.writeCache(ctx, cacheKey, data)
	return slots, nil
}

// Patch marks the slot as booked and attaches the booker identity.
func (s *HTTPStore) Patch(ctx context.Context, id string, p Patch) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/slots/%s", s.cfg.BaseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.addHeaders(req)
	if s.cfg.ConditionalUpdates {
		req.Header.Set("X-Expected-Status", string(models.SlotAvailable))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		s.invalidateCache(ctx)
		return nil
	case s.cfg.ConditionalUpdates && (resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusPreconditionFailed):
		return fmt.Errorf("%w (http %d)", ErrConflict, resp.StatusCode)
	default:
		return fmt.Errorf("%w: http %d", ErrRejected, resp.StatusCode)
	}
}

// Ping checks store reachability for readiness probes.
func (s *HTTPStore) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/slots", s.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	s.addHeaders(req)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: http %d", ErrNetwork, resp.StatusCode)
	}
	return nil
}

func (s *HTTPStore) addHeaders(req *http.Request) {
	if s.cfg.APIKey != "" {
		req.Header.Set("x-api-key", s.cfg.APIKey)
	}
}

func (s *HTTPStore) readCache(ctx context.Context, key string) ([]byte, bool) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	val, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (s *HTTPStore) writeCache(ctx context.Context, key string, data []byte) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}
	_ = s.redis.Set(ctx, key, data, s.cacheTTL).Err()
}

func (s *HTTPStore) invalidateCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	_ = s.redis.Del(ctx, "slots:list").Err()
}
