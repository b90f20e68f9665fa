package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"guess-the-prompt/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultLimit = 10

var (
	// ErrUnavailable wraps transport failures talking to the store.
	ErrUnavailable = errors.New("leaderboard unavailable")
	// ErrRejected wraps non-2xx answers and submissions the store refused.
	ErrRejected = errors.New("leaderboard rejected request")
)

// Client submits and reads game results on the remote leaderboard store.
type Client struct {
	BaseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

// Submit posts a finished game's summary. Failures are returned to the caller.
func (c *Client) Submit(ctx context.Context, s domain.Summary) (domain.SubmitAck, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return domain.SubmitAck{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/submit", bytes.NewReader(b))
	if err != nil {
		return domain.SubmitAck{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.SubmitAck{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var ack domain.SubmitAck
	decodeErr := json.NewDecoder(resp.Body).Decode(&ack)
	if resp.StatusCode/100 != 2 {
		return ack, fmt.Errorf("%w: status %d %s", ErrRejected, resp.StatusCode, ack.Error)
	}
	if decodeErr != nil {
		return ack, fmt.Errorf("decode submit response: %w", decodeErr)
	}
	if !ack.Success {
		return ack, fmt.Errorf("%w: %s", ErrRejected, ack.Error)
	}
	log.Info().Str("name", s.Name).Int("score", s.Score).Msg("leaderboard submit")
	return ack, nil
}

// Top fetches the ranked list, best first.
func (c *Client) Top(ctx context.Context, limit int) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{"limit": []string{strconv.Itoa(limit)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/leaderboard?"+q.Encode(), nil)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return domain.Leaderboard{}, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	var out domain.Leaderboard
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	return out, nil
}
