package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"guess-the-prompt/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds one evaluation, image download included.
const DefaultTimeout = 45 * time.Second

const (
	ReasonTimeout = "Request timeout"
	ReasonNetwork = "Network connection failed"
)

var errInvalidResponse = errors.New("invalid response format from evaluator")

// Client talks to the external prompt evaluator.
type Client struct {
	BaseURL string
	images  ImageSource
	timeout time.Duration
	http    *http.Client
}

func New(baseURL string, images ImageSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		images:  images,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// Evaluate scores prompt against the image. It never fails: every error is
// folded into a ScoreResult with Success=false and Score "0".
func (c *Client) Evaluate(ctx context.Context, prompt, imageRef string, imageID int) domain.ScoreResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.evaluate(ctx, prompt, imageRef, imageID)
	if err != nil {
		reason := classify(ctx, err)
		log.Warn().Err(err).Int("image_id", imageID).Str("reason", reason).Dur("dur", time.Since(start)).Msg("evaluation failed")
		return domain.FailedResult(prompt, imageID, reason)
	}
	log.Info().Int("image_id", imageID).Str("score", res.Score).Dur("dur", time.Since(start)).Msg("evaluation completed")
	return res
}

func (c *Client) evaluate(ctx context.Context, prompt, imageRef string, imageID int) (domain.ScoreResult, error) {
	img, err := c.images.Image(ctx, imageRef)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("prompt", prompt); err != nil {
		return domain.ScoreResult{}, err
	}
	fw, err := mw.CreateFormFile("image", fmt.Sprintf("image_%d.jpg", imageID))
	if err != nil {
		return domain.ScoreResult{}, err
	}
	if _, err := fw.Write(img); err != nil {
		return domain.ScoreResult{}, err
	}
	if err := mw.Close(); err != nil {
		return domain.ScoreResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/evaluate", &body)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return domain.ScoreResult{}, fmt.Errorf("evaluator status %d", resp.StatusCode)
	}

	var out struct {
		Prompt string          `json:"prompt"`
		Score  json.RawMessage `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ScoreResult{}, err
	}
	score, ok := scoreText(out.Score)
	if !ok {
		return domain.ScoreResult{}, errInvalidResponse
	}
	if out.Prompt == "" {
		out.Prompt = prompt
	}
	return domain.ScoreResult{
		Prompt:  out.Prompt,
		Score:   score,
		ImageID: imageID,
		Success: true,
	}, nil
}

// Health reports whether the evaluator answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("evaluator health status %d", resp.StatusCode)
	}
	return nil
}

// scoreText coerces the evaluator's score (number or string) to text.
func scoreText(raw json.RawMessage) (string, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", false
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

func classify(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}
	return err.Error()
}
