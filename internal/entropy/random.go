// Package entropy derives the per-component random streams of a run from one
// run seed, and draws fresh run seeds when none is given. Fresh seeds come
// from random.org when an API key is configured, else from crypto/rand.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand"
	"net/http"
	"time"
)

// Stream identifies an independent random stream within a run.
type Stream int64

// Offsets added to the run seed, one per consumer.
const (
	StreamMarket     Stream = 100
	StreamPopulation Stream = 200
	StreamAttention  Stream = 400
)

// Seed returns the seed of stream s for a run.
func Seed(runSeed int64, s Stream) int64 {
	return runSeed + int64(s)
}

// New returns a generator for stream s of a run.
func New(runSeed int64, s Stream) *mrand.Rand {
	return mrand.New(mrand.NewSource(Seed(runSeed, s)))
}

// Client draws run seeds from random.org.
type Client struct {
	apiKey string
	client *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// RunSeed returns a fresh positive run seed. Falls back to crypto/rand when
// the client is nil or the API is unavailable.
func (c *Client) RunSeed() int64 {
	if c.Enabled() {
		seed, err := c.fetch()
		if err == nil {
			return seed
		}
		slog.Debug("random.org seed failed, using crypto/rand", "error", err)
	}
	return CryptoSeed()
}

func (c *Client) fetch() (int64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      1,
			"min":    1,
			"max":    1_000_000_000,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	resp, err := c.client.Post("https://api.random.org/json-rpc/4/invoke", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	return parseSeed(respBody)
}

func parseSeed(body []byte) (int64, error) {
	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("api: %s", result.Error.Message)
	}
	if len(result.Result.Random.Data) == 0 {
		return 0, fmt.Errorf("api: empty data")
	}
	return result.Result.Random.Data[0], nil
}

// CryptoSeed returns a positive seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano() & (1<<62 - 1)
	}
	n := int64(binary.LittleEndian.Uint64(buf[:]) >> 2)
	if n == 0 {
		n = 1
	}
	return n
}
