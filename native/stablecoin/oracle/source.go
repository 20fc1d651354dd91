package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrQuoteNotFound is returned by sources holding no quote for a feed.
var ErrQuoteNotFound = errors.New("oracle: quote not found")

// SignedQuote is the raw oracle payload. Price and Confidence are integers
// scaled by 10^Exponent, Pyth style.
type SignedQuote struct {
	FeedID      string        `json:"feed_id"`
	Price       int64         `json:"price"`
	Confidence  uint64        `json:"conf"`
	Exponent    int32         `json:"expo"`
	PublishTime int64         `json:"publish_time"`
	Signature   hexutil.Bytes `json:"signature,omitempty"`
}

// Clone returns a copy that shares no memory with q.
func (q SignedQuote) Clone() SignedQuote {
	clone := q
	if len(q.Signature) > 0 {
		clone.Signature = append(hexutil.Bytes(nil), q.Signature...)
	}
	return clone
}

// Source yields the latest raw quote for a feed.
type Source interface {
	Latest(ctx context.Context, feedID string) (SignedQuote, error)
}

func normaliseFeed(feedID string) string {
	return strings.ToLower(strings.TrimSpace(feedID))
}

// ManualSource is an in-memory source used by tests and for manual overrides
// during incident response.
type ManualSource struct {
	mu     sync.RWMutex
	quotes map[string]SignedQuote
}

func NewManualSource() *ManualSource {
	return &ManualSource{quotes: make(map[string]SignedQuote)}
}

// Set stores q as the latest quote for its feed.
func (m *ManualSource) Set(q SignedQuote) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.quotes[normaliseFeed(q.FeedID)] = q.Clone()
	m.mu.Unlock()
}

func (m *ManualSource) Latest(_ context.Context, feedID string) (SignedQuote, error) {
	if m == nil {
		return SignedQuote{}, fmt.Errorf("manual source not configured")
	}
	m.mu.RLock()
	q, ok := m.quotes[normaliseFeed(feedID)]
	m.mu.RUnlock()
	if !ok {
		return SignedQuote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, feedID)
	}
	return q.Clone(), nil
}

// FileSource reads quotes from a JSON file holding either a single quote or an
// array of quotes. The file is re-read on every call.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Latest(_ context.Context, feedID string) (SignedQuote, error) {
	quotes, err := ReadQuotes(f.path)
	if err != nil {
		return SignedQuote{}, err
	}
	want := normaliseFeed(feedID)
	for _, q := range quotes {
		if normaliseFeed(q.FeedID) == want {
			return q, nil
		}
	}
	return SignedQuote{}, fmt.Errorf("%w: %s in %s", ErrQuoteNotFound, feedID, f.path)
}

// ReadQuotes decodes a quote file.
func ReadQuotes(path string) ([]SignedQuote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quote file: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var quotes []SignedQuote
		if err := json.Unmarshal(data, &quotes); err != nil {
			return nil, fmt.Errorf("decode quote file: %w", err)
		}
		return quotes, nil
	}
	var q SignedQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode quote file: %w", err)
	}
	return []SignedQuote{q}, nil
}

// WriteQuote stores q as an indented JSON file.
func WriteQuote(path string, q SignedQuote) error {
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
