package oracle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stablechain/crypto"
	"stablechain/native/stablecoin"
)

const testFeed = stablecoin.DefaultPriceFeedID

var (
	testNow    = time.Unix(1_700_000_000, 0)
	testLimits = stablecoin.OracleLimits{MaxStaleness: 100 * time.Second, MaxConfidenceBps: 200}
)

func rawQuote() SignedQuote {
	// 150.00000000 with Pyth's usual -8 exponent.
	return SignedQuote{FeedID: testFeed, Price: 15_000_000_000, Confidence: 5_000_000, Exponent: -8, PublishTime: testNow.Unix() - 10}
}

func newTestAdapter(q SignedQuote, trusted ...crypto.Address) *Adapter {
	src := NewManualSource()
	src.Set(q)
	return NewAdapter(src, Options{Now: func() time.Time { return testNow }, TrustedSigners: trusted})
}

func TestAdapterNormalisesPrice(t *testing.T) {
	quote, err := newTestAdapter(rawQuote()).Fetch(context.Background(), testFeed, testLimits)
	require.NoError(t, err)
	require.Equal(t, uint64(150*stablecoin.Scale), quote.Price)
	require.Equal(t, uint64(50_000_000), quote.Confidence)
	require.Equal(t, testNow.Unix()-10, quote.PublishedAt.Unix())
	require.True(t, quote.Signer.IsZero())
}

func TestAdapterRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SignedQuote)
		want   error
	}{
		{"stale", func(q *SignedQuote) { q.PublishTime = testNow.Unix() - 101 }, stablecoin.ErrStalePrice},
		{"future", func(q *SignedQuote) { q.PublishTime = testNow.Unix() + 60 }, stablecoin.ErrInvalidPrice},
		{"zero price", func(q *SignedQuote) { q.Price = 0 }, stablecoin.ErrInvalidPrice},
		{"negative price", func(q *SignedQuote) { q.Price = -1 }, stablecoin.ErrInvalidPrice},
		{"wide confidence", func(q *SignedQuote) { q.Confidence = 400_000_000 }, stablecoin.ErrLowConfidence},
		{"exponent overflow", func(q *SignedQuote) { q.Exponent = 12 }, stablecoin.ErrArithmeticOverflow},
		{"rounds to zero", func(q *SignedQuote) { q.Price = 1; q.Exponent = -12 }, stablecoin.ErrInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := rawQuote()
			tc.mutate(&q)
			_, err := newTestAdapter(q).Fetch(context.Background(), testFeed, testLimits)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAdapterStalenessBoundary(t *testing.T) {
	q := rawQuote()
	q.PublishTime = testNow.Unix() - 100
	_, err := newTestAdapter(q).Fetch(context.Background(), testFeed, testLimits)
	require.NoError(t, err)
}

func TestAdapterUnavailable(t *testing.T) {
	adapter := NewAdapter(NewManualSource(), Options{Now: func() time.Time { return testNow }})
	_, err := adapter.Fetch(context.Background(), testFeed, testLimits)
	require.ErrorIs(t, err, stablecoin.ErrOracleUnavailable)
	require.ErrorIs(t, err, ErrQuoteNotFound)
	require.True(t, stablecoin.Retryable(err))
}

func TestAdapterTrustedSigners(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	signed, err := SignQuote(key, rawQuote())
	require.NoError(t, err)
	recovered, err := RecoverSigner(signed)
	require.NoError(t, err)
	require.True(t, recovered.Equal(key.PubKey().Address()))

	quote, err := newTestAdapter(signed, key.PubKey().Address()).Fetch(context.Background(), testFeed, testLimits)
	require.NoError(t, err)
	require.True(t, quote.Signer.Equal(key.PubKey().Address()))

	_, err = newTestAdapter(signed, other.PubKey().Address()).Fetch(context.Background(), testFeed, testLimits)
	require.ErrorIs(t, err, stablecoin.ErrUntrustedSigner)

	_, err = newTestAdapter(rawQuote(), key.PubKey().Address()).Fetch(context.Background(), testFeed, testLimits)
	require.ErrorIs(t, err, stablecoin.ErrUntrustedSigner)

	tampered := signed.Clone()
	tampered.Price++
	_, err = newTestAdapter(tampered, key.PubKey().Address()).Fetch(context.Background(), testFeed, testLimits)
	require.ErrorIs(t, err, stablecoin.ErrUntrustedSigner)
}

func TestAdapterMalformedSignatureWithoutTrustedSet(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signed, err := SignQuote(key, rawQuote())
	require.NoError(t, err)

	quote, err := newTestAdapter(signed).Fetch(context.Background(), testFeed, testLimits)
	require.NoError(t, err)
	require.True(t, quote.Signer.Equal(key.PubKey().Address()), "valid signatures are still attributed")

	garbled := rawQuote()
	garbled.Signature = []byte{0x01, 0x02, 0x03}
	_, err = newTestAdapter(garbled).Fetch(context.Background(), testFeed, testLimits)
	require.ErrorIs(t, err, stablecoin.ErrUntrustedSigner)
}

func TestCanonicalMessage(t *testing.T) {
	msg, err := CanonicalMessage(rawQuote())
	require.NoError(t, err)
	require.Equal(t, "STABLECHAIN_PRICE_V1|feed="+testFeed+"|price=15000000000|conf=5000000|expo=-8|ts=1699999990", msg)
}

func TestNormalise(t *testing.T) {
	v, err := normalise(12_345, -11, "price")
	require.NoError(t, err)
	require.Equal(t, uint64(123), v)
	v, err = normalise(7, 0, "price")
	require.NoError(t, err)
	require.Equal(t, uint64(7_000_000_000), v)
	_, err = normalise(19_000_000_000, 0, "price")
	require.ErrorIs(t, err, stablecoin.ErrArithmeticOverflow)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quote.json")
	require.NoError(t, WriteQuote(path, rawQuote()))
	q, err := NewFileSource(path).Latest(context.Background(), strings.ToUpper(testFeed))
	require.NoError(t, err)
	require.Equal(t, rawQuote().Price, q.Price)

	_, err = NewFileSource(path).Latest(context.Background(), "0x01")
	require.ErrorIs(t, err, ErrQuoteNotFound)
}

type stubDoer struct {
	status int
	body   string
	req    *http.Request
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.req = req
	return &http.Response{StatusCode: s.status, Body: io.NopCloser(strings.NewReader(s.body))}, nil
}

func TestHTTPSource(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"feed_id":"` + testFeed + `","price":15000000000,"conf":5000000,"expo":-8,"publish_time":1699999990}`}
	src := NewHTTPSource(doer, "https://prices.example/", "secret", 10)
	q, err := src.Latest(context.Background(), testFeed)
	require.NoError(t, err)
	require.Equal(t, int64(15_000_000_000), q.Price)
	require.Equal(t, "/v1/quotes/latest", doer.req.URL.Path)
	require.Equal(t, testFeed, doer.req.URL.Query().Get("feed_id"))
	require.Equal(t, "secret", doer.req.Header.Get("x-api-key"))

	doer.status = http.StatusNotFound
	_, err = src.Latest(context.Background(), testFeed)
	require.True(t, errors.Is(err, ErrQuoteNotFound))

	doer.status = http.StatusBadGateway
	_, err = src.Latest(context.Background(), testFeed)
	require.Error(t, err)
}

func TestHTTPSourceHonoursCancellation(t *testing.T) {
	src := NewHTTPSource(&stubDoer{status: http.StatusOK, body: "{}"}, "https://prices.example", "", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Latest(ctx, testFeed)
	require.Error(t, err)
}

func TestHTTPSourceAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("feed_id") != testFeed {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"feed_id":"`+testFeed+`","price":15000000000,"conf":5000000,"expo":-8,"publish_time":1699999990}`)
	}))
	defer server.Close()

	src := NewHTTPSource(NewInstrumentedClient(time.Second), server.URL, "", 0)
	adapter := NewAdapter(src, Options{Now: func() time.Time { return testNow }})
	quote, err := adapter.Fetch(context.Background(), testFeed, testLimits)
	require.NoError(t, err)
	require.Equal(t, uint64(150*stablecoin.Scale), quote.Price)

	_, err = adapter.Fetch(context.Background(), "other-feed", testLimits)
	require.ErrorIs(t, err, stablecoin.ErrOracleUnavailable)
}
