package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"stablechain/crypto"
	"stablechain/native/stablecoin"
)

// DefaultMaxFutureSkew tolerates publisher clocks running slightly ahead.
const DefaultMaxFutureSkew = 5 * time.Second

// targetDecimals matches stablecoin.Scale.
const targetDecimals = 9

// Options configures an Adapter.
type Options struct {
	// Now is the host clock; defaults to time.Now.
	Now func() time.Time
	// TrustedSigners, when non-empty, restricts accepted quotes to these
	// publishers. An empty set accepts unsigned quotes.
	TrustedSigners []crypto.Address
	MaxFutureSkew  time.Duration
}

// Adapter turns raw quotes from a Source into validated stablecoin quotes.
// Nothing is cached; every Fetch consults the source.
type Adapter struct {
	source  Source
	now     func() time.Time
	trusted map[[crypto.AddressLength]byte]struct{}
	skew    time.Duration
}

func NewAdapter(source Source, opts Options) *Adapter {
	a := &Adapter{source: source, now: opts.Now, skew: opts.MaxFutureSkew}
	if a.now == nil {
		a.now = time.Now
	}
	if a.skew <= 0 {
		a.skew = DefaultMaxFutureSkew
	}
	if len(opts.TrustedSigners) > 0 {
		a.trusted = make(map[[crypto.AddressLength]byte]struct{}, len(opts.TrustedSigners))
		for _, signer := range opts.TrustedSigners {
			var key [crypto.AddressLength]byte
			copy(key[:], signer.Bytes())
			a.trusted[key] = struct{}{}
		}
	}
	return a
}

// Fetch returns the latest quote for feedID after checking signer, sign,
// freshness and confidence, normalised to stablecoin.Scale.
func (a *Adapter) Fetch(ctx context.Context, feedID string, limits stablecoin.OracleLimits) (stablecoin.PriceQuote, error) {
	if a == nil || a.source == nil {
		return stablecoin.PriceQuote{}, fmt.Errorf("%w: no source configured", stablecoin.ErrOracleUnavailable)
	}
	raw, err := a.source.Latest(ctx, feedID)
	if err != nil {
		return stablecoin.PriceQuote{}, fmt.Errorf("%w: %w", stablecoin.ErrOracleUnavailable, err)
	}
	if normaliseFeed(raw.FeedID) != normaliseFeed(feedID) {
		return stablecoin.PriceQuote{}, fmt.Errorf("%w: source returned %q for %q", stablecoin.ErrFeedMismatch, raw.FeedID, feedID)
	}
	signer, err := a.verifySigner(raw)
	if err != nil {
		return stablecoin.PriceQuote{}, err
	}
	if raw.Price <= 0 {
		return stablecoin.PriceQuote{}, fmt.Errorf("%w: non-positive price %d", stablecoin.ErrInvalidPrice, raw.Price)
	}
	now := a.now()
	published := time.Unix(raw.PublishTime, 0).UTC()
	if published.Sub(now) > a.skew {
		return stablecoin.PriceQuote{}, fmt.Errorf("%w: published %s in the future", stablecoin.ErrInvalidPrice, published.Sub(now))
	}
	if age := now.Sub(published); age > limits.MaxStaleness {
		return stablecoin.PriceQuote{}, fmt.Errorf("%w: age %s exceeds %s", stablecoin.ErrStalePrice, age, limits.MaxStaleness)
	}
	price, err := normalise(uint64(raw.Price), raw.Exponent, "price")
	if err != nil {
		return stablecoin.PriceQuote{}, err
	}
	if price == 0 {
		return stablecoin.PriceQuote{}, fmt.Errorf("%w: price rounds to zero", stablecoin.ErrInvalidPrice)
	}
	conf, err := normalise(raw.Confidence, raw.Exponent, "confidence")
	if err != nil {
		return stablecoin.PriceQuote{}, err
	}
	if ConfidenceTooWide(price, conf, limits.MaxConfidenceBps) {
		return stablecoin.PriceQuote{}, fmt.Errorf("%w: conf %d on price %d", stablecoin.ErrLowConfidence, conf, price)
	}
	return stablecoin.PriceQuote{
		FeedID:      feedID,
		Price:       price,
		Confidence:  conf,
		PublishedAt: published,
		Signer:      signer,
	}, nil
}

func (a *Adapter) verifySigner(raw SignedQuote) (crypto.Address, error) {
	if len(a.trusted) == 0 && len(raw.Signature) == 0 {
		return crypto.Address{}, nil
	}
	signer, err := RecoverSigner(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %w", stablecoin.ErrUntrustedSigner, err)
	}
	if len(a.trusted) == 0 {
		return signer, nil
	}
	var key [crypto.AddressLength]byte
	copy(key[:], signer.Bytes())
	if _, ok := a.trusted[key]; !ok {
		return crypto.Address{}, fmt.Errorf("%w: %s", stablecoin.ErrUntrustedSigner, signer)
	}
	return signer, nil
}

// ConfidenceTooWide reports conf/price > maxBps/10000 without division.
func ConfidenceTooWide(price, conf, maxBps uint64) bool {
	lhs := new(uint256.Int).Mul(uint256.NewInt(conf), uint256.NewInt(stablecoin.BasisPoints))
	rhs := new(uint256.Int).Mul(uint256.NewInt(price), uint256.NewInt(maxBps))
	return lhs.Gt(rhs)
}

// normalise rescales value from 10^expo units to stablecoin.Scale units,
// flooring when precision is dropped.
func normalise(value uint64, expo int32, what string) (uint64, error) {
	shift := int64(targetDecimals) + int64(expo)
	if value == 0 {
		return 0, nil
	}
	switch {
	case shift == 0:
		return value, nil
	case shift > 0:
		// 10^20 alone exceeds 64 bits.
		if shift > 19 {
			return 0, fmt.Errorf("%w: %s exponent %d", stablecoin.ErrArithmeticOverflow, what, expo)
		}
		out, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(value), pow10(shift))
		if overflow || !out.IsUint64() {
			return 0, fmt.Errorf("%w: %s %d at exponent %d", stablecoin.ErrArithmeticOverflow, what, value, expo)
		}
		return out.Uint64(), nil
	default:
		if -shift > 19 {
			return 0, nil
		}
		return new(uint256.Int).Div(uint256.NewInt(value), pow10(-shift)).Uint64(), nil
	}
}

func pow10(n int64) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}
