package oracle

import (
	"fmt"
	"strconv"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stablechain/crypto"
)

// QuoteDomainV1 prefixes every signed quote message.
const QuoteDomainV1 = "STABLECHAIN_PRICE_V1"

// CanonicalMessage renders the message a publisher signs for q.
func CanonicalMessage(q SignedQuote) (string, error) {
	feed := normaliseFeed(q.FeedID)
	if feed == "" {
		return "", fmt.Errorf("quote: feed id required")
	}
	if q.PublishTime <= 0 {
		return "", fmt.Errorf("quote: publish time required")
	}
	var b strings.Builder
	b.WriteString(QuoteDomainV1)
	b.WriteString("|feed=")
	b.WriteString(feed)
	b.WriteString("|price=")
	b.WriteString(strconv.FormatInt(q.Price, 10))
	b.WriteString("|conf=")
	b.WriteString(strconv.FormatUint(q.Confidence, 10))
	b.WriteString("|expo=")
	b.WriteString(strconv.FormatInt(int64(q.Exponent), 10))
	b.WriteString("|ts=")
	b.WriteString(strconv.FormatInt(q.PublishTime, 10))
	return b.String(), nil
}

// Hash is the keccak256 digest of the canonical message.
func Hash(q SignedQuote) ([]byte, error) {
	msg, err := CanonicalMessage(q)
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256([]byte(msg)), nil
}

// SignQuote returns q signed by key.
func SignQuote(key *crypto.PrivateKey, q SignedQuote) (SignedQuote, error) {
	if key == nil {
		return SignedQuote{}, fmt.Errorf("quote: signing key required")
	}
	digest, err := Hash(q)
	if err != nil {
		return SignedQuote{}, err
	}
	sig, err := key.Sign(digest)
	if err != nil {
		return SignedQuote{}, fmt.Errorf("quote: sign: %w", err)
	}
	signed := q.Clone()
	signed.Signature = sig
	return signed, nil
}

// RecoverSigner returns the address that signed q.
func RecoverSigner(q SignedQuote) (crypto.Address, error) {
	if len(q.Signature) != 65 {
		return crypto.Address{}, fmt.Errorf("quote: signature must be 65 bytes, got %d", len(q.Signature))
	}
	digest, err := Hash(q)
	if err != nil {
		return crypto.Address{}, err
	}
	return crypto.RecoverAddress(digest, q.Signature)
}
