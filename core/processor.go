package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stablechain/core/events"
	"stablechain/core/state"
	"stablechain/core/types"
	"stablechain/crypto"
	"stablechain/native/bank"
	nativecommon "stablechain/native/common"
	"stablechain/native/stablecoin"
	"stablechain/observability"
	"stablechain/observability/logging"
	telemetry "stablechain/observability/otel"
	"stablechain/storage"
)

// Operation names used in receipts, logs and metrics.
const (
	OpInitializeConfig = "initialize_config"
	OpUpdateConfig     = "update_config"
	OpDeposit          = "deposit"
	OpRedeem           = "redeem"
	OpLiquidate        = "liquidate"
	OpFaucet           = "faucet"
)

const mintQuotaScope = "mint"

var (
	// ErrQuotaExceeded wraps the underlying quota error when an owner mints
	// more often or more than the configured per-epoch allowance.
	ErrQuotaExceeded = errors.New("core: mint quota exceeded")
	// ErrFaucetAsset is returned when the faucet is asked to create the
	// stable asset, which only vault debt may mint.
	ErrFaucetAsset = errors.New("core: faucet cannot mint the stable asset")
)

// Receipt identifies a committed transition.
type Receipt struct {
	ID         uuid.UUID
	Operation  string
	Events     []*types.Event
	Config     *stablecoin.ProtocolConfig
	Transition *stablecoin.Transition
}

// Processor is the execution host. Every transition runs under a single
// mutex against a fresh state journal which is committed in one storage batch
// on success and discarded otherwise.
type Processor struct {
	mu        sync.Mutex
	db        storage.Database
	oracle    stablecoin.PriceFetcher
	now       func() time.Time
	emitter   events.Emitter
	logger    *slog.Logger
	metrics   *observability.StablecoinMetrics
	mintQuota nativecommon.Quota
	sink      ReceiptSink
}

// ReceiptSink persists the rendered events of committed receipts. A sink
// failure is logged; the transition has already been committed.
type ReceiptSink interface {
	Append(ctx context.Context, receiptID, operation string, evs []*types.Event, at time.Time) error
}

// Option customises a Processor.
type Option func(*Processor)

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func WithEmitter(emitter events.Emitter) Option {
	return func(p *Processor) {
		if emitter != nil {
			p.emitter = emitter
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(metrics *observability.StablecoinMetrics) Option {
	return func(p *Processor) { p.metrics = metrics }
}

// WithMintQuota limits how often and how much each owner may mint per epoch.
func WithMintQuota(q nativecommon.Quota) Option {
	return func(p *Processor) { p.mintQuota = q }
}

// WithReceiptSink forwards committed events to sink.
func WithReceiptSink(sink ReceiptSink) Option {
	return func(p *Processor) { p.sink = sink }
}

// NewProcessor wires a processor to db and the price oracle.
func NewProcessor(db storage.Database, oracle stablecoin.PriceFetcher, opts ...Option) (*Processor, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("core: price oracle required")
	}
	p := &Processor{
		db:      db,
		oracle:  oracle,
		now:     time.Now,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "stablecoin")
	return p, nil
}

type transitionFunc func(ctx context.Context, m *state.Manager, e *stablecoin.Engine, r *Receipt) ([]events.Event, error)

func (p *Processor) run(ctx context.Context, op string, attrs []string, fn transitionFunc) (Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "stablecoin."+op)
	defer span.End()
	start := p.now()
	logger := p.logger.With(maskedAttrs(op, attrs)...)

	manager := state.NewManager(p.db)
	engine := stablecoin.NewEngine(manager, p.oracle, p.now)
	receipt := Receipt{ID: uuid.New(), Operation: op}

	emitted, err := fn(ctx, manager, engine, &receipt)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = manager.Commit()
	}
	if err != nil {
		manager.Discard()
		p.observeFailure(op, start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeOf(err))
		logger.Warn("stablecoin transition rejected",
			"outcome", outcomeOf(err),
			"category", string(stablecoin.CategoryOf(err)),
			"retryable", stablecoin.Retryable(err),
			"error", err.Error())
		return Receipt{}, err
	}

	for _, ev := range emitted {
		p.emitter.Emit(ev)
		observability.Events().RecordEvent(ev.EventType())
		receipt.Events = append(receipt.Events, events.Render(ev))
	}
	if p.sink != nil && len(receipt.Events) > 0 {
		if err := p.sink.Append(ctx, receipt.ID.String(), op, receipt.Events, p.now()); err != nil {
			logger.Error("event sink append failed", "receipt", receipt.ID.String(), "error", err.Error())
		}
	}
	if tr := receipt.Transition; tr != nil && tr.Liquidation != nil && receipt.Config != nil {
		p.metrics.RecordLiquidation(receipt.Config.CollateralAsset, tr.Liquidation.Seized, tr.Liquidation.BonusShortfall)
	}
	p.metrics.ObserveTransition(op, "success", p.now().Sub(start))
	span.SetAttributes(attribute.String("receipt", receipt.ID.String()))
	logger.Info("stablecoin transition applied", "receipt", receipt.ID.String(), "outcome", "success")
	return receipt, nil
}

// maskedAttrs turns key/value pairs into log attributes, redacting any key
// outside the logging allowlist.
func maskedAttrs(op string, pairs []string) []any {
	out := make([]any, 0, len(pairs)/2+1)
	out = append(out, slog.String("operation", op))
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, logging.MaskField(pairs[i], pairs[i+1]))
	}
	return out
}

func outcomeOf(err error) string {
	if code := stablecoin.CodeOf(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "QuotaExceeded"
	case errors.Is(err, bank.ErrInsufficientBalance):
		return "InsufficientBalance"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	}
	return "error"
}

func (p *Processor) observeFailure(op string, start time.Time, err error) {
	outcome := outcomeOf(err)
	p.metrics.ObserveTransition(op, outcome, p.now().Sub(start))
	if stablecoin.CategoryOf(err) == stablecoin.CategoryOracle {
		p.metrics.RecordOracleRejection(outcome)
	}
	if errors.Is(err, ErrQuotaExceeded) {
		p.metrics.RecordThrottle(op, "quota")
	}
}

// InitializeConfig creates the protocol config owned by authority.
func (p *Processor) InitializeConfig(ctx context.Context, authority crypto.Address, params stablecoin.Params) (Receipt, error) {
	return p.run(ctx, OpInitializeConfig, []string{"owner", authority.String()},
		func(_ context.Context, m *state.Manager, e *stablecoin.Engine, r *Receipt) ([]events.Event, error) {
			cfg, err := e.InitializeConfig(authority, params)
			if err != nil {
				return nil, err
			}
			r.Config = &cfg
			return []events.Event{events.ConfigInitialized{Config: cfg}}, nil
		})
}

// UpdateConfig applies upd on behalf of caller.
func (p *Processor) UpdateConfig(ctx context.Context, caller crypto.Address, upd stablecoin.ConfigUpdate) (Receipt, error) {
	return p.run(ctx, OpUpdateConfig, []string{"owner", caller.String()},
		func(_ context.Context, _ *state.Manager, e *stablecoin.Engine, r *Receipt) ([]events.Event, error) {
			cfg, err := e.UpdateConfig(caller, upd)
			if err != nil {
				return nil, err
			}
			r.Config = &cfg
			return []events.Event{events.ConfigUpdated{Caller: caller, Config: cfg}}, nil
		})
}

// UpdateMinHealthFactor is UpdateConfig restricted to the minimum health factor.
func (p *Processor) UpdateMinHealthFactor(ctx context.Context, caller crypto.Address, value uint64) (Receipt, error) {
	return p.UpdateConfig(ctx, caller, stablecoin.ConfigUpdate{MinHealthFactor: &value})
}

// DepositCollateralAndMint locks collateral and mints stable tokens for owner.
func (p *Processor) DepositCollateralAndMint(ctx context.Context, owner crypto.Address, amountCollateral, amountToMint uint64, feedID string) (Receipt, error) {
	return p.run(ctx, OpDeposit, []string{"owner", owner.String(), "feed", feedID},
		func(ctx context.Context, m *state.Manager, e *stablecoin.Engine, r *Receipt) ([]events.Event, error) {
			if err := p.consumeMintQuota(m, owner, amountToMint); err != nil {
				return nil, err
			}
			tr, err := e.DepositCollateralAndMint(ctx, owner, amountCollateral, amountToMint, feedID)
			if err != nil {
				return nil, err
			}
			return p.record(e, r, tr, events.VaultDeposited{Transition: tr})
		})
}

// RedeemCollateralAndBurn burns stable tokens and releases collateral to owner.
func (p *Processor) RedeemCollateralAndBurn(ctx context.Context, owner crypto.Address, amountCollateral, amountToBurn uint64, feedID string) (Receipt, error) {
	return p.run(ctx, OpRedeem, []string{"owner", owner.String(), "feed", feedID},
		func(ctx context.Context, _ *state.Manager, e *stablecoin.Engine, r *Receipt) ([]events.Event, error) {
			tr, err := e.RedeemCollateralAndBurn(ctx, owner, amountCollateral, amountToBurn, feedID)
			if err != nil {
				return nil, err
			}
			return p.record(e, r, tr, events.VaultRedeemed{Transition: tr})
		})
}

// Liquidate burns the liquidator's stable tokens against target's unhealthy
// vault in exchange for collateral plus the bonus.
func (p *Processor) Liquidate(ctx context.Context, liquidator, target crypto.Address, amountToBurn uint64, feedID string) (Receipt, error) {
	return p.run(ctx, OpLiquidate, []string{"owner", target.String(), "liquidator", liquidator.String(), "feed", feedID},
		func(ctx context.Context, _ *state.Manager, e *stablecoin.Engine, r *Receipt) ([]events.Event, error) {
			tr, err := e.Liquidate(ctx, liquidator, target, amountToBurn, feedID)
			if err != nil {
				return nil, err
			}
			return p.record(e, r, tr, events.VaultLiquidated{Transition: tr})
		})
}

// Faucet credits collateral on development networks.
func (p *Processor) Faucet(ctx context.Context, asset string, to crypto.Address, amount uint64) (Receipt, error) {
	return p.run(ctx, OpFaucet, []string{"owner", to.String()},
		func(_ context.Context, m *state.Manager, e *stablecoin.Engine, r *Receipt) ([]events.Event, error) {
			if cfg, err := e.Config(); err == nil && strings.EqualFold(strings.TrimSpace(asset), cfg.StableAsset) {
				return nil, ErrFaucetAsset
			}
			if err := bank.NewLedger(m).Mint(asset, to, new(big.Int).SetUint64(amount)); err != nil {
				return nil, err
			}
			return nil, nil
		})
}

func (p *Processor) record(e *stablecoin.Engine, r *Receipt, tr stablecoin.Transition, ev events.Event) ([]events.Event, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	r.Config = &cfg
	r.Transition = &tr
	return []events.Event{ev}, nil
}

func (p *Processor) consumeMintQuota(m *state.Manager, owner crypto.Address, amount uint64) error {
	if !p.mintQuota.Enabled() || amount == 0 {
		return nil
	}
	usage, err := m.QuotaUsage(mintQuotaScope, owner)
	if err != nil {
		return err
	}
	next, err := nativecommon.CheckQuota(p.mintQuota, p.mintQuota.Epoch(p.now().Unix()), usage, 1, amount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	}
	return m.PutQuotaUsage(mintQuotaScope, owner, next)
}

// Config returns the committed protocol config.
func (p *Processor) Config() (stablecoin.ProtocolConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return stablecoin.NewEngine(state.NewManager(p.db), p.oracle, p.now).Config()
}

// VaultStatus values owner's vault at a fresh quote without changing state.
func (p *Processor) VaultStatus(ctx context.Context, owner crypto.Address, feedID string) (stablecoin.VaultStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return stablecoin.NewEngine(state.NewManager(p.db), p.oracle, p.now).VaultStatus(ctx, owner, feedID)
}

// Balance returns the committed balance of asset held by addr.
func (p *Processor) Balance(asset string, addr crypto.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return state.NewManager(p.db).Balance(asset, addr)
}
