// Package funding obtains a funding UTXO for an address: it first tries to
// pay the address from an earlier funding output of the operator's key and
// otherwise waits for a manual deposit.
package funding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/thanhnp/chain-funder/internal/chain"
	"github.com/thanhnp/chain-funder/internal/config"
	"github.com/thanhnp/chain-funder/internal/display"
	"github.com/thanhnp/chain-funder/internal/fee"
	"github.com/thanhnp/chain-funder/internal/keys"
	"github.com/thanhnp/chain-funder/internal/log"
	"github.com/thanhnp/chain-funder/internal/models"
	"github.com/thanhnp/chain-funder/internal/utxo"
	"github.com/thanhnp/chain-funder/pkg/amount"
)

// Stages of the auto-send path, reported in SpendError.
const (
	StageProbe     = "probe"
	StageBuild     = "build"
	StageSign      = "sign"
	StageBroadcast = "broadcast"
)

const (
	spendTxVersion = 1

	// fallbackOutputIndex is the output spent when no listed UTXO is large
	// enough: the first input of the latest transaction at this index.
	fallbackOutputIndex = 1

	// failureNoticeAttempt is the zero-based broadcast attempt whose
	// failure prints the auto-send failure notice.
	failureNoticeAttempt = 2

	explorerUTXOLimit = 20
)

var (
	// ErrNoPriorFunding is returned when the funding address has no
	// transaction history to spend from.
	ErrNoPriorFunding = errors.New("no prior funding transaction")

	errEmptyBroadcastResult = errors.New("broadcast returned no txid")
)

// SpendError is a failure of the auto-send path. It is recoverable:
// GetFundingUTXO logs it and waits for a deposit instead.
type SpendError struct {
	Stage string
	Err   error
}

func (e *SpendError) Error() string {
	return fmt.Sprintf("auto send failed during %s: %v", e.Stage, e.Err)
}

func (e *SpendError) Unwrap() error {
	return e.Err
}

// Explorer probes address history
type Explorer interface {
	LatestTransaction(ctx context.Context, address string) (string, error)
	UTXOs(ctx context.Context, address string, limit int) ([]models.UTXO, error)
}

// Journal remembers transactions the network has accepted
type Journal interface {
	Get(txid string) (*models.BroadcastRecord, error)
	Record(rec *models.BroadcastRecord) error
}

// Config tunes the orchestrator
type Config struct {
	Params            *chaincfg.Params
	AddressType       keys.AddressType
	FeeTargetBlocks   int
	PollInterval      time.Duration
	CooldownStep      time.Duration
	BroadcastAttempts int
	RetryDelay        time.Duration
}

// ConfigFrom builds an orchestrator config from the application config.
func ConfigFrom(cfg *config.Config) (*Config, error) {
	params, err := cfg.ChainParams()
	if err != nil {
		return nil, err
	}

	return &Config{
		Params:            params,
		AddressType:       keys.AddressType(cfg.Funding.AddressType),
		FeeTargetBlocks:   cfg.Funding.FeeTargetBlocks,
		PollInterval:      cfg.Funding.PollInterval,
		CooldownStep:      cfg.Funding.CooldownStep,
		BroadcastAttempts: cfg.Funding.BroadcastAttempts,
		RetryDelay:        cfg.Funding.RetryDelay,
	}, nil
}

// Request describes one funding operation
type Request struct {
	// Address is watched until it holds a UTXO of at least Amount.
	Address string
	Amount  btcutil.Amount

	// SpendAmount is what an auto-send pays to TargetAddress. Both default
	// to Amount and Address.
	SpendAmount   btcutil.Amount
	TargetAddress string

	// FundingKey controls the earlier funding outputs. Without it the
	// auto-send is skipped.
	FundingKey *btcec.PrivateKey

	// SuppressDepositInfo hides the deposit QR code and banner.
	SuppressDepositInfo bool
}

func (r *Request) spendAmount() btcutil.Amount {
	if r.SpendAmount > 0 {
		return r.SpendAmount
	}
	return r.Amount
}

func (r *Request) targetAddress() string {
	if r.TargetAddress != "" {
		return r.TargetAddress
	}
	return r.Address
}

// Orchestrator runs the funding pipeline
type Orchestrator struct {
	cfg      *Config
	chain    chain.Client
	explorer Explorer
	resolver *utxo.Resolver
	journal  Journal
	clock    clock.Clock
	out      io.Writer
}

// New creates an orchestrator. journal may be nil. Deposit prompts are
// written to out.
func New(cfg *Config, client chain.Client, explorer Explorer, journal Journal,
	clk clock.Clock, out io.Writer) *Orchestrator {

	return &Orchestrator{
		cfg:      cfg,
		chain:    client,
		explorer: explorer,
		resolver: utxo.NewResolver(client),
		journal:  journal,
		clock:    clk,
		out:      out,
	}
}

// FundingAddress returns the address of key for the configured type.
func (o *Orchestrator) FundingAddress(key *btcec.PrivateKey) (btcutil.Address, error) {
	return keys.AddressOf(key.PubKey(), o.cfg.AddressType, o.cfg.Params)
}

// GetFundingUTXO blocks until req.Address holds a UTXO of at least
// req.Amount. It first tries to send the funds itself from the funding
// key's most recent output; any failure there is logged and the call falls
// back to waiting for a deposit. Only ctx ends the wait early.
func (o *Orchestrator) GetFundingUTXO(ctx context.Context, req *Request) (*models.FundingResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	var spendTxID string
	if req.FundingKey == nil {
		log.Funding.Info().Msg("No funding key, skipping auto send")
	} else {
		txid, err := o.SpendExisting(ctx, req)
		switch {
		case err == nil:
			spendTxID = txid
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, ErrNoPriorFunding):
			log.Funding.Info().Msg("No prior funding transaction, waiting for a deposit")
		default:
			log.Funding.Warn().Err(err).Msg("Auto send failed")
		}
	}

	if !req.SuppressDepositInfo && spendTxID == "" {
		if err := display.DepositRequest(o.out, req.Address, req.Amount); err != nil {
			log.Funding.Warn().Err(err).Msg("Failed to render deposit request")
		}
	}
	if err := display.WaitingBanner(o.out, req.Address, req.Amount, req.SuppressDepositInfo); err != nil {
		log.Funding.Warn().Err(err).Msg("Failed to render waiting banner")
	}

	u, err := chain.WaitForUTXO(ctx, o.chain, req.Address, req.Amount, o.cfg.PollInterval, o.clock)
	if err != nil {
		return nil, err
	}

	log.Funding.Info().
		Str("txid", u.TxID).
		Uint32("vout", u.OutputIndex).
		Int64("value", int64(u.Value)).
		Msgf("Detected Funding UTXO (%s:%d) with value %d", u.TxID, u.OutputIndex, int64(u.Value))

	return &models.FundingResult{UTXO: u, SpendTxID: spendTxID}, nil
}

// SpendExisting pays req's spend amount to its target from the latest
// funding output of req.FundingKey and returns the broadcast txid. It
// returns ErrNoPriorFunding when the funding address has no history,
// ctx's error when cancelled, and a *SpendError otherwise.
func (o *Orchestrator) SpendExisting(ctx context.Context, req *Request) (string, error) {
	if req.FundingKey == nil {
		return "", &SpendError{Stage: StageBuild, Err: errors.New("no funding key")}
	}

	fundingAddr, err := o.FundingAddress(req.FundingKey)
	if err != nil {
		return "", &SpendError{Stage: StageBuild, Err: err}
	}

	pending, err := o.build(ctx, req, fundingAddr)
	if err != nil {
		return "", err
	}

	if err := signInput(pending.packet, 0, req.FundingKey, o.cfg.Params); err != nil {
		return "", o.fail(ctx, StageSign, err)
	}
	tx, err := finalize(pending.packet)
	if err != nil {
		return "", o.fail(ctx, StageSign, err)
	}

	txid := tx.TxHash().String()
	log.Funding.Info().Str("txid", txid).Msg("Signed auto send transaction")

	if o.alreadyBroadcast(txid) {
		log.Funding.Info().Str("txid", txid).Msg("Transaction already broadcast, skipping")
		return txid, nil
	}

	if err := o.cooldown(ctx); err != nil {
		return "", err
	}

	attempts, err := o.broadcast(ctx, tx, req)
	if err != nil {
		return "", err
	}

	o.record(&models.BroadcastRecord{
		TxID:        txid,
		FromAddress: pending.from,
		ToAddress:   pending.to,
		Amount:      int64(pending.spend),
		Fee:         int64(pending.fee),
		Attempts:    attempts,
		Timestamp:   o.clock.Now(),
	})

	return txid, nil
}

// pendingSpend is an unsigned auto-send transaction
type pendingSpend struct {
	packet *psbt.Packet
	source models.UTXO
	from   string
	to     string
	spend  btcutil.Amount
	fee    btcutil.Amount
}

func (o *Orchestrator) build(ctx context.Context, req *Request, fundingAddr btcutil.Address) (*pendingSpend, error) {
	from := fundingAddr.EncodeAddress()

	latest, err := o.explorer.LatestTransaction(ctx, from)
	if err != nil {
		return nil, o.fail(ctx, StageProbe, err)
	}
	if latest == "" {
		return nil, ErrNoPriorFunding
	}
	log.Funding.Info().Str("address", from).Str("txid", latest).Msg("Found prior funding transaction")

	recent, err := o.resolver.FetchTransaction(ctx, latest)
	if err != nil {
		return nil, o.fail(ctx, StageProbe, err)
	}

	spend := req.spendAmount()
	source, err := o.selectSource(ctx, from, spend, recent)
	if err != nil {
		return nil, o.fail(ctx, StageBuild, err)
	}

	to := req.targetAddress()
	targetScript, err := o.payToAddress(to)
	if err != nil {
		return nil, o.fail(ctx, StageBuild, err)
	}

	rate, err := o.chain.EstimateFee(ctx, o.cfg.FeeTargetBlocks)
	if err != nil {
		return nil, o.fail(ctx, StageBuild, err)
	}
	txFee := fee.Estimate(rate, 1, 1, fee.FundingExtraBytes)

	log.Funding.Info().
		Str("to", to).
		Str("amount", amount.FormatBTC(spend)).
		Int64("rate", int64(rate)).
		Int64("fee", int64(txFee)).
		Msg("Building auto send transaction")

	if source.Value < spend+txFee {
		return nil, o.fail(ctx, StageBuild, fmt.Errorf("source output %s:%d holds %v, need %v",
			source.TxID, source.OutputIndex, source.Value, spend+txFee))
	}

	outputs := []*wire.TxOut{wire.NewTxOut(int64(spend), targetScript)}
	if change, ok := fee.Change(source.Value, spend, txFee); ok {
		changeScript, err := txscript.PayToAddrScript(fundingAddr)
		if err != nil {
			return nil, o.fail(ctx, StageBuild, err)
		}
		outputs = append(outputs, wire.NewTxOut(int64(change), changeScript))
	}

	hash := source.ParentTx.TxHash()
	packet, err := psbt.New(
		[]*wire.OutPoint{wire.NewOutPoint(&hash, source.OutputIndex)},
		outputs, spendTxVersion, 0, []uint32{wire.MaxTxInSequenceNum},
	)
	if err != nil {
		return nil, o.fail(ctx, StageBuild, err)
	}
	if err := attachPrevOut(packet, 0, source.ParentTx); err != nil {
		return nil, o.fail(ctx, StageBuild, err)
	}

	return &pendingSpend{
		packet: packet,
		source: source,
		from:   from,
		to:     to,
		spend:  spend,
		fee:    txFee,
	}, nil
}

// selectSource picks the output to spend: the first explorer UTXO covering
// spend, or else output 1 of the transaction spent by recent's first input.
func (o *Orchestrator) selectSource(ctx context.Context, from string, spend btcutil.Amount,
	recent *wire.MsgTx) (models.UTXO, error) {

	listed, err := o.explorer.UTXOs(ctx, from, explorerUTXOLimit)
	if err != nil {
		return models.UTXO{}, err
	}

	if u, ok := utxo.FirstAtLeast(listed, spend); ok {
		log.Funding.Info().Str("txid", u.TxID).Uint32("vout", u.OutputIndex).Msg("Will use utxo")

		validated, err := o.resolver.ValidateUTXO(ctx, u)
		if err != nil {
			return models.UTXO{}, err
		}
		if onChain := btcutil.Amount(validated.PrevOut().Value); onChain != u.Value {
			return models.UTXO{}, fmt.Errorf("explorer reports %v for %s:%d, parent output holds %v",
				u.Value, u.TxID, u.OutputIndex, onChain)
		}
		return validated, nil
	}

	if len(recent.TxIn) == 0 {
		return models.UTXO{}, errors.New("latest transaction has no inputs")
	}

	fallback := models.UTXO{
		TxID:        recent.TxIn[0].PreviousOutPoint.Hash.String(),
		OutputIndex: fallbackOutputIndex,
		Address:     from,
	}
	log.Funding.Warn().
		Str("txid", fallback.TxID).
		Uint32("vout", fallback.OutputIndex).
		Msg("No listed UTXO covers the spend, falling back to the latest transaction's first input")

	validated, err := o.resolver.ValidateUTXO(ctx, fallback)
	if err != nil {
		return models.UTXO{}, err
	}
	validated.Value = btcutil.Amount(validated.PrevOut().Value)
	return validated, nil
}

func (o *Orchestrator) cooldown(ctx context.Context) error {
	log.Funding.Info().Msgf("TX will broadcast at %s late...", humanSeconds(2*o.cfg.CooldownStep))
	log.Funding.Info().Msg("Please Confirm This Transaction TX...")
	if err := chain.Sleep(ctx, o.clock, o.cfg.CooldownStep); err != nil {
		return err
	}

	log.Funding.Info().Msgf("Will broadcast at %s late...", humanSeconds(o.cfg.CooldownStep))
	if err := chain.Sleep(ctx, o.clock, o.cfg.CooldownStep); err != nil {
		return err
	}

	log.Funding.Info().Msg("Start broadcast...")
	return nil
}

// humanSeconds renders d as whole seconds, e.g. "30 seconds".
func humanSeconds(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d/time.Second))
}

// broadcast submits tx up to BroadcastAttempts times with a flat delay
// after each failure, and returns the number of attempts used.
func (o *Orchestrator) broadcast(ctx context.Context, tx *wire.MsgTx, req *Request) (int, error) {
	raw, err := chain.EncodeTx(tx)
	if err != nil {
		return 0, &SpendError{Stage: StageBroadcast, Err: err}
	}

	var lastErr error
	for attempt := 0; attempt < o.cfg.BroadcastAttempts; attempt++ {
		txid, err := o.chain.Broadcast(ctx, raw)
		if err == nil && txid != "" {
			log.Funding.Info().Str("txid", txid).Msg("Transaction Tx")
			return attempt + 1, nil
		}
		if err == nil {
			lastErr = errEmptyBroadcastResult
			continue
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		lastErr = err
		log.Funding.Warn().Err(err).Int("attempt", attempt+1).
			Msg("Network error broadcasting (Trying again soon...)")
		log.Funding.Info().Msgf("Will retry to broadcast transaction again in %s...", o.cfg.RetryDelay)

		if attempt == failureNoticeAttempt {
			log.Funding.Error().Msgf("Auto send %s BTC to %s failed",
				amount.FormatBTC(req.Amount), req.Address)
		}

		if err := chain.Sleep(ctx, o.clock, o.cfg.RetryDelay); err != nil {
			return 0, err
		}
	}

	return o.cfg.BroadcastAttempts, &SpendError{Stage: StageBroadcast, Err: lastErr}
}

func (o *Orchestrator) alreadyBroadcast(txid string) bool {
	if o.journal == nil {
		return false
	}

	rec, err := o.journal.Get(txid)
	if err != nil {
		log.Funding.Warn().Err(err).Str("txid", txid).Msg("Failed to read broadcast journal")
		return false
	}
	return rec != nil
}

func (o *Orchestrator) record(rec *models.BroadcastRecord) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(rec); err != nil {
		log.Funding.Warn().Err(err).Str("txid", rec.TxID).Msg("Failed to record broadcast")
	}
}

func (o *Orchestrator) payToAddress(address string) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, o.cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	if !addr.IsForNet(o.cfg.Params) {
		return nil, fmt.Errorf("address %q is not for %s", address, o.cfg.Params.Name)
	}
	return txscript.PayToAddrScript(addr)
}

func (o *Orchestrator) validate(req *Request) error {
	if req.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", req.Amount)
	}
	if req.SpendAmount < 0 {
		return fmt.Errorf("spend amount must not be negative, got %v", req.SpendAmount)
	}
	if _, err := o.payToAddress(req.Address); err != nil {
		return err
	}
	if req.TargetAddress != "" {
		if _, err := o.payToAddress(req.TargetAddress); err != nil {
			return err
		}
	}
	return nil
}

// fail wraps err as a recoverable SpendError unless ctx is done.
func (o *Orchestrator) fail(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &SpendError{Stage: stage, Err: err}
}
