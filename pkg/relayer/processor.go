// Copyright 2025 Omnilock Labs
//
// State Machine Processor
// The core loop: observe funds-lock events on the source chain, drive every
// message through persist -> verify -> execute -> settle with bounded retry
// and deterministic rollback, and journal every lifecycle transition.
//
// The processor is a single sequential task; it is the only writer of
// state-transition columns, which is the concurrency-correctness guarantee.

package relayer

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnilock/escrow-relayer/pkg/database"
	"github.com/omnilock/escrow-relayer/pkg/event"
	"github.com/omnilock/escrow-relayer/pkg/ethereum"
	"github.com/omnilock/escrow-relayer/pkg/proof"
)

// MaxRetries is the retry budget per message: one retry after the initial
// failure, then rollback. The counter counts retries, not attempts.
const MaxRetries = 1

// pauseCheckInterval is how long the loop sleeps while paused
const pauseCheckInterval = 500 * time.Millisecond

// SourceClient is the subset of the source-chain client the processor uses
type SourceClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterRequests(ctx context.Context, fromBlock uint64) ([]types.Log, error)
	Settle(ctx context.Context, key *ecdsa.PrivateKey, nonce uint64, result, signature []byte) (string, error)
}

// DestinationExecutor runs the deterministic destination computation
type DestinationExecutor interface {
	Execute(ctx context.Context, nonce, amount uint64, traceID [32]byte) (string, uint64, error)
}

// ProcessorConfig wires the processor's collaborators
type ProcessorConfig struct {
	Source   SourceClient
	Executor DestinationExecutor
	Messages *database.MessageRepository
	Events   *database.EventRepository
	Bus      *event.Bus
	Control  *Control
	Key      *ecdsa.PrivateKey

	PollInterval        time.Duration
	SimulatedSettlement bool

	// Optional
	Faults  FaultInjector
	Metrics *Metrics
	Logger  *log.Logger
}

// Processor advances observed messages through the lifecycle
type Processor struct {
	source   SourceClient
	executor DestinationExecutor
	messages *database.MessageRepository
	events   *database.EventRepository
	bus      *event.Bus
	control  *Control
	key      *ecdsa.PrivateKey
	faults   FaultInjector
	metrics  *Metrics
	logger   *log.Logger

	pollInterval        time.Duration
	simulatedSettlement bool

	// lastBlock is processor-local; persistence is not needed because
	// ingestion is idempotent by nonce
	lastBlock uint64
}

// NewProcessor creates a processor from its configuration
func NewProcessor(cfg *ProcessorConfig) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("processor config is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("source client is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("destination executor is required")
	}
	if cfg.Messages == nil || cfg.Events == nil {
		return nil, fmt.Errorf("message and event repositories are required")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if cfg.Control == nil {
		return nil, fmt.Errorf("control surface is required")
	}
	if cfg.Key == nil {
		return nil, fmt.Errorf("relayer signing key is required")
	}

	p := &Processor{
		source:              cfg.Source,
		executor:            cfg.Executor,
		messages:            cfg.Messages,
		events:              cfg.Events,
		bus:                 cfg.Bus,
		control:             cfg.Control,
		key:                 cfg.Key,
		faults:              cfg.Faults,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger,
		pollInterval:        cfg.PollInterval,
		simulatedSettlement: cfg.SimulatedSettlement,
	}
	if p.faults == nil {
		p.faults = NoFaults{}
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(prometheus.NewRegistry())
	}
	if p.logger == nil {
		p.logger = log.New(log.Writer(), "[Processor] ", log.LstdFlags)
	}
	if p.pollInterval <= 0 {
		p.pollInterval = 500 * time.Millisecond
	}
	return p, nil
}

// Run executes the resume pass and then the main loop until ctx is done
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Println("Starting state machine processor")

	if err := p.Resume(ctx); err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.control.IsPaused() {
			sleepCtx(ctx, pauseCheckInterval)
			continue
		}

		count, err := p.observePhase(ctx)
		if err != nil {
			p.logger.Printf("Failed to poll source chain, will retry: %v", err)
		} else if count > 0 {
			p.logger.Printf("Observed %d new cross-chain requests (last_block=%d)", count, p.lastBlock)
		}

		if err := p.drivePhase(ctx); err != nil {
			p.logger.Printf("Error processing messages: %v", err)
		}

		sleepCtx(ctx, p.pollInterval)
	}
}

// observePhase ingests new CrossChainRequest logs since the last sweep.
// Ingestion is idempotent by nonce; decode failures are logged and skipped.
func (p *Processor) observePhase(ctx context.Context) (int, error) {
	height, err := p.source.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	if height <= p.lastBlock {
		return 0, nil
	}

	fromBlock := uint64(0)
	if p.lastBlock != 0 {
		fromBlock = p.lastBlock + 1
	}

	logs, err := p.source.FilterRequests(ctx, fromBlock)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch logs: %w", err)
	}

	count := 0
	for i := range logs {
		req, err := ethereum.ParseRequestLog(&logs[i])
		if err != nil {
			p.logger.Printf("Failed to parse log: %v", err)
			continue
		}

		exists, err := p.messages.Exists(ctx, req.Nonce)
		if err != nil {
			return count, err
		}
		if exists {
			continue
		}

		traceID := req.TraceID.Hex()
		description := extractDescription(req.Payload)

		deadline := int64(0)
		if req.Deadline.IsInt64() {
			deadline = req.Deadline.Int64()
		}

		if err := p.messages.InsertIfAbsent(ctx, &database.NewMessage{
			Nonce:       req.Nonce,
			TraceID:     traceID,
			Sender:      strings.ToLower(req.Sender.Hex()),
			Amount:      req.Amount.String(),
			Payload:     hex.EncodeToString(req.Payload),
			Deadline:    deadline,
			Description: description,
		}); err != nil {
			return count, err
		}

		locked := event.New(traceID, req.Nonce, event.ActorSource, event.StepLocked, event.StatusSuccess).
			WithDetail("tx:" + req.TxHash.Hex())
		if err := p.emitAndPersist(ctx, locked); err != nil {
			return count, err
		}

		observed := event.New(traceID, req.Nonce, event.ActorRelayer, event.StepObserved, event.StatusSuccess).
			WithDetail("block:" + strconv.FormatUint(req.BlockNumber, 10))
		if err := p.emitAndPersist(ctx, observed); err != nil {
			return count, err
		}

		if err := p.messages.UpdateState(ctx, req.Nonce, database.StatePersisted, nil); err != nil {
			return count, err
		}

		p.metrics.ObservedTotal.Inc()
		p.metrics.TransitionsTotal.WithLabelValues(string(database.StateObserved), string(database.StatePersisted)).Inc()
		count++
	}

	p.lastBlock = height
	return count, nil
}

// drivePhase walks the states in DriveOrder and attempts one transition for
// every message found in each state, nonce ascending within a state. A
// message that advances is picked up again under its new state later in the
// same sweep.
func (p *Processor) drivePhase(ctx context.Context) error {
	for _, state := range database.DriveOrder {
		msgs, err := p.messages.GetByState(ctx, state)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			if p.control.IsPaused() {
				return nil
			}
			if err := p.processMessage(ctx, msg, state); err != nil {
				return err
			}
		}
	}
	return nil
}

// processMessage advances one message, handling retry bookkeeping and the
// rollback branch. Only store-level errors are returned; transition failures
// are absorbed into the retry counter.
//
// The retry counter counts retries, not attempts: a first failure leaves
// the message retryable with retry_count incremented; a failure on a visit
// whose budget is already spent rolls the message back.
func (p *Processor) processMessage(ctx context.Context, msg *database.Message, state database.MessageState) error {
	var err error
	switch state {
	case database.StatePersisted:
		err = p.advancePersistedToVerified(ctx, msg)
	case database.StateVerified:
		err = p.advanceVerifiedToExecuted(ctx, msg)
	case database.StateSentToDest:
		// Transient state: only reachable after a crash between execution
		// and the row update. The resume pass promotes these rows; the
		// sweep itself has nothing to do.
	case database.StateExecuted:
		err = p.advanceExecutedToSettled(ctx, msg)
	}
	if err == nil {
		return nil
	}

	if msg.RetryCount >= MaxRetries {
		return p.rollback(ctx, msg, state)
	}

	p.logger.Printf("State transition failed nonce=%d state=%s, will retry: %v", msg.Nonce, state, err)
	if dbErr := p.messages.IncrementRetry(ctx, msg.Nonce); dbErr != nil {
		return dbErr
	}
	retry := event.New(msg.TraceID, msg.Nonce, event.ActorRelayer, stepForState(state), event.StatusRetry).
		WithDetail("Error: " + err.Error())
	if dbErr := p.emitAndPersist(ctx, retry); dbErr != nil {
		return dbErr
	}
	p.metrics.RetriesTotal.Inc()
	return nil
}

// rollback terminates a message whose retry budget is exhausted and records
// the refund on the journal
func (p *Processor) rollback(ctx context.Context, msg *database.Message, state database.MessageState) error {
	p.logger.Printf("Max retries exceeded nonce=%d retries=%d, rolling back", msg.Nonce, msg.RetryCount)

	rollbackEv := event.New(msg.TraceID, msg.Nonce, event.ActorRelayer, event.StepRollback, event.StatusFailure).
		WithDetail(fmt.Sprintf("Rollback: %s failed after %d retry. Funds will be refunded.", state, msg.RetryCount))
	if err := p.emitAndPersist(ctx, rollbackEv); err != nil {
		return err
	}

	errMsg := fmt.Sprintf("Rolled back from %s after retry failure", state)
	if err := p.messages.UpdateState(ctx, msg.Nonce, database.StateRolledBack, &database.StateUpdate{
		ErrorMessage: &errMsg,
	}); err != nil {
		return err
	}

	settled := event.New(msg.TraceID, msg.Nonce, event.ActorSource, event.StepSettled, event.StatusFailure).
		WithDetail("Escrow refunded — rollback complete")
	if err := p.emitAndPersist(ctx, settled); err != nil {
		return err
	}

	p.metrics.RollbacksTotal.Inc()
	p.logger.Printf("Message rolled back nonce=%d from_state=%s, funds refunded", msg.Nonce, state)
	return nil
}

// advancePersistedToVerified builds and verifies the proof bundle, then
// persists it alongside the state transition
func (p *Processor) advancePersistedToVerified(ctx context.Context, msg *database.Message) error {
	if err := p.faults.Inject(StageVerify, msg.RetryCount > 0); err != nil {
		return err
	}

	// Block number 0: the message row does not carry it forward from
	// ingestion. See DESIGN.md.
	bundle, err := proof.Build(msg.Nonce, 0, msg.TraceID, []byte(msg.Payload), p.key)
	if err != nil {
		return fmt.Errorf("failed to build proof bundle: %w", err)
	}

	if _, err := proof.Verify(bundle); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}

	proofJSON, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to serialize proof bundle: %w", err)
	}
	if err := p.messages.StoreProof(ctx, msg.Nonce, string(proofJSON)); err != nil {
		return err
	}

	if err := p.messages.UpdateState(ctx, msg.Nonce, database.StateVerified, nil); err != nil {
		return err
	}

	verified := event.New(msg.TraceID, msg.Nonce, event.ActorRelayer, event.StepVerified, event.StatusSuccess).
		WithDetail("Simulated light-client verification passed")
	if err := p.emitAndPersist(ctx, verified); err != nil {
		return err
	}

	p.metrics.TransitionsTotal.WithLabelValues(string(database.StatePersisted), string(database.StateVerified)).Inc()
	p.logger.Printf("Message verified nonce=%d", msg.Nonce)
	return nil
}

// advanceVerifiedToExecuted calls the destination executor and performs the
// sent_to_dest -> executed pair atomically from the outside. sent_to_dest
// exists only to make crash recovery well-defined.
func (p *Processor) advanceVerifiedToExecuted(ctx context.Context, msg *database.Message) error {
	amount, err := strconv.ParseUint(msg.Amount, 10, 64)
	if err != nil {
		amount = 0
	}

	var traceBytes [32]byte
	if decoded, err := hex.DecodeString(strings.TrimPrefix(msg.TraceID, "0x")); err == nil {
		copy(traceBytes[:], decoded)
	}

	if err := p.faults.Inject(StageExecute, msg.RetryCount > 0); err != nil {
		return err
	}

	sig, result, err := p.executor.Execute(ctx, msg.Nonce, amount, traceBytes)
	if err != nil {
		return fmt.Errorf("destination execution failed: %w", err)
	}

	resultStr := strconv.FormatUint(result, 10)
	if err := p.messages.UpdateState(ctx, msg.Nonce, database.StateSentToDest, &database.StateUpdate{
		Result:        &resultStr,
		DestSignature: &sig,
	}); err != nil {
		return err
	}

	executed := event.New(msg.TraceID, msg.Nonce, event.ActorRelayer, event.StepExecuted, event.StatusSuccess).
		WithDetail(fmt.Sprintf("dest_sig:%s, result:%d", sig, result))
	if err := p.emitAndPersist(ctx, executed); err != nil {
		return err
	}

	if err := p.messages.UpdateState(ctx, msg.Nonce, database.StateExecuted, nil); err != nil {
		return err
	}

	minted := event.New(msg.TraceID, msg.Nonce, event.ActorDestination, event.StepMinted, event.StatusSuccess).
		WithDetail("Simulated receipt token minted")
	if err := p.emitAndPersist(ctx, minted); err != nil {
		return err
	}

	p.metrics.TransitionsTotal.WithLabelValues(string(database.StateVerified), string(database.StateExecuted)).Inc()
	p.logger.Printf("Destination execution complete nonce=%d sig=%s result=%d", msg.Nonce, sig, result)
	return nil
}

// advanceExecutedToSettled signs the result and calls settle() on the
// escrow contract. When the source RPC is unreachable and simulated
// settlement is enabled, a synthetic transaction hash is recorded instead.
func (p *Processor) advanceExecutedToSettled(ctx context.Context, msg *database.Message) error {
	resultVal := uint64(0)
	if msg.Result.Valid {
		if parsed, err := strconv.ParseUint(msg.Result.String, 10, 64); err == nil {
			resultVal = parsed
		}
	}

	// Encode result as uint256: be64 in the low 8 bytes
	resultBytes := make([]byte, 32)
	binary.BigEndian.PutUint64(resultBytes[24:], resultVal)

	burned := event.New(msg.TraceID, msg.Nonce, event.ActorDestination, event.StepBurned, event.StatusSuccess).
		WithDetail("Simulated receipt token burned for settlement")
	if err := p.emitAndPersist(ctx, burned); err != nil {
		return err
	}

	if err := p.faults.Inject(StageSettle, msg.RetryCount > 0); err != nil {
		return err
	}

	signature, err := ethereum.SignSettlement(p.key, msg.Nonce, resultBytes)
	if err != nil {
		return fmt.Errorf("failed to sign settlement: %w", err)
	}

	txHash, err := p.source.Settle(ctx, p.key, msg.Nonce, resultBytes, signature)
	if err != nil {
		if !p.simulatedSettlement {
			return fmt.Errorf("settlement call failed: %w", err)
		}

		p.logger.Printf("Settlement failed nonce=%d, simulating success for demo: %v", msg.Nonce, err)
		fakeTx := fmt.Sprintf("0xsim_settle_%d", msg.Nonce)
		if err := p.messages.UpdateState(ctx, msg.Nonce, database.StateSettled, &database.StateUpdate{
			SourceSettleTx: &fakeTx,
		}); err != nil {
			return err
		}

		settled := event.New(msg.TraceID, msg.Nonce, event.ActorSource, event.StepSettled, event.StatusSuccess).
			WithDetail("simulated_tx:" + fakeTx)
		if err := p.emitAndPersist(ctx, settled); err != nil {
			return err
		}

		p.metrics.SettlementsTotal.WithLabelValues("simulated").Inc()
		p.metrics.TransitionsTotal.WithLabelValues(string(database.StateExecuted), string(database.StateSettled)).Inc()
		return nil
	}

	if err := p.messages.UpdateState(ctx, msg.Nonce, database.StateSettled, &database.StateUpdate{
		SourceSettleTx: &txHash,
	}); err != nil {
		return err
	}

	settled := event.New(msg.TraceID, msg.Nonce, event.ActorSource, event.StepSettled, event.StatusSuccess).
		WithDetail("tx:" + txHash)
	if err := p.emitAndPersist(ctx, settled); err != nil {
		return err
	}

	p.metrics.SettlementsTotal.WithLabelValues("confirmed").Inc()
	p.metrics.TransitionsTotal.WithLabelValues(string(database.StateExecuted), string(database.StateSettled)).Inc()
	p.logger.Printf("Escrow settled nonce=%d tx=%s", msg.Nonce, txHash)
	return nil
}

// emitAndPersist journals an event and broadcasts it to live subscribers.
// The journal write is part of the containing transition; the broadcast is
// best-effort.
func (p *Processor) emitAndPersist(ctx context.Context, ev event.LifecycleEvent) error {
	if err := p.events.Insert(ctx, ev); err != nil {
		return err
	}
	p.bus.Publish(ev)
	p.metrics.EventsTotal.Inc()
	return nil
}

// extractDescription pulls the human-readable description out of a payload.
// Payload format: 16 bytes trace id, 2 bytes desc length (BE), desc bytes,
// random tail. Returns nil for short payloads or invalid UTF-8.
func extractDescription(payload []byte) *string {
	if len(payload) < 18 {
		return nil
	}
	descLen := int(binary.BigEndian.Uint16(payload[16:18]))
	if descLen == 0 || len(payload) < 18+descLen {
		return nil
	}
	desc := payload[18 : 18+descLen]
	if !utf8.Valid(desc) {
		return nil
	}
	s := string(desc)
	return &s
}

// stepForState maps a state to the lifecycle step a Retry event for it
// should carry
func stepForState(state database.MessageState) event.Step {
	switch state {
	case database.StateObserved, database.StatePersisted:
		return event.StepObserved
	case database.StateVerified:
		return event.StepVerified
	case database.StateSentToDest, database.StateExecuted:
		return event.StepExecuted
	case database.StateRolledBack:
		return event.StepRollback
	default:
		return event.StepSettled
	}
}

// sleepCtx sleeps for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
