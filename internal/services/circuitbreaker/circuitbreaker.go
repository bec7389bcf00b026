// Package circuitbreaker guards each translation provider behind a
// redis-backed breaker so a failing provider sheds its batches fast
// instead of burning the worker pool on doomed calls. State lives in
// Redis, shared across relay instances.
package circuitbreaker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fluxtranslate/flux-relay/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

const (
	keyPrefix          = "flux_relay:breaker:"
	stateKey           = "state"
	failureCountKey    = "failure_count"
	successCountKey    = "success_count"
	lastFailureTimeKey = "last_failure_time"
	lastStateChangeKey = "last_state_change"

	defaultFailureThreshold = 5
	defaultSuccessThreshold = 3
	defaultOpenTimeout      = 30 * time.Second

	opTimeout = 1 * time.Second
)

// Lua scripts keep the count/state updates atomic without read-modify-
// write round trips from Go.
const (
	// recordSuccessScript resets the failure count and, in HalfOpen,
	// counts successes toward re-closing the breaker.
	// KEYS: state, failure_count, success_count, last_state_change
	// ARGV: success threshold, unix timestamp
	recordSuccessScript = `
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		redis.call('SET', KEYS[2], 0)

		if state == 2 then
			local count = redis.call('INCR', KEYS[3])
			if count >= tonumber(ARGV[1]) then
				redis.call('SET', KEYS[1], 0)
				redis.call('SET', KEYS[3], 0)
				redis.call('SET', KEYS[4], ARGV[2])
				return 2
			end
			return 1
		end
		return 0
	`

	// recordFailureScript counts the failure and trips the breaker when
	// the threshold is reached or a HalfOpen probe fails.
	// KEYS: state, failure_count, last_failure_time, last_state_change, success_count
	// ARGV: failure threshold, unix timestamp
	recordFailureScript = `
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		local failureCount = redis.call('INCR', KEYS[2])
		redis.call('SET', KEYS[3], ARGV[2])

		local shouldOpen = (state == 0 and failureCount >= tonumber(ARGV[1])) or state == 2

		if shouldOpen then
			redis.call('SET', KEYS[1], 1)
			redis.call('SET', KEYS[4], ARGV[2])
			redis.call('SET', KEYS[5], '0')
			return 1
		end
		return 0
	`
)

// CircuitBreaker tracks one provider's health.
type CircuitBreaker struct {
	client           *redis.Client
	provider         models.ProviderID
	prefix           string
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

// NewForProvider creates a breaker for one provider from the shared
// config, initializing its redis state if absent.
func NewForProvider(client *redis.Client, provider models.ProviderID, cfg models.CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		client:           client,
		provider:         provider,
		prefix:           keyPrefix + string(provider) + ":",
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		openTimeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	if cb.failureThreshold <= 0 {
		cb.failureThreshold = defaultFailureThreshold
	}
	if cb.successThreshold <= 0 {
		cb.successThreshold = defaultSuccessThreshold
	}
	if cb.openTimeout <= 0 {
		cb.openTimeout = defaultOpenTimeout
	}

	cb.initializeState()
	return cb
}

func (cb *CircuitBreaker) key(name string) string { return cb.prefix + name }

func (cb *CircuitBreaker) initializeState() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	exists, err := cb.client.Exists(ctx, cb.key(stateKey)).Result()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to check state existence for %s: %v", cb.provider, err)
		return
	}
	if exists != 0 {
		return
	}

	pipe := cb.client.Pipeline()
	pipe.Set(ctx, cb.key(stateKey), int(Closed), 0)
	pipe.Set(ctx, cb.key(failureCountKey), 0, 0)
	pipe.Set(ctx, cb.key(successCountKey), 0, 0)
	pipe.Set(ctx, cb.key(lastStateChangeKey), time.Now().Unix(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to initialize state for %s: %v", cb.provider, err)
	}
}

// CanExecute reports whether a provider call may proceed. An Open
// breaker transitions to HalfOpen (allowing one probe) once the open
// timeout has elapsed. Redis failures fail open: translation keeps
// working without breaker protection.
func (cb *CircuitBreaker) CanExecute() bool {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	state, err := cb.getState(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to get state for %s, allowing execution: %v", cb.provider, err)
		return true
	}

	switch state {
	case Closed, HalfOpen:
		return true
	case Open:
		lastFailure, err := cb.client.Get(ctx, cb.key(lastFailureTimeKey)).Int64()
		if err != nil {
			fiberlog.Errorf("CircuitBreaker: failed to get last failure time for %s: %v", cb.provider, err)
			return false
		}
		if time.Since(time.Unix(lastFailure, 0)) > cb.openTimeout {
			return cb.transitionTo(HalfOpen)
		}
		return false
	default:
		return false
	}
}

// RecordSuccess notes a successful provider call.
func (cb *CircuitBreaker) RecordSuccess() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	keys := []string{
		cb.key(stateKey),
		cb.key(failureCountKey),
		cb.key(successCountKey),
		cb.key(lastStateChangeKey),
	}
	result, err := cb.client.Eval(ctx, recordSuccessScript, keys, cb.successThreshold, time.Now().Unix()).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to record success for %s: %v", cb.provider, err)
		return
	}
	if result == 2 {
		fiberlog.Infof("CircuitBreaker: %s closed after recovery", cb.provider)
	}
}

// RecordFailure notes a failed provider call, possibly tripping the
// breaker.
func (cb *CircuitBreaker) RecordFailure() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	keys := []string{
		cb.key(stateKey),
		cb.key(failureCountKey),
		cb.key(lastFailureTimeKey),
		cb.key(lastStateChangeKey),
		cb.key(successCountKey),
	}
	result, err := cb.client.Eval(ctx, recordFailureScript, keys, cb.failureThreshold, time.Now().Unix()).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to record failure for %s: %v", cb.provider, err)
		return
	}
	if result == 1 {
		fiberlog.Warnf("CircuitBreaker: %s opened after repeated failures", cb.provider)
	}
}

func (cb *CircuitBreaker) getState(ctx context.Context) (State, error) {
	stateStr, err := cb.client.Get(ctx, cb.key(stateKey)).Result()
	if err != nil {
		return Closed, fmt.Errorf("failed to get circuit breaker state: %w", err)
	}
	stateInt, err := strconv.Atoi(stateStr)
	if err != nil {
		return Closed, fmt.Errorf("invalid state value %q: %w", stateStr, err)
	}
	return State(stateInt), nil
}

func (cb *CircuitBreaker) transitionTo(newState State) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := cb.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := cb.getState(ctx)
		if err != nil {
			return err
		}
		if current == newState {
			return nil
		}

		pipe := tx.TxPipeline()
		pipe.Set(ctx, cb.key(stateKey), int(newState), 0)
		pipe.Set(ctx, cb.key(lastStateChangeKey), time.Now().Unix(), 0)
		if newState != HalfOpen {
			pipe.Set(ctx, cb.key(successCountKey), 0, 0)
		}
		_, err = pipe.Exec(ctx)
		return err
	}, cb.key(stateKey))
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: %s transition to %s failed: %v", cb.provider, newState, err)
		return false
	}

	fiberlog.Debugf("CircuitBreaker: %s transitioned to %s", cb.provider, newState)
	return true
}
