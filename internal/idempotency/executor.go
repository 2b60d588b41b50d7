package idempotency

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/storelane/checkout/internal/apperr"
	"github.com/storelane/checkout/internal/fingerprint"
	"github.com/storelane/checkout/internal/logging"
)

// Handler is the wrapped business operation. It runs at most once per
// distinct (key, scope, requestHash) triple.
type Handler func(ctx context.Context) (interface{}, error)

// Outcome is what the HTTP layer writes back: a status code and a serialized
// JSON body, either freshly produced or replayed from the ledger.
type Outcome struct {
	StatusCode int
	Body       []byte
	Replayed   bool
}

// Executor decorates mutating operations with the ledger so client retries
// are safe. All coordination happens through the store's conditional writes.
type Executor struct {
	store *Store
}

// NewExecutor wraps a ledger store.
func NewExecutor(store *Store) *Executor {
	return &Executor{store: store}
}

// Execute runs handler under the idempotency guard for (scope, key).
//
//   - fresh key: handler runs, its outcome is recorded, then returned
//   - terminal record, same hash: the stored response replays verbatim
//   - FAILED record, same hash: the record re-arms and handler retries
//   - any record, different hash: Conflict (key reuse)
//   - PROCESSING record, same hash: Conflict (in flight), never blocks
func (e *Executor) Execute(ctx context.Context, scope, key string, request interface{}, successStatus int, handler Handler) (Outcome, error) {
	hash, err := fingerprint.Hash(request)
	if err != nil {
		return Outcome{}, apperr.BadRequest("unfingerprintable_request", err)
	}

	started, existing, err := e.store.TryBegin(ctx, key, scope, hash)
	if err != nil {
		return Outcome{}, apperr.Unexpected("idempotency_begin_failed", err)
	}

	if !started {
		return e.resolveExisting(ctx, scope, key, hash, successStatus, existing, handler)
	}

	return e.run(ctx, scope, key, successStatus, handler)
}

func (e *Executor) resolveExisting(ctx context.Context, scope, key, hash string, successStatus int, existing *Record, handler Handler) (Outcome, error) {
	if existing.RequestHash != hash {
		// Same key, different payload: a client bug, not a retry.
		return Outcome{}, apperr.Conflict("idempotency_key_reuse")
	}

	switch existing.Status {
	case StatusCompleted:
		// Replay the original response byte for byte.
		return Outcome{
			StatusCode: existing.ResponseStatus,
			Body:       []byte(existing.ResponseBody),
			Replayed:   true,
		}, nil
	case StatusFailed:
		rearmed, err := e.store.Rearm(ctx, key, scope)
		if err != nil {
			return Outcome{}, apperr.Unexpected("idempotency_rearm_failed", err)
		}
		if !rearmed {
			// A concurrent retry won the re-arm; treat like in-flight.
			return Outcome{}, apperr.Conflict("request_in_progress")
		}
		return e.run(ctx, scope, key, successStatus, handler)
	default:
		// Still PROCESSING elsewhere. Never wait, never double-invoke.
		return Outcome{}, apperr.Conflict("request_in_progress")
	}
}

func (e *Executor) run(ctx context.Context, scope, key string, successStatus int, handler Handler) (Outcome, error) {
	result, err := handler(ctx)
	if err != nil {
		status := apperr.HTTPStatus(err)
		body, mErr := json.Marshal(map[string]string{"error": apperr.CodeOf(err)})
		if mErr != nil {
			body = []byte(`{"error":"internal_error"}`)
		}
		if cErr := e.store.Complete(ctx, key, scope, StatusFailed, string(body), status); cErr != nil {
			logging.Error("failed to record handler failure", logging.Fields{
				"scope": scope, "idempotency_key": key, "detail": cErr.Error(),
			})
		}
		return Outcome{}, err
	}

	body, err := json.Marshal(result)
	if err != nil {
		return Outcome{}, apperr.Unexpected("response_serialize_failed", fmt.Errorf("marshal response: %w", err))
	}

	if err := e.store.Complete(ctx, key, scope, StatusCompleted, string(body), successStatus); err != nil {
		// The work happened; losing the replay cache must not fail the request.
		logging.Error("failed to record completion", logging.Fields{
			"scope": scope, "idempotency_key": key, "detail": err.Error(),
		})
	}

	return Outcome{StatusCode: successStatus, Body: body}, nil
}
