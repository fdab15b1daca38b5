// Package store persists optimization results so finished runs can be served
// from cache and running ones can be polled.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/progress"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Load when no result is stored under a key.
var ErrNotFound = errors.New("result not found")

// Store saves and loads results by key.
type Store interface {
	Save(ctx context.Context, key string, r result.Result) error
	Load(ctx context.Context, key string) (result.Result, error)
}

// keyNamespace scopes request keys.
var keyNamespace = uuid.MustParse("6f1c7a52-1d1e-4f0e-9a57-0b0e3f3c2d41")

type keyInput struct {
	Players []roster.Player `json:"players"`
	Policy  string          `json:"policy"`
	IDs     []string        `json:"ids"`
	Params  any             `json:"params"`
}

// Key derives a stable name-based UUID for an optimization request, so the
// same roster, policy, selection and parameters map to the same stored result.
// The selection order does not matter.
func Key(players []roster.Player, policy lineup.Policy, ids []string, params any) (string, error) {
	sorted := append([]string(nil), ids...)
	for i := range sorted {
		sorted[i] = strings.TrimSpace(sorted[i])
	}
	sort.Strings(sorted)

	payload, err := json.Marshal(keyInput{Players: players, Policy: policy.String(), IDs: sorted, Params: params})
	if err != nil {
		return "", fmt.Errorf("failed to encode request key: %w", err)
	}
	return uuid.NewSHA1(keyNamespace, payload).String(), nil
}

// Sink adapts a store to a progress sink. Failed saves are logged and do not
// interrupt the run.
func Sink(ctx context.Context, st Store, key string, logger *zap.Logger) progress.Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(r result.Result) {
		if err := st.Save(ctx, key, r); err != nil {
			logger.Warn("failed to persist result",
				zap.String("op", "store.Sink"),
				zap.String("key", key),
				zap.String("status", string(r.Status)),
				zap.Error(err),
			)
		}
	}
}

// Multi writes to every store and reads from the first that has the key.
type Multi []Store

func (m Multi) Save(ctx context.Context, key string, r result.Result) error {
	var err error
	for _, st := range m {
		err = multierr.Append(err, st.Save(ctx, key, r))
	}
	return err
}

func (m Multi) Load(ctx context.Context, key string) (result.Result, error) {
	var errs error
	for _, st := range m {
		r, err := st.Load(ctx, key)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrNotFound) {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return result.Result{}, errs
	}
	return result.Result{}, fmt.Errorf("key %s: %w", key, ErrNotFound)
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("invalid result key %q", key)
	}
	return nil
}
