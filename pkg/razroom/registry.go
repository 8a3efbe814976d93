package razroom

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

const (
	charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	csLen   = byte(len(charset))

	idLength = 8
)

// GenerateID returns a random alphanumeric string.
func GenerateID(length int) string {
	if length == 0 {
		return ""
	}
	output := make([]byte, 0, length)
	batchSize := length + length/4
	buf := make([]byte, batchSize)
	for {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			panic(err)
		}
		for _, b := range buf {
			if b < (csLen * 4) {
				output = append(output, charset[b%csLen])
				if len(output) == length {
					return string(output)
				}
			}
		}
	}
}

// CreateSession validates params against the variant's schema and creates a
// waiting room. Ids are generated until one is claimed.
func (e *Engine) CreateSession(ctx context.Context, variant string, params map[string]any) (string, error) {
	v, ok := e.Variant(variant)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
	cfg, err := v.Schema().Validate(params)
	if err != nil {
		return "", err
	}
	for {
		ref := Ref{Variant: strings.ToLower(v.Name()), ID: "g" + GenerateID(idLength)}
		var claimed bool
		err := e.with(ref, func(t *Table) (err error) {
			if claimed, err = t.setIfAbsent(ctx, fieldStatus, StatusWaiting); err != nil || !claimed {
				return
			}
			return t.initSession(ctx, cfg)
		})
		if err != nil {
			return "", fmt.Errorf("create %s session: %w", variant, err)
		}
		if claimed {
			e.log.Info("new session", zap.Stringer("room", ref), zap.Int("max_players", cfg.MaxPlayers))
			roomsCreated.WithLabelValues(ref.Variant).Inc()
			return ref.ID, nil
		}
	}
}

func (t *Table) initSession(ctx context.Context, cfg *Config) error {
	if err := t.set(ctx, fieldConfig, cfg); err != nil {
		return err
	}
	t.cfg = cfg
	for _, flag := range []string{fieldDraw, fieldSurrender, fieldEndedByTimeout} {
		if err := t.set(ctx, flag, false); err != nil {
			return err
		}
	}
	for _, flag := range allFlags {
		if err := t.set(ctx, flag, false); err != nil {
			return err
		}
	}
	return t.clearResult(ctx)
}

// DeleteSession removes the whole session unconditionally.
func (e *Engine) DeleteSession(ctx context.Context, ref Ref) error {
	return e.with(ref, func(t *Table) error {
		if err := t.del(ctx, ""); err != nil {
			return err
		}
		e.locks.Delete(ref.doc())
		e.log.Info("session deleted", zap.Stringer("room", ref))
		return nil
	})
}

// Exists is a single read and takes no session lock, so probing unknown ids
// leaves nothing behind.
func (e *Engine) Exists(ctx context.Context, ref Ref) (bool, error) {
	return newTable(e.st, ref, e.now).exists(ctx)
}

// Reap deletes the session if it is not ongoing and nobody is seated.
func (e *Engine) Reap(ctx context.Context, ref Ref) (bool, error) {
	var reaped bool
	err := e.with(ref, func(t *Table) error {
		status, err := t.Status(ctx)
		if err != nil || status == "" || status == StatusOngoing {
			return err
		}
		chairs, err := t.Chairs(ctx)
		if err != nil || len(chairs) > 0 {
			return err
		}
		if err := t.del(ctx, ""); err != nil {
			return err
		}
		e.locks.Delete(ref.doc())
		reaped = true
		e.log.Info("session expired", zap.Stringer("room", ref))
		return nil
	})
	return reaped, err
}
