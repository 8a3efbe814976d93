package razroom

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/razzie/razroom/pkg/store"
	"go.uber.org/zap"
)

const DefaultKFactor = 100

var ErrUnknownVariant = errors.New("unknown variant")

// Engine runs room sessions of every registered variant on top of a Store.
// Compound operations on one session are serialized by a per-session lock.
type Engine struct {
	st       store.Store
	log      *zap.Logger
	now      func() time.Time
	rec      Recorder
	auth     Authority
	kFactor  float64
	mtx      sync.RWMutex
	variants map[string]Variant
	locks    sync.Map
}

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithRecorder(rec Recorder) Option {
	return func(e *Engine) {
		e.rec = rec
	}
}

func WithAuthority(auth Authority) Option {
	return func(e *Engine) {
		e.auth = auth
	}
}

func WithKFactor(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.kFactor = k
		}
	}
}

func New(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		st:       st,
		log:      zap.NewNop(),
		now:      time.Now,
		kFactor:  DefaultKFactor,
		variants: make(map[string]Variant),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a variant. A nil or duplicate variant is a wiring mistake
// and panics.
func (e *Engine) Register(v Variant) {
	if v == nil {
		panic("razroom: Register variant is nil")
	}
	name := strings.ToLower(v.Name())
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if _, dup := e.variants[name]; dup {
		panic("razroom: Register called twice for variant " + name)
	}
	e.variants[name] = v
}

func (e *Engine) Variant(name string) (Variant, bool) {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	v, ok := e.variants[strings.ToLower(name)]
	return v, ok
}

func (e *Engine) Variants() []string {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	names := make([]string, 0, len(e.variants))
	for name := range e.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) lock(ref Ref) *sync.Mutex {
	mtx, _ := e.locks.LoadOrStore(ref.doc(), &sync.Mutex{})
	return mtx.(*sync.Mutex)
}

// with runs fn on the session's Table while holding the session lock.
func (e *Engine) with(ref Ref, fn func(*Table) error) error {
	mtx := e.lock(ref)
	mtx.Lock()
	defer mtx.Unlock()
	return fn(newTable(e.st, ref, e.now))
}

// withVariant is like with, but also resolves the session's variant.
func (e *Engine) withVariant(ref Ref, fn func(*Table, Variant) error) error {
	v, ok := e.Variant(ref.Variant)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariant, ref.Variant)
	}
	return e.with(ref, func(t *Table) error {
		return fn(t, v)
	})
}
