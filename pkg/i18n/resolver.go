// Package i18n resolves dotted translation keys against per-language JSON
// dictionaries.
package i18n

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultLanguage is used when no preference can be resolved.
const DefaultLanguage = "es"

// DefaultLanguages lists the languages the site ships dictionaries for.
var DefaultLanguages = []string{"es", "en", "fr", "pt"}

// Dictionary is a nested tree of key segments. Leaves are strings.
type Dictionary map[string]interface{}

// Source fetches the raw dictionary for one language.
type Source interface {
	Fetch(ctx context.Context, lang string) (Dictionary, error)
}

// MissRecorder receives a count for every unresolved key.
type MissRecorder interface {
	RecordTranslationMiss(lang string)
}

// Options configures a Resolver.
type Options struct {
	Languages       []string
	DefaultLanguage string
	Logger          *zap.Logger
	Metrics         MissRecorder
	// OnMiss is invoked synchronously for each miss after logging.
	OnMiss func(lang, key string)
}

type snapshot struct {
	dictionaries map[string]Dictionary
}

// Resolver holds the loaded dictionaries. It is safe for concurrent use and
// stays usable before loading completes, returning raw keys.
type Resolver struct {
	source    Source
	languages []string
	fallback  string
	logger    *zap.Logger
	metrics   MissRecorder
	onMiss    func(lang, key string)

	current atomic.Pointer[snapshot]
	loadMu  sync.Mutex
}

// NewResolver constructs an unloaded resolver.
func NewResolver(source Source, opts Options) *Resolver {
	languages := opts.Languages
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	fallback := opts.DefaultLanguage
	if fallback == "" {
		fallback = DefaultLanguage
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:    source,
		languages: append([]string(nil), languages...),
		fallback:  fallback,
		logger:    logger,
		metrics:   opts.Metrics,
		onMiss:    opts.OnMiss,
	}
}

// Load fetches every configured language concurrently and swaps the whole set
// in one step. A language that fails to load is left empty; the resolver still
// becomes ready and the joined fetch errors are returned.
func (r *Resolver) Load(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	var (
		mu       sync.Mutex
		loaded   = make(map[string]Dictionary, len(r.languages))
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, lang := range r.languages {
		lang := lang
		g.Go(func() error {
			dict, err := r.source.Fetch(gctx, lang)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("translation dictionary unavailable", zap.String("lang", lang), zap.Error(err))
				failures = append(failures, fmt.Errorf("load %s: %w", lang, err))
				return nil
			}
			loaded[lang] = dict
			return nil
		})
	}
	_ = g.Wait()

	r.current.Store(&snapshot{dictionaries: loaded})
	r.logger.Info("translations loaded", zap.Int("languages", len(loaded)), zap.Int("failed", len(failures)))
	return errors.Join(failures...)
}

// Ready reports whether a load attempt has completed.
func (r *Resolver) Ready() bool {
	return r.current.Load() != nil
}

// Languages returns the configured language codes in order.
func (r *Resolver) Languages() []string {
	return append([]string(nil), r.languages...)
}

// Default returns the fallback language.
func (r *Resolver) Default() string {
	return r.fallback
}

// Supports reports whether lang is one of the configured languages.
func (r *Resolver) Supports(lang string) bool {
	for _, candidate := range r.languages {
		if candidate == lang {
			return true
		}
	}
	return false
}

// Dictionary returns the loaded tree for lang. The result must not be mutated.
func (r *Resolver) Dictionary(lang string) (Dictionary, bool) {
	snap := r.current.Load()
	if snap == nil {
		return nil, false
	}
	dict, ok := snap.dictionaries[lang]
	return dict, ok
}

// Lookup resolves key without reporting a miss.
func (r *Resolver) Lookup(lang, key string) (string, bool) {
	snap := r.current.Load()
	if snap == nil {
		return "", false
	}
	return resolve(snap.dictionaries[lang], key)
}

// T resolves key for lang. Unresolved keys are reported and returned unchanged.
// Before the first load completes the key is returned without a miss.
func (r *Resolver) T(lang, key string) string {
	snap := r.current.Load()
	if snap == nil {
		return key
	}
	if value, ok := resolve(snap.dictionaries[lang], key); ok {
		return value
	}
	r.miss(lang, key)
	return key
}

// Translator binds T to a single language, the shape templates consume.
func (r *Resolver) Translator(lang string) func(key string) string {
	return func(key string) string {
		return r.T(lang, key)
	}
}

func (r *Resolver) miss(lang, key string) {
	r.logger.Warn("translation key not found", zap.String("lang", lang), zap.String("key", key))
	if r.metrics != nil {
		r.metrics.RecordTranslationMiss(lang)
	}
	if r.onMiss != nil {
		r.onMiss(lang, key)
	}
}

func resolve(dict Dictionary, key string) (string, bool) {
	if dict == nil || key == "" {
		return "", false
	}
	var node interface{} = map[string]interface{}(dict)
	for _, segment := range strings.Split(key, ".") {
		branch, ok := asMap(node)
		if !ok {
			return "", false
		}
		node, ok = branch[segment]
		if !ok {
			return "", false
		}
	}
	value, ok := node.(string)
	return value, ok
}

func asMap(node interface{}) (map[string]interface{}, bool) {
	switch typed := node.(type) {
	case map[string]interface{}:
		return typed, true
	case Dictionary:
		return typed, true
	default:
		return nil, false
	}
}

// FSSource reads <lang>.json files from a filesystem.
type FSSource struct {
	FS fs.FS
}

// Fetch implements Source.
func (s FSSource) Fetch(ctx context.Context, lang string) (Dictionary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(s.FS, lang+".json")
	if err != nil {
		return nil, err
	}
	var dict Dictionary
	if err := json.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("decode %s.json: %w", lang, err)
	}
	return dict, nil
}
