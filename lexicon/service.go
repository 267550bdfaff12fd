package lexicon

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wfunc/wordchain/language"
	"github.com/wfunc/wordchain/logger"
	"github.com/wfunc/wordchain/normalize"
)

// Lookup outcomes reported to the Recorder.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
	OutcomeCached   = "cached"
)

// Recorder receives lookup and cache observations, usually for metrics.
type Recorder interface {
	ObserveLookup(lang, outcome string, d time.Duration)
	ObserveCache(lang string, hit bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLookup(string, string, time.Duration) {}
func (nopRecorder) ObserveCache(string, bool)                   {}

// Options tunes a Service.
type Options struct {
	// Timeout bounds each external lookup on its own.
	Timeout time.Duration
	// CacheNegative stores definitive negatives as Invalid.
	CacheNegative bool
	// MaxConcurrency bounds the lookups in flight for one word.
	MaxConcurrency int
	Recorder       Recorder
}

// Service fans a word out to the source in several languages at once and
// populates the cache with every answer it is sure about.
type Service struct {
	source  Source
	cache   Cache
	options Options
	group   singleflight.Group
	pending sync.WaitGroup
}

func NewService(source Source, cache Cache, options Options) *Service {
	if options.Timeout <= 0 {
		options.Timeout = 5 * time.Second
	}
	if options.MaxConcurrency <= 0 {
		options.MaxConcurrency = 8
	}
	if options.Recorder == nil {
		options.Recorder = nopRecorder{}
	}
	return &Service{source: source, cache: cache, options: options}
}

// Cache returns the cache the service reads and populates.
func (s *Service) Cache() Cache {
	return s.cache
}

// Resolution observes one fan-out. Decision resolves on the first positive
// answer or once every lookup finished; Wait resolves only when every lookup
// finished and its cache writes were applied.
type Resolution struct {
	langs      []string
	confirmed  map[string]bool
	mutex      sync.Mutex
	positive   chan struct{}
	once       sync.Once
	done       chan struct{}
	firstMatch string
}

func (r *Resolution) confirm(lang string) {
	r.mutex.Lock()
	r.confirmed[lang] = true
	r.mutex.Unlock()
	r.once.Do(func() {
		r.mutex.Lock()
		r.firstMatch = lang
		r.mutex.Unlock()
		close(r.positive)
	})
}

// Decision blocks until the outcome is known or ctx ends. The language is the
// first one that confirmed the word.
func (r *Resolution) Decision(ctx context.Context) (bool, string, error) {
	select {
	case <-r.positive:
		r.mutex.Lock()
		defer r.mutex.Unlock()
		return true, r.firstMatch, nil
	case <-r.done:
		select {
		case <-r.positive:
			r.mutex.Lock()
			defer r.mutex.Unlock()
			return true, r.firstMatch, nil
		default:
			return false, "", nil
		}
	case <-ctx.Done():
		return false, "", ctx.Err()
	}
}

// Wait blocks until every lookup is finished and returns all confirming
// languages in the order they were requested.
func (r *Resolution) Wait() []string {
	<-r.done
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var langs []string
	for _, lang := range r.langs {
		if r.confirmed[lang] {
			langs = append(langs, lang)
		}
	}
	return langs
}

// Resolve starts one lookup per language. The lookups run on a context
// detached from ctx's cancellation, so cache population finishes even when
// the caller stops waiting.
func (s *Service) Resolve(ctx context.Context, word normalize.Word, langs []string) *Resolution {
	r := &Resolution{
		langs:     langs,
		confirmed: make(map[string]bool, len(langs)),
		positive:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	detached := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(s.options.MaxConcurrency)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		for _, lang := range langs {
			g.Go(func() error {
				if s.lookup(detached, word, lang) {
					r.confirm(lang)
				}
				return nil
			})
		}
		g.Wait()
		close(r.done)
	}()
	return r
}

// Wait blocks until every background lookup started so far has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// lookup returns true only for a confirmed positive.
func (s *Service) lookup(ctx context.Context, word normalize.Word, lang string) bool {
	form := word.LookupForm(lang)
	if v := s.cached(ctx, form, lang); v != Unknown {
		return v == Valid
	}

	v, _, _ := s.group.Do(CacheKey(form, lang), func() (interface{}, error) {
		// another flight may have finished between the check above and now
		if v := s.cached(ctx, form, lang); v != Unknown {
			return v, nil
		}
		return s.query(ctx, word, form, lang), nil
	})
	return v.(Verdict) == Valid
}

func (s *Service) cached(ctx context.Context, form, lang string) Verdict {
	v, err := s.cache.Lookup(ctx, form, lang)
	if err != nil {
		logger.Log.Warnf("cache lookup failed for language %s: %v", lang, err)
		return Unknown
	}
	if v != Unknown {
		s.options.Recorder.ObserveLookup(lang, OutcomeCached, 0)
	}
	return v
}

func (s *Service) query(ctx context.Context, word normalize.Word, form, lang string) Verdict {
	lookupCtx, cancel := context.WithTimeout(ctx, s.options.Timeout)
	defer cancel()

	start := time.Now()
	exists, err := s.source.Exists(lookupCtx, form, lang)
	elapsed := time.Since(start)
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		s.options.Recorder.ObserveLookup(lang, outcome, elapsed)
		logger.Log.Warnf("lookup in %s failed after %v: %v", lang, elapsed, err)
		return Unknown
	}

	if !exists {
		s.options.Recorder.ObserveLookup(lang, OutcomeNotFound, elapsed)
		logger.Log.Debugf("%q is not a word in %s", form, lang)
		if s.options.CacheNegative {
			s.store(ctx, form, lang, false)
		}
		return Invalid
	}

	s.options.Recorder.ObserveLookup(lang, OutcomeFound, elapsed)
	logger.Log.Debugf("%q is a word in %s", form, lang)
	s.store(ctx, form, lang, true)
	if lang != language.English && normalize.IsEnglishAlphabet(word.Lower) {
		s.store(ctx, word.LookupForm(language.English), language.English, true)
	}
	return Valid
}

// store writes a verdict. English entries are only admitted for words made of
// English letters.
func (s *Service) store(ctx context.Context, form, lang string, valid bool) {
	if lang == language.English && !normalize.IsEnglishAlphabet(form) {
		return
	}
	if err := s.cache.Store(ctx, form, lang, valid); err != nil {
		logger.Log.Warnf("cache store failed for language %s: %v", lang, err)
	}
}
