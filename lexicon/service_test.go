package lexicon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/wordchain/normalize"
)

// MockSource answers from a per-language script and counts calls.
type MockSource struct {
	answers map[string]bool
	errs    map[string]error
	delays  map[string]time.Duration
	calls   map[string]int
	mutex   sync.Mutex
}

func NewMockSource() *MockSource {
	return &MockSource{
		answers: make(map[string]bool),
		errs:    make(map[string]error),
		delays:  make(map[string]time.Duration),
		calls:   make(map[string]int),
	}
}

func (m *MockSource) Exists(ctx context.Context, word, lang string) (bool, error) {
	m.mutex.Lock()
	m.calls[CacheKey(word, lang)]++
	delay := m.delays[lang]
	err := m.errs[lang]
	exists := m.answers[CacheKey(word, lang)]
	m.mutex.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return exists, err
}

func (m *MockSource) Calls(word, lang string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.calls[CacheKey(word, lang)]
}

func (m *MockSource) TotalCalls() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func mustWord(t *testing.T, raw string) normalize.Word {
	t.Helper()
	w, err := normalize.NewNormalizer("!").Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize(%q) failed: %v", raw, err)
	}
	return w
}

func verdict(t *testing.T, c Cache, word, lang string) Verdict {
	t.Helper()
	v, err := c.Lookup(context.Background(), word, lang)
	if err != nil {
		t.Fatalf("cache lookup failed: %v", err)
	}
	return v
}

func TestService_AcceptsAndCachesEveryConfirmingLanguage(t *testing.T) {
	source := NewMockSource()
	source.answers["radio:en"] = true
	source.answers["radio:de"] = true
	source.answers["radio:it"] = true
	cache := NewMemoryCache()
	svc := NewService(source, cache, Options{Timeout: time.Second})

	res := svc.Resolve(context.Background(), mustWord(t, "radio"), []string{"en", "de", "fr", "it", "nl"})
	accepted, lang, err := res.Decision(context.Background())
	if err != nil {
		t.Fatalf("Decision failed: %v", err)
	}
	if !accepted || lang == "" {
		t.Fatalf("Expected radio to be accepted, got %v %q", accepted, lang)
	}

	confirmed := res.Wait()
	if len(confirmed) != 3 || confirmed[0] != "en" || confirmed[1] != "de" || confirmed[2] != "it" {
		t.Errorf("Expected confirming languages [en de it], got %v", confirmed)
	}
	for _, l := range []string{"en", "de", "it"} {
		if verdict(t, cache, "radio", l) != Valid {
			t.Errorf("Expected radio to be cached as valid in %s", l)
		}
	}
	for _, l := range []string{"fr", "nl"} {
		if verdict(t, cache, "radio", l) != Unknown {
			t.Errorf("Negative answers must not be cached in %s by default", l)
		}
	}
}

func TestService_FastAcceptDoesNotWaitForSlowLanguages(t *testing.T) {
	source := NewMockSource()
	source.answers["hund:de"] = true
	source.answers["hund:da"] = true
	source.delays["da"] = 200 * time.Millisecond
	cache := NewMemoryCache()
	svc := NewService(source, cache, Options{Timeout: time.Second})

	res := svc.Resolve(context.Background(), mustWord(t, "hund"), []string{"da", "de"})
	start := time.Now()
	accepted, lang, _ := res.Decision(context.Background())
	if !accepted || lang != "de" {
		t.Fatalf("Expected fast accept through de, got %v %q", accepted, lang)
	}
	if time.Since(start) >= 200*time.Millisecond {
		t.Error("Decision should not wait for the slow language")
	}

	res.Wait()
	if verdict(t, cache, "hund", "da") != Valid {
		t.Error("The slow confirming language should still be cached")
	}
}

func TestService_RejectsWhenNothingConfirms(t *testing.T) {
	source := NewMockSource()
	svc := NewService(source, NewMemoryCache(), Options{Timeout: time.Second})

	res := svc.Resolve(context.Background(), mustWord(t, "xyzzyx"), []string{"en", "de"})
	accepted, _, err := res.Decision(context.Background())
	if err != nil || accepted {
		t.Errorf("Expected rejection, got accepted=%v err=%v", accepted, err)
	}
	if got := res.Wait(); len(got) != 0 {
		t.Errorf("Expected no confirming languages, got %v", got)
	}
}

func TestService_CachedPairNeverQueriedTwice(t *testing.T) {
	source := NewMockSource()
	source.answers["apple:en"] = true
	svc := NewService(source, NewMemoryCache(), Options{Timeout: time.Second})

	for i := 0; i < 3; i++ {
		svc.Resolve(context.Background(), mustWord(t, "apple"), []string{"en"}).Wait()
	}
	if n := source.Calls("apple", "en"); n != 1 {
		t.Errorf("Expected one external call, got %d", n)
	}
}

func TestService_ConcurrentIdenticalLookupsCollapse(t *testing.T) {
	source := NewMockSource()
	source.answers["apple:en"] = true
	source.delays["en"] = 50 * time.Millisecond
	svc := NewService(source, NewMemoryCache(), Options{Timeout: time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Resolve(context.Background(), mustWord(t, "apple"), []string{"en"}).Wait()
		}()
	}
	wg.Wait()
	if n := source.Calls("apple", "en"); n != 1 {
		t.Errorf("Expected concurrent lookups to share one call, got %d", n)
	}
}

func TestService_EnglishCrossCapture(t *testing.T) {
	source := NewMockSource()
	source.answers["taxi:de"] = true
	source.answers["café:fr"] = true
	cache := NewMemoryCache()
	svc := NewService(source, cache, Options{Timeout: time.Second})

	svc.Resolve(context.Background(), mustWord(t, "taxi"), []string{"de"}).Wait()
	if verdict(t, cache, "taxi", "en") != Valid {
		t.Error("An English-alphabet word confirmed in German should be cached for English")
	}

	svc.Resolve(context.Background(), mustWord(t, "café"), []string{"fr"}).Wait()
	if verdict(t, cache, "café", "fr") != Valid {
		t.Error("café should be cached for French")
	}
	if verdict(t, cache, "cafe", "en") != Unknown {
		t.Error("Accented words must not create English entries")
	}
}

func TestService_TimeoutIsUnknown(t *testing.T) {
	source := NewMockSource()
	source.answers["hund:de"] = true
	source.answers["hund:da"] = true
	source.delays["da"] = time.Second
	cache := NewMemoryCache()
	svc := NewService(source, cache, Options{Timeout: 20 * time.Millisecond, CacheNegative: true})

	res := svc.Resolve(context.Background(), mustWord(t, "hund"), []string{"da", "de"})
	if got := res.Wait(); len(got) != 1 || got[0] != "de" {
		t.Errorf("Expected only de to confirm, got %v", got)
	}
	if verdict(t, cache, "hund", "da") != Unknown {
		t.Error("A timed out lookup must not leave a cache entry")
	}
}

func TestService_TransportErrorDoesNotBlockOthers(t *testing.T) {
	source := NewMockSource()
	source.answers["apple:en"] = true
	source.errs["de"] = errors.New("connection reset")
	svc := NewService(source, NewMemoryCache(), Options{Timeout: time.Second})

	res := svc.Resolve(context.Background(), mustWord(t, "apple"), []string{"de", "en"})
	accepted, lang, _ := res.Decision(context.Background())
	if !accepted || lang != "en" {
		t.Errorf("Expected acceptance through en, got %v %q", accepted, lang)
	}
}

func TestService_NegativeCachingPolicy(t *testing.T) {
	source := NewMockSource()
	cache := NewMemoryCache()
	svc := NewService(source, cache, Options{Timeout: time.Second, CacheNegative: true})

	svc.Resolve(context.Background(), mustWord(t, "xyzzyx"), []string{"en"}).Wait()
	if verdict(t, cache, "xyzzyx", "en") != Invalid {
		t.Error("Expected a definitive negative to be cached as invalid")
	}
	svc.Resolve(context.Background(), mustWord(t, "xyzzyx"), []string{"en"}).Wait()
	if n := source.Calls("xyzzyx", "en"); n != 1 {
		t.Errorf("Expected the cached negative to prevent a second call, got %d", n)
	}
}

func TestService_NegativeNeverOverridesCrossCapture(t *testing.T) {
	source := NewMockSource()
	source.answers["taxi:fr"] = true
	source.delays["fr"] = 10 * time.Millisecond
	source.delays["en"] = 50 * time.Millisecond
	cache := NewMemoryCache()
	svc := NewService(source, cache, Options{Timeout: time.Second, CacheNegative: true})

	confirmed := svc.Resolve(context.Background(), mustWord(t, "taxi"), []string{"en", "fr"}).Wait()
	if len(confirmed) != 1 || confirmed[0] != "fr" {
		t.Fatalf("Expected only fr to confirm, got %v", confirmed)
	}
	if v := verdict(t, cache, "taxi", "en"); v != Valid {
		t.Errorf("The late English negative replaced the cross-captured entry: %s", v)
	}
	if v := verdict(t, cache, "taxi", "fr"); v != Valid {
		t.Errorf("Expected taxi to be valid in fr, got %s", v)
	}
}

func TestService_CallerCancellationKeepsPopulating(t *testing.T) {
	source := NewMockSource()
	source.answers["hund:de"] = true
	source.delays["de"] = 50 * time.Millisecond
	cache := NewMemoryCache()
	svc := NewService(source, cache, Options{Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	res := svc.Resolve(ctx, mustWord(t, "hund"), []string{"de"})
	cancel()
	if _, _, err := res.Decision(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected the caller's cancellation, got %v", err)
	}

	svc.Wait()
	if verdict(t, cache, "hund", "de") != Valid {
		t.Error("Cache population should complete after the caller gave up")
	}
}
