// services/validator.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wfunc/wordchain/chain"
	"github.com/wfunc/wordchain/karma"
	"github.com/wfunc/wordchain/language"
	"github.com/wfunc/wordchain/lexicon"
	"github.com/wfunc/wordchain/logger"
	"github.com/wfunc/wordchain/models"
	"github.com/wfunc/wordchain/normalize"
	"github.com/wfunc/wordchain/persistence"
	"github.com/wfunc/wordchain/state"
)

// Recorder receives validation observations, usually for metrics.
type Recorder interface {
	ObserveSubmission(outcome, reason string, d time.Duration)
	ObserveCache(lang string, hit bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(string, string, time.Duration) {}
func (nopRecorder) ObserveCache(string, bool)                       {}

// ValidatorOptions are the game rules of a ChainValidator.
type ValidatorOptions struct {
	CommandPrefix    string
	SinglePlayer     bool
	DefaultLanguages []string
	// GlobalBlacklist applies to every server.
	GlobalBlacklist []string
	Roles           RolePolicy
	Recorder        Recorder
}

// ChainValidator 按顺序校验提交的单词并原子地提交结果
type ChainValidator struct {
	repo       persistence.Repository
	chains     *chain.Manager
	normalizer *normalize.Normalizer
	lookup     *lexicon.Service
	karma      *karma.Engine
	options    ValidatorOptions
	blacklist  map[string]struct{}
}

func NewChainValidator(repo persistence.Repository, chains *chain.Manager, lookup *lexicon.Service, engine *karma.Engine, options ValidatorOptions) *ChainValidator {
	if len(options.DefaultLanguages) == 0 {
		options.DefaultLanguages = []string{language.English}
	}
	if options.Recorder == nil {
		options.Recorder = nopRecorder{}
	}
	blacklist := make(map[string]struct{}, len(options.GlobalBlacklist))
	for _, word := range options.GlobalBlacklist {
		blacklist[normalize.Fold(strings.TrimSpace(word))] = struct{}{}
	}
	return &ChainValidator{
		repo:       repo,
		chains:     chains,
		normalizer: normalize.NewNormalizer(options.CommandPrefix),
		lookup:     lookup,
		karma:      engine,
		options:    options,
		blacklist:  blacklist,
	}
}

// Chain returns the chain of serverID, loading it on first use.
func (v *ChainValidator) Chain(ctx context.Context, serverID string) (*chain.Chain, error) {
	return v.chains.GetOrLoad(ctx, serverID, func(ctx context.Context, id string) (*chain.Chain, error) {
		return chain.Load(ctx, v.repo, id, v.options.DefaultLanguages)
	})
}

// HandleMessage submits a chat message if it was sent in the game channel.
// Commands and messages elsewhere are ignored.
func (v *ChainValidator) HandleMessage(ctx context.Context, msg Message) (Decision, error) {
	c, err := v.Chain(ctx, msg.ServerID)
	if err != nil {
		return Decision{}, err
	}
	channelID := c.Config().ChannelID
	if channelID == "" || channelID != msg.ChannelID {
		return Decision{Outcome: Ignored}, nil
	}
	if v.options.CommandPrefix != "" && strings.HasPrefix(strings.TrimSpace(msg.Text), v.options.CommandPrefix) {
		return Decision{Outcome: Ignored}, nil
	}
	return v.Submit(ctx, msg.ServerID, msg.UserID, msg.Text)
}

// Submit validates raw from userID against the chain of serverID. Rule
// violations are decisions; the error is reserved for storage failures, in
// which case nothing was applied.
func (v *ChainValidator) Submit(ctx context.Context, serverID, userID, raw string) (Decision, error) {
	start := time.Now()

	c, err := v.Chain(ctx, serverID)
	if err != nil {
		return Decision{}, err
	}
	c.Lock()
	defer c.Unlock()

	decision, err := v.submit(ctx, c, userID, raw)
	if err != nil {
		return Decision{}, err
	}
	v.options.Recorder.ObserveSubmission(decision.Outcome.String(), decision.Reason.String(), time.Since(start))
	return decision, nil
}

// verdict is the outcome of the checks before anything is stored.
type verdict struct {
	reason   Reason
	word     normalize.Word
	language string
}

func (v *ChainValidator) submit(ctx context.Context, c *chain.Chain, userID, raw string) (Decision, error) {
	banned, err := v.repo.IsBanned(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return Decision{Outcome: Ignored}, nil
	}

	cfg := c.Config()
	if !v.options.SinglePlayer && cfg.LastMemberID != nil && *cfg.LastMemberID == userID {
		return v.commit(ctx, c, userID, verdict{reason: SelfChain})
	}

	result, err := v.check(ctx, c, raw, true)
	if err != nil {
		return Decision{}, err
	}
	return v.commit(ctx, c, userID, result)
}

// check runs every rule that depends on the word. withChain adds the used
// word and letter rules.
func (v *ChainValidator) check(ctx context.Context, c *chain.Chain, raw string, withChain bool) (verdict, error) {
	w, err := v.normalizer.Canonicalize(raw)
	if err != nil {
		logger.Log.Debugf("malformed submission: %v", err)
		return verdict{reason: Malformed}, nil
	}
	result := verdict{word: w}

	codes := c.Languages()
	langs := language.Resolve(codes)
	whitelisted := c.Listed(models.Whitelist, w.Folded)
	if !whitelisted {
		if err := v.normalizer.Validate(w, langs); err != nil {
			result.reason = Malformed
			return result, nil
		}
	}

	if withChain {
		if c.IsUsed(w.Folded) {
			result.reason = AlreadyUsed
			return result, nil
		}
		if c.Status() == state.Active {
			current := models.Deref(c.Config().CurrentWord)
			last, _ := utf8.DecodeLastRuneInString(current)
			if w.First() != last {
				result.reason = WrongLetter
				return result, nil
			}
		}
	}

	if whitelisted {
		if len(langs) > 0 {
			result.language = langs[0].Code
		}
		return result, nil
	}

	if !w.AccentFolded() && v.blacklisted(c, w.Folded) {
		result.reason = Blacklisted
		return result, nil
	}

	lang, ok, err := v.lexicon(ctx, w, langs)
	if err != nil {
		return verdict{}, err
	}
	if !ok {
		result.reason = NotAWord
		return result, nil
	}
	result.language = lang
	return result, nil
}

func (v *ChainValidator) blacklisted(c *chain.Chain, folded string) bool {
	if _, ok := v.blacklist[folded]; ok {
		return true
	}
	return c.Listed(models.Blacklist, folded)
}

// lexicon answers from the cache first and only asks the lookup service
// about languages the cache knows nothing about. Only languages whose
// alphabet fits the word are consulted.
func (v *ChainValidator) lexicon(ctx context.Context, w normalize.Word, langs []language.Language) (string, bool, error) {
	cache := v.lookup.Cache()
	var unknown []string
	for _, lang := range langs {
		if !lang.Matches(w.Lower) && !lang.Matches(w.Folded) {
			continue
		}
		cached, err := cache.Lookup(ctx, w.LookupForm(lang.Code), lang.Code)
		if err != nil {
			logger.Log.Warnf("cache lookup failed for language %s: %v", lang.Code, err)
			cached = lexicon.Unknown
		}
		v.options.Recorder.ObserveCache(lang.Code, cached != lexicon.Unknown)
		switch cached {
		case lexicon.Valid:
			return lang.Code, true, nil
		case lexicon.Unknown:
			unknown = append(unknown, lang.Code)
		}
	}
	if len(unknown) == 0 {
		return "", false, nil
	}

	found, lang, err := v.lookup.Resolve(ctx, w, unknown).Decision(ctx)
	if err != nil {
		return "", false, fmt.Errorf("await lookup: %w", err)
	}
	return lang, found, nil
}

// commit stores the decision and only then applies it to the chain.
func (v *ChainValidator) commit(ctx context.Context, c *chain.Chain, userID string, result verdict) (Decision, error) {
	serverID := c.ServerID
	accepted := result.reason == NoReason

	transition := chain.Transition{UserID: userID, Event: state.Hold}
	switch {
	case accepted:
		transition.Event = state.Accept
		transition.Word = result.word.Lower
		transition.Folded = result.word.Folded
		transition.Language = result.language
	case result.reason.Breaks():
		transition.Event = state.Break
	}

	plan, err := c.Plan(transition)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		Outcome:  Rejected,
		Reason:   result.reason,
		Word:     result.word.Lower,
		Language: result.language,
	}
	if accepted {
		decision.Outcome = Accepted
	}

	var stats *models.UserStats
	if result.reason != SelfChain {
		stats, err = v.loadStats(ctx, serverID, userID)
		if err != nil {
			return Decision{}, err
		}
		var delta karma.Delta
		if accepted {
			delta = v.karma.OnAccepted(serverID, userID, result.word.First(), result.word.Last())
		} else {
			delta = v.karma.OnRejected()
		}
		delta.Apply(stats, time.Now())
		decision.Karma = stats.Karma
		decision.Roles = v.options.Roles.Apply(&plan.Config, userID, !accepted, *stats)
	}

	if result.reason != SelfChain {
		err = v.repo.Commit(ctx, persistence.Commit{
			Server:         plan.Config,
			Stats:          stats,
			ClearUsedWords: plan.ClearUsedWords,
			AddUsedWord:    plan.AddUsedWord,
		})
		if err != nil {
			logger.Log.Errorf("commit decision for server %s failed: %v", serverID, err)
			return Decision{}, fmt.Errorf("commit decision: %w", err)
		}
	}

	if err := c.Apply(plan); err != nil {
		return Decision{}, err
	}
	if accepted {
		v.karma.Remember(serverID, userID, result.word.Last())
		logger.Log.Infof("server %s chain at %d", serverID, plan.Config.CurrentCount)
	} else if plan.From == state.Active && plan.To == state.Idle {
		logger.Log.Infof("server %s chain broken at %d (%s)", serverID, c.Config().HighScore, result.reason)
	}

	decision.Count = plan.Config.CurrentCount
	decision.HighScore = plan.Config.HighScore
	decision.NewHighScore = plan.NewHighScore
	return decision, nil
}

func (v *ChainValidator) loadStats(ctx context.Context, serverID, userID string) (*models.UserStats, error) {
	stats, err := v.repo.LoadUserStats(ctx, serverID, userID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return &models.UserStats{ServerID: serverID, UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return stats, nil
}

// CheckResult is the answer to CheckWord.
type CheckResult struct {
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	Word     string `json:"word,omitempty"`
	Language string `json:"language,omitempty"`
}

// CheckWord reports whether raw would be a valid word in serverID, ignoring
// the chain. Nothing is changed, although lookups still populate the cache.
func (v *ChainValidator) CheckWord(ctx context.Context, serverID, raw string) (CheckResult, error) {
	c, err := v.Chain(ctx, serverID)
	if err != nil {
		return CheckResult{}, err
	}
	result, err := v.check(ctx, c, raw, false)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{
		Valid:    result.reason == NoReason,
		Reason:   result.reason.String(),
		Word:     result.word.Lower,
		Language: result.language,
	}, nil
}
