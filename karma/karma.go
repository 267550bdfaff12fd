// Package karma turns the letters of a submission into score and karma
// changes. Nothing here sees more of a word than its first and last letter.
package karma

import (
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wfunc/wordchain/models"
	"github.com/wfunc/wordchain/normalize"
)

// Scorer computes the karma change of an accepted word from its first and
// last letter and the last letters of the submitter's recent words.
type Scorer interface {
	Delta(first, last rune, recent []rune) float64
}

// FrequencyScorer rewards words that start with a rare letter and costs
// karma for endings that are hard to continue. Ending repeatedly on the same
// letter decays the reward.
type FrequencyScorer struct {
	LastLetterBias float64
	DropRate       float64
}

func NewFrequencyScorer() FrequencyScorer {
	return FrequencyScorer{LastLetterBias: 0.7, DropRate: 0.33}
}

func frequency(r rune) float64 {
	if f, ok := firstLetterScore[r]; ok {
		return f
	}
	folded, _ := utf8.DecodeRuneInString(normalize.Fold(string(r)))
	if f, ok := firstLetterScore[folded]; ok {
		return f
	}
	return 1
}

func adapt(score float64) float64 {
	return math.Sqrt(score) + 0.025
}

// Base is the karma change before the history decay.
func (s FrequencyScorer) Base(first, last rune) float64 {
	// a common first letter costs nothing, the previous player chose it
	firstKarma := math.Max(0, 1-adapt(frequency(first)))
	lastKarma := adapt(frequency(last)) - 1
	return firstKarma + lastKarma*s.LastLetterBias
}

// Decay maps a weighted occurrence count to a factor in (-1, 1].
func (s FrequencyScorer) Decay(n float64) float64 {
	return 2*math.Exp(-n*s.DropRate) - 1
}

func (s FrequencyScorer) Delta(first, last rune, recent []rune) float64 {
	base := s.Base(first, last)
	if base <= 0 {
		return base
	}
	n := 0.0
	for i, r := range recent {
		if r == last {
			// older entries weigh more
			n += 2 * float64(len(recent)-i) / float64(len(recent))
		}
	}
	return s.Decay(n) * base
}

// Delta is the change a decision applies to UserStats.
type Delta struct {
	Score       int
	Correct     int
	Wrong       int
	Karma       float64
	ResetStreak bool
}

// Apply adds d to stats. Karma never drops below zero.
func (d Delta) Apply(stats *models.UserStats, now time.Time) {
	stats.Score += d.Score
	stats.Correct += d.Correct
	stats.Wrong += d.Wrong
	stats.Karma = math.Max(0, stats.Karma+d.Karma)
	if d.ResetStreak {
		stats.Streak = 0
	} else if d.Correct > 0 {
		stats.Streak++
		if stats.Streak > stats.BestStreak {
			stats.BestStreak = stats.Streak
		}
	}
	stats.LastActiveAt = now
}

type historyKey struct {
	serverID string
	userID   string
}

// Engine keeps the recent last letters per member and hands out deltas.
// Computing a delta never mutates the history; Remember does, after the
// decision has been stored.
type Engine struct {
	scorer         Scorer
	historyLength  int
	mistakePenalty float64
	history        map[historyKey][]rune
	mutex          sync.Mutex
}

func NewEngine(scorer Scorer, historyLength int, mistakePenalty float64) *Engine {
	if historyLength <= 0 {
		historyLength = 5
	}
	return &Engine{
		scorer:         scorer,
		historyLength:  historyLength,
		mistakePenalty: mistakePenalty,
		history:        make(map[historyKey][]rune),
	}
}

// OnAccepted is the delta of an accepted word with the given letters.
func (e *Engine) OnAccepted(serverID, userID string, first, last rune) Delta {
	e.mutex.Lock()
	recent := append([]rune(nil), e.history[historyKey{serverID, userID}]...)
	e.mutex.Unlock()

	return Delta{
		Score:   1,
		Correct: 1,
		Karma:   e.scorer.Delta(first, last, recent),
	}
}

// OnRejected is the delta of a mistake.
func (e *Engine) OnRejected() Delta {
	return Delta{
		Score:       -1,
		Wrong:       1,
		Karma:       -e.mistakePenalty,
		ResetStreak: true,
	}
}

// Remember appends the last letter of an accepted word to the history.
func (e *Engine) Remember(serverID, userID string, last rune) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	key := historyKey{serverID, userID}
	recent := append(e.history[key], last)
	if len(recent) > e.historyLength {
		recent = recent[len(recent)-e.historyLength:]
	}
	e.history[key] = recent
}

// Forget drops the history of a user in every server.
func (e *Engine) Forget(userID string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	for key := range e.history {
		if key.userID == userID {
			delete(e.history, key)
		}
	}
}

// Recent returns a copy of the remembered last letters, oldest first.
func (e *Engine) Recent(serverID, userID string) []rune {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return append([]rune(nil), e.history[historyKey{serverID, userID}]...)
}
