// chain/chain.go
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/wordchain/models"
	"github.com/wfunc/wordchain/persistence"
	"github.com/wfunc/wordchain/state"
)

// ErrStalePlan is returned by Apply when the chain moved since Plan.
var ErrStalePlan = errors.New("chain changed since the plan was made")

// Transition describes what a decision does to a chain. Word is the
// accent-preserving form, Folded the form recorded as used.
type Transition struct {
	Event    state.Event
	UserID   string
	Word     string
	Folded   string
	Language string
}

// Plan is the previewed result of a transition. Callers persist Config and
// the used-word change, then hand the plan to Apply.
type Plan struct {
	Transition     Transition
	From           state.Status
	To             state.Status
	Config         models.ServerConfig
	ClearUsedWords bool
	AddUsedWord    string
	NewHighScore   bool
}

// Chain 是一个服务器的单词链状态
type Chain struct {
	ServerID string

	config  models.ServerConfig
	used    map[string]struct{}
	lists   map[models.ListKind]map[string]struct{}
	machine *state.Machine

	// mutex serializes submissions and admin changes for the server.
	mutex     sync.Mutex
	dataMutex sync.RWMutex
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func statusOf(cfg models.ServerConfig) state.Status {
	if cfg.CurrentWord != nil && *cfg.CurrentWord != "" {
		return state.Active
	}
	return state.Idle
}

// NewChain 创建一个链，状态由当前单词决定
func NewChain(cfg models.ServerConfig, used, blacklist, whitelist []string) *Chain {
	return &Chain{
		ServerID: cfg.ServerID,
		config:   copyConfig(cfg),
		used:     toSet(used),
		lists: map[models.ListKind]map[string]struct{}{
			models.Blacklist: toSet(blacklist),
			models.Whitelist: toSet(whitelist),
		},
		machine: state.NewChainMachine(statusOf(cfg)),
	}
}

func copyConfig(cfg models.ServerConfig) models.ServerConfig {
	cfg.Languages = append([]string(nil), cfg.Languages...)
	return cfg
}

// Lock takes the per-server submission lock.
func (c *Chain) Lock() {
	c.mutex.Lock()
}

func (c *Chain) Unlock() {
	c.mutex.Unlock()
}

func (c *Chain) Status() state.Status {
	return c.machine.Current()
}

// Config returns a copy of the server record.
func (c *Chain) Config() models.ServerConfig {
	c.dataMutex.RLock()
	defer c.dataMutex.RUnlock()
	return copyConfig(c.config)
}

// SetConfig replaces the server record after an admin change was stored.
func (c *Chain) SetConfig(cfg models.ServerConfig) {
	c.dataMutex.Lock()
	defer c.dataMutex.Unlock()
	c.config = copyConfig(cfg)
	c.machine.Reset(statusOf(cfg))
}

func (c *Chain) Languages() []string {
	c.dataMutex.RLock()
	defer c.dataMutex.RUnlock()
	return append([]string(nil), c.config.Languages...)
}

func (c *Chain) IsUsed(folded string) bool {
	c.dataMutex.RLock()
	defer c.dataMutex.RUnlock()
	_, ok := c.used[folded]
	return ok
}

func (c *Chain) Listed(kind models.ListKind, folded string) bool {
	c.dataMutex.RLock()
	defer c.dataMutex.RUnlock()
	_, ok := c.lists[kind][folded]
	return ok
}

// SetListed adds or removes a word from a list after it was stored.
func (c *Chain) SetListed(kind models.ListKind, folded string, listed bool) {
	c.dataMutex.Lock()
	defer c.dataMutex.Unlock()
	set, ok := c.lists[kind]
	if !ok {
		return
	}
	if listed {
		set[folded] = struct{}{}
	} else {
		delete(set, folded)
	}
}

// ForgetMember clears the bindings to userID. It reports whether anything
// changed.
func (c *Chain) ForgetMember(userID string) bool {
	c.dataMutex.Lock()
	defer c.dataMutex.Unlock()
	changed := false
	if models.Deref(c.config.LastMemberID) == userID {
		c.config.LastMemberID = nil
		changed = true
	}
	if models.Deref(c.config.FailedMemberID) == userID {
		c.config.FailedMemberID = nil
		c.config.CorrectInputsByFailedMember = 0
		changed = true
	}
	return changed
}

// Plan previews t without changing the chain.
func (c *Chain) Plan(t Transition) (Plan, error) {
	c.dataMutex.RLock()
	defer c.dataMutex.RUnlock()

	from := c.machine.Current()
	to, err := c.machine.Next(t.Event)
	if err != nil {
		return Plan{}, err
	}

	p := Plan{Transition: t, From: from, To: to, Config: copyConfig(c.config)}
	cfg := &p.Config
	switch t.Event {
	case state.Accept:
		cfg.CurrentWord = models.StringPtr(t.Word)
		cfg.CurrentWordLanguage = models.StringPtr(t.Language)
		cfg.LastMemberID = models.StringPtr(t.UserID)
		cfg.CurrentCount++
		if cfg.CurrentCount > cfg.HighScore {
			cfg.HighScore = cfg.CurrentCount
			p.NewHighScore = true
		}
		p.AddUsedWord = t.Folded
	case state.Break:
		// the last member stays bound until someone else gets a word in
		cfg.CurrentWord = nil
		cfg.CurrentWordLanguage = nil
		cfg.CurrentCount = 0
		p.ClearUsedWords = true
	}
	cfg.UpdatedAt = time.Now()
	return p, nil
}

// Apply commits a plan to memory. It must only be called once the plan was
// persisted.
func (c *Chain) Apply(p Plan) error {
	c.dataMutex.Lock()
	defer c.dataMutex.Unlock()

	if c.machine.Current() != p.From {
		return ErrStalePlan
	}
	if _, err := c.machine.Fire(p.Transition.Event); err != nil {
		return err
	}
	c.config = copyConfig(p.Config)
	if p.ClearUsedWords {
		c.used = make(map[string]struct{})
	}
	if p.AddUsedWord != "" {
		c.used[p.AddUsedWord] = struct{}{}
	}
	return nil
}

// Snapshot is a read-only view of a chain.
type Snapshot struct {
	ServerID     string   `json:"server_id"`
	ChannelID    string   `json:"channel_id"`
	Status       string   `json:"status"`
	Languages    []string `json:"languages"`
	CurrentWord  string   `json:"current_word,omitempty"`
	Language     string   `json:"language,omitempty"`
	LastMemberID string   `json:"last_member_id,omitempty"`
	CurrentCount int      `json:"current_count"`
	HighScore    int      `json:"high_score"`
	UsedWords    int      `json:"used_words"`
}

func (c *Chain) Snapshot() Snapshot {
	c.dataMutex.RLock()
	defer c.dataMutex.RUnlock()
	return Snapshot{
		ServerID:     c.ServerID,
		ChannelID:    c.config.ChannelID,
		Status:       c.machine.Current().String(),
		Languages:    append([]string(nil), c.config.Languages...),
		CurrentWord:  models.Deref(c.config.CurrentWord),
		Language:     models.Deref(c.config.CurrentWordLanguage),
		LastMemberID: models.Deref(c.config.LastMemberID),
		CurrentCount: c.config.CurrentCount,
		HighScore:    c.config.HighScore,
		UsedWords:    len(c.used),
	}
}

// Store is the part of the repository a chain is loaded from.
type Store interface {
	LoadServer(ctx context.Context, serverID string) (*models.ServerConfig, error)
	SaveServer(ctx context.Context, cfg *models.ServerConfig) error
	UsedWords(ctx context.Context, serverID string) ([]string, error)
	ListWords(ctx context.Context, serverID string, kind models.ListKind) ([]string, error)
}

// Load reads a chain from the store. A server seen for the first time gets
// a record with the default languages.
func Load(ctx context.Context, store Store, serverID string, defaultLanguages []string) (*Chain, error) {
	cfg, err := store.LoadServer(ctx, serverID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		cfg = &models.ServerConfig{
			ServerID:  serverID,
			Languages: append([]string(nil), defaultLanguages...),
		}
		if err := store.SaveServer(ctx, cfg); err != nil {
			return nil, fmt.Errorf("create server %s: %w", serverID, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load server %s: %w", serverID, err)
	}

	used, err := store.UsedWords(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("load used words: %w", err)
	}
	blacklist, err := store.ListWords(ctx, serverID, models.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}
	whitelist, err := store.ListWords(ctx, serverID, models.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("load whitelist: %w", err)
	}
	return NewChain(*cfg, used, blacklist, whitelist), nil
}

// --- 链管理器 ---

// Manager 管理所有服务器的链。map 的锁从不在校验期间持有
type Manager struct {
	chains map[string]*Chain
	mutex  sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		chains: make(map[string]*Chain),
	}
}

func (m *Manager) Get(serverID string) (*Chain, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	c, exists := m.chains[serverID]
	return c, exists
}

// GetOrLoad returns the cached chain or loads it. When two callers race, the
// first stored chain wins.
func (m *Manager) GetOrLoad(ctx context.Context, serverID string, load func(context.Context, string) (*Chain, error)) (*Chain, error) {
	if c, ok := m.Get(serverID); ok {
		return c, nil
	}
	loaded, err := load(ctx, serverID)
	if err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if c, exists := m.chains[serverID]; exists {
		return c, nil
	}
	m.chains[serverID] = loaded
	return loaded, nil
}

func (m *Manager) Remove(serverID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.chains, serverID)
}

// All returns the loaded chains.
func (m *Manager) All() []*Chain {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	chains := make([]*Chain, 0, len(m.chains))
	for _, c := range m.chains {
		chains = append(chains, c)
	}
	return chains
}

// CountActive returns the number of loaded chains with a current word.
func (m *Manager) CountActive() int {
	count := 0
	for _, c := range m.All() {
		if c.Status() == state.Active {
			count++
		}
	}
	return count
}
