// services/admin.go
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/wfunc/wordchain/chain"
	"github.com/wfunc/wordchain/karma"
	"github.com/wfunc/wordchain/language"
	"github.com/wfunc/wordchain/logger"
	"github.com/wfunc/wordchain/models"
	"github.com/wfunc/wordchain/normalize"
	"github.com/wfunc/wordchain/persistence"
)

var (
	ErrLastLanguage = errors.New("at least one language must stay enabled")
	ErrInvalidWord  = errors.New("word does not fit the enabled languages")
)

// AdminService 服务器管理操作。每个修改都持有对应服务器的链锁
type AdminService struct {
	repo      persistence.Repository
	validator *ChainValidator
	chains    *chain.Manager
	karma     *karma.Engine
}

func NewAdminService(repo persistence.Repository, validator *ChainValidator, chains *chain.Manager, engine *karma.Engine) *AdminService {
	return &AdminService{
		repo:      repo,
		validator: validator,
		chains:    chains,
		karma:     engine,
	}
}

// update runs fn on a copy of the server record under the chain lock and
// stores the result.
func (a *AdminService) update(ctx context.Context, serverID string, fn func(cfg *models.ServerConfig) error) (models.ServerConfig, error) {
	c, err := a.validator.Chain(ctx, serverID)
	if err != nil {
		return models.ServerConfig{}, err
	}
	c.Lock()
	defer c.Unlock()

	cfg := c.Config()
	if err := fn(&cfg); err != nil {
		return models.ServerConfig{}, err
	}
	if err := a.repo.SaveServer(ctx, &cfg); err != nil {
		return models.ServerConfig{}, fmt.Errorf("save server %s: %w", serverID, err)
	}
	c.SetConfig(cfg)
	return cfg, nil
}

// AddLanguage enables a language and returns the enabled codes.
func (a *AdminService) AddLanguage(ctx context.Context, serverID, code string) ([]string, error) {
	lang, err := language.Lookup(code)
	if err != nil {
		return nil, err
	}
	cfg, err := a.update(ctx, serverID, func(cfg *models.ServerConfig) error {
		if !slices.Contains(cfg.Languages, lang.Code) {
			cfg.Languages = append(cfg.Languages, lang.Code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("server %s enabled %s", serverID, lang.Name)
	return cfg.Languages, nil
}

// RemoveLanguage disables a language. The last one cannot be removed.
func (a *AdminService) RemoveLanguage(ctx context.Context, serverID, code string) ([]string, error) {
	canonical, err := language.Canonical(code)
	if err != nil {
		return nil, err
	}
	cfg, err := a.update(ctx, serverID, func(cfg *models.ServerConfig) error {
		i := slices.Index(cfg.Languages, canonical)
		if i < 0 {
			return nil
		}
		if len(cfg.Languages) == 1 {
			return ErrLastLanguage
		}
		cfg.Languages = slices.Delete(cfg.Languages, i, i+1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("server %s disabled %s", serverID, canonical)
	return cfg.Languages, nil
}

// SetChannel moves the game to channelID.
func (a *AdminService) SetChannel(ctx context.Context, serverID, channelID string) error {
	_, err := a.update(ctx, serverID, func(cfg *models.ServerConfig) error {
		cfg.ChannelID = channelID
		return nil
	})
	return err
}

func (a *AdminService) SetRole(ctx context.Context, serverID string, kind models.RoleKind, roleID string) error {
	if roleID == "" {
		return a.UnsetRole(ctx, serverID, kind)
	}
	_, err := a.update(ctx, serverID, func(cfg *models.ServerConfig) error {
		switch kind {
		case models.ReliableRole:
			cfg.ReliableRoleID = models.StringPtr(roleID)
		case models.FailedRole:
			cfg.FailedRoleID = models.StringPtr(roleID)
		default:
			return fmt.Errorf("unknown role %q", kind)
		}
		return nil
	})
	return err
}

// UnsetRole removes a role. Removing the failed role also forgets who held it.
func (a *AdminService) UnsetRole(ctx context.Context, serverID string, kind models.RoleKind) error {
	_, err := a.update(ctx, serverID, func(cfg *models.ServerConfig) error {
		switch kind {
		case models.ReliableRole:
			cfg.ReliableRoleID = nil
		case models.FailedRole:
			cfg.FailedRoleID = nil
			cfg.FailedMemberID = nil
			cfg.CorrectInputsByFailedMember = 0
		default:
			return fmt.Errorf("unknown role %q", kind)
		}
		return nil
	})
	return err
}

// AddListWord adds word to a server list. Words must fit one of the enabled
// languages and are stored folded.
func (a *AdminService) AddListWord(ctx context.Context, serverID string, kind models.ListKind, word string) (string, error) {
	c, err := a.validator.Chain(ctx, serverID)
	if err != nil {
		return "", err
	}
	c.Lock()
	defer c.Unlock()

	w, err := a.validator.normalizer.Normalize(word, language.Resolve(c.Languages()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidWord, err)
	}
	if err := a.repo.AddListWord(ctx, serverID, kind, w.Folded); err != nil {
		return "", fmt.Errorf("add %s word: %w", kind, err)
	}
	c.SetListed(kind, w.Folded, true)
	return w.Folded, nil
}

func (a *AdminService) RemoveListWord(ctx context.Context, serverID string, kind models.ListKind, word string) error {
	c, err := a.validator.Chain(ctx, serverID)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()

	folded := normalize.Fold(word)
	if err := a.repo.RemoveListWord(ctx, serverID, kind, folded); err != nil {
		return fmt.Errorf("remove %s word: %w", kind, err)
	}
	c.SetListed(kind, folded, false)
	return nil
}

func (a *AdminService) ListWords(ctx context.Context, serverID string, kind models.ListKind) ([]string, error) {
	return a.repo.ListWords(ctx, serverID, kind)
}

// BanMember makes every server ignore userID.
func (a *AdminService) BanMember(ctx context.Context, userID string) error {
	if err := a.repo.Ban(ctx, userID); err != nil {
		return err
	}
	logger.Log.Infof("member %s banned", userID)
	return nil
}

func (a *AdminService) UnbanMember(ctx context.Context, userID string) error {
	return a.repo.Unban(ctx, userID)
}

// DeleteUserData removes the stats of userID everywhere and unbinds them from
// every chain. Used words and cached lexicon entries stay.
func (a *AdminService) DeleteUserData(ctx context.Context, userID string) error {
	chains := a.chains.All()
	// lock in a fixed order so two deletions cannot deadlock
	sort.Slice(chains, func(i, j int) bool {
		return chains[i].ServerID < chains[j].ServerID
	})
	for _, c := range chains {
		c.Lock()
		defer c.Unlock()
	}

	if err := a.repo.DeleteUserData(ctx, userID); err != nil {
		return fmt.Errorf("delete user data: %w", err)
	}
	for _, c := range chains {
		c.ForgetMember(userID)
	}
	a.karma.Forget(userID)
	logger.Log.Infof("deleted data of member %s", userID)
	return nil
}
