// services/roles.go
package services

import "github.com/wfunc/wordchain/models"

// RolePolicy decides who holds the failed role and who may get the reliable
// role.
type RolePolicy struct {
	// FailedRecovery is the number of correct words the failed member needs
	// to lose the failed role.
	FailedRecovery    int
	KarmaThreshold    float64
	AccuracyThreshold float64
}

// Reliable reports whether stats qualify for the reliable role.
func (p RolePolicy) Reliable(stats models.UserStats) bool {
	return stats.Karma > p.KarmaThreshold && stats.Accuracy() > p.AccuracyThreshold
}

// Apply updates the role bookkeeping of cfg for a decision by userID and
// returns what changed. stats must already include the decision.
func (p RolePolicy) Apply(cfg *models.ServerConfig, userID string, mistake bool, stats models.UserStats) RoleUpdate {
	var update RoleUpdate

	if cfg.FailedRoleID != nil {
		update.FailedRoleID = *cfg.FailedRoleID
		current := models.Deref(cfg.FailedMemberID)
		switch {
		case mistake:
			if current != userID {
				update.FailedRevoked = current
			}
			update.FailedGranted = userID
			cfg.FailedMemberID = models.StringPtr(userID)
			cfg.CorrectInputsByFailedMember = 0
		case current == userID:
			cfg.CorrectInputsByFailedMember++
			if cfg.CorrectInputsByFailedMember >= p.FailedRecovery {
				update.FailedRevoked = userID
				cfg.FailedMemberID = nil
				cfg.CorrectInputsByFailedMember = 0
			}
		}
	}

	if cfg.ReliableRoleID != nil {
		eligible := p.Reliable(stats)
		update.ReliableRoleID = *cfg.ReliableRoleID
		update.ReliableEligible = &eligible
	}
	return update
}
