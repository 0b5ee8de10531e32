package repositories

import (
	"context"
	"fmt"

	"communityos/guildlink/internal/constants"
	models "communityos/guildlink/internal/models/gorm"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleScope identifies one replaceable rule set.
type RuleScope struct {
	OrgID    string
	Kind     constants.RuleKind
	SourceID string
}

// RoleRuleRepo manages declarative entitlement-to-role mappings
type RoleRuleRepo struct {
	db *gorm.DB
}

// NewRoleRuleRepo creates a new role rule repository
func NewRoleRuleRepo(db *gorm.DB) *RoleRuleRepo {
	return &RoleRuleRepo{db: db}
}

// ReplaceRules swaps the full rule set for a scope in one transaction:
// the existing set is deleted and exactly the given rules inserted. An
// empty slice clears the scope. Never a merge.
func (r *RoleRuleRepo) ReplaceRules(ctx context.Context, scope RuleScope, rules []models.RoleRule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("org_id = ? AND kind = ? AND source_id = ?", scope.OrgID, scope.Kind, scope.SourceID).
			Delete(&models.RoleRule{}).Error
		if err != nil {
			return fmt.Errorf("failed to clear rule scope: %w", err)
		}

		for i := range rules {
			if rules[i].ID == "" {
				rules[i].ID = uuid.New().String()
			}
			rules[i].OrgID = scope.OrgID
			rules[i].Kind = scope.Kind
			rules[i].SourceID = scope.SourceID
		}

		if len(rules) == 0 {
			return nil
		}

		if err := tx.Create(&rules).Error; err != nil {
			return fmt.Errorf("failed to insert rule set: %w", err)
		}
		return nil
	})
}

// ListByScope returns the current rule set for a scope, enabled or not.
func (r *RoleRuleRepo) ListByScope(ctx context.Context, scope RuleScope) ([]models.RoleRule, error) {
	var rules []models.RoleRule

	err := r.db.WithContext(ctx).
		Where("org_id = ? AND kind = ? AND source_id = ?", scope.OrgID, scope.Kind, scope.SourceID).
		Order("created_at ASC").
		Find(&rules).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	return rules, nil
}

// ListEnabledByOrg returns every enabled rule a tenant has, across all
// scopes. The sync pass uses it to compute the managed role set.
func (r *RoleRuleRepo) ListEnabledByOrg(ctx context.Context, orgID string) ([]models.RoleRule, error) {
	var rules []models.RoleRule

	err := r.db.WithContext(ctx).
		Where("org_id = ? AND is_enabled = ?", orgID, true).
		Find(&rules).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list org rules: %w", err)
	}

	return rules, nil
}

// LookupRules batch-reads the enabled rules for a set of entitlement
// sources, grouped by source id, for job processing.
func (r *RoleRuleRepo) LookupRules(ctx context.Context, orgID string, sourceIDs []string) (map[string][]models.RoleRule, error) {
	grouped := make(map[string][]models.RoleRule)
	if len(sourceIDs) == 0 {
		return grouped, nil
	}

	var rules []models.RoleRule
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND source_id IN ? AND is_enabled = ?", orgID, sourceIDs, true).
		Find(&rules).Error

	if err != nil {
		return nil, fmt.Errorf("failed to look up rules: %w", err)
	}

	for _, rule := range rules {
		grouped[rule.SourceID] = append(grouped[rule.SourceID], rule)
	}

	return grouped, nil
}
