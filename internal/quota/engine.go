// Package quota decides whether a user's call against a metered API is
// permitted. The decision walks a fixed precedence chain: creator global
// override, creator per-user override, user-defined limit, then the tier
// default with any dynamic adjustment applied.
package quota

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	apierrors "github.com/aimerfeng/TierLink/internal/errors"
	"github.com/aimerfeng/TierLink/internal/logging"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/monitoring"
	"github.com/aimerfeng/TierLink/internal/store"
	"github.com/aimerfeng/TierLink/internal/usage"
)

// UnlimitedAPIAccessPermission is the profile flag that, combined with the
// creator role, bypasses every quota stage.
const UnlimitedAPIAccessPermission = "unlimited_api_access"

// Decision is the outcome of a quota check. Reason is empty on allow and a
// machine-readable deny reason otherwise.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Engine performs quota checks. It is purely read-and-decide: callers
// invoke the usage ledger's increment separately after the metered action.
type Engine struct {
	store  store.Store
	ledger *usage.Ledger
	limits *LimitsService
	logger zerolog.Logger
}

// NewEngine creates a quota decision engine
func NewEngine(s store.Store, ledger *usage.Ledger, limits *LimitsService) *Engine {
	return &Engine{
		store:  s,
		ledger: ledger,
		limits: limits,
		logger: logging.NewLogger("quota"),
	}
}

// CheckLimit decides whether the user may make one more call against the
// API. Each stage of the precedence chain short-circuits on a definitive
// answer. Store failures fail closed: a check that cannot resolve denies.
func (e *Engine) CheckLimit(ctx context.Context, profile *models.UserProfile, apiID string) (Decision, error) {
	decision, err := e.check(ctx, profile, apiID)
	if err != nil {
		monitoring.RecordQuotaCheckError()
		e.logger.Error().Err(err).
			Str("user_id", profile.UserID).
			Str("api_id", apiID).
			Msg("Quota check failed closed")
		return Decision{}, err
	}

	monitoring.RecordQuotaCheck(decision.Allowed, decision.Reason)
	logging.LogQuotaDecision(profile.UserID, apiID, decision.Allowed, decision.Reason)
	return decision, nil
}

func (e *Engine) check(ctx context.Context, profile *models.UserProfile, apiID string) (Decision, error) {
	// Stage 1: creator global override
	if profile.IsCreator() && profile.Permission(UnlimitedAPIAccessPermission) {
		return Decision{Allowed: true}, nil
	}

	userConfig, err := e.userApiConfig(ctx, profile.UserID, apiID)
	if err != nil {
		return Decision{}, err
	}

	var record *models.UsageRecord
	if userConfig != nil && (userConfig.CreatorOverrideUnlimited || userConfig.HasCreatorOverride() || userConfig.HasUserDefinedLimit()) {
		record, err = e.ledger.Get(ctx, profile.UserID, apiID)
		if err != nil {
			return Decision{}, err
		}
	}

	// Stage 2: creator per-user override. Any numeric override makes this
	// stage authoritative, even when only one period has a threshold.
	if userConfig != nil {
		if userConfig.CreatorOverrideUnlimited {
			return Decision{Allowed: true}, nil
		}
		if userConfig.HasCreatorOverride() {
			if exceeded(record.MonthlyUsage, userConfig.CreatorOverrideMonthly) {
				return Decision{Reason: apierrors.QuotaReasonCreatorOverrideMonthly}, nil
			}
			if exceeded(record.DailyUsage, userConfig.CreatorOverrideDaily) {
				return Decision{Reason: apierrors.QuotaReasonCreatorOverrideDaily}, nil
			}
			return Decision{Allowed: true}, nil
		}

		// Stage 3: user-defined limit, same short-circuit semantics
		if userConfig.HasUserDefinedLimit() {
			if exceeded(record.MonthlyUsage, userConfig.UserDefinedLimitMonthly) {
				return Decision{Reason: apierrors.QuotaReasonUserLimitMonthly}, nil
			}
			if exceeded(record.DailyUsage, userConfig.UserDefinedLimitDaily) {
				return Decision{Reason: apierrors.QuotaReasonUserLimitDaily}, nil
			}
			return Decision{Allowed: true}, nil
		}
	}

	// Stage 4: tier default with dynamic adjustment
	limits, err := e.limits.TierLimits(ctx, profile.Tier)
	if err != nil {
		return Decision{}, err
	}

	if record == nil {
		record, err = e.ledger.Get(ctx, profile.UserID, apiID)
		if err != nil {
			return Decision{}, err
		}
	}

	if monthly := limits.EffectiveMonthly(); monthly != models.UnlimitedCalls && record.MonthlyUsage >= monthly {
		return Decision{Reason: apierrors.QuotaReasonTierMonthly}, nil
	}
	if daily := limits.EffectiveDaily(); daily != models.UnlimitedCalls && record.DailyUsage >= daily {
		return Decision{Reason: apierrors.QuotaReasonTierDaily}, nil
	}
	return Decision{Allowed: true}, nil
}

// userApiConfig loads the user's per-API config, or nil when absent
func (e *Engine) userApiConfig(ctx context.Context, userID, apiID string) (*models.UserApiConfig, error) {
	raw, err := e.store.GetUser(ctx, userID, store.CollectionUserApiConfigs, apiID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg models.UserApiConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// exceeded reports whether usage meets or passes a set threshold
func exceeded(current int64, threshold *int64) bool {
	return threshold != nil && current >= *threshold
}
