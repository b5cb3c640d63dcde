// Package quota enforces per-plan request quotas backed by the request
// ledger: a daily cap counted from UTC midnight and a per-minute cap counted
// over a rolling 60 second window.
package quota

import (
	"fmt"
	"log/slog"
	"time"

	"convoai/pkg/domain"
	"convoai/pkg/store"
)

// Reason classifies why admission was denied.
type Reason string

const (
	ReasonNoSubscription Reason = "no-subscription"
	ReasonDailyLimit     Reason = "daily-limit"
	ReasonMinuteLimit    Reason = "minute-limit"
)

// Decision is the outcome of an admission check. When Allowed is false,
// Reason says which rule denied and Limit carries the numeric cap that was
// hit (zero for ReasonNoSubscription).
type Decision struct {
	Allowed bool
	Reason  Reason
	Limit   int
}

var allowed = Decision{Allowed: true}

func denied(reason Reason, limit int) Decision {
	return Decision{Reason: reason, Limit: limit}
}

// Free plan provisioned for users without a subscription.
const (
	FreePlanName          = "Free"
	freeRequestsPerMinute = 5
	freeRequestsPerDay    = 100
)

// Limiter decides whether a user may issue a chat request. The clock is
// injectable so window boundaries can be tested deterministically.
type Limiter struct {
	store store.Store
	now   func() time.Time
}

// NewLimiter builds a Limiter on the given store using the real clock.
func NewLimiter(st store.Store) *Limiter {
	return &Limiter{store: st, now: time.Now}
}

// NewLimiterWithClock builds a Limiter with an explicit clock.
func NewLimiterWithClock(st store.Store, now func() time.Time) *Limiter {
	return &Limiter{store: st, now: now}
}

// CheckAdmission evaluates the user against their active plan. Admins bypass
// all checks. Users without an active subscription are provisioned an active
// Free subscription and denied; the new subscription takes effect on the
// next request.
//
// The check counts existing ledger rows and the caller records usage
// afterwards, so concurrent requests can each observe a count just under the
// cap and all pass. The window may overshoot by the number of in-flight
// requests; the ledger itself stays exact.
func (l *Limiter) CheckAdmission(user domain.User) (Decision, error) {
	if user.Admin {
		return allowed, nil
	}
	now := l.now().UTC()

	sub, ok, err := l.store.ActiveSubscription(user.ID, now)
	if err != nil {
		return Decision{}, fmt.Errorf("quota: resolve subscription: %w", err)
	}
	if !ok {
		if err := l.ProvisionFreeSubscription(user.ID); err != nil {
			return Decision{}, err
		}
		slog.Warn("quota denied", "user_id", user.ID, "reason", ReasonNoSubscription)
		return denied(ReasonNoSubscription, 0), nil
	}
	plan := sub.Plan

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daily, err := l.store.CountRequestsSince(user.ID, dayStart)
	if err != nil {
		return Decision{}, fmt.Errorf("quota: count daily: %w", err)
	}
	if daily >= plan.RequestsPerDay {
		slog.Warn("quota denied", "user_id", user.ID, "reason", ReasonDailyLimit, "limit", plan.RequestsPerDay)
		return denied(ReasonDailyLimit, plan.RequestsPerDay), nil
	}

	minute, err := l.store.CountRequestsSince(user.ID, now.Add(-time.Minute))
	if err != nil {
		return Decision{}, fmt.Errorf("quota: count minute: %w", err)
	}
	if minute >= plan.RequestsPerMinute {
		slog.Warn("quota denied", "user_id", user.ID, "reason", ReasonMinuteLimit, "limit", plan.RequestsPerMinute)
		return denied(ReasonMinuteLimit, plan.RequestsPerMinute), nil
	}

	return allowed, nil
}

// RecordUsage appends a ledger row for a request that completed generation.
// Admin requests are recorded too; admins bypass checks, not accounting.
func (l *Limiter) RecordUsage(userID int64) error {
	if err := l.store.AddRequestLog(userID, l.now().UTC()); err != nil {
		return fmt.Errorf("quota: record usage: %w", err)
	}
	return nil
}

// ProvisionFreeSubscription gives the user an active, open-ended Free
// subscription, creating the Free plan catalog entry if it does not exist.
// Idempotent: both existence checks are repeated inside the transaction, so
// concurrent callers converge on one plan row and one active subscription.
func (l *Limiter) ProvisionFreeSubscription(userID int64) error {
	now := l.now().UTC()
	err := l.store.WithTx(func(tx store.Store) error {
		if _, ok, err := tx.ActiveSubscription(userID, now); err != nil {
			return err
		} else if ok {
			return nil
		}
		plan, ok, err := tx.GetPlanByName(FreePlanName)
		if err != nil {
			return err
		}
		if !ok {
			plan, err = tx.CreatePlan(domain.SubscriptionPlan{
				Name:              FreePlanName,
				RequestsPerMinute: freeRequestsPerMinute,
				RequestsPerDay:    freeRequestsPerDay,
				Price:             0,
			})
			if err != nil {
				return err
			}
		}
		_, err = tx.CreateSubscription(domain.UserSubscription{
			UserID:    userID,
			PlanID:    plan.ID,
			StartDate: now,
			Active:    true,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("quota: provision free subscription: %w", err)
	}
	return nil
}

// EnsureFreePlan creates the Free plan catalog entry if it does not exist,
// without touching subscriptions. Used when serving the plan catalog.
func (l *Limiter) EnsureFreePlan() error {
	err := l.store.WithTx(func(tx store.Store) error {
		if _, ok, err := tx.GetPlanByName(FreePlanName); err != nil {
			return err
		} else if ok {
			return nil
		}
		_, err := tx.CreatePlan(domain.SubscriptionPlan{
			Name:              FreePlanName,
			RequestsPerMinute: freeRequestsPerMinute,
			RequestsPerDay:    freeRequestsPerDay,
			Price:             0,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("quota: ensure free plan: %w", err)
	}
	return nil
}

// RecordUsageTx appends a ledger row through the caller's transaction so the
// row commits or rolls back with the rest of the chat request.
func (l *Limiter) RecordUsageTx(tx store.Store, userID int64) error {
	if err := tx.AddRequestLog(userID, l.now().UTC()); err != nil {
		return fmt.Errorf("quota: record usage: %w", err)
	}
	return nil
}
