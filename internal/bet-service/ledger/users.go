package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

const (
	dailyBonusStep = 10
	maxBonusStreak = 7
)

// Login is the result of EnsureUser.
type Login struct {
	User    models.User `json:"user"`
	Created bool        `json:"created"`
	Bonus   int64       `json:"bonus"`
}

// EnsureUser creates the user on first sight with the starting balance and
// records the login. The first login of a UTC day extends or resets the
// streak and credits min(streak, 7) × 10 biscuits; the day an account is
// created earns no bonus. Repeat logins on the same day write nothing.
// Serialization conflicts are retried.
func (l *Ledger) EnsureUser(ctx context.Context, userID, username string) (Login, error) {
	var out Login
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.ensureUser(ctx, userID, username)
		return err
	})
	if err != nil {
		return Login{}, err
	}
	if out.Created {
		l.log.Info("user created", zap.String("user_id", userID), zap.Int64("biscuits", out.User.Biscuits))
	}
	// A new user changes leaderboard totals even without a bonus.
	if out.Created || out.Bonus > 0 {
		l.invalidate(ctx)
	}
	return out, nil
}

func (l *Ledger) ensureUser(ctx context.Context, userID, username string) (Login, error) {
	var out Login
	err := l.store.InTx(ctx, func(tx store.Tx) error {
		created, err := tx.InsertUser(ctx, models.User{ID: userID, Username: username, Biscuits: l.startingBiscuits})
		if err != nil {
			return err
		}
		user, err := tx.UserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		out = Login{User: user, Created: created}

		now := l.now().UTC()
		streak, firstToday := nextStreak(user.LastLoginAt, user.LoginStreak, now)
		if !firstToday {
			return nil
		}
		if err := tx.TouchLogin(ctx, userID, streak, now); err != nil {
			return err
		}
		out.User.LoginStreak = streak
		out.User.LastLoginAt = &now
		if created {
			return nil
		}

		out.Bonus = int64(min(streak, maxBonusStreak) * dailyBonusStep)
		out.User, err = tx.ApplyUserDelta(ctx, userID, models.UserDelta{Biscuits: out.Bonus})
		return err
	})
	if err != nil {
		return Login{}, err
	}
	return out, nil
}

// nextStreak returns the streak after a login at now and whether this is the
// first login of now's UTC day.
func nextStreak(last *time.Time, streak int, now time.Time) (int, bool) {
	if last == nil {
		return 1, true
	}
	today := utcDay(now)
	prev := utcDay(*last)
	switch today.Sub(prev) {
	case 0:
		return max(streak, 1), false
	case 24 * time.Hour:
		return streak + 1, true
	default:
		return 1, true
	}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
