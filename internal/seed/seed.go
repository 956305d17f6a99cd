// Package seed creates demo accounts for local and staging environments.
package seed

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/smallbiznis/talentbay/internal/auth/domain"
	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	seedLockKey = "talentbay:seed:lock"
	seedLockTTL = time.Minute

	DefaultPassword = "talentbay-demo"
)

var ErrSeedInProgress = errors.New("seed already running")

// Account describes one demo user. An empty Role leaves the user without a
// profile, as if they had abandoned onboarding.
type Account struct {
	Email           string
	DisplayName     string
	Role            profiledomain.Role
	Headline        string
	Skills          []string
	HourlyRateCents int64
	Currency        string
}

var DemoAccounts = []Account{
	{
		Email:       "admin@talentbay.local",
		DisplayName: "Ada Admin",
		Role:        profiledomain.RoleAdmin,
		Headline:    "Marketplace operations",
	},
	{
		Email:           "farah@talentbay.local",
		DisplayName:     "Farah Freelancer",
		Role:            profiledomain.RoleFreelancer,
		Headline:        "Backend engineer, Go and Postgres",
		Skills:          []string{"go", "postgres", "redis"},
		HourlyRateCents: 8500,
		Currency:        "USD",
	},
	{
		Email:       "cato@talentbay.local",
		DisplayName: "Cato Client",
		Role:        profiledomain.RoleClient,
		Headline:    "Hiring for a payments rebuild",
	},
	{
		Email:       "newcomer@talentbay.local",
		DisplayName: "Newcomer",
	},
}

type Result struct {
	Email       string
	UserID      string
	Handle      string
	UserCreated bool
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Users    authdomain.Service
	UserRepo authdomain.Repository
	Profiles profiledomain.Service
	Locker   *ratelimit.Locker `optional:"true"`
}

type Seeder struct {
	log      *zap.Logger
	users    authdomain.Service
	userRepo authdomain.Repository
	profiles profiledomain.Service
	locker   *ratelimit.Locker
}

func New(p Params) *Seeder {
	return &Seeder{
		log:      p.Log.Named("seed"),
		users:    p.Users,
		userRepo: p.UserRepo,
		profiles: p.Profiles,
		locker:   p.Locker,
	}
}

// Run creates every account that does not exist yet. It is safe to run
// repeatedly; concurrent runs are refused while a lock is held.
func (s *Seeder) Run(ctx context.Context, accounts []Account, password string) ([]Result, error) {
	if s.locker != nil {
		lease, err := s.locker.Acquire(ctx, seedLockKey, seedLockTTL)
		if errors.Is(err, ratelimit.ErrLockHeld) {
			return nil, ErrSeedInProgress
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("failed to release seed lock", zap.Error(err))
			}
		}()
	}

	results := make([]Result, 0, len(accounts))
	for _, account := range accounts {
		res, err := s.ensureAccount(ctx, account, password)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Seeder) ensureAccount(ctx context.Context, account Account, password string) (Result, error) {
	res := Result{Email: account.Email}

	user, err := s.users.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:    account.Email,
		Password: password,
	})
	switch {
	case err == nil:
		res.UserCreated = true
	case errors.Is(err, authdomain.ErrUserExists):
		user, err = s.userRepo.FindByEmail(ctx, account.Email)
		if err != nil {
			return res, err
		}
	default:
		return res, err
	}
	res.UserID = user.ID.String()

	if account.Role == "" {
		s.log.Info("seeded account without profile", zap.String("email", account.Email))
		return res, nil
	}

	profile, err := s.profiles.Create(ctx, profiledomain.CreateProfileRequest{
		IdentityID:      res.UserID,
		DisplayName:     account.DisplayName,
		Role:            string(account.Role),
		Headline:        account.Headline,
		Skills:          account.Skills,
		HourlyRateCents: account.HourlyRateCents,
		Currency:        account.Currency,
	})
	if errors.Is(err, profiledomain.ErrAlreadyExists) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Handle = profile.Handle

	s.log.Info("seeded account",
		zap.String("email", account.Email),
		zap.String("role", account.Role.String()),
		zap.String("handle", profile.Handle),
	)
	return res, nil
}
