package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/pkg/db"
	"github.com/smallbiznis/talentbay/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) FindProfileByIdentity(ctx context.Context, identityID string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: identity %s: %w", domain.ErrProfileLookup, identityID, err)
	}
	return &profile, nil
}

func (r *repo) FindByHandle(ctx context.Context, handle string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).Where("handle = ?", handle).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: handle %s: %w", domain.ErrProfileLookup, handle, err)
	}
	return &profile, nil
}

// List pages by descending id. The page token is the id of the last row of
// the previous page.
func (r *repo) List(ctx context.Context, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Profile, *pagination.PageInfo, error) {
	size := page.PageSize
	if size <= 0 {
		size = 20
	}

	stmt := r.db.WithContext(ctx).Model(&domain.Profile{})
	if filter.Role != "" {
		stmt = stmt.Where("role = ?", filter.Role)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, nil, err
		}
		after, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", pagination.ErrInvalidPageToken, err)
		}
		stmt = stmt.Where("id < ?", after)
	}

	var profiles []*domain.Profile
	if err := stmt.Order("id desc").Limit(size + 1).Find(&profiles).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: list: %w", domain.ErrProfileLookup, err)
	}

	profiles, info := pagination.BuildCursorPageInfo(profiles, size, func(p *domain.Profile) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: p.ID.String()})
		return token
	})
	return profiles, info, nil
}

func (r *repo) Create(ctx context.Context, profile *domain.Profile) error {
	err := r.db.WithContext(ctx).Create(profile).Error
	if db.IsDuplicateKeyErr(err) {
		if constraint := db.ViolatedConstraint(err); strings.Contains(constraint, "handle") {
			return domain.ErrHandleTaken
		}
		var count int64
		if cerr := r.db.WithContext(ctx).Model(&domain.Profile{}).
			Where("identity_id = ?", profile.IdentityID).
			Count(&count).Error; cerr == nil && count > 0 {
			return domain.ErrAlreadyExists
		}
		return domain.ErrHandleTaken
	}
	return err
}
