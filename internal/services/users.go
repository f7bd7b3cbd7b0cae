package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pixelforge/internal/domain"
	"pixelforge/internal/util"
)

// UserCreatePayload creates an account with any role and status.
type UserCreatePayload struct {
	Name          string  `json:"name" validate:"notblank,max=100"`
	Email         string  `json:"email" validate:"notblank,email"`
	Password      string  `json:"password" validate:"notblank,min=8,max=128"`
	Role          string  `json:"role" validate:"omitempty,oneof=admin manager client it-support"`
	AccountStatus string  `json:"account_status" validate:"omitempty,oneof=active inactive suspended"`
	Phone         *string `json:"phone" validate:"omitempty,max=20"`
	Company       *string `json:"company" validate:"omitempty,max=200"`
}

// UserUpdatePayload edits an account. Nil fields are left as is.
type UserUpdatePayload struct {
	Name          *string `json:"name" validate:"omitempty,notblank,max=100"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Password      *string `json:"password" validate:"omitempty,min=8,max=128"`
	Role          *string `json:"role" validate:"omitempty,oneof=admin manager client it-support"`
	AccountStatus *string `json:"account_status" validate:"omitempty,oneof=active inactive suspended"`
	Phone         *string `json:"phone" validate:"omitempty,max=20"`
	Company       *string `json:"company" validate:"omitempty,max=200"`
}

// UserFilter narrows the user list.
type UserFilter struct {
	ListParams
	Role string
}

// UserService implements admin user management
type UserService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, log *zap.Logger) *UserService {
	return &UserService{db: db, log: log.Named("users")}
}

// List returns one page of users. Status filters on account status.
func (s *UserService) List(ctx context.Context, f UserFilter) (*Page[domain.User], error) {
	params := f.ListParams.normalized()
	query := s.db.WithContext(ctx).Model(&domain.User{})
	if role := domain.NormalizeRole(f.Role); role != "" {
		query = query.Where("role = ?", role)
	}
	if params.Status != "" {
		query = query.Where("account_status = ?", params.Status)
	}
	if params.Search != "" {
		like := likePattern(params.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	page, err := paginate[domain.User](query, params)
	if err != nil {
		return nil, internalError("failed to list users", err)
	}
	return page, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, lookupError(err, "user")
	}
	return &user, nil
}

// Create adds an account. Role defaults to client and status to active.
func (s *UserService) Create(ctx context.Context, p *UserCreatePayload) (*domain.User, error) {
	p.Role = domain.NormalizeRole(p.Role)
	p.AccountStatus = strings.ToLower(strings.TrimSpace(p.AccountStatus))
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	email := util.NormalizeEmail(p.Email)

	if taken, err := emailTaken(ctx, s.db, email, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, conflict("email already registered")
	}

	hashed, err := util.HashPassword(p.Password)
	if err != nil {
		return nil, internalError("failed to hash password", err)
	}
	user := &domain.User{
		Name:          strings.TrimSpace(p.Name),
		Email:         email,
		Password:      hashed,
		Role:          p.Role,
		AccountStatus: p.AccountStatus,
		Phone:         trimmedOrNil(p.Phone),
		Company:       trimmedOrNil(p.Company),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, conflict("email already registered")
		}
		return nil, internalError("failed to create user", err)
	}
	s.log.Info("user created", zap.Uint("id", user.ID), zap.String("email", email), zap.String("role", user.Role))
	return user, nil
}

// Update applies a partial edit.
func (s *UserService) Update(ctx context.Context, id uint, p *UserUpdatePayload) (*domain.User, error) {
	if p.Role != nil {
		role := domain.NormalizeRole(*p.Role)
		p.Role = &role
	}
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Email != nil {
		email := util.NormalizeEmail(*p.Email)
		if taken, err := emailTaken(ctx, s.db, email, user.ID); err != nil {
			return nil, err
		} else if taken {
			return nil, conflict("email already taken")
		}
		user.Email = email
	}
	if p.Name != nil {
		user.Name = strings.TrimSpace(*p.Name)
	}
	if p.Role != nil {
		user.Role = *p.Role
	}
	if p.AccountStatus != nil {
		user.AccountStatus = *p.AccountStatus
	}
	if p.Phone != nil {
		user.Phone = trimmedOrNil(p.Phone)
	}
	if p.Company != nil {
		user.Company = trimmedOrNil(p.Company)
	}
	if p.Password != nil {
		hashed, err := util.HashPassword(*p.Password)
		if err != nil {
			return nil, internalError("failed to hash password", err)
		}
		user.Password = hashed
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, conflict("email already taken")
		}
		return nil, internalError("failed to update user", err)
	}
	s.log.Info("user updated", zap.Uint("id", user.ID))
	return user, nil
}

// Delete removes a user. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	caller, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if caller.ID == id {
		return badRequest("cannot delete your own account")
	}

	res := s.db.WithContext(ctx).Delete(&domain.User{}, id)
	if res.Error != nil {
		return internalError("failed to delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("user not found")
	}
	s.log.Info("user deleted", zap.Uint("id", id), zap.String("by", caller.Email))
	return nil
}

// emailTaken reports whether a user other than exceptID owns email.
func emailTaken(ctx context.Context, db *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	query := db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, internalError("failed to check email", err)
	}
	return count > 0, nil
}
