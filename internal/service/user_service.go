package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"library-server/internal/auth"
	"library-server/internal/domain"
	"library-server/internal/events"
	"library-server/internal/metrics"
	"library-server/internal/repository"
	"library-server/internal/storage"
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name     string `json:"name" form:"name" validate:"required,max=100"`
	Email    string `json:"email" form:"email" validate:"required,email,max=254"`
	Password string `json:"password" form:"password" validate:"required,min=6,max=72"`
	DOB      string `json:"dob" form:"dob" validate:"max=32"`
	Gender   string `json:"gender" form:"gender" validate:"max=32"`
	Address  string `json:"address" form:"address" validate:"max=500"`
	Phone    string `json:"phone" form:"phone" validate:"max=32"`
	Role     string `json:"role" form:"role"`
}

// ProfileInput carries optional profile changes; nil fields stay untouched.
type ProfileInput struct {
	Name    *string `json:"name" form:"name" validate:"omitempty,min=1,max=100"`
	DOB     *string `json:"dob" form:"dob" validate:"omitempty,max=32"`
	Gender  *string `json:"gender" form:"gender" validate:"omitempty,max=32"`
	Address *string `json:"address" form:"address" validate:"omitempty,max=500"`
	Phone   *string `json:"phone" form:"phone" validate:"omitempty,max=32"`
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string
	User        *domain.User
}

// UserConfig tunes account rules.
type UserConfig struct {
	// AllowAdminSignup lets the register form create admin accounts.
	AllowAdminSignup bool
	KeyPrefix        string
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput, image *ImageUpload) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	// Authenticate resolves a bearer token to the current state of its user,
	// so bans apply to tokens issued before them.
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id int64, in ProfileInput, image *ImageUpload) (*domain.User, error)
	UpdateProfileImage(ctx context.Context, id int64, image ImageUpload) (*domain.User, error)
	Ban(ctx context.Context, id int64, reason string) (*domain.User, error)
	Unban(ctx context.Context, id int64) (*domain.User, error)
	// CreateAdmin bootstraps an admin account from the operator CLI.
	CreateAdmin(ctx context.Context, name, email, password string) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	tokens *auth.Issuer
	store  storage.Service
	cfg    UserConfig
	logger logrus.FieldLogger
	emitter
}

func NewUserService(
	users repository.UserRepository,
	tokens *auth.Issuer,
	store storage.Service,
	publisher events.Publisher,
	logger logrus.FieldLogger,
	cfg UserConfig,
) UserService {
	return &userService{
		users:   users,
		tokens:  tokens,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		emitter: emitter{publisher: publisher, logger: logger},
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput, image *ImageUpload) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}

	role := domain.RoleUser
	if domain.Role(strings.ToLower(strings.TrimSpace(in.Role))) == domain.RoleAdmin {
		if !s.cfg.AllowAdminSignup {
			return nil, domain.Forbiddenf("Admin accounts cannot be self-registered")
		}
		role = domain.RoleAdmin
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		DOB:          strings.TrimSpace(in.DOB),
		Gender:       strings.TrimSpace(in.Gender),
		Address:      strings.TrimSpace(in.Address),
		Phone:        strings.TrimSpace(in.Phone),
	}

	if image != nil {
		url, err := storeImage(ctx, s.store, s.cfg.KeyPrefix, storage.KindProfiles, *image)
		if err != nil {
			return nil, err
		}
		user.ProfileImage = url
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		dropImage(ctx, s.store, s.logger, user.ProfileImage)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.IsBanned {
		return nil, domain.BannedError(user.BanReason)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, User: sanitizeUser(user)}, nil
}

func (s *userService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if user.IsBanned {
		return nil, domain.BannedError(user.BanReason)
	}
	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, in ProfileInput, image *ImageUpload) (*domain.User, error) {
	in = ProfileInput{
		Name:    trimPtr(in.Name),
		DOB:     trimPtr(in.DOB),
		Gender:  trimPtr(in.Gender),
		Address: trimPtr(in.Address),
		Phone:   trimPtr(in.Phone),
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Name != nil && *in.Name == "" {
		return nil, domain.Validationf("name is required")
	}
	update := domain.ProfileUpdate{
		Name:    in.Name,
		DOB:     in.DOB,
		Gender:  in.Gender,
		Address: in.Address,
		Phone:   in.Phone,
	}

	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if image != nil {
		url, err := storeImage(ctx, s.store, s.cfg.KeyPrefix, storage.KindProfiles, *image)
		if err != nil {
			return nil, err
		}
		update.ProfileImage = &url
	}
	if update.Empty() {
		return sanitizeUser(current), nil
	}

	if err := s.users.UpdateProfile(ctx, id, update); err != nil {
		if update.ProfileImage != nil {
			dropImage(ctx, s.store, s.logger, *update.ProfileImage)
		}
		return nil, err
	}
	if update.ProfileImage != nil && current.ProfileImage != "" {
		dropImage(ctx, s.store, s.logger, current.ProfileImage)
	}
	return s.GetByID(ctx, id)
}

func (s *userService) UpdateProfileImage(ctx context.Context, id int64, image ImageUpload) (*domain.User, error) {
	return s.UpdateProfile(ctx, id, ProfileInput{}, &image)
}

func (s *userService) Ban(ctx context.Context, id int64, reason string) (*domain.User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Validationf("reason is required")
	}
	if len(reason) > 500 {
		return nil, domain.Validationf("reason must be at most 500 characters")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		return nil, domain.ErrCannotBanAdmin
	}
	if err := s.users.SetBan(ctx, id, true, reason); err != nil {
		return nil, err
	}

	metrics.UserBans.Inc()
	s.emit(ctx, events.Event{Type: events.UserBanned, UserID: id, Data: map[string]any{"reason": reason}})
	s.logger.WithFields(logrus.Fields{"user_id": id, "reason": reason}).Info("user banned")
	return s.GetByID(ctx, id)
}

func (s *userService) Unban(ctx context.Context, id int64) (*domain.User, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.users.SetBan(ctx, id, false, ""); err != nil {
		return nil, err
	}

	metrics.UserUnbans.Inc()
	s.emit(ctx, events.Event{Type: events.UserUnbanned, UserID: id})
	s.logger.WithField("user_id", id).Info("user unbanned")
	return s.GetByID(ctx, id)
}

func (s *userService) CreateAdmin(ctx context.Context, name, email, password string) (*domain.User, error) {
	in := RegisterInput{Name: name, Email: email, Password: password}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
