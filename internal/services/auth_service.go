package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bankledger/internal/auth"
	"bankledger/internal/ledger"
	"bankledger/internal/models"
	"bankledger/internal/session"
	"bankledger/internal/validator"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", session.ErrUnauthorized)
)

type Sessions interface {
	Login(ctx context.Context, p session.Principal) (string, error)
	Resolve(ctx context.Context, token string) (session.Principal, error)
	Logout(ctx context.Context, token string) error
}

type AuthService struct {
	ledger   ledger.Ledger
	sessions Sessions
}

type CustomerRegistration struct {
	Name           string
	Email          string
	Password       string
	InitialDeposit int64
}

type LoginResult struct {
	Token   string
	Account models.Account
}

func NewAuthService(l ledger.Ledger, sessions Sessions) *AuthService {
	return &AuthService{ledger: l, sessions: sessions}
}

func (s *AuthService) RegisterManager(ctx context.Context, username, password string) (models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Account{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if err := validator.ValidateUsername(username); err != nil {
		return models.Account{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := validator.ValidatePassword(password); err != nil {
		return models.Account{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}
	return s.ledger.OpenAccount(ctx, ledger.OpenAccountRequest{
		Kind:        models.KindManager,
		Name:        username,
		Identity:    username,
		Credentials: hash,
	})
}

func (s *AuthService) RegisterCustomer(ctx context.Context, reg CustomerRegistration) (models.Account, error) {
	name := strings.TrimSpace(reg.Name)
	email := normalizeEmail(reg.Email)
	if name == "" || email == "" || reg.Password == "" {
		return models.Account{}, fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}
	if err := validator.ValidateName(name); err != nil {
		return models.Account{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := validator.ValidateEmail(email); err != nil {
		return models.Account{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := validator.ValidatePassword(reg.Password); err != nil {
		return models.Account{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if reg.InitialDeposit < 0 {
		return models.Account{}, ledger.ErrInvalidAmount
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}
	return s.ledger.OpenAccount(ctx, ledger.OpenAccountRequest{
		Kind:           models.KindCustomer,
		Name:           name,
		Identity:       email,
		Credentials:    hash,
		InitialBalance: reg.InitialDeposit,
	})
}

func (s *AuthService) LoginManager(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	return s.login(ctx, models.KindManager, username, password)
}

func (s *AuthService) LoginCustomer(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	return s.login(ctx, models.KindCustomer, email, password)
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Logout(ctx, token)
}

func (s *AuthService) Resolve(ctx context.Context, token string) (session.Principal, error) {
	return s.sessions.Resolve(ctx, token)
}

func (s *AuthService) login(ctx context.Context, kind models.Kind, identity, password string) (LoginResult, error) {
	account, err := s.ledger.FindByIdentity(ctx, kind, identity)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !auth.CheckPassword(account.Credentials, password) {
		return LoginResult{}, ErrInvalidCredentials
	}
	token, err := s.sessions.Login(ctx, session.Principal{ID: account.ID, Role: account.Kind})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, Account: account}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func requireRole(p session.Principal, role models.Kind) error {
	if p.Role != role {
		return ErrForbidden
	}
	return nil
}
