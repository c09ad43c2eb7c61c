package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/memberclub/internal/membership"
	"github.com/mmeshcher/memberclub/internal/model"
	"github.com/mmeshcher/memberclub/internal/repository"
	"github.com/mmeshcher/memberclub/internal/validation"
)

const (
	resetPasswordLength   = 10
	resetPasswordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Registration содержит данные регистрации участника.
type Registration struct {
	Phone    string
	Password string
	Prefix   string
	Name     string
}

func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// RegisterMember регистрирует участника со статусом pending_payment.
func (s *Service) RegisterMember(ctx context.Context, reg Registration) (*model.Member, error) {
	reg.Phone = strings.TrimSpace(reg.Phone)
	reg.Name = strings.TrimSpace(reg.Name)

	if !validation.IsValidPhone(reg.Phone) {
		return nil, fmt.Errorf("%w: phone must be 9-10 digits starting with 0", ErrInvalidInput)
	}
	if !validation.IsValidPassword(reg.Password) {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, validation.MinPasswordLength)
	}
	if reg.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	hash, err := hashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	m := &model.Member{
		ID:           s.newID(),
		Phone:        reg.Phone,
		PasswordHash: hash,
		Prefix:       strings.TrimSpace(reg.Prefix),
		Name:         reg.Name,
		Status:       membership.InitialStatus(),
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AuthenticateMember проверяет телефон и пароль участника.
func (s *Service) AuthenticateMember(ctx context.Context, phone, password string) (*model.Member, error) {
	m, err := s.repo.GetMemberByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(m.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return m, nil
}

// AuthenticateAdmin проверяет логин и пароль администратора.
func (s *Service) AuthenticateAdmin(ctx context.Context, username, password string) (*model.Admin, error) {
	a, err := s.repo.GetAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// GetAdmin возвращает администратора по идентификатору.
func (s *Service) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	return s.repo.GetAdmin(ctx, id)
}

// EnsureAdmin создаёт администратора, если логин ещё не занят. Возвращает true, если администратор создан.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	_, err := s.repo.GetAdminByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrAdminNotFound) {
		return false, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return false, err
	}

	err = s.repo.CreateAdmin(ctx, &model.Admin{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if errors.Is(err, repository.ErrAdminExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResetMemberPassword задаёт участнику случайный пароль и возвращает его в открытом виде.
func (s *Service) ResetMemberPassword(ctx context.Context, memberID string) (string, error) {
	password, err := randomPassword(resetPasswordLength)
	if err != nil {
		return "", err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}

	if err := s.repo.UpdateMemberPassword(ctx, memberID, hash); err != nil {
		return "", err
	}
	return password, nil
}

func randomPassword(n int) (string, error) {
	limit := big.NewInt(int64(len(resetPasswordAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b[i] = resetPasswordAlphabet[idx.Int64()]
	}
	return string(b), nil
}
