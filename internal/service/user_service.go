package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/model"
	"storefront/internal/repository"
)

type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

type RegisterInput struct {
	ExternalUID string
	Email       string
	FullName    string
	PhoneNumber string
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if strings.TrimSpace(in.ExternalUID) == "" {
		return nil, fmt.Errorf("external uid is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, fmt.Errorf("email is required: %w", ErrInvalidInput)
	}

	u := &model.User{
		ExternalUID: in.ExternalUID,
		Email:       in.Email,
		FullName:    in.FullName,
		PhoneNumber: in.PhoneNumber,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) GetByExternalUID(ctx context.Context, externalUID string) (*model.User, error) {
	return s.users.GetUserByExternalUID(ctx, externalUID)
}

// UpdateProfile changes the mutable contact fields. Identity fields are
// fixed at registration.
func (s *UserService) UpdateProfile(ctx context.Context, user *model.User, fullName, phoneNumber *string) (*model.User, error) {
	if fullName != nil {
		user.FullName = *fullName
	}
	if phoneNumber != nil {
		user.PhoneNumber = *phoneNumber
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
