package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/sipsaver-system/internal/model"
	"github.com/mmeshcher/sipsaver-system/internal/pricing"
	"github.com/mmeshcher/sipsaver-system/internal/repository"
)

type stubRepo struct {
	createUserID   int64
	createUserErr  error
	createdEmail   string
	createdProfile model.ProfileType

	userByIdentifier    *model.User
	userByIdentifierErr error

	userByID    *model.User
	userByIDErr error

	createEstimateID   int64
	createEstimateErr  error
	createdName        string
	createdPayload     []byte
	renameErr          error
	updatePayloadErr   error
	deleteErr          error
	estimate           *model.Estimate
	estimateErr        error
	estimates          []model.Estimate
	estimatesErr       error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, username, email string, passwordHash []byte, profileType model.ProfileType) (int64, error) {
	s.createdEmail = email
	s.createdProfile = profileType
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	return s.userByIdentifier, s.userByIdentifierErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.userByID, s.userByIDErr
}

func (s *stubRepo) CreateEstimate(ctx context.Context, userID int64, name string, payload []byte) (int64, error) {
	s.createdName = name
	s.createdPayload = payload
	return s.createEstimateID, s.createEstimateErr
}

func (s *stubRepo) GetEstimate(ctx context.Context, userID, estimateID int64) (*model.Estimate, error) {
	return s.estimate, s.estimateErr
}

func (s *stubRepo) ListEstimatesByUser(ctx context.Context, userID int64) ([]model.Estimate, error) {
	return s.estimates, s.estimatesErr
}

func (s *stubRepo) RenameEstimate(ctx context.Context, userID, estimateID int64, name string) error {
	return s.renameErr
}

func (s *stubRepo) UpdateEstimatePayload(ctx context.Context, userID, estimateID int64, payload []byte) error {
	return s.updatePayloadErr
}

func (s *stubRepo) DeleteEstimate(ctx context.Context, userID, estimateID int64) error {
	return s.deleteErr
}

func TestRegisterUser_NormalizesEmail(t *testing.T) {
	repo := &stubRepo{createUserID: 1}
	svc := NewService(repo)

	_, err := svc.RegisterUser(context.Background(), "user", "User@Example.COM", "pass", model.ProfileDailyShopper)
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}
	if repo.createdEmail != "user@example.com" {
		t.Fatalf("email = %q, want user@example.com", repo.createdEmail)
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{createUserErr: repository.ErrUserExists}
	svc := NewService(repo)

	_, err := svc.RegisterUser(context.Background(), "user", "user@example.com", "pass", model.ProfileDailyShopper)
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterUser_RejectsGuestProfile(t *testing.T) {
	svc := NewService(&stubRepo{})

	_, err := svc.RegisterUser(context.Background(), "user", "user@example.com", "pass", model.ProfileGuest)
	if !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("expected ErrInvalidRegistration, got %v", err)
	}
}

func TestRegisterUser_RejectsBadInput(t *testing.T) {
	svc := NewService(&stubRepo{})

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{name: "empty username", username: "", email: "user@example.com", password: "pass"},
		{name: "bad email", email: "not-an-email", username: "user", password: "pass"},
		{name: "empty password", username: "user", email: "user@example.com", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterUser(context.Background(), tt.username, tt.email, tt.password, model.ProfileDailyShopper)
			if !errors.Is(err, ErrInvalidRegistration) {
				t.Fatalf("expected ErrInvalidRegistration, got %v", err)
			}
		})
	}
}

func TestAuthenticateUser_WrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	repo := &stubRepo{
		userByIdentifier: &model.User{ID: 1, Username: "user", PasswordHash: hash},
	}
	svc := NewService(repo)

	_, err = svc.AuthenticateUser(context.Background(), "user", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUser_UnknownUserSameError(t *testing.T) {
	repo := &stubRepo{userByIdentifierErr: repository.ErrUserNotFound}
	svc := NewService(repo)

	_, err := svc.AuthenticateUser(context.Background(), "nobody", "pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("ErrUserNotFound must not leak to the caller")
	}
}

func TestAuthenticateUser_Success(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	repo := &stubRepo{
		userByIdentifier: &model.User{ID: 7, Username: "user", PasswordHash: hash, ProfileType: model.ProfileBulkPurchaser},
	}
	svc := NewService(repo)

	u, err := svc.AuthenticateUser(context.Background(), "user", "correct")
	if err != nil {
		t.Fatalf("AuthenticateUser error: %v", err)
	}
	if u.ID != 7 || u.ProfileType != model.ProfileBulkPurchaser {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestEstimateDrink_BulkGating(t *testing.T) {
	svc := NewService(&stubRepo{})
	sel := pricing.Selection{Category: "Hot Brew", Style: "Latte", Size: "Medium", SugarTsp: 2, Shots: 1}

	tests := []struct {
		name      string
		profile   model.ProfileType
		requested bool
		wantBulk  bool
		allowBulk bool
	}{
		{name: "guest requested", profile: model.ProfileGuest, requested: true, wantBulk: false, allowBulk: false},
		{name: "daily shopper requested", profile: model.ProfileDailyShopper, requested: true, wantBulk: false, allowBulk: false},
		{name: "bulk purchaser not requested", profile: model.ProfileBulkPurchaser, requested: false, wantBulk: false, allowBulk: true},
		{name: "bulk purchaser requested", profile: model.ProfileBulkPurchaser, requested: true, wantBulk: true, allowBulk: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.EstimateDrink(sel, 5, tt.requested, 24, tt.profile)
			if err != nil {
				t.Fatalf("EstimateDrink error: %v", err)
			}
			if res.AllowBulk != tt.allowBulk {
				t.Fatalf("AllowBulk = %v, want %v", res.AllowBulk, tt.allowBulk)
			}
			hasBulk := res.BulkCost != nil && res.BulkQty != nil && res.BulkBreakdown != nil
			if hasBulk != tt.wantBulk {
				t.Fatalf("bulk fields present = %v, want %v", hasBulk, tt.wantBulk)
			}
		})
	}
}

func TestEstimateDrink_ExampleValues(t *testing.T) {
	svc := NewService(&stubRepo{})
	sel := pricing.Selection{Category: "Hot Brew", Style: "Latte", Size: "Medium", SugarTsp: 2, Shots: 1}

	res, err := svc.EstimateDrink(sel, 5, false, 24, model.ProfileGuest)
	if err != nil {
		t.Fatalf("EstimateDrink error: %v", err)
	}

	if res.PricePerCup != 5.65 {
		t.Fatalf("PricePerCup = %v, want 5.65", res.PricePerCup)
	}
	if res.WeeklyCost != 28.25 {
		t.Fatalf("WeeklyCost = %v, want 28.25", res.WeeklyCost)
	}
	if res.MonthlyCost != 122.32 {
		t.Fatalf("MonthlyCost = %v, want 122.32", res.MonthlyCost)
	}
	if res.YearlyCost != 1469.00 {
		t.Fatalf("YearlyCost = %v, want 1469.00", res.YearlyCost)
	}
}

func TestEstimateDrink_UnknownSelection(t *testing.T) {
	svc := NewService(&stubRepo{})

	_, err := svc.EstimateDrink(pricing.Selection{Category: "Tea", Style: "Latte", Size: "Medium"}, 0, false, 24, model.ProfileGuest)
	if !errors.Is(err, pricing.ErrUnknownSelection) {
		t.Fatalf("expected ErrUnknownSelection, got %v", err)
	}
}

func TestSaveEstimate_DefaultName(t *testing.T) {
	repo := &stubRepo{
		createEstimateID: 3,
		userByID:         &model.User{ID: 1, ProfileType: model.ProfileDailyShopper},
	}
	svc := NewService(repo)
	svc.now = func() time.Time {
		return time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	}

	id, name, err := svc.SaveEstimate(context.Background(), 1, "  ", []byte(`{"style":"Latte"}`))
	if err != nil {
		t.Fatalf("SaveEstimate error: %v", err)
	}
	if id != 3 {
		t.Fatalf("id = %d, want 3", id)
	}
	if name != "Estimate 2026-08-30 12:00:00" {
		t.Fatalf("name = %q, want timestamp default", name)
	}
	if !strings.HasPrefix(name, "Estimate ") {
		t.Fatalf("default name must be prefixed, got %q", name)
	}
}

func TestSaveEstimate_KeepsExplicitNameAndPayload(t *testing.T) {
	repo := &stubRepo{
		createEstimateID: 4,
		userByID:         &model.User{ID: 1, ProfileType: model.ProfileBulkPurchaser},
	}
	svc := NewService(repo)

	payload := []byte(`{"style":"Latte","sugar_tsp":2}`)
	_, name, err := svc.SaveEstimate(context.Background(), 1, "Morning latte", payload)
	if err != nil {
		t.Fatalf("SaveEstimate error: %v", err)
	}
	if name != "Morning latte" {
		t.Fatalf("name = %q, want Morning latte", name)
	}
	if string(repo.createdPayload) != string(payload) {
		t.Fatalf("payload stored = %s, want verbatim %s", repo.createdPayload, payload)
	}
}

func TestSaveEstimate_GuestCannotPersist(t *testing.T) {
	repo := &stubRepo{
		userByID: &model.User{ID: 1, ProfileType: model.ProfileGuest},
	}
	svc := NewService(repo)

	_, _, err := svc.SaveEstimate(context.Background(), 1, "name", []byte(`{}`))
	if !errors.Is(err, ErrCannotPersist) {
		t.Fatalf("expected ErrCannotPersist, got %v", err)
	}
}

func TestDeleteEstimate_PropagatesNotFound(t *testing.T) {
	repo := &stubRepo{
		userByID:  &model.User{ID: 1, ProfileType: model.ProfileDailyShopper},
		deleteErr: repository.ErrEstimateNotFound,
	}
	svc := NewService(repo)

	err := svc.DeleteEstimate(context.Background(), 1, 99)
	if !errors.Is(err, repository.ErrEstimateNotFound) {
		t.Fatalf("expected ErrEstimateNotFound, got %v", err)
	}
}
