// Package service реализует бизнес-логику сервиса sipsaver.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/sipsaver-system/internal/model"
	"github.com/mmeshcher/sipsaver-system/internal/pricing"
	"github.com/mmeshcher/sipsaver-system/internal/repository"
	"github.com/mmeshcher/sipsaver-system/internal/validation"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
// Несуществующий пользователь и неверный пароль неразличимы.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCannotPersist возвращается, когда профиль пользователя
	// не даёт права сохранять расчёты.
	ErrCannotPersist = errors.New("profile cannot save estimates")
	// ErrInvalidRegistration возвращается при некорректных данных регистрации.
	ErrInvalidRegistration = errors.New("invalid registration data")
)

// defaultNameFormat — формат имени расчёта по умолчанию:
// сортируемая отметка времени в UTC.
const defaultNameFormat = "2006-01-02 15:04:05"

// dummyHash используется для выравнивания формы отказа: для неизвестного
// пользователя всё равно выполняется сравнение bcrypt, чтобы по времени
// ответа нельзя было перебирать логины.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("sipsaver.dummy.password"), bcrypt.DefaultCost)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, username, email string, passwordHash []byte, profileType model.ProfileType) (int64, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	CreateEstimate(ctx context.Context, userID int64, name string, payload []byte) (int64, error)
	GetEstimate(ctx context.Context, userID, estimateID int64) (*model.Estimate, error)
	ListEstimatesByUser(ctx context.Context, userID int64) ([]model.Estimate, error)
	RenameEstimate(ctx context.Context, userID, estimateID int64, name string) error
	UpdateEstimatePayload(ctx context.Context, userID, estimateID int64, payload []byte) error
	DeleteEstimate(ctx context.Context, userID, estimateID int64) error
}

// Service содержит бизнес-логику сервиса sipsaver.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя и возвращает его идентификатор.
func (s *Service) RegisterUser(ctx context.Context, username, email, password string, profile model.ProfileType) (int64, error) {
	username = strings.TrimSpace(username)
	email = validation.NormalizeEmail(email)

	if !validation.IsValidUsername(username) {
		return 0, fmt.Errorf("%w: username", ErrInvalidRegistration)
	}
	if !validation.IsValidEmail(email) {
		return 0, fmt.Errorf("%w: email", ErrInvalidRegistration)
	}
	if password == "" {
		return 0, fmt.Errorf("%w: password", ErrInvalidRegistration)
	}
	if !profile.IsRegistrable() {
		return 0, fmt.Errorf("%w: profile type", ErrInvalidRegistration)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, username, email, hash, profile)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет идентификатор (имя или почту) и пароль
// и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, identifier, password string) (*model.User, error) {
	u, err := s.repo.GetUserByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Сравнение с фиктивным хешем сохраняет профиль времени ответа.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// ResolveUser возвращает пользователя по идентификатору из сессии.
func (s *Service) ResolveUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// EstimateDrink рассчитывает стоимость напитка с прогнозом расходов.
// Оптовые поля заполняются только когда профиль допускает опт и запрос
// явно выбрал оптовый режим; иначе они отсутствуют в результате.
func (s *Service) EstimateDrink(sel pricing.Selection, perWeek int, bulkRequested bool, bulkQty int, profile model.ProfileType) (*model.DrinkEstimate, error) {
	quote, err := pricing.Compute(sel)
	if err != nil {
		return nil, err
	}

	proj := pricing.Project(quote.PricePerCup, perWeek)

	res := &model.DrinkEstimate{
		PricePerCup: quote.PricePerCup,
		WeeklyCost:  proj.Weekly,
		MonthlyCost: proj.Monthly,
		YearlyCost:  proj.Yearly,
		Breakdown:   quote.Breakdown,
		AllowBulk:   profile.CanBulk(),
	}

	if profile.CanBulk() && bulkRequested {
		bulk, err := pricing.ProjectBulk(sel, bulkQty)
		if err != nil {
			return nil, err
		}
		res.BulkCost = &bulk.Total
		res.BulkQty = &bulk.Quantity
		res.BulkBreakdown = bulk.Breakdown
	}

	return res, nil
}

// SaveEstimate сохраняет расчёт пользователя и возвращает идентификатор
// и итоговое название. Пустое название заменяется сортируемой отметкой времени.
func (s *Service) SaveEstimate(ctx context.Context, userID int64, name string, payload json.RawMessage) (int64, string, error) {
	if err := s.requireCanPersist(ctx, userID); err != nil {
		return 0, "", err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Estimate " + s.now().UTC().Format(defaultNameFormat)
	}

	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	id, err := s.repo.CreateEstimate(ctx, userID, name, payload)
	if err != nil {
		return 0, "", err
	}
	return id, name, nil
}

// GetEstimate возвращает сохранённый расчёт владельца.
func (s *Service) GetEstimate(ctx context.Context, userID, estimateID int64) (*model.Estimate, error) {
	return s.repo.GetEstimate(ctx, userID, estimateID)
}

// ListEstimates возвращает сохранённые расчёты пользователя, новые первыми.
func (s *Service) ListEstimates(ctx context.Context, userID int64) ([]model.Estimate, error) {
	return s.repo.ListEstimatesByUser(ctx, userID)
}

// RenameEstimate переименовывает расчёт владельца.
func (s *Service) RenameEstimate(ctx context.Context, userID, estimateID int64, name string) error {
	if err := s.requireCanPersist(ctx, userID); err != nil {
		return err
	}
	return s.repo.RenameEstimate(ctx, userID, estimateID, name)
}

// UpdateEstimatePayload заменяет содержимое расчёта, не меняя названия.
func (s *Service) UpdateEstimatePayload(ctx context.Context, userID, estimateID int64, payload json.RawMessage) error {
	if err := s.requireCanPersist(ctx, userID); err != nil {
		return err
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return s.repo.UpdateEstimatePayload(ctx, userID, estimateID, payload)
}

// DeleteEstimate безвозвратно удаляет расчёт владельца.
func (s *Service) DeleteEstimate(ctx context.Context, userID, estimateID int64) error {
	if err := s.requireCanPersist(ctx, userID); err != nil {
		return err
	}
	return s.repo.DeleteEstimate(ctx, userID, estimateID)
}

func (s *Service) requireCanPersist(ctx context.Context, userID int64) error {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.ProfileType.CanPersist() {
		return ErrCannotPersist
	}
	return nil
}
