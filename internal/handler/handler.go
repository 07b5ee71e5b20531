// Package handler содержит HTTP-обработчики API сервиса sipsaver.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/sipsaver-system/internal/middleware"
	"github.com/mmeshcher/sipsaver-system/internal/model"
	"github.com/mmeshcher/sipsaver-system/internal/pricing"
	"github.com/mmeshcher/sipsaver-system/internal/repository"
	"github.com/mmeshcher/sipsaver-system/internal/service"
)

const defaultBulkQty = 24

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, username, email, password string, profile model.ProfileType) (int64, error)
	AuthenticateUser(ctx context.Context, identifier, password string) (*model.User, error)
	ResolveUser(ctx context.Context, userID int64) (*model.User, error)
	EstimateDrink(sel pricing.Selection, perWeek int, bulkRequested bool, bulkQty int, profile model.ProfileType) (*model.DrinkEstimate, error)
	SaveEstimate(ctx context.Context, userID int64, name string, payload json.RawMessage) (int64, string, error)
	GetEstimate(ctx context.Context, userID, estimateID int64) (*model.Estimate, error)
	ListEstimates(ctx context.Context, userID int64) ([]model.Estimate, error)
	RenameEstimate(ctx context.Context, userID, estimateID int64, name string) error
	UpdateEstimatePayload(ctx context.Context, userID, estimateID int64, payload json.RawMessage) error
	DeleteEstimate(ctx context.Context, userID, estimateID int64) error
}

// Handler реализует HTTP-обработчики API сервиса sipsaver.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{OK: false, Error: msg})
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Confirm     string `json:"confirm"`
	ProfileType string `json:"profile_type"`
}

// Register обрабатывает регистрацию нового пользователя
// и сразу выдаёт ему сессию.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "All fields are required.")
		return
	}
	if req.Confirm != "" && req.Confirm != req.Password {
		h.writeError(w, http.StatusBadRequest, "Passwords do not match.")
		return
	}

	profile := model.ProfileType(req.ProfileType)
	if req.ProfileType == "" {
		profile = model.ProfileDailyShopper
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Username, req.Email, req.Password, profile)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserExists):
			h.writeError(w, http.StatusConflict, "Username or email already exists.")
		case errors.Is(err, service.ErrInvalidRegistration):
			h.writeError(w, http.StatusBadRequest, "Invalid registration data.")
		default:
			h.logger.Error("register user error", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "Internal error.")
		}
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": userID})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login выполняет аутентификацию по имени или почте и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if req.Identifier == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "All fields are required.")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "Invalid credentials.")
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"username":     u.Username,
		"profile_type": string(u.ProfileType),
	})
}

// Logout сбрасывает cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Menu возвращает таблицы базовых цен и ставок добавок для построения формы.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	base, addons := pricing.Menu()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"base_prices":  base,
		"addon_prices": addons,
	})
}

// Estimate рассчитывает стоимость напитка. Доступен гостям; личность,
// если она есть, влияет только на доступность оптового режима.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	profile := model.ProfileGuest
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		u, err := h.service.ResolveUser(r.Context(), userID)
		switch {
		case err == nil:
			profile = u.ProfileType
		case errors.Is(err, repository.ErrUserNotFound):
			// Устаревший cookie удалённого пользователя: считаем гостем.
		default:
			h.logger.Error("resolve user error", zap.Error(err), zap.Int64("userID", userID))
			h.writeError(w, http.StatusInternalServerError, "Internal error.")
			return
		}
	}

	sel := pricing.Selection{
		Category: toString(data["category"], "Hot Brew"),
		Style:    toString(data["style"], "Latte"),
		Size:     toString(data["size"], "Medium"),
		SugarTsp: clampNonNegative(toFloat(data["sugar_tsp"])),
		CreamOz:  clampNonNegative(toFloat(data["cream_oz"])),
		MilkOz:   clampNonNegative(toFloat(data["milk_oz"])),
		Whipped:  toBool(data["whipped"]),
		Shots:    clampNonNegativeInt(toInt(data["shots"], 0)),
	}

	perWeek := clampNonNegativeInt(toInt(data["per_week"], 0))

	bulkQty := toInt(data["bulk_qty"], defaultBulkQty)
	if bulkQty < 1 {
		bulkQty = 1
	}
	bulkRequested := toBool(data["bulk"])

	res, err := h.service.EstimateDrink(sel, perWeek, bulkRequested, bulkQty, profile)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownSelection) {
			h.writeError(w, http.StatusBadRequest, "Unknown drink selection.")
			return
		}
		h.logger.Error("estimate error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

type saveEstimateRequest struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// SaveEstimate сохраняет расчёт текущего пользователя.
func (h *Handler) SaveEstimate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Login required.")
		return
	}

	var req saveEstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	id, name, err := h.service.SaveEstimate(r.Context(), userID, req.Name, req.Payload)
	if err != nil {
		h.handleEstimateError(w, err, userID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "name": name})
}

type estimateRow struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func newEstimateRow(e *model.Estimate) estimateRow {
	return estimateRow{
		ID:        e.ID,
		Name:      e.Name,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
	}
}

// GetEstimate возвращает сохранённый расчёт текущего пользователя.
func (h *Handler) GetEstimate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Login required.")
		return
	}

	estimateID, ok := h.estimateID(w, r)
	if !ok {
		return
	}

	e, err := h.service.GetEstimate(r.Context(), userID, estimateID)
	if err != nil {
		h.handleEstimateError(w, err, userID)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		estimateRow
	}{OK: true, estimateRow: newEstimateRow(e)})
}

// ListEstimates возвращает сохранённые расчёты текущего пользователя,
// новые первыми. Отсутствие расчётов — не ошибка.
func (h *Handler) ListEstimates(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Login required.")
		return
	}

	estimates, err := h.service.ListEstimates(r.Context(), userID)
	if err != nil {
		h.logger.Error("list estimates error", zap.Error(err), zap.Int64("userID", userID))
		h.writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}

	rows := make([]estimateRow, 0, len(estimates))
	for i := range estimates {
		rows = append(rows, newEstimateRow(&estimates[i]))
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "estimates": rows})
}

type renameRequest struct {
	Name string `json:"name"`
}

// RenameEstimate переименовывает сохранённый расчёт.
func (h *Handler) RenameEstimate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Login required.")
		return
	}

	estimateID, ok := h.estimateID(w, r)
	if !ok {
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "Missing id or name.")
		return
	}

	if err := h.service.RenameEstimate(r.Context(), userID, estimateID, name); err != nil {
		h.handleEstimateError(w, err, userID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type updatePayloadRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// UpdateEstimatePayload заменяет содержимое сохранённого расчёта.
func (h *Handler) UpdateEstimatePayload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Login required.")
		return
	}

	estimateID, ok := h.estimateID(w, r)
	if !ok {
		return
	}

	var req updatePayloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.service.UpdateEstimatePayload(r.Context(), userID, estimateID, req.Payload); err != nil {
		h.handleEstimateError(w, err, userID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// DeleteEstimate безвозвратно удаляет сохранённый расчёт.
func (h *Handler) DeleteEstimate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Login required.")
		return
	}

	estimateID, ok := h.estimateID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteEstimate(r.Context(), userID, estimateID); err != nil {
		h.handleEstimateError(w, err, userID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) estimateID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Missing id.")
		return 0, false
	}
	return id, true
}

func (h *Handler) handleEstimateError(w http.ResponseWriter, err error, userID int64) {
	switch {
	case errors.Is(err, repository.ErrEstimateNotFound):
		h.writeError(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, service.ErrCannotPersist):
		h.writeError(w, http.StatusForbidden, "Your profile cannot save.")
	case errors.Is(err, repository.ErrUserNotFound):
		// Cookie указывает на удалённого пользователя.
		h.writeError(w, http.StatusUnauthorized, "Login required.")
	default:
		h.logger.Error("estimate operation error", zap.Error(err), zap.Int64("userID", userID))
		h.writeError(w, http.StatusInternalServerError, "Internal error.")
	}
}

// Помощники приведения типов: граничный слой обязан переносить
// отсутствующие и некорректные значения в документированные умолчания,
// а не отвечать ошибкой.

func toString(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return 0
}

func toInt(v any, def int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int(f)
		}
	}
	return def
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampNonNegativeInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
