// Package model содержит доменные сущности сервиса sipsaver.
package model

import (
	"encoding/json"
	"time"
)

// ProfileType описывает профиль пользователя и его права.
type ProfileType string

const (
	// ProfileGuest — анонимный посетитель: расчёт доступен, сохранение — нет.
	ProfileGuest ProfileType = "Guest"
	// ProfileDailyShopper — зарегистрированный пользователь с правом сохранять расчёты.
	ProfileDailyShopper ProfileType = "Daily Shopper"
	// ProfileBulkPurchaser — пользователь с правом сохранять расчёты и считать оптовые партии.
	ProfileBulkPurchaser ProfileType = "Bulk Purchaser"
)

// CanPersist сообщает, может ли профиль сохранять расчёты.
func (p ProfileType) CanPersist() bool {
	return p == ProfileDailyShopper || p == ProfileBulkPurchaser
}

// CanBulk сообщает, доступен ли профилю оптовый режим расчёта.
func (p ProfileType) CanBulk() bool {
	return p == ProfileBulkPurchaser
}

// IsRegistrable сообщает, допустим ли профиль при регистрации.
// Гостевой профиль существует только как отсутствие сессии.
func (p ProfileType) IsRegistrable() bool {
	return p == ProfileDailyShopper || p == ProfileBulkPurchaser
}

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	ProfileType  ProfileType
	CreatedAt    time.Time
}

// Estimate описывает сохранённый расчёт стоимости напитка.
// Payload — непрозрачный JSON: сервер хранит его дословно и не интерпретирует.
type Estimate struct {
	ID        int64
	UserID    int64
	Name      string
	Payload   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DrinkEstimate содержит результат расчёта стоимости напитка.
// Поля оптового режима присутствуют только когда профиль допускает опт
// и запрос явно его выбрал.
type DrinkEstimate struct {
	PricePerCup   float64            `json:"price_per_cup"`
	WeeklyCost    float64            `json:"weekly_cost"`
	MonthlyCost   float64            `json:"monthly_cost"`
	YearlyCost    float64            `json:"yearly_cost"`
	Breakdown     map[string]float64 `json:"breakdown"`
	AllowBulk     bool               `json:"allow_bulk"`
	BulkCost      *float64           `json:"bulk_cost,omitempty"`
	BulkQty       *int               `json:"bulk_qty,omitempty"`
	BulkBreakdown map[string]float64 `json:"breakdown_bulk,omitempty"`
}
