// Package validation содержит функции валидации пользовательского ввода.
package validation

import (
	"net/mail"
	"strings"
	"unicode"
)

const maxUsernameLength = 64

// NormalizeEmail приводит адрес к каноничному виду:
// обрезает пробелы и переводит в нижний регистр.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail проверяет синтаксис адреса электронной почты.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Отклоняем формы с display name вроде "Name <user@host>".
	return addr.Address == email
}

// IsValidUsername проверяет имя пользователя: непустое, без пробельных
// символов, не длиннее 64 символов.
func IsValidUsername(username string) bool {
	if username == "" || len(username) > maxUsernameLength {
		return false
	}
	for _, r := range username {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
