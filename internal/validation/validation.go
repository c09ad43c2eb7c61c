// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/mmeshcher/memberclub/internal/model"
)

// MinPasswordLength задаёт минимальную длину пароля участника.
const MinPasswordLength = 6

// ErrInvalidAddress возвращается, если адрес доставки заполнен неполностью или с ошибками.
var ErrInvalidAddress = errors.New("invalid delivery address")

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// IsValidPhone проверяет номер телефона: 9 или 10 цифр, первая цифра 0.
func IsValidPhone(phone string) bool {
	if len(phone) < 9 || len(phone) > 10 {
		return false
	}
	return phone[0] == '0' && allDigits(phone)
}

// IsValidPostalCode проверяет почтовый индекс из пяти цифр.
func IsValidPostalCode(code string) bool {
	return len(code) == 5 && allDigits(code)
}

// IsValidPassword проверяет минимальную длину пароля.
func IsValidPassword(password string) bool {
	return len(password) >= MinPasswordLength
}

// IsValidRating проверяет оценку отзыва.
func IsValidRating(rating int) bool {
	return rating >= 1 && rating <= 5
}

// IsValidPlatform проверяет площадку трансляции.
func IsValidPlatform(platform string) bool {
	return platform == "zoom" || platform == "vimeo"
}

// ValidateDeliveryAddress проверяет обязательные поля адреса доставки.
func ValidateDeliveryAddress(a model.DeliveryAddress) error {
	required := []struct {
		field string
		value string
	}{
		{"deliveryName", a.DeliveryName},
		{"deliveryPhone", a.DeliveryPhone},
		{"houseNumber", a.HouseNumber},
		{"subdistrict", a.Subdistrict},
		{"district", a.District},
		{"province", a.Province},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidAddress, r.field)
		}
	}

	if !IsValidPhone(a.DeliveryPhone) {
		return fmt.Errorf("%w: deliveryPhone must be 9-10 digits starting with 0", ErrInvalidAddress)
	}
	if !IsValidPostalCode(a.PostalCode) {
		return fmt.Errorf("%w: postalCode must be 5 digits", ErrInvalidAddress)
	}
	return nil
}
