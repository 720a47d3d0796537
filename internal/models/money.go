package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidAmount возвращается, если денежная сумма не может быть представлена
// в минорных единицах без потери точности.
var ErrInvalidAmount = errors.New("invalid amount")

// Money хранит сумму в минорных единицах (пенсах). В JSON сумма передаётся
// десятичным числом с двумя знаками после точки, например 4.99.
type Money int64

// maxUnits — наибольшая целая часть, которая помещается в Money.
const maxUnits = (math.MaxInt64 - 99) / 100

// ParseMoney разбирает десятичную запись суммы. Допускается не более двух
// значащих знаков после точки: "4.99", "5", "4.990" корректны, "4.999" нет.
// Знак разрешён только минус и только перед целой частью.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if (whole == "" && frac == "") || !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if whole == "" {
		whole = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q has more than two fraction digits", ErrInvalidAmount, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > maxUnits {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	m := Money(units*100 + cents)
	if neg {
		m = -m
	}
	return m, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// maxExponent ограничивает показатель степени в записи вида 4.99e0.
const maxExponent = 20

// expandExponent переводит запись числа JSON с показателем степени в обычную
// десятичную: "499e-2" -> "4.99".
func expandExponent(s string) (string, error) {
	i := strings.IndexAny(s, "eE")
	if i < 0 {
		return s, nil
	}
	mant, expStr := s[:i], s[i+1:]
	exp, err := strconv.Atoi(expStr)
	if err != nil || exp > maxExponent || exp < -maxExponent {
		return "", fmt.Errorf("%w: bad exponent in %q", ErrInvalidAmount, s)
	}

	sign := ""
	if strings.HasPrefix(mant, "-") {
		sign, mant = "-", mant[1:]
	}
	whole, frac, _ := strings.Cut(mant, ".")
	digits := whole + frac
	if !isDigits(digits) || digits == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	point := len(whole) + exp
	switch {
	case point <= 0:
		digits = strings.Repeat("0", -point+1) + digits
		point = 1
	case point > len(digits):
		digits += strings.Repeat("0", point-len(digits))
	}
	return sign + digits[:point] + "." + digits[point:], nil
}

// String форматирует сумму как "4.99".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON реализует json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON принимает только число JSON. Строки и null отклоняются с
// ErrInvalidAmount.
func (m *Money) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" || raw[0] == '"' || raw == "null" {
		return fmt.Errorf("%w: price must be a number", ErrInvalidAmount)
	}
	s, err := expandExponent(raw)
	if err != nil {
		return err
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
