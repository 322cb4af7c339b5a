package services

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters long")
	ErrPasswordNoUpper   = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLower   = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoNumber  = errors.New("password must contain at least one number")
	ErrPasswordCommon    = errors.New("password is too common")
	ErrPasswordRepeating = errors.New("password repeats the same character too often")
)

// PasswordPolicy checks new passwords on register and change.
type PasswordPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireNumber bool
	// MaxRepeat is the longest allowed run of one character; 0 disables it.
	MaxRepeat int
	common    map[string]bool
}

func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireNumber: true,
		MaxRepeat:     3,
		common: map[string]bool{
			"password":   true,
			"password1":  true,
			"12345678":   true,
			"qwerty123":  true,
			"organic123": true,
			"welcome1":   true,
		},
	}
}

func (p *PasswordPolicy) Validate(password string) error {
	if len([]rune(password)) < p.MinLength {
		return ErrPasswordTooShort
	}
	if p.common[strings.ToLower(password)] {
		return ErrPasswordCommon
	}

	var hasUpper, hasLower, hasNumber bool
	var prev rune
	run := 0
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsNumber(r):
			hasNumber = true
		}
		if r == prev {
			run++
		} else {
			run = 1
		}
		if p.MaxRepeat > 0 && run > p.MaxRepeat {
			return ErrPasswordRepeating
		}
		prev = r
	}

	switch {
	case p.RequireUpper && !hasUpper:
		return ErrPasswordNoUpper
	case p.RequireLower && !hasLower:
		return ErrPasswordNoLower
	case p.RequireNumber && !hasNumber:
		return ErrPasswordNoNumber
	}
	return nil
}
