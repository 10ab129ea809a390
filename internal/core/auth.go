package core

import (
	"context"
	"errors"
	"fmt"

	"chatpay/internal/repository"
	tokenIssuer "chatpay/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
)

var ErrAccountNotFound error = errors.New("service account not found")
var ErrIncorrectPassword error = errors.New("incorrect password")

// Authenticate verifies a chat-surface service account and issues a signed
// token for the monetary endpoints.
func (o *Orchestrator) Authenticate(ctx context.Context, msg AuthMessage) (string, error) {
	account, err := o.repo.GetServiceAccount(ctx, msg.Username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("get service account: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(msg.Password)); err != nil {
		return "", ErrIncorrectPassword
	}

	tokenInfo := tokenIssuer.TokenInfo{
		UserName:   account.Username,
		Subject:    account.ID,
		Expiration: 24,
	}
	token := o.jwt.Generate(tokenInfo)
	signed, err := o.jwt.Sign(token)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// ValidateToken checks a bearer token issued by Authenticate.
func (o *Orchestrator) ValidateToken(token string) error {
	if _, err := o.jwt.Validate(token); err != nil {
		return fmt.Errorf("validate token: %w", err)
	}
	return nil
}
