package share

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	FamilyParam = "family"
	InviteParam = "invite"

	inviteAudience = "basket-invite"
	// DefaultInviteTTL bounds how long a signed invite can be redeemed.
	DefaultInviteTTL = 7 * 24 * time.Hour
)

var (
	ErrInviteRequired = errors.New("invite token required")
	ErrInviteInvalid  = errors.New("invite token invalid")
)

// Links builds share links for a family id. With a secret, links also carry
// a signed invite that joiners must present.
type Links struct {
	baseURL string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

func New(baseURL, secret string) *Links {
	l := &Links{baseURL: baseURL, ttl: DefaultInviteTTL, now: time.Now}
	if secret != "" {
		l.secret = []byte(secret)
	}
	return l
}

// Signed reports whether joins must present an invite.
func (l *Links) Signed() bool {
	return len(l.secret) > 0
}

// Link returns <baseURL>?family=<id>, plus &invite=<token> when signing is on.
func (l *Links) Link(familyID string) (string, error) {
	if strings.TrimSpace(familyID) == "" {
		return "", errors.New("family id is empty")
	}
	u, err := url.Parse(l.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid share base url: %w", err)
	}
	q := u.Query()
	q.Set(FamilyParam, familyID)
	if l.Signed() {
		token, err := l.Invite(familyID)
		if err != nil {
			return "", err
		}
		q.Set(InviteParam, token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Invite signs a token bound to familyID.
func (l *Links) Invite(familyID string) (string, error) {
	now := l.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   familyID,
		Audience:  jwt.ClaimStrings{inviteAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
	})
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign invite: %w", err)
	}
	return signed, nil
}

// VerifyInvite checks that token was issued for familyID. Without a secret
// every join is accepted.
func (l *Links) VerifyInvite(familyID, token string) error {
	if !l.Signed() {
		return nil
	}
	if token == "" {
		return ErrInviteRequired
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return l.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(inviteAudience),
		jwt.WithTimeFunc(l.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInviteInvalid, err)
	}
	if claims.Subject != familyID {
		return fmt.Errorf("%w: issued for another family", ErrInviteInvalid)
	}
	return nil
}

// ParseLink extracts the family id and invite from a share link.
func ParseLink(link string) (familyID, invite string, ok bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", "", false
	}
	q := u.Query()
	familyID = strings.TrimSpace(q.Get(FamilyParam))
	return familyID, q.Get(InviteParam), familyID != ""
}
