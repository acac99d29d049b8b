package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. This is only used for scheduling renewal, never for trust
// decisions. Returns the zero time when the token carries no usable claim.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Debugf("failed to decode JWT payload: %v", err)
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
