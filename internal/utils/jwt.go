package utils // package utils provides helper functions for token creation and verification

import (
    "errors"
    "strconv"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// SignedToken represents a signed JWT along with its expiry.  The Token field
// contains the serialized JWT string.  Exp stores the expiration timestamp as
// a time.Time.  Access tokens are short-lived and presented in the
// Authorization header; refresh tokens are long-lived and exchanged only at
// the refresh endpoint.  Both carry the same subject claims but are signed
// with distinct secrets.
type SignedToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// TokenClaims is the subject identity embedded in every token: the user id
// (sub), the login name and the email.  The gate resolves the caller from
// these claims without touching the users table.
type TokenClaims struct {
    UserID   uint64
    UserName string
    Email    string
}

// ErrInvalidToken is returned when a token fails signature, expiry or claim
// checks.  Callers collapse every parse failure into this one error so the
// HTTP layer never distinguishes "expired" from "tampered".
var ErrInvalidToken = errors.New("invalid token")

// NewToken builds and signs an HS256 JWT for a user.  It takes the signing
// secret, the subject claims and a TTL in seconds.  The JWT includes the
// standard claims sub, exp and iat plus userName and email.  The same
// builder serves both token classes; what differs between them is only the
// secret and TTL handed in by the caller.
func NewToken(secret string, tc TokenClaims, ttlSec int) (SignedToken, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlSec) * time.Second)
    claims := jwt.MapClaims{
        "sub":      tc.UserID,
        "userName": tc.UserName,
        "email":    tc.Email,
        "exp":      exp.Unix(),
        "iat":      time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return SignedToken{}, err
    }
    return SignedToken{Token: signed, Exp: exp}, nil
}

// ParseToken verifies an HS256 JWT against the given secret and extracts the
// subject claims.  Tokens signed with any other method are rejected, as are
// expired tokens (the jwt library validates exp during Parse).  All failure
// modes collapse into ErrInvalidToken.
func ParseToken(secret, raw string) (TokenClaims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Type assert the signing method to HMAC; reject others.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return TokenClaims{}, ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return TokenClaims{}, ErrInvalidToken
    }
    var tc TokenClaims
    // JWT numeric values decode as float64; some encoders emit numeric
    // strings instead, so accept both forms for the subject.
    switch sub := claims["sub"].(type) {
    case float64:
        tc.UserID = uint64(sub)
    case string:
        n, err := strconv.ParseUint(sub, 10, 64)
        if err != nil {
            return TokenClaims{}, ErrInvalidToken
        }
        tc.UserID = n
    default:
        return TokenClaims{}, ErrInvalidToken
    }
    if v, ok := claims["userName"].(string); ok {
        tc.UserName = v
    }
    if v, ok := claims["email"].(string); ok {
        tc.Email = v
    }
    if tc.UserID == 0 {
        return TokenClaims{}, ErrInvalidToken
    }
    return tc, nil
}
