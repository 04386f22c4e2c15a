package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs.  Access and refresh tokens are signed with distinct secrets so
// a leaked access secret never lets an attacker mint refresh tokens.
type Config struct {
    Env              string // application environment (e.g. "dev", "prod")
    Port             string // HTTP port to listen on
    DBUser           string // database username
    DBPass           string // database password (optional)
    DBHost           string // database host address
    DBPort           string // database port number
    DBName           string // database name
    JWTAccessSecret  string // secret used to sign access tokens
    JWTRefreshSecret string // secret used to sign refresh tokens
    AccessTTLSec     int    // access token time-to-live in seconds
    RefreshTTLSec    int    // refresh token time-to-live in seconds
    BcryptCost       int    // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Token TTLs default
// to 7 days (access) and 30 days (refresh) when unset.
func Load() Config {
    return Config{
        Env:              must("APP_ENV"),
        Port:             must("APP_PORT"),
        DBUser:           must("DB_USER"),
        DBPass:           os.Getenv("DB_PASS"), // empty password allowed
        DBHost:           must("DB_HOST"),
        DBPort:           must("DB_PORT"),
        DBName:           must("DB_NAME"),
        JWTAccessSecret:  must("JWT_ACCESS_SECRET"),
        JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
        AccessTTLSec:     intOr("ACCESS_TOKEN_TTL_SEC", 7*24*3600),
        RefreshTTLSec:    intOr("REFRESH_TOKEN_TTL_SEC", 30*24*3600),
        BcryptCost:       intOr("BCRYPT_COST", 12),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// intOr returns the integer value of an environment variable or the given
// default when the variable is unset.  A value that is set but not a valid
// integer is a configuration mistake and aborts startup.
func intOr(key string, def int) int {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
