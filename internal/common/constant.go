// Package common contains shared constants and sentinel errors used across
// ExposureShield components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token inside the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName is echoed back on every response for log correlation.
const RequestIDHeaderName = "X-Request-ID"
