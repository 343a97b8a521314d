// Package common contains shared constants and sentinel errors used across
// CareLink client components.
package common

// AuthorizationHeaderName is the HTTP header used to carry the access token
// on outbound requests to the hosted backend.
const AuthorizationHeaderName = "Authorization"
