package common

// AuthorizationHeaderName is the HTTP header carrying the access token on
// authenticated requests, in the form "Bearer <token>".
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in AuthorizationHeaderName.
const BearerPrefix = "Bearer "
