package common

// AuthHeaderName is the HTTP header carrying the bearer access token on
// requests to the backend.
const AuthHeaderName = "Authorization"
