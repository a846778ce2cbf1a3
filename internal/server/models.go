package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// QueryRequest is a disposal question submitted for processing. Location
// is an optional hint (zip code, "lat,lng", or "City, ST"); empty means
// auto-detect. Async queries return 202 with an id to poll.
type QueryRequest struct {
	Query    string `json:"query"`
	Location string `json:"location,omitempty"`
	Async    bool   `json:"async,omitempty"`
}

// RefreshResponse reports the outcome of a manually triggered advisory
// refresh.
type RefreshResponse struct {
	Status string `json:"status"`
}
