package plaidapi

import "context"

// Client describes the Plaid operations the HTTP layer depends on.
// Every non-nil error returned by an implementation is an *APIError.
type Client interface {
	CreateLinkToken(ctx context.Context, req LinkTokenRequest) (string, error)
	ListInstitutions(ctx context.Context, query InstitutionsQuery) ([]Institution, error)
}

// LinkTokenRequest is the outbound shape for /link/token/create.
type LinkTokenRequest struct {
	UserID       string
	ClientName   string
	Products     []string
	CountryCodes []string
	Language     string
}

// InstitutionsQuery is the outbound shape for /institutions/get.
type InstitutionsQuery struct {
	CountryCodes []string
	Count        int
	Offset       int
}

// Institution is a bank as listed by Plaid, reduced to what the API exposes.
type Institution struct {
	ID   string
	Name string
}
