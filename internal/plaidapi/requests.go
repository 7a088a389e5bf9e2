package plaidapi

import (
	"math"
	"strings"

	"github.com/plaid/plaid-go/v20/plaid"
)

// MaxInstitutionsCount is the largest page Plaid serves from /institutions/get.
const MaxInstitutionsCount = 500

// LinkIdentity is the fixed application identity presented when creating
// link tokens.
type LinkIdentity struct {
	UserID       string
	ClientName   string
	Products     []string
	CountryCodes []string
	Language     string
}

// NewLinkTokenRequest builds the outbound link-token request for identity.
func NewLinkTokenRequest(identity LinkIdentity) LinkTokenRequest {
	return LinkTokenRequest{
		UserID:       identity.UserID,
		ClientName:   identity.ClientName,
		Products:     cloneStrings(identity.Products),
		CountryCodes: cloneStrings(identity.CountryCodes),
		Language:     identity.Language,
	}
}

// NewInstitutionsQuery builds the outbound institutions query.
func NewInstitutionsQuery(countryCodes []string, count, offset int) InstitutionsQuery {
	return InstitutionsQuery{
		CountryCodes: cloneStrings(countryCodes),
		Count:        count,
		Offset:       offset,
	}
}

// Validate reports whether the request is fully populated with values Plaid
// recognises.
func (r LinkTokenRequest) Validate() error {
	if _, err := r.sdkRequest(); err != nil {
		return err
	}
	return nil
}

// Validate reports whether the query is fully populated with values Plaid
// recognises.
func (q InstitutionsQuery) Validate() error {
	if _, err := q.sdkRequest(); err != nil {
		return err
	}
	return nil
}

func (r LinkTokenRequest) sdkRequest() (*plaid.LinkTokenCreateRequest, *APIError) {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return nil, invalidRequest("link token request: user id is required")
	case strings.TrimSpace(r.ClientName) == "":
		return nil, invalidRequest("link token request: client name is required")
	case strings.TrimSpace(r.Language) == "":
		return nil, invalidRequest("link token request: language is required")
	}

	products, err := toProducts(r.Products)
	if err != nil {
		return nil, err
	}
	countries, err := toCountryCodes(r.CountryCodes)
	if err != nil {
		return nil, err
	}

	user := plaid.NewLinkTokenCreateRequestUser(r.UserID)
	req := plaid.NewLinkTokenCreateRequest(r.ClientName, r.Language, countries, *user)
	req.SetProducts(products)
	return req, nil
}

func (q InstitutionsQuery) sdkRequest() (*plaid.InstitutionsGetRequest, *APIError) {
	if q.Count <= 0 || q.Count > MaxInstitutionsCount {
		return nil, invalidRequest("institutions query: count must be in [1, %d], got %d", MaxInstitutionsCount, q.Count)
	}
	if q.Offset < 0 || q.Offset > math.MaxInt32 {
		return nil, invalidRequest("institutions query: offset must be in [0, %d], got %d", math.MaxInt32, q.Offset)
	}

	countries, err := toCountryCodes(q.CountryCodes)
	if err != nil {
		return nil, err
	}

	return plaid.NewInstitutionsGetRequest(int32(q.Count), int32(q.Offset), countries), nil
}

func toProducts(raw []string) ([]plaid.Products, *APIError) {
	if len(raw) == 0 {
		return nil, invalidRequest("at least one product is required")
	}
	out := make([]plaid.Products, 0, len(raw))
	for _, value := range raw {
		product, err := plaid.NewProductsFromValue(strings.ToLower(strings.TrimSpace(value)))
		// The SDK constructors accept any string; IsValid checks the enum.
		if err != nil || !product.IsValid() {
			return nil, invalidRequest("unknown product %q", value)
		}
		out = append(out, *product)
	}
	return out, nil
}

func toCountryCodes(raw []string) ([]plaid.CountryCode, *APIError) {
	if len(raw) == 0 {
		return nil, invalidRequest("at least one country code is required")
	}
	out := make([]plaid.CountryCode, 0, len(raw))
	for _, value := range raw {
		code, err := plaid.NewCountryCodeFromValue(strings.ToUpper(strings.TrimSpace(value)))
		if err != nil || !code.IsValid() {
			return nil, invalidRequest("unknown country code %q", value)
		}
		out = append(out, *code)
	}
	return out, nil
}

func cloneStrings(src []string) []string {
	if src == nil {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
