package keygate

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/fatih/structs"
	"github.com/pkg/errors"

	"github.com/thinkzone/keygate/internal/utils"
)

// ErrMissingIdentifier is returned when no purchaser email can be found in
// a grant payload.
var ErrMissingIdentifier = errors.New("no purchaser email in payload")

// grantPayload lists the payload fields the gateway understands. The email
// aliases are tried in field order. Everything else in the payload is
// carried along as opaque metadata.
type grantPayload struct {
	Email          string `json:"email" form:"email"`
	PurchaserEmail string `json:"purchaser_email" form:"purchaser_email"`
	BuyerEmail     string `json:"buyer_email" form:"buyer_email"`
	SaleID         string `json:"sale_id" form:"sale_id"`
	ProductName    string `json:"product_name" form:"product_name"`
}

// GrantRequest is the canonical shape a purchase event is normalized into
// before it reaches the lifecycle.
type GrantRequest struct {
	Email       string
	SaleID      string
	ProductName string
	Source      string
	// Extra holds the payload fields the gateway does not interpret.
	Extra map[string]any
}

// Metadata flattens the grant into the metadata map stored on the issued
// license.
func (g GrantRequest) Metadata() map[string]any {
	m := map[string]any{
		"email":  g.Email,
		"source": g.Source,
	}
	if g.SaleID != "" {
		m["sale_id"] = g.SaleID
	}
	if g.ProductName != "" {
		m["product_name"] = g.ProductName
	}
	for k, v := range g.Extra {
		if _, taken := m[k]; !taken {
			m[k] = v
		}
	}
	return m
}

// normalizeGrant parses a raw webhook body (JSON or form-encoded,
// depending on contentType) into a GrantRequest. Parsing is tolerant;
// validation of the canonical shape is strict: a missing purchaser email
// is the one fatal defect.
func normalizeGrant(raw []byte, contentType, provider string) (GrantRequest, error) {
	fields, err := payloadFields(raw, contentType)
	if err != nil {
		return GrantRequest{}, err
	}

	var known grantPayload
	stringField := func(name string) string {
		v, ok := fields[name]
		if !ok {
			return ""
		}
		s, _ := v.(string)
		return s
	}
	known.Email = stringField("email")
	known.PurchaserEmail = stringField("purchaser_email")
	known.BuyerEmail = stringField("buyer_email")
	known.SaleID = stringField("sale_id")
	known.ProductName = stringField("product_name")

	// Whatever is not a recognized field stays as opaque metadata.
	for _, tag := range utils.FieldTagNames(structs.New(known).Fields(), "json") {
		delete(fields, tag)
	}
	if len(fields) == 0 {
		fields = nil
	}

	email := known.Email
	if email == "" {
		email = known.PurchaserEmail
	}
	if email == "" {
		email = known.BuyerEmail
	}
	if email == "" {
		return GrantRequest{}, ErrMissingIdentifier
	}

	return GrantRequest{
		Email:       email,
		SaleID:      known.SaleID,
		ProductName: known.ProductName,
		Source:      provider,
		Extra:       fields,
	}, nil
}

// payloadFields decodes the raw body into a flat field map.
func payloadFields(raw []byte, contentType string) (map[string]any, error) {
	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, errors.Wrap(err, "could not parse form payload")
		}
		fields := make(map[string]any, len(values))
		for k := range values {
			fields[k] = values.Get(k)
		}
		return fields, nil
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "could not parse json payload")
	}
	return fields, nil
}
