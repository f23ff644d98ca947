package keygate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGrantJSON(t *testing.T) {
	body := []byte(`{
		"email": "buyer@example.com",
		"sale_id": "S-1234",
		"product_name": "SmartCOPY Pro",
		"price": "49.00",
		"currency": "EUR"
	}`)
	grant, err := normalizeGrant(body, "application/json", "gumroad")
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", grant.Email)
	assert.Equal(t, "S-1234", grant.SaleID)
	assert.Equal(t, "SmartCOPY Pro", grant.ProductName)
	assert.Equal(t, "gumroad", grant.Source)
	// Unrecognized fields stay as opaque extras.
	assert.Equal(t, "49.00", grant.Extra["price"])
	assert.Equal(t, "EUR", grant.Extra["currency"])
	assert.NotContains(t, grant.Extra, "email")
	assert.NotContains(t, grant.Extra, "sale_id")
}

func TestNormalizeGrantForm(t *testing.T) {
	body := []byte("purchaser_email=buyer%40example.com&sale_id=S-9&refunded=false")
	grant, err := normalizeGrant(body, "application/x-www-form-urlencoded", "gumroad")
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", grant.Email)
	assert.Equal(t, "S-9", grant.SaleID)
	assert.Equal(t, "false", grant.Extra["refunded"])
}

func TestNormalizeGrantEmailAliasPriority(t *testing.T) {
	body := []byte(`{
		"email": "primary@example.com",
		"purchaser_email": "secondary@example.com",
		"buyer_email": "tertiary@example.com"
	}`)
	grant, err := normalizeGrant(body, "application/json", "p")
	require.NoError(t, err)
	assert.Equal(t, "primary@example.com", grant.Email)

	body = []byte(`{"buyer_email": "tertiary@example.com"}`)
	grant, err = normalizeGrant(body, "application/json", "p")
	require.NoError(t, err)
	assert.Equal(t, "tertiary@example.com", grant.Email)
}

func TestNormalizeGrantMissingEmail(t *testing.T) {
	_, err := normalizeGrant([]byte(`{"sale_id": "S-1"}`), "application/json", "p")
	assert.ErrorIs(t, err, ErrMissingIdentifier)
}

func TestNormalizeGrantBadPayload(t *testing.T) {
	_, err := normalizeGrant([]byte(`{not json`), "application/json", "p")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingIdentifier)
}

func TestGrantMetadata(t *testing.T) {
	g := GrantRequest{
		Email:       "buyer@example.com",
		SaleID:      "S-1",
		ProductName: "SmartCOPY",
		Source:      "gumroad",
		Extra:       map[string]any{"currency": "EUR", "email": "spoofed@example.com"},
	}
	m := g.Metadata()
	assert.Equal(t, "buyer@example.com", m["email"])
	assert.Equal(t, "gumroad", m["source"])
	assert.Equal(t, "S-1", m["sale_id"])
	assert.Equal(t, "SmartCOPY", m["product_name"])
	assert.Equal(t, "EUR", m["currency"])
}
