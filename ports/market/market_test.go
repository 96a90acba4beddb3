package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Naveen-807/Franky-Docs-sub000/transport"
)

func TestPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`{"ethereum":{"usd":3150.25}}`))
	}))
	defer srv.Close()

	c := New(transport.NewClient(), srv.URL)
	price, err := c.Price(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, 3150.25, price)
}

func TestPriceUnknownSymbol(t *testing.T) {
	c := New(transport.NewClient(), "https://api.example")
	_, err := c.Price(context.Background(), "DOGE")
	assert.Error(t, err)
}

func TestPriceMissingQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(transport.NewClient(), srv.URL)
	_, err := c.Price(context.Background(), "ETH")
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("ETH"))
	assert.True(t, Supported("stx"))
	assert.False(t, Supported("DOGE"))
}
