package cataloguefeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/httpclient"
	"github.com/ternarybob/specials/internal/models"
)

func newTestAdapter(t *testing.T, maxPages int, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := httpclient.New(&common.HTTPConfig{Timeout: "5s", RateLimit: "1ms", Burst: 1}, arbor.NewLogger())
	config := &common.CatalogueConfig{
		Enabled:  true,
		PageSize: 2,
		MaxPages: maxPages,
		Feeds:    map[string]string{"aldi": server.URL + "/feed"},
	}
	return NewAdapter(config, client, arbor.NewLogger())
}

func pagedHandler(requests *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		page := r.URL.Query().Get("page")
		switch page {
		case "1":
			fmt.Fprint(w, `{"page":1,"total_pages":2,"items":[
				{"name":" Just Organic Bananas ","price":3.99,"was_price":4.99,"valid_from":"2026-10-15","valid_to":"2026-10-21"},
				{"name":"Lemnos Feta 200g","price":4.49,"valid_from":"2026-10-15T00:00:00Z","valid_to":"not a date"}]}`)
		case "2":
			fmt.Fprint(w, `{"page":2,"total_pages":2,"items":[{"name":"Snow Ski Jacket","price":49.99,"discount_percent":30}]}`)
		default:
			fmt.Fprint(w, `{"items":[]}`)
		}
	}
}

func TestFetch_WalksPages(t *testing.T) {
	var requests int32
	adapter := newTestAdapter(t, 0, pagedHandler(&requests))

	items, err := adapter.Fetch(context.Background(), "aldi")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests), "stops at total_pages")

	assert.Equal(t, "Just Organic Bananas", items[0].Name)
	require.NotNil(t, items[0].WasPrice)
	assert.Equal(t, "2026-10-21", models.FormatDate(*items[0].ValidTo))

	require.NotNil(t, items[1].ValidFrom)
	assert.Equal(t, "2026-10-15", models.FormatDate(*items[1].ValidFrom))
	assert.Nil(t, items[1].ValidTo, "unparseable dates are left unset")

	require.NotNil(t, items[2].DiscountPercent)
	assert.Equal(t, 30, *items[2].DiscountPercent)
	for _, item := range items {
		assert.Equal(t, SourceName, item.Source)
	}
}

func TestFetch_MaxPages(t *testing.T) {
	var requests int32
	adapter := newTestAdapter(t, 1, pagedHandler(&requests))

	items, err := adapter.Fetch(context.Background(), "aldi")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestFetch_Errors(t *testing.T) {
	adapter := newTestAdapter(t, 0, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"page":1,"total_pages":3,"items":[{"name":"A","price":1}]}`)
	})

	items, err := adapter.Fetch(context.Background(), "aldi")
	assert.True(t, errors.Is(err, models.ErrNetwork), "a failed page fails the store")
	assert.Nil(t, items)

	_, err = adapter.Fetch(context.Background(), "coles")
	assert.True(t, errors.Is(err, models.ErrUnknownStore))

	_, err = adapter.Discover(context.Background(), "aldi")
	assert.True(t, errors.Is(err, models.ErrNotSupported))
}

func TestFetch_MalformedJSON(t *testing.T) {
	adapter := newTestAdapter(t, 0, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [`)
	})

	_, err := adapter.Fetch(context.Background(), "aldi")
	assert.True(t, errors.Is(err, models.ErrParse))
}

func TestConfigured(t *testing.T) {
	adapter := newTestAdapter(t, 0, func(w http.ResponseWriter, r *http.Request) {})
	assert.NoError(t, adapter.Configured())

	adapter.config.Enabled = false
	assert.True(t, errors.Is(adapter.Configured(), models.ErrNotConfigured))
}
