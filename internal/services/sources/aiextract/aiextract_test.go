package aiextract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/httpclient"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
)

type fakeLLM struct {
	response string
	err      error
	received []interfaces.Message
}

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	f.received = messages
	return f.response, f.err
}

func (f *fakeLLM) Provider() string { return "fake" }

func (f *fakeLLM) Close() error { return nil }

const specialsPage = `<html><head><script>var x = 1;</script></head><body>
<h1>This week's specials</h1>
<div class="product"><a href="/p/123">Arnott's Tim Tam 200g</a><span>$2.75</span><span>was $5.50</span></div>
</body></html>`

func newTestAdapter(t *testing.T, llm interfaces.LLMService) *Adapter {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(specialsPage))
	}))
	t.Cleanup(server.Close)

	client := httpclient.New(&common.HTTPConfig{Timeout: "5s", RateLimit: "1ms", Burst: 1}, arbor.NewLogger())
	config := &common.AIExtractConfig{
		Enabled: true,
		Pages:   map[string]string{"coles": server.URL + "/specials"},
	}
	return NewAdapter(config, llm, NewHTTPFetcher(client), arbor.NewLogger())
}

func TestFetch_SendsMarkdownAndParsesItems(t *testing.T) {
	llm := &fakeLLM{response: "```json\n{\"items\":[{\"name\":\"Arnott's Tim Tam 200g\",\"price\":2.75,\"was_price\":5.5,\"brand\":\"Arnott's\",\"valid_to\":\"2026-10-20\"}]}\n```"}
	adapter := newTestAdapter(t, llm)

	items, err := adapter.Fetch(context.Background(), "coles")
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "Arnott's Tim Tam 200g", item.Name)
	assert.Equal(t, 2.75, item.Price)
	require.NotNil(t, item.WasPrice)
	assert.Equal(t, 5.5, *item.WasPrice)
	assert.Equal(t, "Arnott's", item.Brand)
	require.NotNil(t, item.ValidTo)
	assert.Equal(t, "2026-10-20", models.FormatDate(*item.ValidTo))
	assert.Nil(t, item.ValidFrom)
	assert.Equal(t, SourceName, item.Source)

	require.Len(t, llm.received, 2)
	assert.Equal(t, "system", llm.received[0].Role)
	user := llm.received[1].Content
	assert.Contains(t, user, "Tim Tam")
	assert.Contains(t, user, "Store: coles")
	assert.NotContains(t, user, "var x", "scripts are stripped")
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name  string
		llm   *fakeLLM
		store string
		want  error
	}{
		{name: "uncovered store", llm: &fakeLLM{}, store: "aldi", want: models.ErrUnknownStore},
		{name: "provider failure", llm: &fakeLLM{err: errors.New("rate limited")}, store: "coles", want: models.ErrNetwork},
		{name: "prose reply", llm: &fakeLLM{response: "Sorry, I cannot help with that."}, store: "coles", want: models.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAdapter(t, tt.llm).Fetch(context.Background(), tt.store)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestConfigured(t *testing.T) {
	adapter := newTestAdapter(t, nil)
	assert.True(t, errors.Is(adapter.Configured(), models.ErrNotConfigured), "no LLM")

	_, err := adapter.Fetch(context.Background(), "coles")
	assert.True(t, errors.Is(err, models.ErrNotConfigured))

	adapter = newTestAdapter(t, &fakeLLM{})
	assert.NoError(t, adapter.Configured())
	assert.Equal(t, []string{"coles"}, adapter.Stores())
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		names    []string
		prices   []float64
		dropped  int
		wantErr  bool
	}{
		{
			name:     "bare array",
			response: `[{"name":"Milk 2L","price":3.2},{"name":"Bread","price":"$4.00"}]`,
			names:    []string{"Milk 2L", "Bread"},
			prices:   []float64{3.2, 4.0},
		},
		{
			name:     "items object with invalid entries",
			response: `{"items":[{"name":"","price":1},{"name":"Eggs 12pk","price":null},{"name":"Butter 250g","price":0},{"name":"Cheese 500g","price":6.5}]}`,
			names:    []string{"Cheese 500g"},
			prices:   []float64{6.5},
			dropped:  3,
		},
		{
			name:     "multibuy text price",
			response: `{"items":[{"name":"Coke 1.25L","price":"2 for $5"}]}`,
			names:    []string{"Coke 1.25L"},
			prices:   []float64{2.5},
		},
		{name: "empty items", response: `{"items":[]}`},
		{name: "missing items field", response: `{"products":[]}`, wantErr: true},
		{name: "not json", response: `here are the specials`, wantErr: true},
		{name: "blank", response: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, dropped, err := ParseResponse(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, models.ErrParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dropped, dropped)
			require.Len(t, items, len(tt.names))
			for i := range items {
				assert.Equal(t, tt.names[i], items[i].Name)
				assert.Equal(t, tt.prices[i], items[i].Price)
			}
		})
	}
}

func TestParseResponse_WasPriceAndDiscount(t *testing.T) {
	items, _, err := ParseResponse(`[{"name":"A","price":5,"was_price":4,"discount_percent":25.4},{"name":"B","price":2,"was_price":"$3.00","discount_percent":150}]`)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Nil(t, items[0].WasPrice, "was price below price is ignored")
	require.NotNil(t, items[0].DiscountPercent)
	assert.Equal(t, 25, *items[0].DiscountPercent)

	require.NotNil(t, items[1].WasPrice)
	assert.Equal(t, 3.0, *items[1].WasPrice)
	assert.Nil(t, items[1].DiscountPercent)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "https://www.coles.com.au", baseURL("https://www.coles.com.au/on-special?page=2"))
	assert.Equal(t, "https://shop.test", baseURL("https://shop.test"))
	assert.Equal(t, "", baseURL("not a url"))

	assert.Equal(t, "ab", truncateUTF8("abé", 3), "multi-byte rune is not split")
	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	assert.Equal(t, "abc", truncateUTF8("abc", 3))
	assert.Equal(t, "", truncateUTF8("", 5))
	assert.True(t, strings.HasPrefix(stripCodeFence("```\n[1]\n```"), "[1]"))
}
