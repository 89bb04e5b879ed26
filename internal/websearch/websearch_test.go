package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgard/tipsai/internal/logger"
)

func TestNeedsRealtime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		question string
		want     bool
	}{
		{question: "qual o preço do bitcoin?", want: true},
		{question: "Quanto está o BTC agora", want: true},
		{question: "quanto tá o dólar", want: true},
		{question: "alguma notícia sobre a SEC?", want: true},
		{question: "o que é staking?", want: false},
		{question: "como funciona o CoinTech2U", want: false},
		{question: "solução para carteira", want: false},
		{question: "valeu pela dica", want: false},
		{question: "como está a selic", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			t.Parallel()
			if got := NeedsRealtime(tt.question); got != tt.want {
				t.Errorf("NeedsRealtime(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

func TestOptimizeQuery(t *testing.T) {
	t.Parallel()

	if got := OptimizeQuery("preço do Bitcoin"); got != "preço do Bitcoin preço cotação hoje" {
		t.Errorf("OptimizeQuery() = %q", got)
	}
	if got := OptimizeQuery("selic hoje"); got != "selic hoje cripto investimento" {
		t.Errorf("OptimizeQuery() = %q", got)
	}
}

const resultsPage = `<html><body>
<div class="result result--ad"><a class="result__a">Anúncio</a><a class="result__snippet">compre já</a></div>
<div class="result"><h2><a class="result__a" href="#">Bitcoin  hoje</a></h2><a class="result__snippet">BTC sobe 3%
 após ETF</a></div>
<div class="result"><a class="result__a">Cotação ETH</a><div class="result__snippet">ETH a US$ 3.000</div></div>
<div class="result"><a class="result__a">Terceiro</a><div class="result__snippet">ignorado</div></div>
</body></html>`

func TestClientSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "btc preço cotação hoje" || r.URL.Query().Get("kl") != "br-pt" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(resultsPage))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/html/", "br-pt", 5*time.Second, logger.Discard())
	got := Lookup(context.Background(), c, "btc", 2, logger.Discard())

	want := "- Bitcoin hoje: BTC sobe 3% após ETF\n- Cotação ETH: ETH a US$ 3.000"
	if got != want {
		t.Errorf("Lookup() = %q, want %q", got, want)
	}
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string, int) ([]Result, error) {
	return nil, errors.New("offline")
}

func TestLookup_FailureIsEmpty(t *testing.T) {
	t.Parallel()

	if got := Lookup(context.Background(), failingSearcher{}, "btc", 3, logger.Discard()); got != "" {
		t.Errorf("Lookup() = %q, want empty", got)
	}
}

func TestClientSearch_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "", time.Second, logger.Discard())
	if _, err := c.Search(context.Background(), "x", 3); err == nil {
		t.Error("Search() error = nil for HTTP 429")
	}
}
