// Package websearch decides when a question needs current data and fetches
// it from DuckDuckGo's HTML endpoint.
package websearch

import (
	"regexp"
	"strings"
)

// realtimeKeywords are terms suggesting the answer depends on current data.
var realtimeKeywords = []string{
	// price
	`preço`, `cotação`, `cotacao`, `vale`,
	`quanto\s+(?:tá|está|custa|vale)`,
	// time
	`hoje`, `agora`, `atual`, `atualmente`,
	`esta\s+semana`, `este\s+mês`,
	// market moves
	`mercado`, `alta`, `queda`, `caiu`, `subiu`,
	`bull`, `bear`, `rally`, `crash`, `dump`, `pump`,
	// news
	`notícia`, `noticia`, `news`, `novidade`,
	// market metrics
	`market\s?cap`, `volume`, `liquidez`, `dominância`, `dominancia`,
	// predictions
	`previsão`, `previsao`, `perspectiva`,
	// tickers
	`btc`, `eth`, `sol`, `ada`, `xrp`, `bnb`, `doge`, `matic`, `dot`, `avax`,
	`bitcoin`, `ethereum`, `solana`, `cardano`, `ripple`,
	// regulation and events
	`regulação`, `regulamentação`, `sec`, `etf`, `halving`, `fed`, `selic`,
}

// RE2's \b is ASCII only, so word boundaries are spelled out to work with
// accented Portuguese words.
var realtimePattern = regexp.MustCompile(
	`(?i)(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(realtimeKeywords, "|") + `)(?:[^\p{L}\p{N}_]|$)`,
)

var cryptoTerms = []string{
	"bitcoin", "ethereum", "cripto", "crypto", "btc", "eth", "defi",
	"blockchain", "token", "moeda", "coin",
}

// NeedsRealtime reports whether a question likely needs current external
// information such as prices or news.
func NeedsRealtime(question string) bool {
	return realtimePattern.MatchString(question)
}

// OptimizeQuery biases a question towards crypto and finance results.
func OptimizeQuery(question string) string {
	lower := strings.ToLower(question)
	for _, term := range cryptoTerms {
		if strings.Contains(lower, term) {
			return question + " preço cotação hoje"
		}
	}
	return question + " cripto investimento"
}
