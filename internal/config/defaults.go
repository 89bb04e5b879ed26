package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultSystemInstruction is the assistant persona sent with every answer.
const DefaultSystemInstruction = `Você é o TipsAI, assistente do grupo "Invest Tips Daily - BR" no Telegram.
Criador: Renan, do canal YouTube "Invest Tips Daily".

## Personalidade
- Direto, honesto, educativo. Sem enrolação.
- Português brasileiro informal e informativo.
- Não promete milagres. Destaca riscos. Incentiva pesquisa própria.
- Emojis: uso moderado e natural.

## REGRA DE OURO: Respostas dinâmicas
Adapte o tamanho da resposta à complexidade da pergunta:
- Pergunta simples ("o que é staking?") → 1-3 frases curtas
- Pergunta média ("como funciona o CoinTech2U?") → 1 parágrafo
- Pergunta complexa ("compare DeFi vs CeFi com prós e contras") → resposta mais detalhada, mas ainda objetiva
NUNCA escreva mais do que o necessário. Vá direto ao ponto.

## Regras
- Responda SEMPRE em pt-BR.
- Não sabe? Diga que não sabe. NUNCA invente.
- Cite autor e data quando usar informações do grupo.
- Destaque riscos em assuntos de investimento/cripto.
- Você NÃO dá conselho financeiro — informa e educa.
- NÃO repita a pergunta do usuário.
- Se o contexto do grupo não for relevante, use seu conhecimento geral mas avise.
- Se receber dados atuais da web, use-os para enriquecer a resposta.`

const defaultHelp = `📋 Comandos disponíveis:

/tips <pergunta> — Pergunta livre ao bot
/buscar <termo> — Busca semântica no histórico
/resumo — Resumo das últimas conversas
/health — Status e métricas do bot
/sobre — Sobre o bot e o canal
/ajuda — Esta mensagem

🔒 Admin: /reindex /stats /config

Filtros no /buscar: autor:Nome de:YYYY-MM-DD ate:YYYY-MM-DD
Mencione @botname com uma pergunta para interagir.`

const defaultAbout = `🤖 TipsAI — Assistente do Invest Tips Daily

Sou um bot inteligente que funciona como a memória viva deste grupo. Uso inteligência artificial para buscar e resumir informações do histórico de conversas.

📺 Canal YouTube: Invest Tips Daily
👤 Criador: Renan

Transparência sempre. Dúvida? Pergunta!`

const defaultWelcome = `Fala! Eu sou o TipsAI, o assistente inteligente do Invest Tips Daily 🧠

Sou a memória viva do grupo — posso responder perguntas, buscar conversas antigas, fazer resumos e muito mais.

Manda /ajuda a qualquer momento pra ver os comandos, ou me marca com @botname e a sua pergunta.`

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-2.0-flash")
	v.SetDefault("gemini.fallback_model_name", "gemini-2.0-flash-lite")
	v.SetDefault("gemini.embedding_model", "text-embedding-004")
	v.SetDefault("gemini.embedding_dimension", 768)
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.max_output_tokens", 1024)
	v.SetDefault("gemini.system_instruction", DefaultSystemInstruction)
	v.SetDefault("gemini.max_retries", 0)
	v.SetDefault("gemini.retry_delay_seconds", 2)
	v.SetDefault("gemini.timeout", 90*time.Second)

	v.SetDefault("database.path", "./data/tipsai.db")

	v.SetDefault("vectorstore.backend", "sqlite")
	v.SetDefault("vectorstore.postgres_url", "")
	v.SetDefault("vectorstore.collection", "telegram_messages")

	v.SetDefault("rag.top_k", 10)
	v.SetDefault("rag.search_top_k", 5)
	v.SetDefault("rag.min_score", 0.3)
	v.SetDefault("rag.rerank", false)
	v.SetDefault("rag.rerank_minimum", 3)
	v.SetDefault("rag.cache_ttl", 5*time.Minute)
	v.SetDefault("rag.cache_size", 256)
	v.SetDefault("rag.max_tokens", 1024)

	v.SetDefault("websearch.enabled", true)
	v.SetDefault("websearch.endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("websearch.region", "br-pt")
	v.SetDefault("websearch.max_results", 3)
	v.SetDefault("websearch.timeout", 10*time.Second)

	v.SetDefault("memory.max_history", 20)
	v.SetDefault("memory.ttl", 30*time.Minute)
	v.SetDefault("memory.condensation", true)

	v.SetDefault("ratelimit.max_requests", 5)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.cleanup_every", 100)

	v.SetDefault("ingest.export_path", "./data/telegram_export")
	v.SetDefault("ingest.batch_size", 32)
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("ingest.conversation_gap", 30*time.Minute)
	v.SetDefault("ingest.target_chars", 2000)
	v.SetDefault("ingest.overlap_chars", 300)
	v.SetDefault("ingest.transcribe", true)
	v.SetDefault("ingest.caption", true)
	v.SetDefault("ingest.live_enabled", true)
	v.SetDefault("ingest.live_batch_threshold", 10)
	v.SetDefault("ingest.live_flush_interval", 5*time.Minute)
	v.SetDefault("ingest.timezone", "America/Sao_Paulo")

	v.SetDefault("summary.chat_id", 0)
	v.SetDefault("summary.thread_id", 0)
	v.SetDefault("summary.prompt", "Faça um resumo das conversas mais recentes e relevantes do grupo "+
		"Invest Tips Daily, destacando os principais assuntos discutidos hoje.")

	v.SetDefault("scheduler.timezone", "America/Sao_Paulo")
	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance":   map[string]any{"enabled": true, "schedule": "0 0 4 * * 0"},
		"live_ingest_flush": map[string]any{"enabled": true, "schedule": "0 * * * * *"},
		"daily_summary":     map[string]any{"enabled": true, "schedule": "0 0 20 * * *"},
	})

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("messages.welcome", defaultWelcome)
	v.SetDefault("messages.help", defaultHelp)
	v.SetDefault("messages.about", defaultAbout)
	v.SetDefault("messages.tips_usage", "Manda a pergunta junto! Exemplo: /tips o que é CoinTech2U?")
	v.SetDefault("messages.search_usage", "Falta o termo de busca! Exemplo: /buscar CoinTech2U rendimento\n"+
		"Filtros opcionais: autor:Nome de:YYYY-MM-DD ate:YYYY-MM-DD")
	v.SetDefault("messages.search_no_results", "Não encontrei nada sobre isso no histórico. "+
		"Talvez o assunto não tenha sido discutido no grupo ainda.")
	v.SetDefault("messages.mention_no_prompt", "Fala! Me marca com uma pergunta que eu respondo. "+
		"Exemplo: @botname o que é staking?")
	v.SetDefault("messages.rate_limited", "Calma! Você está enviando muitas mensagens. "+
		"Tente novamente em %d segundos.")
	v.SetDefault("messages.answer_error", "Deu um erro ao processar sua pergunta. Tenta de novo daqui a pouco.")
	v.SetDefault("messages.search_error", "Deu um erro na busca. Tenta de novo daqui a pouco.")
	v.SetDefault("messages.summary_error", "Deu um erro ao gerar o resumo. Tenta de novo daqui a pouco.")
	v.SetDefault("messages.general_error", "Deu um erro aqui. Tenta de novo daqui a pouco.")
	v.SetDefault("messages.not_authorized", "Apenas administradores podem usar este comando.")
	v.SetDefault("messages.admin_check_failed", "Não consegui verificar suas permissões. Tenta de novo.")
	v.SetDefault("messages.reindex_started", "Iniciando reindexação... Isso pode levar alguns minutos.")
	v.SetDefault("messages.reindex_done", "Reindexação concluída com sucesso! %d mensagens, %d chunks.")
	v.SetDefault("messages.reindex_failed", "Deu um erro ao executar a reindexação. Verifique os logs.")
	v.SetDefault("messages.stats_error", "Deu um erro ao buscar as estatísticas. Verifique os logs.")
	v.SetDefault("messages.feedback_positive", "Valeu pelo feedback! 👍")
	v.SetDefault("messages.feedback_negative", "Obrigado pelo feedback! Vou melhorar 💪")
	v.SetDefault("messages.summary_question", "Faça um resumo breve das conversas mais recentes e relevantes do grupo, "+
		"destacando os principais assuntos discutidos.")
	v.SetDefault("messages.history_reset", "🔄 Histórico da conversa apagado.")
}
