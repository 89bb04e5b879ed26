package gemini

// Prompt fragments wrapped around the user's question.
const (
	contextIntro  = "Aqui estão mensagens relevantes do grupo que podem ajudar a responder:\n\n"
	contextOutro  = "\n\n---\n"
	questionLabel = "Pergunta do usuário: "
)

// CondenseSystemInstruction is the system prompt used to summarize old history.
const CondenseSystemInstruction = "Você é um assistente que resume conversas de forma concisa."

// CondensePrompt precedes the transcript to be summarized.
const CondensePrompt = "Resuma brevemente esta conversa em 2-3 frases, mantendo os pontos-chave:"

// CaptionSystemInstruction describes images attached to group messages.
const CaptionSystemInstruction = "Descreva esta imagem de forma concisa em português. " +
	"Se for um gráfico financeiro, screenshot de cotação, ou conteúdo " +
	"relacionado a investimentos/cripto, extraia os dados relevantes. " +
	"Se for um meme ou imagem casual, descreva brevemente."

// TranscribeSystemInstruction turns voice notes into plain text.
const TranscribeSystemInstruction = "Transcreva fielmente este áudio em português do Brasil. " +
	"Responda apenas com o texto falado, sem comentários, sem marcações de tempo."

const (
	captionRequest    = "Descreva esta imagem."
	transcribeRequest = "Transcreva este áudio."
)

// Speaker labels used when rendering a transcript for condensation.
const (
	userLabel      = "Usuário"
	assistantLabel = "Assistente"
)
