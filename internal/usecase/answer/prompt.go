package answer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kailas-cloud/memrag/internal/domain"
)

const persona = "Você é um assistente jurídico. Com base nos trechos abaixo, responda em português:"

// fewShot fixes the expected answer format.
const fewShot = `Exemplos:
Pergunta: Qual é o prazo para reclamar de defeito aparente em produto durável?
Resposta: De acordo com o trecho citado do Código de Defesa do Consumidor, o prazo é de noventa dias, contados da entrega do produto.

Pergunta: O fornecedor pode se recusar a trocar um produto sem justificativa?
Resposta: Os trechos fornecidos não tratam dessa situação específica. Com base neles, não é possível afirmar a regra aplicável.
`

const memoryHeader = "Contexto da conversa:"

// DegradedPrefix starts every message returned when an answer could not be produced.
const DegradedPrefix = "Desculpe, não foi possível gerar uma resposta agora: "

// BuildPrompt assembles the user prompt: persona, examples, scored excerpts and the question.
func BuildPrompt(query string, hits []domain.ScoredChunk) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	b.WriteString(fewShot)
	b.WriteString("\n")

	excerpts := make([]string, len(hits))
	for i, h := range hits {
		excerpts[i] = fmt.Sprintf("=== (score: %.3f) [%s]\n%s\n", h.Score, HumanizeChunkID(h.Chunk.ID), h.Chunk.Text)
	}
	b.WriteString(strings.Join(excerpts, "\n"))

	b.WriteString("\nPergunta: ")
	b.WriteString(query)
	b.WriteString("\nResposta:")
	return b.String()
}

// BuildMemoryContext renders recalled turns as the system message. No turns yields "".
func BuildMemoryContext(turns []string) string {
	if len(turns) == 0 {
		return ""
	}
	return memoryHeader + "\n" + strings.Join(turns, "\n")
}

// publicReasons are the causes a degraded message may name. Anything else,
// including upstream response bodies, stays in the log.
var publicReasons = []error{
	domain.ErrCompletionProviderError,
	domain.ErrEmbeddingProviderError,
	domain.ErrIndexAlignment,
	domain.ErrVectorDimMismatch,
	domain.ErrSessionNotFound,
	domain.ErrInvalidSessionID,
}

// DegradedMessage is the user-facing text for a failed answer. It names only the
// classified cause of reason, never its full chain.
func DegradedMessage(reason error) string {
	for _, s := range publicReasons {
		if errors.Is(reason, s) {
			return DegradedPrefix + s.Error()
		}
	}
	return DegradedPrefix + "internal error"
}

// HumanizeChunkID turns "lei_8078.txt__3" into "lei 8078 (trecho 4)".
// An id without a numeric "__n" suffix only loses its extension and separators.
func HumanizeChunkID(id string) string {
	base, seq := id, -1
	if i := strings.LastIndex(id, "__"); i >= 0 {
		if n, err := strconv.Atoi(id[i+2:]); err == nil && n >= 0 {
			base, seq = id[:i], n
		}
	}

	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := strings.Join(strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(base)), " ")

	if seq < 0 {
		return name
	}
	return fmt.Sprintf("%s (trecho %d)", name, seq+1)
}
