package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// cannedAudit answers every prompt with a complete six-section audit of the
// last user message, so the dashboard can be exercised without a real model.
func cannedAudit(claim string) string {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		claim = "Nenhum argumento informado."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[1] Enunciado: %s\n\n", claim)
	b.WriteString("[2] Premissas:\n- A situação atual é insatisfatória.\n- A alternativa proposta resolve o problema.\n\n")
	b.WriteString("[3] Evidência:\nApenas relatos pessoais; nenhuma fonte verificável foi citada.\n\n")
	b.WriteString("[4] Inconsistências:\n- Generalização a partir de poucos casos.\n\n")
	b.WriteString("[5] Mapa de Coerência Epistemológica:\n")
	b.WriteString("- Clareza do Enunciado >> Nota: 4/5\n  Detalhe: a tese é compreensível.\n")
	b.WriteString("- Solidez das Premissas >> Nota: 3/5\n")
	b.WriteString("- Qualidade da Evidência >> Nota: 2/5\n")
	b.WriteString("- Consistência Lógica >> Nota: 3,5/5\n")
	b.WriteString("Pontuação Média do Mapa: 3,1/5\n\n")
	b.WriteString("[6] Síntese Epistemológica:\nO argumento é plausível mas carece de evidência independente.\n\n")
	b.WriteString("Powered by Flowise")
	return b.String()
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		claim := ""
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == "user" {
				claim = req.Messages[i].Content
				break
			}
		}
		log.Info().Str("model", req.Model).Int("messages", len(req.Messages)).Msg("completion")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "stub-1",
			"object": "chat.completion",
			"model":  model,
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": cannedAudit(claim)}},
			},
		})
	})

	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("openai-stub stopped")
	}
}
