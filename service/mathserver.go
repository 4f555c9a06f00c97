package service

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"mcp-math/shared"

	"github.com/rs/zerolog/log"
)

const errNotNumbers = "Both a and b must be numbers"

// NewMathAPIHandler serves the arithmetic backend: GET /, POST /add and
// POST /multiply.
func NewMathAPIHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleMathIndex)
	mux.HandleFunc("POST /add", handleOperation("add", func(a, b float64) float64 { return a + b }))
	mux.HandleFunc("POST /multiply", handleOperation("multiply", func(a, b float64) float64 { return a * b }))
	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleMathIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Math API is running",
		"try": map[string]any{
			"add":      map[string]any{"method": "POST", "path": "/add", "body": map[string]any{"a": 1, "b": 2}},
			"multiply": map[string]any{"method": "POST", "path": "/multiply", "body": map[string]any{"a": 3, "b": 4}},
		},
	})
}

func handleOperation(name string, op func(a, b float64) float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body)

		a, okA := toNumber(body, "a")
		b, okB := toNumber(body, "b")
		if !okA || !okB {
			log.Debug().Str("operation", name).Msg("rejecting non-numeric operands")
			writeJSON(w, http.StatusBadRequest, shared.MathErrorBody{Error: errNotNumbers})
			return
		}
		writeJSON(w, http.StatusOK, shared.MathResult{
			Operation: name,
			A:         a,
			B:         b,
			Result:    op(a, b),
		})
	}
}

// toNumber coerces the way a loosely typed caller expects: numbers pass,
// numeric strings are parsed, booleans and null map to 1/0, anything else
// (including a missing key) is rejected.
func toNumber(body map[string]any, key string) (float64, bool) {
	value, exist := body[key]
	if !exist {
		return 0, false
	}
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if v {
			f = 1
		}
	case nil:
		f = 0
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}
