// Package server exposes the simulator over HTTP with JSON responses.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/xtding233/contract-rng/internal/contract"
	"github.com/xtding233/contract-rng/internal/sim"
)

type rollResp struct {
	Face  uint32 `json:"face"`
	Nonce uint32 `json:"nonce"`
	Err   string `json:"err,omitempty"`
}

type drawResp struct {
	Values []string `json:"values,omitempty"` // decimal, JSON numbers lose u64 precision
	Err    string   `json:"err,omitempty"`
}

type gachaResp struct {
	Hit   bool   `json:"hit"`
	Pity  bool   `json:"pity,omitempty"`
	Count int    `json:"count"`
	Err   string `json:"err,omitempty"`
}

type tenResp struct {
	Hits  []bool `json:"hits"`
	Count int    `json:"count"`
	Err   string `json:"err,omitempty"`
}

type nonceResp struct {
	Contract string `json:"contract"`
	Nonce    uint32 `json:"nonce"`
}

type ledgerResp struct {
	Sequence  uint32 `json:"sequence"`
	Timestamp uint64 `json:"timestamp"`
}

type handler struct {
	sim *sim.Simulator
	log zerolog.Logger
}

// New returns the HTTP handler for s.
func New(s *sim.Simulator, logger zerolog.Logger) http.Handler {
	h := &handler{sim: s, log: logger.With().Str("component", "http").Logger()}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /roll", h.handleRoll)
	mux.HandleFunc("GET /draw", h.handleDraw)
	mux.HandleFunc("GET /gacha", h.handleGacha)
	mux.HandleFunc("GET /ten_gacha", h.handleTenGacha)
	mux.HandleFunc("GET /nonce", h.handleNonce)
	mux.HandleFunc("POST /ledger/close", h.handleClose)
	return mux
}

func parseFloat(r *http.Request, key string) (float64, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func parseUint(r *http.Request, key string, bits int) (uint64, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func contractName(r *http.Request, def string) string {
	if c := r.URL.Query().Get("contract"); c != "" {
		return c
	}
	return def
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug().Err(err).Msg("write response")
	}
}

func statusFor(err error) int {
	if sim.IsClientError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *handler) handleRoll(w http.ResponseWriter, r *http.Request) {
	sides, ok, msg := parseUint(r, "sides", 32)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if !ok {
		sides = contract.DefaultSides
	}
	name := contractName(r, "dice")
	face, nonce, err := h.sim.RollWithNonce(name, uint32(sides))
	if err != nil {
		h.writeJSON(w, statusFor(err), rollResp{Err: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, rollResp{Face: face, Nonce: nonce})
}

func (h *handler) handleDraw(w http.ResponseWriter, r *http.Request) {
	salt, _, msg := parseUint(r, "salt", 32)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	n, ok, msg := parseUint(r, "n", 16)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if !ok {
		n = 1
	}
	vals, err := h.sim.Draw(contractName(r, "dice"), uint32(salt), int(n))
	if err != nil {
		h.writeJSON(w, statusFor(err), drawResp{Err: err.Error()})
		return
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatUint(v, 10)
	}
	h.writeJSON(w, http.StatusOK, drawResp{Values: out})
}

// gachaProb reads the required p parameter.
func gachaProb(w http.ResponseWriter, r *http.Request) (float64, bool) {
	p, ok, msg := parseFloat(r, "p")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return 0, false
	}
	if !ok {
		http.Error(w, "missing param p", http.StatusBadRequest)
		return 0, false
	}
	return p, true
}

func (h *handler) handleGacha(w http.ResponseWriter, r *http.Request) {
	p, ok := gachaProb(w, r)
	if !ok {
		return
	}
	out, err := h.sim.Gacha(contractName(r, "gacha"), p)
	if err != nil {
		h.writeJSON(w, statusFor(err), gachaResp{Err: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, gachaResp{Hit: out.Hit, Pity: out.Pity, Count: out.Count})
}

func (h *handler) handleTenGacha(w http.ResponseWriter, r *http.Request) {
	p, ok := gachaProb(w, r)
	if !ok {
		return
	}
	outs, err := h.sim.TenGacha(contractName(r, "gacha"), p)
	if err != nil {
		h.writeJSON(w, statusFor(err), tenResp{Err: err.Error()})
		return
	}
	resp := tenResp{Hits: make([]bool, len(outs))}
	for i, o := range outs {
		resp.Hits[i] = o.Hit
	}
	resp.Count = outs[len(outs)-1].Count
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleNonce(w http.ResponseWriter, r *http.Request) {
	name := contractName(r, "dice")
	nonce, err := h.sim.Nonce(name)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.writeJSON(w, http.StatusOK, nonceResp{Contract: name, Nonce: nonce})
}

func (h *handler) handleClose(w http.ResponseWriter, r *http.Request) {
	secs, _, msg := parseUint(r, "secs", 64)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	info := h.sim.CloseLedger(secs)
	h.writeJSON(w, http.StatusOK, ledgerResp{Sequence: info.Sequence, Timestamp: info.Timestamp})
}
