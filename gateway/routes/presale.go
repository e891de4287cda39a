package routes

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"timepresale/gateway/middleware"
	"timepresale/integrations/exports"
	"timepresale/integrations/journal"
	"timepresale/native/presale"
)

type handlers struct {
	ledger Ledger
	events EventSource
	logger *slog.Logger
}

type contributeRequest struct {
	Amount   string `json:"amount"`
	Referrer string `json:"referrer,omitempty"`
}

type extendRequest struct {
	Seconds int64 `json:"seconds"`
}

type contributionResponse struct {
	Index       uint64 `json:"index"`
	Contributor string `json:"contributor"`
	Amount      string `json:"amount"`
	Referrer    string `json:"referrer,omitempty"`
	Bonus       string `json:"bonus"`
	Timestamp   int64  `json:"timestamp"`
}

type claimResponse struct {
	Claimant  string `json:"claimant"`
	Points    string `json:"points"`
	Payout    string `json:"payout"`
	ClaimedAt int64  `json:"claimedAt"`
}

type accountResponse struct {
	Address           string   `json:"address"`
	Points            string   `json:"points"`
	ContributedAmount string   `json:"contributedAmount"`
	IsContributed     bool     `json:"isContributed"`
	IsReferrer        bool     `json:"isReferrer"`
	IsClaimed         bool     `json:"isClaimed"`
	ReferrerBonus     string   `json:"referrerBonus"`
	Referrals         []uint64 `json:"referrals"`
}

type summaryResponse struct {
	Contributions       uint64 `json:"contributions"`
	TotalRaised         string `json:"totalRaised"`
	RewardPoolSize      string `json:"rewardPoolSize"`
	PoolPoints          string `json:"poolPoints"`
	MaxLiability        string `json:"maxLiability"`
	Deadline            int64  `json:"deadline"`
	DeadlinePassed      bool   `json:"deadlinePassed"`
	LedgerHead          string `json:"ledgerHead"`
	RewardTokenDecimals uint8  `json:"rewardTokenDecimals"`
}

func newContributionResponse(record *presale.ContributionRecord) contributionResponse {
	resp := contributionResponse{
		Index:       record.Index,
		Contributor: record.Contributor.Hex(),
		Amount:      amountString(record.Amount),
		Bonus:       amountString(record.Bonus),
		Timestamp:   record.Timestamp,
	}
	if record.HasReferrer() {
		resp.Referrer = record.Referrer.Hex()
	}
	return resp
}

func (h *handlers) contribute(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "caller address required", http.StatusUnauthorized)
		return
	}
	var req contributeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	referrer, err := parseOptionalAddress(req.Referrer)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	record, err := h.ledger.Contribute(r.Context(), caller, amount, referrer)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newContributionResponse(record))
}

func (h *handlers) claim(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "caller address required", http.StatusUnauthorized)
		return
	}
	receipt, err := h.ledger.Claim(r.Context(), caller)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		Claimant:  receipt.Claimant.Hex(),
		Points:    amountString(receipt.Points),
		Payout:    amountString(receipt.Payout),
		ClaimedAt: receipt.ClaimedAt,
	})
}

func (h *handlers) extendDeadline(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "caller address required", http.StatusUnauthorized)
		return
	}
	var req extendRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	deadline, err := h.ledger.ExtendDeadline(r.Context(), caller, req.Seconds)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deadline": deadline})
}

func (h *handlers) points(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	points, err := h.ledger.Points(addr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.Hex(), "points": amountString(points)})
}

func (h *handlers) contributed(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	amount, err := h.ledger.ContributedAmount(addr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.Hex(), "contributedAmount": amountString(amount)})
}

func (h *handlers) referrals(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	indices, err := h.ledger.Referrals(addr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if indices == nil {
		indices = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"address": addr.Hex(), "referrals": indices})
}

func (h *handlers) account(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	view, err := h.ledger.Account(addr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	referrals := view.Referrals
	if referrals == nil {
		referrals = []uint64{}
	}
	writeJSON(w, http.StatusOK, accountResponse{
		Address:           view.Address.Hex(),
		Points:            amountString(view.Points),
		ContributedAmount: amountString(view.ContributedAmount),
		IsContributed:     view.IsContributed,
		IsReferrer:        view.IsReferrer,
		IsClaimed:         view.IsClaimed,
		ReferrerBonus:     amountString(view.ReferrerBonus),
		Referrals:         referrals,
	})
}

func (h *handlers) contributions(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.Contributions()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]contributionResponse, 0, len(records))
	for _, record := range records {
		out = append(out, newContributionResponse(record))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) calc(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"amount": amount.String(),
		"points": amountString(h.ledger.CalcPoints(amount)),
		"bonus":  amountString(h.ledger.CalcBonus(amount)),
	})
}

func (h *handlers) deadline(w http.ResponseWriter, r *http.Request) {
	deadline, err := h.ledger.Deadline()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	passed, err := h.ledger.IsDeadlinePassed()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deadline": deadline, "deadlinePassed": passed})
}

func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.Summary()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	decimals, err := h.ledger.RewardTokenDecimals()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Contributions:       summary.Contributions,
		TotalRaised:         amountString(summary.TotalRaised),
		RewardPoolSize:      amountString(summary.RewardPoolSize),
		PoolPoints:          amountString(summary.PoolPoints),
		MaxLiability:        amountString(summary.MaxLiability),
		Deadline:            summary.Deadline,
		DeadlinePassed:      summary.DeadlinePassed,
		LedgerHead:          summary.LedgerHead.Hex(),
		RewardTokenDecimals: decimals,
	})
}

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "journal disabled"})
		return
	}
	query := journal.Query{Type: strings.TrimSpace(r.URL.Query().Get("type"))}
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, h.logger, badRequest("invalid after %q", raw))
			return
		}
		query.After = after
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, h.logger, badRequest("invalid limit %q", raw))
			return
		}
		query.Limit = limit
	}
	records, err := h.events.List(r.Context(), query)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handlers) exportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, "text/csv", exports.ContributionsCSV)
}

func (h *handlers) exportJSONL(w http.ResponseWriter, r *http.Request) {
	h.export(w, "application/x-ndjson", exports.ContributionsJSONL)
}

func (h *handlers) exportParquet(w http.ResponseWriter, r *http.Request) {
	h.export(w, "application/vnd.apache.parquet", exports.ContributionsParquet)
}

func (h *handlers) export(w http.ResponseWriter, contentType string, render func([]*presale.ContributionRecord) ([]byte, string, error)) {
	records, err := h.ledger.Contributions()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	data, checksum, err := render(records)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Checksum-Sha256", checksum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
