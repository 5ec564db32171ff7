package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/punchamoorthee/creatorpay/internal/campaign"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/models"
	"github.com/punchamoorthee/creatorpay/internal/review"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

func (h *Handler) OpenWalletHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "open_wallet", err)
		return
	}
	wallet, err := h.svc.OpenWallet(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, "open_wallet", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/wallets/%s", wallet.OwnerID))
	respondWithJSON(w, http.StatusCreated, models.NewWalletBalance(wallet))
}

func (h *Handler) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "get_wallet_balance", err)
		return
	}
	ownerID, err := pathID(r, "ownerId")
	if err != nil {
		h.respondError(w, r, "get_wallet_balance", err)
		return
	}
	wallet, err := h.svc.GetWalletBalance(r.Context(), actor, ownerID)
	if err != nil {
		h.respondError(w, r, "get_wallet_balance", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewWalletBalance(wallet))
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "list_transactions", err)
		return
	}
	ownerID, err := pathID(r, "ownerId")
	if err != nil {
		h.respondError(w, r, "list_transactions", err)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		h.respondError(w, r, "list_transactions", err)
		return
	}
	txs, err := h.svc.ListTransactions(r.Context(), actor, ownerID, limit)
	if err != nil {
		h.respondError(w, r, "list_transactions", err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (h *Handler) CreateDepositIntentHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "create_deposit_intent", err)
		return
	}
	var req models.DepositIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, "create_deposit_intent", err)
		return
	}
	rec, err := h.svc.CreateDepositIntent(r.Context(), actor, req.Amount, req.ExternalRef)
	if err != nil {
		h.respondError(w, r, "create_deposit_intent", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.DepositResponse{Transaction: rec})
}

// ConfirmDepositHandler is the payment provider callback. Replays of the same
// reference answer 200 with credited=false.
func (h *Handler) ConfirmDepositHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DepositConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, "confirm_deposit", err)
		return
	}
	res, err := h.svc.ConfirmExternalDeposit(r.Context(), req.ExternalRef, req.Amount)
	if err != nil {
		h.respondError(w, r, "confirm_deposit", err)
		return
	}
	balance := models.NewWalletBalance(res.Wallet)
	respondWithJSON(w, http.StatusOK, models.DepositResponse{
		Transaction: res.Transaction,
		Wallet:      &balance,
		Credited:    res.Credited,
	})
}

func (h *Handler) FailDepositHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DepositFailRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, "fail_deposit", err)
		return
	}
	rec, err := h.svc.FailExternalDeposit(r.Context(), req.ExternalRef)
	if err != nil {
		h.respondError(w, r, "fail_deposit", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.DepositResponse{Transaction: rec})
}

func (h *Handler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "create_campaign", err)
		return
	}
	var req models.CreateCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, "create_campaign", err)
		return
	}
	camp, err := h.svc.CreateCampaign(r.Context(), actor, campaign.CreateInput{
		Title:            req.Title,
		Description:      req.Description,
		Requirements:     req.Requirements,
		Category:         req.Category,
		Platform:         domain.Platform(strings.ToLower(string(req.Platform))),
		BudgetPerCreator: req.BudgetPerCreator,
		MaxCreators:      req.MaxCreators,
		Deadline:         req.Deadline,
	})
	if err != nil {
		h.respondError(w, r, "create_campaign", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/campaigns/%s", camp.ID))
	respondWithJSON(w, http.StatusCreated, camp)
}

func (h *Handler) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.respondError(w, r, "list_campaigns", err)
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		h.respondError(w, r, "list_campaigns", err)
		return
	}
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = 10
	}
	q := r.URL.Query()
	filter := store.CampaignFilter{
		Status:   domain.CampaignStatus(q.Get("status")),
		Category: q.Get("category"),
		Platform: domain.Platform(q.Get("platform")),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}
	camps, total, err := h.svc.ListCampaigns(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "list_campaigns", err)
		return
	}
	if camps == nil {
		camps = []domain.Campaign{}
	}
	respondWithJSON(w, http.StatusOK, models.CampaignList{Campaigns: camps, Total: total, Page: page, Limit: limit})
}

func (h *Handler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, "get_campaign", err)
		return
	}
	camp, err := h.svc.GetCampaign(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get_campaign", err)
		return
	}
	respondWithJSON(w, http.StatusOK, camp)
}

func (h *Handler) SetCampaignStatusHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "set_campaign_status", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, "set_campaign_status", err)
		return
	}
	var req models.StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, "set_campaign_status", err)
		return
	}
	camp, err := h.svc.SetCampaignStatus(r.Context(), actor, id, domain.CampaignStatus(req.Status))
	if err != nil {
		h.respondError(w, r, "set_campaign_status", err)
		return
	}
	respondWithJSON(w, http.StatusOK, camp)
}

func (h *Handler) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "apply", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, "apply", err)
		return
	}
	var req models.ApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, "apply", err)
		return
	}
	app, err := h.svc.Apply(r.Context(), actor, id, campaign.ApplyInput{
		Proposal:             req.Proposal,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
	})
	if err != nil {
		h.respondError(w, r, "apply", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.ApplicationResponse{Application: app})
}

func (h *Handler) ListApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "list_applications", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, "list_applications", err)
		return
	}
	apps, err := h.svc.ListApplications(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, "list_applications", err)
		return
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (h *Handler) RespondToApplicationHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "respond_to_application", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, "respond_to_application", err)
		return
	}
	var req models.StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, "respond_to_application", err)
		return
	}
	resp, err := h.svc.RespondToApplication(r.Context(), actor, id, domain.ApplicationStatus(req.Status))
	if err != nil {
		h.respondError(w, r, "respond_to_application", err)
		return
	}
	out := models.ApplicationResponse{Application: resp.Application}
	if resp.Lock != nil {
		balance := models.NewWalletBalance(resp.Lock.Wallet)
		out.Wallet = &balance
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) SubmitContentHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "submit_content", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, "submit_content", err)
		return
	}
	var req models.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, "submit_content", err)
		return
	}
	sub, err := h.svc.SubmitContent(r.Context(), actor, id, review.SubmitInput{
		ContentURL:  req.ContentURL,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(w, r, "submit_content", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sub)
}

func (h *Handler) GetSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "get_submission", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, "get_submission", err)
		return
	}
	sub, err := h.svc.GetSubmission(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, "get_submission", err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

func (h *Handler) ReviewSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.respondError(w, r, "review_submission", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, "review_submission", err)
		return
	}
	var req models.StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, "review_submission", err)
		return
	}
	out, err := h.svc.ReviewSubmission(r.Context(), actor, id, domain.SubmissionStatus(req.Status), req.Feedback)
	if err != nil {
		h.respondError(w, r, "review_submission", err)
		return
	}

	resp := models.ReviewResponse{Submission: out.Submission}
	switch {
	case out.Settle != nil:
		adv := models.NewWalletBalance(out.Settle.AdvertiserWallet)
		creator := models.NewWalletBalance(out.Settle.CreatorWallet)
		resp.AdvertiserWallet, resp.CreatorWallet = &adv, &creator
		resp.Payout, resp.AdminFee = &out.Settle.Payout, &out.Settle.Fee
	case out.Refund != nil:
		adv := models.NewWalletBalance(out.Refund.Wallet)
		resp.AdvertiserWallet = &adv
	}
	respondWithJSON(w, http.StatusOK, resp)
}
