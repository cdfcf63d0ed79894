package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shop/auth"
	"shop/models"
	"shop/payment"
	"shop/utils"
)

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := decodeJSON(r, &reg); err != nil {
		utils.HandleError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := a.accounts.Register(r.Context(), reg)
	switch {
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrPasswordMismatch), errors.Is(err, auth.ErrPasswordTooLong):
		utils.HandleError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		storeError(w, err, "Failed to create user")
		return
	}

	utils.SendJSONResponse(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.HandleError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.HandleError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := a.accounts.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		utils.HandleError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		storeError(w, err, "Failed to log in")
		return
	}

	token, claims, err := a.tokens.Issue(user)
	if err != nil {
		log.Println(utils.ErrorWithTrace(err, "failed to issue token"))
		utils.HandleError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
	})
}

// Logout revokes the presented token until it would have expired.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := a.revoker.Revoke(r.Context(), p.TokenID, p.ExpiresAt); err != nil {
		log.Println(utils.ErrorWithTrace(err, "failed to revoke token"))
		utils.HandleError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}
	utils.HandleError(w, http.StatusOK, "Logged out")
}

func (a *API) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListItems(r.Context())
	if err != nil {
		storeError(w, err, "Failed to list items")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, items)
}

func (a *API) SearchItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.SearchItems(r.Context(), strings.TrimSpace(r.URL.Query().Get("query")))
	if err != nil {
		storeError(w, err, "Failed to search items")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, items)
}

func (a *API) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.HandleError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	detail, err := a.store.ItemDetail(r.Context(), id)
	if err != nil {
		storeError(w, err, "Failed to get item")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, detail)
}

type reviewRequest struct {
	Rating json.Number `json:"rating"`
	Review string      `json:"review"`
}

func (a *API) AddReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.HandleError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.HandleError(w, http.StatusBadRequest, "Rating must be an integer between 1 and 5")
		return
	}
	rating, err := strconv.Atoi(req.Rating.String())
	if err != nil {
		utils.HandleError(w, http.StatusBadRequest, "Rating must be an integer between 1 and 5")
		return
	}

	review, err := a.store.AddReview(r.Context(), models.Review{
		ItemID: id,
		UserID: principal(r).Username,
		Rating: rating,
		Text:   strings.TrimSpace(req.Review),
	})
	if err != nil {
		storeError(w, err, "Failed to add review")
		return
	}
	utils.SendJSONResponse(w, http.StatusCreated, review)
}

func (a *API) ReviewableItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ReviewableItems(r.Context(), principal(r).Username)
	if err != nil {
		storeError(w, err, "Failed to list reviewable items")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, items)
}

func (a *API) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := a.store.Cart(r.Context(), principal(r).Username)
	if err != nil {
		storeError(w, err, "Failed to get cart")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, cart)
}

func (a *API) AddToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "item_id")
	if !ok {
		utils.HandleError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	username := principal(r).Username
	if err := a.store.AddToCart(r.Context(), username, id); err != nil {
		storeError(w, err, "Failed to add item to cart")
		return
	}

	cart, err := a.store.Cart(r.Context(), username)
	if err != nil {
		storeError(w, err, "Failed to get cart")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, cart)
}

func (a *API) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "item_id")
	if !ok {
		utils.HandleError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	username := principal(r).Username
	if err := a.store.RemoveFromCart(r.Context(), username, id); err != nil {
		storeError(w, err, "Failed to remove item from cart")
		return
	}

	cart, err := a.store.Cart(r.Context(), username)
	if err != nil {
		storeError(w, err, "Failed to get cart")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, cart)
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	Phone           string `json:"phone"`
}

type checkoutResponse struct {
	OrderID string `json:"order_id"`
	Total   string `json:"total"`
	payment.Session
}

// Checkout places the order first and then opens a payment session for it.
// A provider failure leaves the order in place and is reported as 502.
func (a *API) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.HandleError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ShippingAddress = strings.TrimSpace(req.ShippingAddress)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.ShippingAddress == "" || req.Phone == "" {
		utils.HandleError(w, http.StatusBadRequest, "Shipping address and phone are required")
		return
	}

	order, err := a.store.Checkout(r.Context(), principal(r).Username, req.ShippingAddress, req.Phone)
	if err != nil {
		storeError(w, err, "Failed to place order")
		return
	}

	resp := checkoutResponse{OrderID: order.ID, Total: order.Total.StringFixed(2)}

	// Free orders have nothing to collect.
	if utils.MinorUnits(order.Total) <= 0 {
		utils.SendJSONResponse(w, http.StatusCreated, resp)
		return
	}

	sess, err := a.payments.CreateSession(r.Context(), payment.Request{
		OrderID:     order.ID,
		Currency:    a.cfg.Currency,
		AmountMinor: utils.MinorUnits(order.Total),
		SuccessURL:  a.cfg.Domain + "/orders/" + order.ID,
		CancelURL:   a.cfg.Domain + "/cart",
	})
	if err != nil {
		log.Println(utils.ErrorWithTrace(err, "failed to create payment session for order "+order.ID))
		utils.HandleCodedError(w, http.StatusBadGateway, "payment_failed", "Payment provider error", map[string]string{
			"order_id": order.ID,
		})
		return
	}

	// The session already exists at the provider, so the client still gets
	// its URL when recording the id fails.
	if err := a.store.SetPaymentSession(r.Context(), order.ID, sess.ID); err != nil {
		log.Println(utils.ErrorWithTrace(err, "failed to record payment session for order "+order.ID))
	}

	resp.Session = sess
	utils.SendJSONResponse(w, http.StatusCreated, resp)
}

func (a *API) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.store.ListOrders(r.Context(), principal(r).Username)
	if err != nil {
		storeError(w, err, "Failed to list orders")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, orders)
}

func (a *API) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.store.GetOrder(r.Context(), principal(r).Username, r.PathValue("order_id"))
	if err != nil {
		storeError(w, err, "Failed to get order")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, order)
}
