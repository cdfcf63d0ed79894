// Package controllers implements the JSON API served under /api.
package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-michi/michi"

	"shop/auth"
	"shop/config"
	"shop/payment"
	"shop/store"
	"shop/utils"
)

type API struct {
	store    *store.Store
	accounts *auth.Accounts
	tokens   *auth.TokenIssuer
	revoker  auth.Revoker
	payments payment.Provider
	cfg      *config.Config
}

func NewAPI(st *store.Store, tokens *auth.TokenIssuer, revoker auth.Revoker, payments payment.Provider, cfg *config.Config) *API {
	return &API{
		store:    st,
		accounts: auth.NewAccounts(st),
		tokens:   tokens,
		revoker:  revoker,
		payments: payments,
		cfg:      cfg,
	}
}

// Routes mounts every API endpoint under /api.
func (a *API) Routes(r *michi.Router) {
	r.Route("/api/", func(sub *michi.Router) {
		sub.HandleFunc("GET health", a.Health)
		sub.HandleFunc("POST users", a.Register)
		sub.HandleFunc("POST login", a.Login)
		sub.HandleFunc("GET items", a.ListItems)
		sub.HandleFunc("GET items/search", a.SearchItems)
		sub.HandleFunc("GET items/{id}", a.GetItem)

		sub.Group(func(authed *michi.Router) {
			authed.Use(a.RequireAuth)
			authed.HandleFunc("POST logout", a.Logout)
			authed.HandleFunc("POST items/{id}/reviews", a.AddReview)
			authed.HandleFunc("GET reviews", a.ReviewableItems)
			authed.HandleFunc("GET cart", a.GetCart)
			authed.HandleFunc("POST cart/{item_id}", a.AddToCart)
			authed.HandleFunc("DELETE cart/{item_id}", a.RemoveFromCart)
			authed.HandleFunc("POST checkout", a.Checkout)
			authed.HandleFunc("GET orders", a.ListOrders)
			authed.HandleFunc("GET orders/{order_id}", a.GetOrder)
		})

		sub.Group(func(admin *michi.Router) {
			admin.Use(a.RequireAuth, RequireAdmin)
			admin.HandleFunc("GET admin/items", a.AdminListItems)
			admin.HandleFunc("POST admin/items", a.AdminCreateItem)
			admin.HandleFunc("PUT admin/items/{id}", a.AdminUpdateItem)
			admin.HandleFunc("DELETE admin/items/{id}", a.AdminDeleteItem)
		})
	})
}

// RequireAuth accepts a valid, unrevoked bearer token and attaches its
// principal to the request context.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			utils.HandleError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		claims, err := a.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			utils.HandleError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		revoked, err := a.revoker.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			log.Println(utils.ErrorWithTrace(err, "failed to check token revocation"))
			utils.HandleError(w, http.StatusInternalServerError, "Failed to verify token")
			return
		}
		if revoked {
			utils.HandleError(w, http.StatusUnauthorized, "Token has been revoked")
			return
		}

		principal := auth.Principal{
			Username:  claims.Subject,
			Role:      claims.Role,
			TokenID:   claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var caps auth.Capabilities
		if p, ok := auth.FromContext(r.Context()); ok {
			caps = p
		}
		if caps == nil || !caps.IsAdmin() {
			utils.HandleError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.DB().PingContext(ctx); err != nil {
		log.Println(utils.ErrorWithTrace(err, "health check failed"))
		utils.SendJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.UseNumber()
	return dec.Decode(v)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// storeError maps persistence errors onto responses. Anything unexpected is
// logged and reported as a generic server error.
func storeError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.HandleError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrUsernameTaken):
		utils.HandleError(w, http.StatusConflict, "Username already taken")
	case errors.Is(err, store.ErrEmptyCart):
		utils.HandleError(w, http.StatusBadRequest, "Cart is empty")
	case errors.Is(err, store.ErrInvalidRating):
		utils.HandleError(w, http.StatusBadRequest, "Rating must be an integer between 1 and 5")
	default:
		log.Println(utils.ErrorWithTrace(err, message))
		utils.HandleError(w, http.StatusInternalServerError, message)
	}
}
