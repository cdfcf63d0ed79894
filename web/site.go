// Package web serves the server-rendered storefront and admin pages.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-michi/michi"
	"github.com/shopspring/decimal"

	"shop/auth"
	"shop/config"
	"shop/store"
	"shop/utils"
)

const sessionCookie = "session"

//go:embed templates
var templateFS embed.FS

var pages = []string{
	"catalog.html",
	"product.html",
	"cart.html",
	"checkout.html",
	"orders.html",
	"order.html",
	"reviewable.html",
	"review.html",
	"register.html",
	"login.html",
	"admin.html",
	"admin_item.html",
	"error.html",
}

type Site struct {
	store     *store.Store
	accounts  *auth.Accounts
	sessions  auth.SessionStore
	cfg       *config.Config
	templates map[string]*template.Template
}

func NewSite(st *store.Store, sessions auth.SessionStore, cfg *config.Config) (*Site, error) {
	funcs := template.FuncMap{
		"price": utils.FormatPrice,
		"subtotal": func(p decimal.Decimal, qty int) string {
			return utils.FormatPrice(p.Mul(decimal.NewFromInt(int64(qty))))
		},
		"date": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		templates[page] = tmpl
	}

	return &Site{
		store:     st,
		accounts:  auth.NewAccounts(st),
		sessions:  sessions,
		cfg:       cfg,
		templates: templates,
	}, nil
}

func (s *Site) Routes(r *michi.Router) {
	r.Group(func(sub *michi.Router) {
		sub.Use(s.LoadSession)

		sub.HandleFunc("GET /{$}", s.Catalog)
		sub.HandleFunc("GET /catalog", s.Catalog)
		sub.HandleFunc("GET /product/{id}", s.Product)
		sub.HandleFunc("GET /search", s.Search)
		sub.HandleFunc("GET /register", s.RegisterForm)
		sub.HandleFunc("POST /register", s.Register)
		sub.HandleFunc("GET /login", s.LoginForm)
		sub.HandleFunc("POST /login", s.Login)
		sub.HandleFunc("POST /logout", s.Logout)

		sub.Group(func(user *michi.Router) {
			user.Use(RequireLogin)
			user.HandleFunc("GET /cart", s.Cart)
			user.HandleFunc("POST /cart/{item_id}/add", s.AddToCart)
			user.HandleFunc("POST /cart/{item_id}/remove", s.RemoveFromCart)
			user.HandleFunc("GET /checkout", s.CheckoutForm)
			user.HandleFunc("POST /checkout", s.Checkout)
			user.HandleFunc("GET /orders", s.Orders)
			user.HandleFunc("GET /orders/{order_id}", s.Order)
			user.HandleFunc("GET /review", s.Reviewable)
			user.HandleFunc("GET /review/{item_id}", s.ReviewForm)
			user.HandleFunc("POST /review/{item_id}", s.AddReview)
		})

		sub.Group(func(admin *michi.Router) {
			admin.Use(RequireLogin, s.RequireAdmin)
			admin.HandleFunc("GET /admin", s.Admin)
			admin.HandleFunc("GET /admin/add", s.AddItemForm)
			admin.HandleFunc("POST /admin/add", s.AddItem)
			admin.HandleFunc("GET /admin/edit/{item_id}", s.EditItemForm)
			admin.HandleFunc("POST /admin/edit/{item_id}", s.EditItem)
			admin.HandleFunc("POST /admin/remove/{item_id}", s.RemoveItem)
		})
	})
}

// LoadSession resolves the session cookie to a principal. The role is read
// from the users table on every request.
func (s *Site) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		username, err := s.sessions.Lookup(r.Context(), cookie.Value)
		if errors.Is(err, auth.ErrSessionNotFound) {
			s.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			s.serverError(w, r, err, "failed to look up session")
			return
		}

		user, err := s.store.GetUser(r.Context(), username)
		if errors.Is(err, store.ErrNotFound) {
			s.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			s.serverError(w, r, err, "failed to load session user")
			return
		}

		p := auth.Principal{Username: user.Username, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Site) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var caps auth.Capabilities = currentUser(r)
		if !caps.IsAdmin() {
			s.render(w, r, http.StatusForbidden, "error.html", page{"Error": "Admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

type page map[string]interface{}

func (s *Site) render(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	if data == nil {
		data = page{}
	}
	if p, ok := auth.FromContext(r.Context()); ok {
		data["User"] = p
	}

	tmpl, ok := s.templates[name]
	if !ok {
		s.serverError(w, r, fmt.Errorf("unknown template %q", name), "failed to render page")
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Println(utils.ErrorWithTrace(err, "failed to render "+name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Site) serverError(w http.ResponseWriter, r *http.Request, err error, message string) {
	log.Println(utils.ErrorWithTrace(err, message))
	s.render(w, r, http.StatusInternalServerError, "error.html", page{"Error": "Something went wrong. Please try again."})
}

// storeError renders not-found pages for missing rows and a generic error
// page for everything else.
func (s *Site) storeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, store.ErrNotFound) {
		s.render(w, r, http.StatusNotFound, "error.html", page{"Error": "Not found"})
		return
	}
	s.serverError(w, r, err, message)
}

func (s *Site) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   strings.HasPrefix(s.cfg.Domain, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Site) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
