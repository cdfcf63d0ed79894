package web

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"shop/auth"
	"shop/models"
	"shop/store"
	"shop/utils"
)

func (s *Site) Catalog(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context())
	if err != nil {
		s.serverError(w, r, err, "failed to list items")
		return
	}
	s.render(w, r, http.StatusOK, "catalog.html", page{"Items": items})
}

func (s *Site) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	items, err := s.store.SearchItems(r.Context(), query)
	if err != nil {
		s.serverError(w, r, err, "failed to search items")
		return
	}
	s.render(w, r, http.StatusOK, "catalog.html", page{"Items": items, "Query": query})
}

func (s *Site) Product(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.render(w, r, http.StatusNotFound, "error.html", page{"Error": "Not found"})
		return
	}

	detail, err := s.store.ItemDetail(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "failed to load product")
		return
	}
	s.render(w, r, http.StatusOK, "product.html", page{"Item": detail})
}

func (s *Site) RegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", nil)
}

func (s *Site) Register(w http.ResponseWriter, r *http.Request) {
	reg := auth.Registration{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}

	_, err := s.accounts.Register(r.Context(), reg)
	switch {
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrPasswordMismatch), errors.Is(err, auth.ErrPasswordTooLong):
		s.render(w, r, http.StatusBadRequest, "register.html", page{"Error": capitalize(err.Error()), "Form": reg})
		return
	case errors.Is(err, store.ErrUsernameTaken):
		s.render(w, r, http.StatusConflict, "register.html", page{"Error": "Username already taken", "Form": reg})
		return
	case err != nil:
		s.serverError(w, r, err, "failed to register user")
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Site) LoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", nil)
}

func (s *Site) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	user, err := s.accounts.Login(r.Context(), username, r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.render(w, r, http.StatusUnauthorized, "login.html", page{"Error": "Invalid username or password", "Username": username})
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to log in")
		return
	}

	token, err := s.sessions.Create(r.Context(), user.Username)
	if err != nil {
		s.serverError(w, r, err, "failed to create session")
		return
	}
	s.setCookie(w, token)
	http.Redirect(w, r, "/catalog", http.StatusSeeOther)
}

func (s *Site) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := s.sessions.Delete(r.Context(), cookie.Value); err != nil {
			log.Println(utils.ErrorWithTrace(err, "failed to delete session"))
		}
	}
	s.clearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Site) Cart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.store.Cart(r.Context(), currentUser(r).Username)
	if err != nil {
		s.serverError(w, r, err, "failed to load cart")
		return
	}
	s.render(w, r, http.StatusOK, "cart.html", page{"Cart": cart})
}

func (s *Site) AddToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "item_id")
	if !ok {
		s.render(w, r, http.StatusNotFound, "error.html", page{"Error": "Not found"})
		return
	}
	if err := s.store.AddToCart(r.Context(), currentUser(r).Username, id); err != nil {
		s.storeError(w, r, err, "failed to add to cart")
		return
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (s *Site) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "item_id")
	if !ok {
		s.render(w, r, http.StatusNotFound, "error.html", page{"Error": "Not found"})
		return
	}
	err := s.store.RemoveFromCart(r.Context(), currentUser(r).Username, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.serverError(w, r, err, "failed to remove from cart")
		return
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (s *Site) CheckoutForm(w http.ResponseWriter, r *http.Request) {
	s.renderCheckout(w, r, http.StatusOK, "", "", "")
}

func (s *Site) renderCheckout(w http.ResponseWriter, r *http.Request, status int, msg, address, phone string) {
	cart, err := s.store.Cart(r.Context(), currentUser(r).Username)
	if err != nil {
		s.serverError(w, r, err, "failed to load cart")
		return
	}
	s.render(w, r, status, "checkout.html", page{
		"Cart":    cart,
		"Error":   msg,
		"Address": address,
		"Phone":   phone,
	})
}

func (s *Site) Checkout(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.PostFormValue("shipping_address"))
	phone := strings.TrimSpace(r.PostFormValue("phone"))
	if address == "" || phone == "" {
		s.renderCheckout(w, r, http.StatusBadRequest, "Shipping address and phone are required", address, phone)
		return
	}

	order, err := s.store.Checkout(r.Context(), currentUser(r).Username, address, phone)
	if errors.Is(err, store.ErrEmptyCart) {
		s.renderCheckout(w, r, http.StatusBadRequest, "Your cart is empty", address, phone)
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to place order")
		return
	}
	http.Redirect(w, r, "/orders/"+order.ID, http.StatusSeeOther)
}

func (s *Site) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ListOrders(r.Context(), currentUser(r).Username)
	if err != nil {
		s.serverError(w, r, err, "failed to list orders")
		return
	}
	s.render(w, r, http.StatusOK, "orders.html", page{"Orders": orders})
}

func (s *Site) Order(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.GetOrder(r.Context(), currentUser(r).Username, r.PathValue("order_id"))
	if err != nil {
		s.storeError(w, r, err, "failed to load order")
		return
	}
	s.render(w, r, http.StatusOK, "order.html", page{"Order": order})
}

func (s *Site) Reviewable(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ReviewableItems(r.Context(), currentUser(r).Username)
	if err != nil {
		s.serverError(w, r, err, "failed to list reviewable items")
		return
	}
	s.render(w, r, http.StatusOK, "reviewable.html", page{"Items": items})
}

func (s *Site) ReviewForm(w http.ResponseWriter, r *http.Request) {
	s.renderReview(w, r, http.StatusOK, "", "")
}

func (s *Site) renderReview(w http.ResponseWriter, r *http.Request, status int, msg, text string) {
	id, ok := pathID(r, "item_id")
	if !ok {
		s.render(w, r, http.StatusNotFound, "error.html", page{"Error": "Not found"})
		return
	}
	item, err := s.store.GetItem(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "failed to load item")
		return
	}
	s.render(w, r, status, "review.html", page{"Item": item, "Error": msg, "Review": text})
}

func (s *Site) AddReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "item_id")
	if !ok {
		s.render(w, r, http.StatusNotFound, "error.html", page{"Error": "Not found"})
		return
	}
	text := strings.TrimSpace(r.PostFormValue("review"))

	rating, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("rating")))
	if err != nil {
		s.renderReview(w, r, http.StatusBadRequest, "Rating must be an integer between 1 and 5", text)
		return
	}

	_, err = s.store.AddReview(r.Context(), models.Review{
		ItemID: id,
		UserID: currentUser(r).Username,
		Rating: rating,
		Text:   text,
	})
	if errors.Is(err, store.ErrInvalidRating) {
		s.renderReview(w, r, http.StatusBadRequest, "Rating must be an integer between 1 and 5", text)
		return
	}
	if err != nil {
		s.storeError(w, r, err, "failed to add review")
		return
	}
	http.Redirect(w, r, "/product/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (s *Site) Admin(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context())
	if err != nil {
		s.serverError(w, r, err, "failed to list items")
		return
	}
	s.render(w, r, http.StatusOK, "admin.html", page{"Items": items})
}

type itemForm struct {
	Name        string
	Price       string
	Description string
}

func readItemForm(r *http.Request) itemForm {
	return itemForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Price:       strings.TrimSpace(r.PostFormValue("price")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
	}
}

func (f itemForm) item() (models.Item, string) {
	if f.Name == "" {
		return models.Item{}, "Name is required"
	}
	price, err := decimal.NewFromString(f.Price)
	if err != nil || price.IsNegative() {
		return models.Item{}, "Price must be a non-negative number"
	}
	return models.Item{Name: f.Name, Price: price.Round(2), Description: f.Description}, ""
}

func (s *Site) AddItemForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "admin_item.html", page{"Action": "/admin/add", "Form": itemForm{}})
}

func (s *Site) AddItem(w http.ResponseWriter, r *http.Request) {
	form := readItemForm(r)
	item, msg := form.item()
	if msg != "" {
		s.render(w, r, http.StatusBadRequest, "admin_item.html", page{"Action": "/admin/add", "Form": form, "Error": msg})
		return
	}

	if _, err := s.store.CreateItem(r.Context(), item); err != nil {
		s.serverError(w, r, err, "failed to create item")
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Site) EditItemForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "item_id")
	if !ok {
		s.render(w, r, http.StatusNotFound, "error.html", page{"Error": "Not found"})
		return
	}
	item, err := s.store.GetItem(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "failed to load item")
		return
	}

	form := itemForm{Name: item.Name, Price: item.Price.StringFixed(2), Description: item.Description}
	s.render(w, r, http.StatusOK, "admin_item.html", page{"Action": r.URL.Path, "Form": form, "ItemID": id})
}

func (s *Site) EditItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "item_id")
	if !ok {
		s.render(w, r, http.StatusNotFound, "error.html", page{"Error": "Not found"})
		return
	}
	form := readItemForm(r)
	item, msg := form.item()
	if msg != "" {
		s.render(w, r, http.StatusBadRequest, "admin_item.html", page{"Action": r.URL.Path, "Form": form, "ItemID": id, "Error": msg})
		return
	}
	item.ID = id

	if err := s.store.UpdateItem(r.Context(), item); err != nil {
		s.storeError(w, r, err, "failed to update item")
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Site) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "item_id")
	if !ok {
		s.render(w, r, http.StatusNotFound, "error.html", page{"Error": "Not found"})
		return
	}
	err := s.store.DeleteItem(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.serverError(w, r, err, "failed to delete item")
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func capitalize(msg string) string {
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
