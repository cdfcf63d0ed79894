package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-michi/michi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop/auth"
	"shop/config"
	"shop/database"
	"shop/models"
	"shop/store"
	"shop/utils"
)

type testSite struct {
	srv   *httptest.Server
	store *store.Store
}

func setupSite(t *testing.T) *testSite {
	t.Helper()
	db, err := database.Open(config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, config.DriverSQLite, ""))

	st := store.New(db, config.DriverSQLite)
	cfg := &config.Config{Domain: "http://shop.test", SessionTTL: time.Hour}
	site, err := NewSite(st, auth.NewMemorySessions(time.Hour), cfg)
	require.NoError(t, err)

	r := michi.NewRouter()
	site.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testSite{srv: srv, store: st}
}

// browser keeps cookies and reports redirects instead of following them.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (ts *testSite) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: ts.srv.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) (int, string, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	return read(b.t, resp)
}

func (b *browser) post(path string, form url.Values) (int, string, string) {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	return read(b.t, resp)
}

func read(t *testing.T, resp *http.Response) (int, string, string) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (b *browser) signUp(username string) {
	b.t.Helper()
	status, loc, _ := b.post("/register", url.Values{
		"username": {username}, "email": {username + "@example.com"},
		"password": {"pw"}, "confirm_password": {"pw"},
	})
	require.Equal(b.t, http.StatusSeeOther, status)
	require.Equal(b.t, "/login", loc)
	b.logIn(username)
}

func (b *browser) logIn(username string) {
	b.t.Helper()
	status, loc, _ := b.post("/login", url.Values{"username": {username}, "password": {"pw"}})
	require.Equal(b.t, http.StatusSeeOther, status)
	require.Equal(b.t, "/catalog", loc)
}

func (ts *testSite) item(t *testing.T, name, price string) models.Item {
	item, err := ts.store.CreateItem(context.Background(), models.Item{Name: name, Price: decimal.RequireFromString(price), Description: "A fine " + name})
	require.NoError(t, err)
	return item
}

func id(item models.Item) string {
	return strconv.FormatInt(item.ID, 10)
}

func TestCatalogAndProduct(t *testing.T) {
	ts := setupSite(t)
	lamp := ts.item(t, "Lamp", "1234.5")
	ts.item(t, "Desk", "80")
	b := ts.browser(t)

	status, _, body := b.get("/")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Lamp")
	assert.Contains(t, body, "$1,234.50")
	assert.Contains(t, body, "Log in")

	status, _, body = b.get("/search?query=Des")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Desk")
	assert.NotContains(t, body, "Lamp")

	status, _, body = b.get("/product/" + id(lamp))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "A fine Lamp")
	assert.Contains(t, body, "No reviews yet.")

	status, _, _ = b.get("/product/999")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProtectedPages_RedirectToLogin(t *testing.T) {
	ts := setupSite(t)
	b := ts.browser(t)

	for _, path := range []string{"/cart", "/checkout", "/orders", "/review", "/admin"} {
		status, loc, _ := b.get(path)
		assert.Equal(t, http.StatusSeeOther, status, path)
		assert.Equal(t, "/login", loc, path)
	}

	status, loc, _ := b.post("/cart/1/add", nil)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", loc)
}

func TestRegister_Validation(t *testing.T) {
	ts := setupSite(t)
	b := ts.browser(t)

	status, _, body := b.post("/register", url.Values{
		"username": {"alice"}, "email": {"a@example.com"},
		"password": {"pw"}, "confirm_password": {"other"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Passwords do not match")
	assert.Contains(t, body, `value="alice"`)

	_, err := ts.store.GetUser(context.Background(), "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)

	b.signUp("alice")
	status, _, body = b.post("/register", url.Values{
		"username": {"alice"}, "email": {"b@example.com"},
		"password": {"x"}, "confirm_password": {"x"},
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body, "Username already taken")
}

func TestRegister_PasswordTooLong(t *testing.T) {
	ts := setupSite(t)
	b := ts.browser(t)

	long := strings.Repeat("a", 80)
	status, _, body := b.post("/register", url.Values{
		"username": {"alice"}, "email": {"a@example.com"},
		"password": {long}, "confirm_password": {long},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Password must be at most 72 bytes")

	_, err := ts.store.GetUser(context.Background(), "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogin_BadPassword(t *testing.T) {
	ts := setupSite(t)
	b := ts.browser(t)
	b.signUp("alice")

	other := ts.browser(t)
	status, _, body := other.post("/login", url.Values{"username": {"alice"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Invalid username or password")
}

func TestShoppingFlow(t *testing.T) {
	ts := setupSite(t)
	a := ts.item(t, "A", "10.00")
	bItem := ts.item(t, "B", "5.00")
	b := ts.browser(t)
	b.signUp("alice")

	for _, path := range []string{"/cart/" + id(a) + "/add", "/cart/" + id(a) + "/add", "/cart/" + id(bItem) + "/add"} {
		status, loc, _ := b.post(path, nil)
		require.Equal(t, http.StatusSeeOther, status)
		require.Equal(t, "/cart", loc)
	}

	status, _, body := b.get("/cart")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "$20.00")
	assert.Contains(t, body, "Total: $25.00")

	status, _, body = b.post("/checkout", url.Values{"shipping_address": {"1 Main St"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Shipping address and phone are required")

	status, loc, _ := b.post("/checkout", url.Values{"shipping_address": {"1 Main St"}, "phone": {"555"}})
	require.Equal(t, http.StatusSeeOther, status)
	require.True(t, strings.HasPrefix(loc, "/orders/"))

	status, _, body = b.get(loc)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Total: $25.00")
	assert.Contains(t, body, "1 Main St")

	status, _, body = b.get("/cart")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Your cart is empty.")

	status, _, body = b.post("/checkout", url.Values{"shipping_address": {"1 Main St"}, "phone": {"555"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Your cart is empty")

	status, _, body = b.get("/orders")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, strings.TrimPrefix(loc, "/orders/"))

	// another customer cannot open the order
	eve := ts.browser(t)
	eve.signUp("eve")
	status, _, _ = eve.get(loc)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRemoveFromCart(t *testing.T) {
	ts := setupSite(t)
	a := ts.item(t, "A", "10.00")
	b := ts.browser(t)
	b.signUp("alice")

	b.post("/cart/"+id(a)+"/add", nil)
	b.post("/cart/"+id(a)+"/add", nil)
	status, loc, _ := b.post("/cart/"+id(a)+"/remove", nil)
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/cart", loc)

	cart, err := ts.store.Cart(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
}

func TestReviewFlow(t *testing.T) {
	ts := setupSite(t)
	a := ts.item(t, "A", "10.00")
	b := ts.browser(t)
	b.signUp("alice")

	b.post("/cart/"+id(a)+"/add", nil)
	b.post("/checkout", url.Values{"shipping_address": {"1 Main St"}, "phone": {"555"}})

	status, _, body := b.get("/review")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "/review/"+id(a))

	for _, rating := range []string{"0", "6", "abc", ""} {
		status, _, body = b.post("/review/"+id(a), url.Values{"rating": {rating}, "review": {"meh"}})
		assert.Equal(t, http.StatusBadRequest, status, rating)
		assert.Contains(t, body, "Rating must be an integer between 1 and 5")
	}

	status, loc, _ := b.post("/review/"+id(a), url.Values{"rating": {"4"}, "review": {"Solid"}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/product/"+id(a), loc)

	_, _, body = b.get(loc)
	assert.Contains(t, body, "rated 4/5: Solid")
}

func TestLogout_EndsSession(t *testing.T) {
	ts := setupSite(t)
	b := ts.browser(t)
	b.signUp("alice")

	status, _, _ := b.get("/cart")
	require.Equal(t, http.StatusOK, status)

	status, loc, _ := b.post("/logout", nil)
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/login", loc)

	status, loc, _ = b.get("/cart")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", loc)
}

func TestAdmin(t *testing.T) {
	ts := setupSite(t)

	customer := ts.browser(t)
	customer.signUp("admin")
	status, _, body := customer.get("/admin")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "Admin access required")
	status, _, _ = customer.post("/admin/add", url.Values{"name": {"X"}, "price": {"1"}})
	assert.Equal(t, http.StatusForbidden, status)

	hash, err := utils.HashPassword("pw")
	require.NoError(t, err)
	require.NoError(t, ts.store.EnsureAdmin(context.Background(), "boss", "boss@example.com", hash))
	admin := ts.browser(t)
	admin.logIn("boss")

	status, _, body = admin.post("/admin/add", url.Values{"name": {"Chair"}, "price": {"-3"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Price must be a non-negative number")

	status, loc, _ := admin.post("/admin/add", url.Values{"name": {"Chair"}, "price": {"49.90"}, "description": {"Oak"}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/admin", loc)

	items, err := ts.store.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	chair := items[0]

	status, _, body = admin.get("/admin/edit/" + id(chair))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `value="49.90"`)

	status, _, _ = admin.post("/admin/edit/"+id(chair), url.Values{"name": {"Chair"}, "price": {"59"}})
	require.Equal(t, http.StatusSeeOther, status)
	got, err := ts.store.GetItem(context.Background(), chair.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(59)))

	status, _, _ = admin.post("/admin/edit/999", url.Values{"name": {"Y"}, "price": {"1"}})
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = admin.post("/admin/remove/"+id(chair), nil)
	require.Equal(t, http.StatusSeeOther, status)
	_, err = ts.store.GetItem(context.Background(), chair.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStaleSessionCookieIsIgnored(t *testing.T) {
	ts := setupSite(t)
	b := ts.browser(t)

	u, err := url.Parse(ts.srv.URL)
	require.NoError(t, err)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookie, Value: "bogus", Path: "/"}})

	status, _, body := b.get("/catalog")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Log in")
}
