package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"testing"
	"time"

	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/cache"
	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/principal"
	apphttp "github.com/geocoder89/coursehub/internal/http"
	"github.com/geocoder89/coursehub/internal/http/handlers"
	"github.com/geocoder89/coursehub/internal/imagehost"
	"github.com/geocoder89/coursehub/internal/repo/memory"
	"github.com/geocoder89/coursehub/internal/security"
	"github.com/gin-gonic/gin"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type memDenylist struct {
	revoked map[string]bool
}

func (d *memDenylist) Revoke(_ context.Context, jti string, _ time.Duration) error {
	d.revoked[jti] = true
	return nil
}

func (d *memDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	return d.revoked[jti], nil
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		Storage:        config.StorageMemory,
		JWTUserSecret:  "user-secret",
		JWTAdminSecret: "admin-secret",
		BcryptCost:     4,
		FrontendURLs:   []string{"http://localhost:5173"},
		ImageHost:      config.ImageHostLocal,
		PublicBaseURL:  "http://api.test",
		MaxUploadBytes: 1 << 20,
	}
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return setupRouterWith(t, nil)
}

// setupRouterWith lets a test swap stores before the router is built.
func setupRouterWith(t *testing.T, override func(d *apphttp.Deps)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	cfg.ImageDir = t.TempDir()

	local, err := imagehost.NewLocal(cfg.ImageDir, cfg.PublicBaseURL)
	if err != nil {
		t.Fatalf("local host: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	d := apphttp.Deps{
		Config:         cfg,
		Users:          memory.NewPrincipalsRepo(principal.KindUser),
		Admins:         memory.NewPrincipalsRepo(principal.KindAdmin),
		Courses:        memory.NewCoursesRepo(),
		Purchases:      memory.NewPurchasesRepo(),
		Cleanup:        memory.NewCleanupRepo(),
		UserTokens:     auth.NewManager(principal.KindUser, cfg.JWTUserSecret),
		AdminTokens:    auth.NewManager(principal.KindAdmin, cfg.JWTAdminSecret),
		Hasher:         security.NewHasher(cfg.BcryptCost),
		Denylist:       &memDenylist{revoked: map[string]bool{}},
		Images:         local,
		LocalImagesDir: local.Dir(),
		Ready:          map[string]handlers.Pinger{},
	}
	if override != nil {
		override(&d)
	}

	return apphttp.NewRouter(logger, d)
}

// helpers

func do(t *testing.T, r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
		}
	}
	return w, body
}

func jsonReq(method, path, token string, payload any) *http.Request {
	var buf bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&buf).Encode(payload)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func courseReq(t *testing.T, method, path, token string, fields map[string]string, image []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="cover.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(image)
	}
	_ = mw.Close()

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func signUpAndLogin(t *testing.T, r http.Handler, kind, email string) string {
	t.Helper()

	w, _ := do(t, r, jsonReq(http.MethodPost, "/api/v1/"+kind+"/signup", "", map[string]string{
		"firstName": "Ada", "lastName": "Lovelace", "email": email, "password": "secret123",
	}))
	if w.Code != http.StatusCreated {
		t.Fatalf("%s signup: %d %s", kind, w.Code, w.Body.String())
	}

	w, body := do(t, r, jsonReq(http.MethodPost, "/api/v1/"+kind+"/login", "", map[string]string{
		"email": email, "password": "secret123",
	}))
	if w.Code != http.StatusAccepted {
		t.Fatalf("%s login: %d %s", kind, w.Code, w.Body.String())
	}

	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("%s login returned no token", kind)
	}
	return token
}

func TestMarketplaceFlow(t *testing.T) {
	r := setupRouter(t)

	adminToken := signUpAndLogin(t, r, "admin", "ops@example.com")
	userToken := signUpAndLogin(t, r, "user", "ada@example.com")

	// admin creates a course
	w, body := do(t, r, courseReq(t, http.MethodPost, "/api/v1/course/create", adminToken,
		map[string]string{"title": "X", "description": "Intro to X", "price": "1000"}, pngBytes))
	if w.Code != http.StatusCreated {
		t.Fatalf("create course: %d %s", w.Code, w.Body.String())
	}

	created := body["course"].(map[string]any)
	courseID := created["id"].(string)
	if created["discountedPrice"].(float64) != 800 {
		t.Fatalf("discountedPrice: %v", created["discountedPrice"])
	}

	// the stored image is served back
	imageURL, err := url.Parse(created["image"].(map[string]any)["url"].(string))
	if err != nil {
		t.Fatalf("image url: %v", err)
	}
	if w, _ := do(t, r, httptest.NewRequest(http.MethodGet, imageURL.Path, nil)); w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), pngBytes) {
		t.Fatalf("image not served: %d", w.Code)
	}

	// a user token cannot write courses
	if w, _ := do(t, r, courseReq(t, http.MethodPost, "/api/v1/course/create", userToken,
		map[string]string{"title": "Y", "description": "Y", "price": "1"}, pngBytes)); w.Code != http.StatusUnauthorized {
		t.Fatalf("user token on admin route: %d", w.Code)
	}

	// an admin token cannot buy
	if w, _ := do(t, r, jsonReq(http.MethodPost, "/api/v1/course/buy/"+courseID, adminToken, nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("admin token on user route: %d", w.Code)
	}

	// public catalog
	w, body = do(t, r, jsonReq(http.MethodGet, "/api/v1/course/courses", "", nil))
	if w.Code != http.StatusOK || len(body["courses"].([]any)) != 1 {
		t.Fatalf("list courses: %d %s", w.Code, w.Body.String())
	}

	// buy once, then duplicate
	if w, _ := do(t, r, jsonReq(http.MethodPost, "/api/v1/course/buy/"+courseID, userToken, nil)); w.Code != http.StatusCreated {
		t.Fatalf("buy: %d", w.Code)
	}
	w, body = do(t, r, jsonReq(http.MethodPost, "/api/v1/course/buy/"+courseID, userToken, nil))
	if w.Code != http.StatusBadRequest || body["code"] != "already_purchased" {
		t.Fatalf("duplicate buy: %d %s", w.Code, w.Body.String())
	}

	w, body = do(t, r, jsonReq(http.MethodGet, "/api/v1/user/purchases", userToken, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("purchases: %d", w.Code)
	}
	if len(body["purchased"].([]any)) != 1 || len(body["coursesData"].([]any)) != 1 {
		t.Fatalf("unexpected purchases: %s", w.Body.String())
	}

	// another admin cannot touch the course
	otherAdmin := signUpAndLogin(t, r, "admin", "other@example.com")
	if w, _ := do(t, r, courseReq(t, http.MethodDelete, "/api/v1/course/delete/"+courseID, otherAdmin, nil, nil)); w.Code != http.StatusNotFound {
		t.Fatalf("non-owner delete: %d", w.Code)
	}

	// owner deletes it; the image goes with it and the purchase drops out of coursesData
	if w, _ := do(t, r, courseReq(t, http.MethodDelete, "/api/v1/course/delete/"+courseID, adminToken, nil, nil)); w.Code != http.StatusOK {
		t.Fatalf("owner delete: %d", w.Code)
	}
	if w, _ := do(t, r, httptest.NewRequest(http.MethodGet, imageURL.Path, nil)); w.Code != http.StatusNotFound {
		t.Fatalf("image still served after delete: %d", w.Code)
	}

	w, body = do(t, r, jsonReq(http.MethodGet, "/api/v1/user/purchases", userToken, nil))
	if len(body["purchased"].([]any)) != 1 || len(body["coursesData"].([]any)) != 0 {
		t.Fatalf("unexpected purchases after delete: %s", w.Body.String())
	}
}

// A course removed through another API instance must not be purchasable here,
// even while this instance still has it in its catalog cache.
func TestBuyChecksTheStoreNotTheCatalogCache(t *testing.T) {
	store := memory.NewCoursesRepo()
	r := setupRouterWith(t, func(d *apphttp.Deps) {
		d.Courses = cache.NewCatalog(store, time.Hour)
		d.PurchaseCourses = store
	})

	ctx := context.Background()
	c, err := store.Create(ctx, course.Course{
		ID:        "7d1f0a52-3c7e-4c35-9b6a-0c8f4e2a1b11",
		Title:     "Cached",
		CreatorID: "admin-elsewhere",
		Price:     10,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	userToken := signUpAndLogin(t, r, "user", "ada@example.com")

	// warm the cache
	if w, _ := do(t, r, jsonReq(http.MethodGet, "/api/v1/course/details/"+c.ID, "", nil)); w.Code != http.StatusOK {
		t.Fatalf("details: %d", w.Code)
	}

	// another instance deletes the course
	if err := store.DeleteOwned(ctx, c.ID, c.CreatorID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// the cached detail may still be served until the ttl runs out
	if w, _ := do(t, r, jsonReq(http.MethodGet, "/api/v1/course/details/"+c.ID, "", nil)); w.Code != http.StatusOK {
		t.Fatalf("cached details: %d", w.Code)
	}

	w, body := do(t, r, jsonReq(http.MethodPost, "/api/v1/course/buy/"+c.ID, userToken, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("buy of deleted course: %d %v", w.Code, body)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	r := setupRouter(t)
	token := signUpAndLogin(t, r, "user", "ada@example.com")

	if w, _ := do(t, r, jsonReq(http.MethodGet, "/api/v1/user/purchases", token, nil)); w.Code != http.StatusOK {
		t.Fatalf("before logout: %d", w.Code)
	}

	if w, _ := do(t, r, jsonReq(http.MethodGet, "/api/v1/user/logout", token, nil)); w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}

	if w, _ := do(t, r, jsonReq(http.MethodGet, "/api/v1/user/purchases", token, nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: %d", w.Code)
	}
}

func TestCookieSessionAndPasswordChange(t *testing.T) {
	r := setupRouter(t)
	signUpAndLogin(t, r, "admin", "ops@example.com")

	w, _ := do(t, r, jsonReq(http.MethodPost, "/api/v1/admin/login", "", map[string]string{
		"email": "OPS@example.com", "password": "secret123",
	}))
	if w.Code != http.StatusAccepted {
		t.Fatalf("login: %d", w.Code)
	}

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "jwt" {
			session = c
		}
	}
	if session == nil || !session.HttpOnly {
		t.Fatalf("expected an HttpOnly jwt cookie, got %+v", session)
	}

	req := jsonReq(http.MethodPut, "/api/v1/admin/update-password", "", map[string]string{
		"currentPassword": "secret123", "newPassword": "newsecret456",
	})
	req.AddCookie(session)
	if w, _ := do(t, r, req); w.Code != http.StatusOK {
		t.Fatalf("update password via cookie: %d %s", w.Code, w.Body.String())
	}

	if w, _ := do(t, r, jsonReq(http.MethodPost, "/api/v1/admin/login", "", map[string]string{
		"email": "ops@example.com", "password": "secret123",
	})); w.Code != http.StatusForbidden {
		t.Fatalf("old password still accepted: %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := setupRouter(t)

	cases := []*http.Request{
		jsonReq(http.MethodPut, "/api/v1/user/update", "", map[string]string{"firstName": "Grace"}),
		jsonReq(http.MethodGet, "/api/v1/user/purchases", "", nil),
		jsonReq(http.MethodPut, "/api/v1/admin/update", "", map[string]string{"firstName": "Grace"}),
		jsonReq(http.MethodPost, "/api/v1/course/buy/x", "garbage", nil),
		courseReq(t, http.MethodPost, "/api/v1/course/create", "", map[string]string{"title": "X"}, nil),
	}

	for _, req := range cases {
		w, body := do(t, r, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", req.Method, req.URL.Path, w.Code)
		}
		if body["success"] != false || body["code"] != "unauthorized" {
			t.Fatalf("%s %s: unexpected envelope %s", req.Method, req.URL.Path, w.Body.String())
		}
	}
}

func TestOpsEndpoints(t *testing.T) {
	r := setupRouter(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		if w, _ := do(t, r, httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, w.Code)
		}
	}
}
