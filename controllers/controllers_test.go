package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/controllers"
	"github.com/HSouheill/referral_backend/middleware"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/routes"
	"github.com/HSouheill/referral_backend/services"
	"github.com/HSouheill/referral_backend/utils"
)

const testSecret = "controller-test-secret-0123456789"

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	e     *echo.Echo
	store *repositories.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repositories.NewMemoryStore()
	issue := func(account *models.Account) (string, error) {
		return middleware.GenerateJWT(testSecret, account.ID.Hex(), account.Email, account.UserType, time.Hour)
	}
	notifier := services.NewNotifier(services.LogEmailSender{}, "https://app.example")
	referrals := services.NewReferralService(store)
	reporting := services.NewReportingService(store, "https://app.example")

	e := echo.New()
	e.Validator = utils.NewValidator()
	routes.SetupRoutes(e, testSecret, routes.Controllers{
		Auth:     controllers.NewAuthController(services.NewAccountService(store, issue, nil), false),
		Password: controllers.NewPasswordController(services.NewPasswordService(store, repositories.NewMemoryResetTokenStore(), notifier, time.Hour), false),
		Purchase: controllers.NewPurchaseController(services.NewPurchaseService(store), false),
		Referral: controllers.NewReferralController(reporting, referrals, false),
		Admin:    controllers.NewAdminController(reporting, referrals, false),
		Health:   controllers.NewHealthController(store),
	})
	return &testServer{e: e, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

type registered struct {
	Token string                `json:"token"`
	User  models.AccountSummary `json:"user"`
}

func (s *testServer) register(t *testing.T, email, code string) registered {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":        email,
		"password":     "secret1",
		"name":         "Test User",
		"referralCode": code,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out registered
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	admin := &models.Account{Email: "admin@example.com", ReferralCode: "REF-ADMIN", UserType: models.UserTypeAdmin}
	require.NoError(t, s.store.Accounts().Create(context.Background(), admin))
	token, err := middleware.GenerateJWT(testSecret, admin.ID.Hex(), admin.Email, admin.UserType, time.Hour)
	require.NoError(t, err)
	return token
}

func purchaseBody(productID string) map[string]interface{} {
	return map[string]interface{}{"productId": productID, "productName": "Widget", "amount": 10}
}

func (s *testServer) credits(t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	account, err := s.store.Accounts().FindByID(context.Background(), id)
	require.NoError(t, err)
	return account.Credits
}

type purchaseData struct {
	Purchase models.Purchase       `json:"purchase"`
	User     models.AccountSummary `json:"user"`
	Referral *models.AwardSummary  `json:"referral"`
}

func decodePurchase(t *testing.T, env envelope) purchaseData {
	t.Helper()
	var out purchaseData
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestPurchase_FirstPurchaseConvertsReferral(t *testing.T) {
	s := newTestServer(t)
	referrer := s.register(t, "r@example.com", "")
	buyer := s.register(t, "u@example.com", referrer.User.ReferralCode)

	rec, env := s.do(t, http.MethodPost, "/api/purchases", buyer.Token, purchaseBody("p1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodePurchase(t, env)
	require.NotNil(t, got.Referral)
	require.Equal(t, 2, got.Referral.CreditsAwarded)
	require.Equal(t, "r@example.com", got.Referral.ReferrerEmail)
	require.Equal(t, 2, got.User.Credits)
	require.True(t, got.Purchase.ReferralCreditsAwarded)
	require.Equal(t, 2, s.credits(t, referrer.User.ID))

	// Second purchase awards nothing.
	rec, env = s.do(t, http.MethodPost, "/api/purchases", buyer.Token, purchaseBody("p2"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"referral":null`)
	require.Nil(t, decodePurchase(t, env).Referral)
	require.Equal(t, 2, s.credits(t, referrer.User.ID))
	require.Equal(t, 2, s.credits(t, buyer.User.ID))
}

func TestPurchase_WithoutReferral(t *testing.T) {
	s := newTestServer(t)
	loner := s.register(t, "l@example.com", "")

	rec, env := s.do(t, http.MethodPost, "/api/purchases", loner.Token, purchaseBody("p1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"referral":null`)
	require.Zero(t, decodePurchase(t, env).User.Credits)
}

func TestPurchase_ConcurrentFirstPurchasesAwardOnce(t *testing.T) {
	s := newTestServer(t)
	referrer := s.register(t, "r@example.com", "")
	buyer := s.register(t, "u@example.com", referrer.User.ReferralCode)

	var wg sync.WaitGroup
	var mu sync.Mutex
	awards := 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/purchases", bytes.NewBufferString(`{"productId":"p","productName":"Widget","amount":5}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+buyer.Token)
			rec := httptest.NewRecorder()
			s.e.ServeHTTP(rec, req)

			var env envelope
			if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &env) != nil {
				return
			}
			var data purchaseData
			if json.Unmarshal(env.Data, &data) == nil && data.Referral != nil {
				mu.Lock()
				awards++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, awards)
	require.Equal(t, 2, s.credits(t, referrer.User.ID))
	require.Equal(t, 2, s.credits(t, buyer.User.ID))
}

func TestPurchase_Validation(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "u@example.com", "")

	rec, env := s.do(t, http.MethodPost, "/api/purchases", user.Token, map[string]interface{}{"productName": "Widget", "amount": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, env.Message, "productId")

	rec, env = s.do(t, http.MethodPost, "/api/purchases", user.Token, map[string]interface{}{"productId": "p", "productName": "Widget", "amount": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, env.Message, "amount")

	rec, _ = s.do(t, http.MethodPost, "/api/purchases", user.Token, map[string]interface{}{"productId": "p", "productName": "Widget", "amount": 0})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPurchase_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodPost, "/api/purchases", "", purchaseBody("p1"))
	require.Contains(t, []int{http.StatusBadRequest, http.StatusUnauthorized}, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/purchases", "not-a-token", purchaseBody("p1"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPurchase_UnknownAccount(t *testing.T) {
	s := newTestServer(t)
	token, err := middleware.GenerateJWT(testSecret, primitive.NewObjectID().Hex(), "ghost@example.com", models.UserTypeUser, time.Hour)
	require.NoError(t, err)

	rec, _ := s.do(t, http.MethodPost, "/api/purchases", token, purchaseBody("p1"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	referrer := s.register(t, "r@example.com", "")

	rec, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "u@example.com", "password": "secret1", "name": "U", "referralCode": referrer.User.ReferralCode,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var auth models.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.NotNil(t, auth.Referrer)
	require.Equal(t, referrer.User.ReferralCode, *auth.Referrer)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "u@example.com", "password": "secret1", "name": "Again",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "x@example.com", "password": "123", "name": "Short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, env.Message, "password")

	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "u@example.com", "password": "wrong-one"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "u@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &auth))

	rec, env = s.do(t, http.MethodGet, "/api/auth/me", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, string(env.Data), "password")
}

func TestReferralEndpoints(t *testing.T) {
	s := newTestServer(t)
	referrer := s.register(t, "r@example.com", "")
	buyer := s.register(t, "u@example.com", referrer.User.ReferralCode)

	rec, env := s.do(t, http.MethodGet, "/api/referrals/eligibility", buyer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Referral is eligible for conversion", env.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/purchases", buyer.Token, purchaseBody("p1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/referrals/stats", referrer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.ReferralStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.EqualValues(t, 1, stats.TotalReferred)
	require.EqualValues(t, 1, stats.ConvertedUsers)
	require.EqualValues(t, 2, stats.TotalCreditsEarned)

	rec, env = s.do(t, http.MethodGet, "/api/referrals/leaderboard?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board []models.LeaderboardEntry
	require.NoError(t, json.Unmarshal(env.Data, &board))
	require.NotEmpty(t, board)
	require.Equal(t, "r@example.com", board[0].Email)

	rec, _ = s.do(t, http.MethodGet, "/api/referrals/leaderboard?limit=ten", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/referrals/validate/"+referrer.User.ReferralCode, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var validation models.CodeValidation
	require.NoError(t, json.Unmarshal(env.Data, &validation))
	require.True(t, validation.Valid)

	rec, env = s.do(t, http.MethodGet, "/api/referrals/qrcode", referrer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var qr map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &qr))
	require.Equal(t, "https://app.example/register?ref="+referrer.User.ReferralCode, qr["shareLink"])
	require.Contains(t, qr["qrCode"], "data:image/png;base64,")
}

func TestAdmin_ManualAwardAndReport(t *testing.T) {
	s := newTestServer(t)
	referrer := s.register(t, "r@example.com", "")
	buyer := s.register(t, "u@example.com", referrer.User.ReferralCode)
	admin := s.adminToken(t)

	referral, err := s.store.Referrals().FindByReferred(context.Background(), buyer.User.ID)
	require.NoError(t, err)
	path := "/api/admin/referrals/" + referral.ID.Hex() + "/award"

	rec, _ := s.do(t, http.MethodPost, path, buyer.Token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodPost, path, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 2, s.credits(t, referrer.User.ID))

	rec, _ = s.do(t, http.MethodPost, path, admin, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/admin/referrals/"+primitive.NewObjectID().Hex()+"/award", admin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/admin/referrals/nope/award", admin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/api/admin/referrals/report?start=2000-01-01", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.ReferralReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Equal(t, 1, report.Summary.TotalReferrals)
	require.Equal(t, "Now", report.Period.EndDate)

	rec, _ = s.do(t, http.MethodGet, "/api/admin/referrals/report?start=yesterday", admin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/admin/referrals/expire", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordEndpoints_UnknownEmail(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, services.ForgotPasswordMessage, env.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/verify-reset-token", "", map[string]string{"token": "deadbeef"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Server is running", env.Message)
}
