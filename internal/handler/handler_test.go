package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"referly/config"
	"referly/internal/auth"
	"referly/internal/database"
	"referly/internal/domain"
	"referly/internal/models"
	"referly/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT: config.JWTConfig{
			AccessSecret: "test-secret",
			AccessExpiry: time.Hour,
			Issuer:       "referly-test",
		},
		Referral: config.ReferralConfig{
			RewardAmount:        10,
			RewardCurrency:      "USD",
			CompletionThreshold: 7,
			RewardTTL:           365 * 24 * time.Hour,
			ShareURLBase:        "https://referly.app/r/",
			MaxCodeAttempts:     10,
		},
		Scheduler: config.SchedulerConfig{
			Enabled:           false,
			CompletionCadence: "0 2 * * *",
			ExpirationCadence: "0 3 * * 0",
		},
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	cfg := testConfig()
	engine, _ := router.Setup(cfg, db)
	return engine, db, cfg
}

func createUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func bearerFor(t *testing.T, cfg *config.Config, u *models.User) string {
	t.Helper()
	token, err := auth.GenerateAccessToken(&cfg.JWT, u.ID, u.Role)
	require.NoError(t, err)
	return "Bearer " + token
}

func httpDo(r *gin.Engine, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReferralFlowOverHTTP(t *testing.T) {
	r, db, cfg := setupRouter(t)

	alice := createUser(t, db, "alice", domain.RoleUser)
	bob := createUser(t, db, "bob", domain.RoleUser)

	// Alice fetches her code.
	w := httpDo(r, "GET", "/api/v1/me/referral-code", bearerFor(t, cfg, alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var codeResp struct {
		Code     string `json:"code"`
		ShareURL string `json:"share_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &codeResp))
	require.Equal(t, "ALICE", codeResp.Code)
	require.Equal(t, "https://referly.app/r/ALICE", codeResp.ShareURL)

	// Anyone can validate it without auth.
	w = httpDo(r, "GET", "/api/v1/referrals/validate/ALICE", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var validation struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &validation))
	require.True(t, validation.Valid)

	// Bob applies it.
	w = httpDo(r, "POST", "/api/v1/referrals/apply", bearerFor(t, cfg, bob),
		gin.H{"code": "ALICE"})
	require.Equal(t, http.StatusOK, w.Code)

	// Applying again is a 400.
	w = httpDo(r, "POST", "/api/v1/referrals/apply", bearerFor(t, cfg, bob),
		gin.H{"code": "ALICE"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Self-referral is a 400.
	w = httpDo(r, "POST", "/api/v1/referrals/apply", bearerFor(t, cfg, alice),
		gin.H{"code": "ALICE"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Alice sees one pending reward.
	w = httpDo(r, "GET", "/api/v1/me/rewards", bearerFor(t, cfg, alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rewards struct {
		Items []models.ReferralReward `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rewards))
	require.Len(t, rewards.Items, 1)
	require.Equal(t, domain.RewardStatusPending, rewards.Items[0].Status)
}

func TestRedeemErrorMapsToConflict(t *testing.T) {
	r, db, cfg := setupRouter(t)

	alice := createUser(t, db, "alice", domain.RoleUser)
	bob := createUser(t, db, "bob", domain.RoleUser)

	rw := &models.ReferralReward{
		ID:                "11111111-1111-1111-1111-111111111111",
		BeneficiaryUserID: alice.ID,
		ReferredUserID:    bob.ID,
		RewardType:        domain.RewardTypeCash,
		Amount:            10,
		Currency:          "USD",
		Status:            domain.RewardStatusPending, // not redeemable yet
	}
	require.NoError(t, db.Create(rw).Error)

	w := httpDo(r, "POST", "/api/v1/me/rewards/redeem", bearerFor(t, cfg, alice),
		gin.H{"reward_ids": []string{rw.ID}, "method": domain.RedemptionMethodBankTransfer})
	require.Equal(t, http.StatusConflict, w.Code)
	var resp struct {
		RewardID string `json:"reward_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, rw.ID, resp.RewardID)
}

func TestRedeemHappyPathOverHTTP(t *testing.T) {
	r, db, cfg := setupRouter(t)

	alice := createUser(t, db, "alice", domain.RoleUser)
	bob := createUser(t, db, "bob", domain.RoleUser)
	rw := &models.ReferralReward{
		ID:                "22222222-2222-2222-2222-222222222222",
		BeneficiaryUserID: alice.ID,
		ReferredUserID:    bob.ID,
		RewardType:        domain.RewardTypeCash,
		Amount:            10,
		Currency:          "USD",
		Status:            domain.RewardStatusAvailable,
	}
	require.NoError(t, db.Create(rw).Error)

	w := httpDo(r, "POST", "/api/v1/me/rewards/redeem", bearerFor(t, cfg, alice),
		gin.H{
			"reward_ids": []string{rw.ID},
			"method":     domain.RedemptionMethodBankTransfer,
			"details":    gin.H{"account": "ACC-1"},
		})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		TotalAmount   float64 `json:"total_amount"`
		Currency      string  `json:"currency"`
		Count         int     `json:"count"`
		SettlementRef string  `json:"settlement_ref"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, float64(10), resp.TotalAmount)
	require.Equal(t, "USD", resp.Currency)
	require.Equal(t, 1, resp.Count)
	require.NotEmpty(t, resp.SettlementRef)
}

func TestMarkActiveReturnsNoContent(t *testing.T) {
	r, db, cfg := setupRouter(t)
	bob := createUser(t, db, "bob", domain.RoleUser)

	w := httpDo(r, "POST", "/api/v1/me/activity", bearerFor(t, cfg, bob), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	var got models.User
	require.NoError(t, db.First(&got, bob.ID).Error)
	require.Equal(t, 1, got.ActiveDaysCount)
}

func TestAuthAndRoleEnforcement(t *testing.T) {
	r, db, cfg := setupRouter(t)
	user := createUser(t, db, "bob", domain.RoleUser)
	admin := createUser(t, db, "root", domain.RoleAdmin)

	// No token.
	w := httpDo(r, "GET", "/api/v1/me/rewards", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Non-admin on admin surface.
	w = httpDo(r, "GET", "/api/v1/admin/scheduler/status", bearerFor(t, cfg, user), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// Admin sees scheduler status with both jobs.
	w = httpDo(r, "GET", "/api/v1/admin/scheduler/status", bearerFor(t, cfg, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st struct {
		Enabled bool `json:"enabled"`
		Jobs    []struct {
			Name string `json:"name"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.False(t, st.Enabled)
	require.Len(t, st.Jobs, 2)

	// Unknown manual job is a 404.
	w = httpDo(r, "POST", "/api/v1/admin/scheduler/jobs/nope/run", bearerFor(t, cfg, admin), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Known job runs on demand.
	w = httpDo(r, "POST", "/api/v1/admin/scheduler/jobs/reward-expiration/run", bearerFor(t, cfg, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
}
