package e2e

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type expense struct {
	ID          int64   `json:"id"`
	Amount      int64   `json:"amount"`
	Category    string  `json:"category"`
	Description *string `json:"description"`
	OwnerID     int64   `json:"owner_id"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// E2ETestSuite drives the running server through playwright's API client.
type E2ETestSuite struct {
	suite.Suite
	pw  *playwright.Playwright
	api playwright.APIRequestContext
}

// SetupSuite runs once before all tests
func (suite *E2ETestSuite) SetupSuite() {
	pw, err := playwright.Run()
	require.NoError(suite.T(), err, "could not launch playwright")
	suite.pw = pw

	api, err := pw.Request.NewContext(playwright.APIRequestNewContextOptions{
		BaseURL: playwright.String(appURL),
	})
	require.NoError(suite.T(), err, "could not create API request context")
	suite.api = api
}

// TearDownSuite runs once after all tests
func (suite *E2ETestSuite) TearDownSuite() {
	if suite.api != nil {
		suite.api.Dispose()
	}
	if suite.pw != nil {
		suite.pw.Stop()
	}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (suite *E2ETestSuite) login(username, password string) string {
	resp, err := suite.api.Post("/api/login", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"username": username, "password": password},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.Status(), "login failed for %s", username)

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(suite.T(), resp.JSON(&body))
	assert.Equal(suite.T(), "bearer", body.TokenType)
	return body.AccessToken
}

func (suite *E2ETestSuite) register(username string) {
	resp, err := suite.api.Post("/api/register", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"username": username, "password": "password123"},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusCreated, resp.Status())
}

func (suite *E2ETestSuite) TestHealth() {
	resp, err := suite.api.Get("/health")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, resp.Status())
}

func (suite *E2ETestSuite) TestAdminLoginAndExpenseLifecycle() {
	token := suite.login("testuser", "testpass123")

	resp, err := suite.api.Post("/api/expenses", playwright.APIRequestContextPostOptions{
		Headers: bearer(token),
		Data:    map[string]any{"amount": 1250, "category": "food", "description": "Test Lunch"},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.Status())

	var created expense
	require.NoError(suite.T(), resp.JSON(&created))
	assert.Equal(suite.T(), int64(1250), created.Amount)
	require.NotNil(suite.T(), created.Description)
	assert.Equal(suite.T(), "Test Lunch", *created.Description)

	resp, err = suite.api.Put(fmt.Sprintf("/api/expenses/%d", created.ID), playwright.APIRequestContextPutOptions{
		Headers: bearer(token),
		Data:    map[string]any{"amount": 2000},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.Status())

	var updated expense
	require.NoError(suite.T(), resp.JSON(&updated))
	assert.Equal(suite.T(), int64(2000), updated.Amount)
	assert.Equal(suite.T(), "food", updated.Category)

	resp, err = suite.api.Get("/api/expenses/summary", playwright.APIRequestContextGetOptions{
		Headers: bearer(token),
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.Status())

	resp, err = suite.api.Delete(fmt.Sprintf("/api/expenses/%d", created.ID), playwright.APIRequestContextDeleteOptions{
		Headers: bearer(token),
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, resp.Status())

	resp, err = suite.api.Delete(fmt.Sprintf("/api/expenses/%d", created.ID), playwright.APIRequestContextDeleteOptions{
		Headers: bearer(token),
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusNotFound, resp.Status())
}

func (suite *E2ETestSuite) TestOwnersAreIsolated() {
	suite.register("e2e-alice")
	suite.register("e2e-bob")
	alice := suite.login("e2e-alice", "password123")
	bob := suite.login("e2e-bob", "password123")

	resp, err := suite.api.Post("/api/expenses", playwright.APIRequestContextPostOptions{
		Headers: bearer(alice),
		Data:    map[string]any{"amount": 500, "category": "rent"},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.Status())
	var e expense
	require.NoError(suite.T(), resp.JSON(&e))

	resp, err = suite.api.Delete(fmt.Sprintf("/api/expenses/%d", e.ID), playwright.APIRequestContextDeleteOptions{
		Headers: bearer(bob),
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusNotFound, resp.Status())

	resp, err = suite.api.Get("/api/expenses", playwright.APIRequestContextGetOptions{Headers: bearer(bob)})
	require.NoError(suite.T(), err)
	var list []expense
	require.NoError(suite.T(), resp.JSON(&list))
	assert.Empty(suite.T(), list)
}

func (suite *E2ETestSuite) TestUnauthenticated() {
	resp, err := suite.api.Get("/api/expenses")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusUnauthorized, resp.Status())
	assert.Equal(suite.T(), "Bearer", resp.Headers()["www-authenticate"])

	var body apiError
	require.NoError(suite.T(), resp.JSON(&body))
	assert.Equal(suite.T(), "unauthorized", body.Error.Code)
}

func (suite *E2ETestSuite) TestLoginRateLimited() {
	// A dedicated client address keeps this quota apart from the other tests.
	headers := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	for i := 0; i < 20; i++ {
		resp, err := suite.api.Post("/api/login", playwright.APIRequestContextPostOptions{
			Headers: headers,
			Data:    map[string]string{"username": "testuser", "password": "wrong-password"},
		})
		require.NoError(suite.T(), err)
		require.Equal(suite.T(), http.StatusUnauthorized, resp.Status(), "attempt %d", i+1)
	}

	resp, err := suite.api.Post("/api/login", playwright.APIRequestContextPostOptions{
		Headers: headers,
		Data:    map[string]string{"username": "testuser", "password": "testpass123"},
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusTooManyRequests, resp.Status())
	assert.NotEmpty(suite.T(), resp.Headers()["retry-after"])
}

func TestE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e tests in short mode")
	}
	suite.Run(t, new(E2ETestSuite))
}
