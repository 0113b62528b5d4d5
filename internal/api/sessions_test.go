package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// newSessionServer runs without an agent so routing exercises the engine's
// local rules deterministically.
func newSessionServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := NewServer("127.0.0.1", 0, Deps{
		Catalog: catalogFixture(),
		Orders:  &fakeOrders{},
		Carts:   &fakeCarts{},
		Auth:    &fakeAuth{},
		Tokens:  NewTokenService("test-secret"),
	})
	token, err := srv.deps.Tokens.Issue(models.User{ID: "7", Name: "Asha", Mobile: "9876543210"})
	require.NoError(t, err)
	return srv, token
}

func decodeState(t *testing.T, body []byte) sessionState {
	t.Helper()
	var state sessionState
	require.NoError(t, json.Unmarshal(body, &state))
	return state
}

func TestSessionRequiresLogin(t *testing.T) {
	srv, _ := newSessionServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	srv, token := newSessionServer(t)
	auth := map[string]string{"Authorization": "Bearer " + token}

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", `{"diet_mode":"all"}`, auth)
	require.Equal(t, http.StatusCreated, rec.Code)
	state := decodeState(t, rec.Body.Bytes())
	require.NotEmpty(t, state.SessionID)
	assert.Equal(t, "idle", state.State)
	require.NotEmpty(t, state.Messages)
	assert.Contains(t, state.Messages[0].Content, "Welcome, Asha")

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/"+state.SessionID+"/message", `{"text":"add 2 milk"}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeState(t, rec.Body.Bytes())
	require.Len(t, state.Cart, 1)
	assert.Equal(t, "Fresh Milk", state.Cart[0].ProductName)
	assert.Equal(t, 2, state.Cart[0].Quantity)
	assert.Equal(t, 100, state.CartTotal)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/"+state.SessionID+"/option", `{"id":"checkout_now","label":"Checkout"}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeState(t, rec.Body.Bytes())
	assert.Equal(t, "fulfillment_selection", state.State)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/"+state.SessionID+"/transcript", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/sessions/"+state.SessionID, "", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/"+state.SessionID+"/transcript", "", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionRecipeAdd(t *testing.T) {
	srv, token := newSessionServer(t)
	auth := map[string]string{"Authorization": "Bearer " + token}

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", `{}`, auth)
	require.Equal(t, http.StatusCreated, rec.Code)
	state := decodeState(t, rec.Body.Bytes())

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/"+state.SessionID+"/recipe", `{"name":"Veg Biryani Kit","servings":2}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeState(t, rec.Body.Bytes())
	// Only basmati rice exists in the fixture catalog; the kit degrades to
	// the resolvable ingredient.
	require.Len(t, state.Cart, 1)
	assert.Equal(t, "Basmati Rice", state.Cart[0].ProductName)
	assert.Equal(t, 1, state.Cart[0].Quantity)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/"+state.SessionID+"/recipe", `{"name":"Unknown Kit"}`, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionUnknownID(t *testing.T) {
	srv, token := newSessionServer(t)
	auth := map[string]string{"Authorization": "Bearer " + token}
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/nope/message", `{"text":"hi"}`, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
