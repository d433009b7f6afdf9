package handlers

import (
	"mime"
	"net/http"

	"expense-tracker/internal/common"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register handles POST /api/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	id, err := h.accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{Message: "User created successfully", UserID: id})
}

// Login handles POST /api/login. Credentials may arrive as JSON or as an
// urlencoded/multipart form.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, err := h.readCredentials(w, r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.gate.Carrier().Deliver(w, token, h.tokenTTL)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Logout handles POST /api/logout. Tokens are stateless; only the client
// side copy is cleared.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.accounts.Logout(r.Context())
	h.gate.Carrier().Clear(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (h *Handlers) readCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		if err := r.ParseMultipartForm(MaxBodyBytes); err != nil && err != http.ErrNotMultipart {
			return credentialsRequest{}, common.NewValidationError("body", "invalid form submission")
		}
		return credentialsRequest{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		}, nil
	default:
		var req credentialsRequest
		err := decodeJSON(w, r, &req)
		return req, err
	}
}
