package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/driftline/driftline-backend/internal/models"
	"github.com/driftline/driftline-backend/internal/service"
)

const requestTimeout = 10 * time.Second

// API wraps the relay's HTTP surface. Every call carries its own
// timeout so one stalled request cannot wedge the synchronizer.
type API struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

func (a *API) Token() string { return a.token }

// SetToken installs a bearer token obtained elsewhere, e.g. from a
// stored session.
func (a *API) SetToken(token string) { a.token = token }

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

func (a *API) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &apiError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

type authResponse struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

func (a *API) Register(ctx context.Context, input service.RegisterInput) (models.UserResponse, error) {
	var resp authResponse
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", input, &resp); err != nil {
		return models.UserResponse{}, err
	}
	a.token = resp.Token
	return resp.User, nil
}

func (a *API) Login(ctx context.Context, email, password string) (models.UserResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return models.UserResponse{}, err
	}
	a.token = resp.Token
	return resp.User, nil
}

// PeerList is the sidebar payload: every other user plus the server's
// authoritative unseen counts.
type PeerList struct {
	Users  []models.UserResponse `json:"users"`
	Unseen map[uint]int64        `json:"unseen_messages"`
}

func (a *API) ListPeers(ctx context.Context) (PeerList, error) {
	var resp PeerList
	err := a.do(ctx, http.MethodGet, "/api/users", nil, &resp)
	return resp, err
}

type threadResponse struct {
	Messages []models.MessageResponse `json:"messages"`
	Count    int                      `json:"count"`
}

func (a *API) FetchThread(ctx context.Context, peerID uint) ([]models.MessageResponse, error) {
	var resp threadResponse
	path := fmt.Sprintf("/api/messages?peer_id=%d", peerID)
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (a *API) FetchGroupThread(ctx context.Context, groupID uint) ([]models.MessageResponse, error) {
	var resp threadResponse
	path := fmt.Sprintf("/api/groups/%d/messages", groupID)
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (a *API) SendMessage(ctx context.Context, input service.PrivateMessageInput) (models.MessageResponse, error) {
	var resp models.MessageResponse
	err := a.do(ctx, http.MethodPost, "/api/messages", input, &resp)
	return resp, err
}

// MarkThreadSeen acknowledges every unseen message from peerID.
func (a *API) MarkThreadSeen(ctx context.Context, peerID uint) error {
	path := fmt.Sprintf("/api/conversations/%d/seen", peerID)
	return a.do(ctx, http.MethodPost, path, nil, nil)
}

func (a *API) CreateGroup(ctx context.Context, name string) (models.GroupResponse, error) {
	var resp models.GroupResponse
	err := a.do(ctx, http.MethodPost, "/api/groups", map[string]string{"name": name}, &resp)
	return resp, err
}

func (a *API) JoinGroup(ctx context.Context, groupID uint) (models.GroupResponse, error) {
	var resp models.GroupResponse
	err := a.do(ctx, http.MethodPost, fmt.Sprintf("/api/groups/%d/join", groupID), nil, &resp)
	return resp, err
}

func (a *API) ListGroups(ctx context.Context) ([]models.GroupResponse, error) {
	var resp struct {
		Groups []models.GroupResponse `json:"groups"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/groups", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}
