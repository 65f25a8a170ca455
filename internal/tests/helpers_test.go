package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veriqo/server/internal/auth"
	httpserver "github.com/veriqo/server/internal/http"
	"github.com/veriqo/server/internal/http/handlers"
	"github.com/veriqo/server/internal/model"
	"github.com/veriqo/server/internal/repo"
	"github.com/veriqo/server/internal/verification"
)

const testJWTSecret = "test-jwt-secret-at-least-32-characters-long"

// sinkRecorder captures outbound SMS and email instead of delivering them.
type sinkRecorder struct {
	mu     sync.Mutex
	sms    []recordedMessage
	emails []recordedMessage
}

type recordedMessage struct {
	To   string
	Body string
}

func (r *sinkRecorder) SendSMS(ctx context.Context, phone, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sms = append(r.sms, recordedMessage{To: phone, Body: message})
	return nil
}

func (r *sinkRecorder) SendEmail(ctx context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, recordedMessage{To: to, Body: subject + "\n" + body})
	return nil
}

var otpPattern = regexp.MustCompile(`Here is your OTP (\d{6})`)

// LastOTP extracts the code from the most recent SMS.
func (r *sinkRecorder) LastOTP(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sms, "expected an OTP SMS")
	m := otpPattern.FindStringSubmatch(r.sms[len(r.sms)-1].Body)
	require.Len(t, m, 2, "last SMS should carry an OTP")
	return m[1]
}

func (r *sinkRecorder) LastEmail(t *testing.T) recordedMessage {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.emails, "expected an email")
	return r.emails[len(r.emails)-1]
}

// assetStoreStub fakes the upload backend.
type assetStoreStub struct{}

func (assetStoreStub) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	if filename == "" {
		return "", errors.New("missing filename")
	}
	return "https://cdn.example.com/" + filename, nil
}

// testServer wires the full HTTP stack over the in-memory repository.
type testServer struct {
	Server *httptest.Server
	Sink   *sinkRecorder
	Users  repo.UserRepo
}

func newTestServer(t *testing.T, devMode bool) *testServer {
	t.Helper()

	users := repo.NewMemoryRepo()
	sink := &sinkRecorder{}
	log := zap.NewNop()

	creds := auth.NewCredentialStore()
	tokens := auth.NewTokenIssuer()
	otp := auth.NewOTPLifecycle(creds, devMode)

	authService := auth.NewService(users, sink, creds, tokens, otp, testJWTSecret, "http://localhost:3000", log)
	workflow := verification.NewWorkflow(users, sink, assetStoreStub{}, log)

	authHandler := handlers.NewAuthHandler(authService, "", log)
	profileHandler := handlers.NewProfileHandler(workflow, log)

	server := httptest.NewServer(httpserver.NewRouter(authHandler, profileHandler, authService))
	t.Cleanup(server.Close)

	return &testServer{Server: server, Sink: sink, Users: users}
}

func (s *testServer) BaseURL() string { return s.Server.URL }

// adminToken issues a session token carrying the ADMIN role. Admin
// accounts are provisioned out of band, so the token is minted directly.
func adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.NewTokenIssuer().Issue(auth.Claims{
		UserID:    uuid.New(),
		FirstName: "Ada",
		LastName:  "Admin",
		Phone:     "250780000999",
		Role:      model.RoleAdmin,
	}, []byte(testJWTSecret), time.Hour)
	require.NoError(t, err)
	return token
}

// apiResponse matches the {message, data} envelope.
type apiResponse struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// apiError matches the error body shape.
type apiError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func postJSON(t *testing.T, client *http.Client, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) apiResponse {
	t.Helper()
	defer resp.Body.Close()
	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func decodeError(t *testing.T, resp *http.Response) apiError {
	t.Helper()
	defer resp.Body.Close()
	var out apiError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// readBody reads and returns the response body, restoring it so the
// response can still be decoded afterwards. Use for error messages.
func readBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(b))
	return string(b)
}
