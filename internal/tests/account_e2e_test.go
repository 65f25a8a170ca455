package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPhone    = "250780000001"
	testEmail    = "jane@example.com"
	testPassword = "Pa$$w0rd"
)

func signupBody(phone, email string) map[string]string {
	body := map[string]string{
		"firstName": "Jane",
		"lastName":  "Doe",
		"phone":     phone,
		"password":  testPassword,
	}
	if email != "" {
		body["email"] = email
	}
	return body
}

// signupAndVerify registers a user and verifies the phone, returning the
// last issued OTP's SMS history intact.
func signupAndVerify(t *testing.T, ts *testServer, phone, email string) {
	t.Helper()
	client := ts.Server.Client()

	resp := postJSON(t, client, ts.BaseURL()+"/auth/signup", signupBody(phone, email))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "signup must return 201; body: %s", readBody(resp))
	resp.Body.Close()

	code := ts.Sink.LastOTP(t)
	resp = postJSON(t, client, ts.BaseURL()+"/auth/otp-verification", map[string]string{"phone": phone, "otp": code})
	require.Equal(t, http.StatusOK, resp.StatusCode, "otp-verification must return 200; body: %s", readBody(resp))
	resp.Body.Close()
}

// signin runs the full two-step login and returns the session token.
func signin(t *testing.T, ts *testServer, phone string) string {
	t.Helper()
	client := ts.Server.Client()

	resp := postJSON(t, client, ts.BaseURL()+"/auth/signin", map[string]string{"phone": phone, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode, "signin must return 200; body: %s", readBody(resp))
	resp.Body.Close()

	code := ts.Sink.LastOTP(t)
	resp = postJSON(t, client, ts.BaseURL()+"/auth/signin/otp-verification", map[string]string{"phone": phone, "otp": code})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login otp-verification must return 200; body: %s", readBody(resp))

	var token struct {
		Token string `json:"token"`
	}
	body := decodeResponse(t, resp)
	require.NoError(t, json.Unmarshal(body.Data, &token))
	require.NotEmpty(t, token.Token)
	return token.Token
}

func TestAccountE2E(t *testing.T) {
	t.Run("A_Health", func(t *testing.T) {
		ts := newTestServer(t, false)
		resp, err := ts.Server.Client().Get(ts.BaseURL() + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("B_SignupAndPhoneVerification", func(t *testing.T) {
		ts := newTestServer(t, false)
		client := ts.Server.Client()

		resp := postJSON(t, client, ts.BaseURL()+"/auth/signup", signupBody(testPhone, testEmail))
		require.Equal(t, http.StatusCreated, resp.StatusCode, "signup must return 201; body: %s", readBody(resp))
		body := decodeResponse(t, resp)
		assert.Equal(t, "We sent you an OTP on "+testPhone+". OTP expires in 5 min", body.Message)
		var created struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &created))
		assert.NotEmpty(t, created.ID)

		code := ts.Sink.LastOTP(t)

		// Wrong code first.
		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}
		resp = postJSON(t, client, ts.BaseURL()+"/auth/otp-verification", map[string]string{"phone": testPhone, "otp": wrong})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid OTP or OTP has expired", decodeError(t, resp).Message)

		// Then the real one.
		resp = postJSON(t, client, ts.BaseURL()+"/auth/otp-verification", map[string]string{"phone": testPhone, "otp": code})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		assert.Equal(t, "Your phone was verified successfully", decodeResponse(t, resp).Message)

		// Replaying the code is an invalid transition.
		resp = postJSON(t, client, ts.BaseURL()+"/auth/otp-verification", map[string]string{"phone": testPhone, "otp": code})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Phone is already verified", decodeError(t, resp).Message)
	})

	t.Run("B2_DuplicateSignup", func(t *testing.T) {
		ts := newTestServer(t, false)
		client := ts.Server.Client()

		resp := postJSON(t, client, ts.BaseURL()+"/auth/signup", signupBody(testPhone, testEmail))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()

		resp = postJSON(t, client, ts.BaseURL()+"/auth/signup", signupBody(testPhone, ""))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "Provided Phone number was already registered", decodeError(t, resp).Message)

		resp = postJSON(t, client, ts.BaseURL()+"/auth/signup", signupBody("250780000002", testEmail))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "Provided email was already registered", decodeError(t, resp).Message)
	})

	t.Run("C_SigninAndSession", func(t *testing.T) {
		ts := newTestServer(t, false)
		client := ts.Server.Client()

		// An unverified phone cannot sign in.
		resp := postJSON(t, client, ts.BaseURL()+"/auth/signup", signupBody(testPhone, testEmail))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
		resp = postJSON(t, client, ts.BaseURL()+"/auth/signin", map[string]string{"phone": testPhone, "password": testPassword})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Your phone is not verified", decodeError(t, resp).Message)

		code := ts.Sink.LastOTP(t)
		resp = postJSON(t, client, ts.BaseURL()+"/auth/otp-verification", map[string]string{"phone": testPhone, "otp": code})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		token := signin(t, ts, testPhone)

		// The session token opens the profile.
		resp = doJSON(t, client, http.MethodGet, ts.BaseURL()+"/profile/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		body := decodeResponse(t, resp)
		var me struct {
			Phone string `json:"phone"`
			Email string `json:"email"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &me))
		assert.Equal(t, testPhone, me.Phone)
		assert.Equal(t, testEmail, me.Email)

		// No token, no profile.
		resp = doJSON(t, client, http.MethodGet, ts.BaseURL()+"/profile/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("D_PasswordReset", func(t *testing.T) {
		ts := newTestServer(t, false)
		client := ts.Server.Client()
		signupAndVerify(t, ts, testPhone, testEmail)

		resp := doJSON(t, client, http.MethodGet, ts.BaseURL()+"/auth/forgot-password/"+testEmail, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		assert.Equal(t, "Reset password link was sent to "+testEmail, decodeResponse(t, resp).Message)

		mail := ts.Sink.LastEmail(t)
		m := regexp.MustCompile(`reset-password\?t=(\S+)`).FindStringSubmatch(mail.Body)
		require.Len(t, m, 2, "reset email should carry a token")
		token := m[1]

		// Same password is rejected.
		resp = doJSON(t, client, http.MethodPatch, ts.BaseURL()+"/auth/reset-password/"+testEmail+"/"+token, "",
			map[string]string{"newPassword": testPassword})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "New password should not be the same as the old password", decodeError(t, resp).Message)

		resp = doJSON(t, client, http.MethodPatch, ts.BaseURL()+"/auth/reset-password/"+testEmail+"/"+token, "",
			map[string]string{"newPassword": "N3w-Pa$$w0rd"})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		assert.Equal(t, "Your password has been successfully updated", decodeResponse(t, resp).Message)

		// Old password stops working; the used token is dead too.
		resp = postJSON(t, client, ts.BaseURL()+"/auth/signin", map[string]string{"phone": testPhone, "password": testPassword})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()

		resp = doJSON(t, client, http.MethodPatch, ts.BaseURL()+"/auth/reset-password/"+testEmail+"/"+token, "",
			map[string]string{"newPassword": "An0ther-Pa$$"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid Link or link has expired", decodeError(t, resp).Message)
	})

	t.Run("E_VerificationReview", func(t *testing.T) {
		ts := newTestServer(t, false)
		client := ts.Server.Client()
		signupAndVerify(t, ts, testPhone, testEmail)
		userToken := signin(t, ts, testPhone)

		// Submit identity information; the account becomes PENDING.
		resp := doJSON(t, client, http.MethodPost, ts.BaseURL()+"/profile/info", userToken, map[string]string{
			"country":   "RW",
			"docType":   "PASSPORT",
			"docNumber": "PC123456",
			"dob":       "1990-04-12",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		body := decodeResponse(t, resp)
		assert.Equal(t, "Your profile information has been updated successfully", body.Message)
		var submitted struct {
			ID            string `json:"id"`
			AccountStatus string `json:"accountStatus"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &submitted))
		assert.Equal(t, "PENDING", submitted.AccountStatus)

		// Regular users cannot review.
		resp = doJSON(t, client, http.MethodGet, ts.BaseURL()+"/profile/verification-requests", userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "Forbidden resource", decodeError(t, resp).Message)

		// Admins see the pending request.
		admin := adminToken(t)
		resp = doJSON(t, client, http.MethodGet, ts.BaseURL()+"/profile/verification-requests", admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		body = decodeResponse(t, resp)
		var pending []struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &pending))
		require.Len(t, pending, 1)
		assert.Equal(t, submitted.ID, pending[0].ID)

		// A regular user cannot decide either.
		resp = doJSON(t, client, http.MethodPatch, ts.BaseURL()+"/profile/verification-requests/"+submitted.ID, userToken,
			map[string]string{"decision": "VERIFIED"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()

		// The admin decision lands and notifies the user.
		resp = doJSON(t, client, http.MethodPatch, ts.BaseURL()+"/profile/verification-requests/"+submitted.ID, admin,
			map[string]string{"decision": "verified"})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		body = decodeResponse(t, resp)
		assert.Equal(t, "Account has been verified successfully", body.Message)
		var decided struct {
			AccountStatus string `json:"accountStatus"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &decided))
		assert.Equal(t, "VERIFIED", decided.AccountStatus)
		assert.Contains(t, ts.Sink.LastEmail(t).Body, "verified")

		// Deciding twice fails.
		resp = doJSON(t, client, http.MethodPatch, ts.BaseURL()+"/profile/verification-requests/"+submitted.ID, admin,
			map[string]string{"decision": "REJECTED"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Verification request is not pending", decodeError(t, resp).Message)
	})

	t.Run("F_ProfileImage", func(t *testing.T) {
		ts := newTestServer(t, false)
		client := ts.Server.Client()
		signupAndVerify(t, ts, testPhone, testEmail)
		token := signin(t, ts, testPhone)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("profileImage", "avatar.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("not-really-a-png"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, ts.BaseURL()+"/profile/image", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := client.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		body := decodeResponse(t, resp)
		assert.Equal(t, "Your profile picture has been updated successfully", body.Message)
		var data map[string]string
		require.NoError(t, json.Unmarshal(body.Data, &data))
		assert.Equal(t, "https://cdn.example.com/avatar.png", data["url"])
	})

	t.Run("G_MagicLink", func(t *testing.T) {
		ts := newTestServer(t, false)
		client := ts.Server.Client()
		signupAndVerify(t, ts, testPhone, testEmail)

		resp := doJSON(t, client, http.MethodGet, ts.BaseURL()+"/auth/magic-link/"+testEmail, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		assert.Equal(t, "We sent you a magic link to your email address", decodeResponse(t, resp).Message)

		mail := ts.Sink.LastEmail(t)
		m := regexp.MustCompile(`http://localhost:3000/(\S+)`).FindStringSubmatch(mail.Body)
		require.Len(t, m, 2, "magic link email should carry a token")

		// The linked token is a working session token.
		resp = doJSON(t, client, http.MethodGet, ts.BaseURL()+"/profile/me", m[1], nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", readBody(resp))
		resp.Body.Close()
	})

	t.Run("H_Logs", func(t *testing.T) {
		// The test server has no error log file configured.
		ts := newTestServer(t, false)
		resp, err := ts.Server.Client().Get(ts.BaseURL() + "/auth/logs")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "No error files was found", decodeError(t, resp).Message)
	})
}

// TestAccountE2E_DevMode covers the development bypass: the fixed code
// is accepted without any SMS round trip, but only when enabled.
func TestAccountE2E_DevMode(t *testing.T) {
	ts := newTestServer(t, true)
	client := ts.Server.Client()

	resp := postJSON(t, client, ts.BaseURL()+"/auth/signup", signupBody(testPhone, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", readBody(resp))
	resp.Body.Close()

	resp = postJSON(t, client, ts.BaseURL()+"/auth/otp-verification", map[string]string{"phone": testPhone, "otp": "123456"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "bypass code must verify in dev mode; body: %s", readBody(resp))
	assert.Equal(t, "Your phone was verified successfully", decodeResponse(t, resp).Message)

	prod := newTestServer(t, false)
	resp = postJSON(t, prod.Server.Client(), prod.BaseURL()+"/auth/signup", signupBody(testPhone, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, prod.Server.Client(), prod.BaseURL()+"/auth/otp-verification", map[string]string{"phone": testPhone, "otp": "123456"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "bypass code must not verify in production mode")
	resp.Body.Close()
}
