package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriqo/server/internal/middleware"
	"github.com/veriqo/server/internal/model"
	"github.com/veriqo/server/internal/verification"
)

const maxUploadBytes = 32 << 20 // 32 MiB

// ProfileHandler handles profile and verification-review endpoints.
// All routes require an authenticated session.
type ProfileHandler struct {
	workflow *verification.Workflow
	log      *zap.Logger
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(workflow *verification.Workflow, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{workflow: workflow, log: log}
}

// HandleMe handles GET /profile/me
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondWithUnauthorized(w)
		return
	}

	res, err := h.workflow.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleListPending handles GET /profile/verification-requests
func (h *ProfileHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondWithUnauthorized(w)
		return
	}

	res, err := h.workflow.ListPending(r.Context(), actor)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// decideRequest is the request body for the decision endpoint.
type decideRequest struct {
	Decision string `json:"decision"`
}

// HandleDecide handles PATCH /profile/verification-requests/{id}
func (h *ProfileHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondWithUnauthorized(w)
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondBadRequest(w, "invalid user id")
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	decision := model.AccountStatus(strings.ToUpper(strings.TrimSpace(req.Decision)))

	res, err := h.workflow.Decide(r.Context(), actor, userID, decision)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleSubmitInfo handles POST /profile/info. Accepts multipart form
// data with an optional docFile part, or a plain JSON body.
func (h *ProfileHandler) HandleSubmitInfo(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondWithUnauthorized(w)
		return
	}

	var profile verification.ProfileInput
	var doc *verification.Document

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&profileJSON{&profile}); err != nil {
			respondBadRequest(w, "invalid request body")
			return
		}
	} else {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respondBadRequest(w, "invalid multipart form")
			return
		}
		profile = profileFromForm(r)

		file, header, err := r.FormFile("docFile")
		if err == nil {
			defer file.Close()
			doc = &verification.Document{Filename: header.Filename, File: file}
		}
	}

	res, err := h.workflow.SubmitForVerification(r.Context(), claims.UserID, profile, doc)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleUploadImage handles POST /profile/image
func (h *ProfileHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondWithUnauthorized(w)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondBadRequest(w, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("profileImage")
	if err != nil {
		respondBadRequest(w, "profileImage file is required")
		return
	}
	defer file.Close()

	res, err := h.workflow.UploadProfileImage(r.Context(), claims.UserID, verification.Document{
		Filename: header.Filename,
		File:     file,
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// profileJSON adapts the JSON field names onto ProfileInput.
type profileJSON struct {
	in *verification.ProfileInput
}

func (p *profileJSON) UnmarshalJSON(data []byte) error {
	var raw struct {
		FirstName     *string `json:"firstName"`
		LastName      *string `json:"lastName"`
		Email         *string `json:"email"`
		Country       *string `json:"country"`
		DocType       *string `json:"docType"`
		DocNumber     *string `json:"docNumber"`
		Gender        *string `json:"gender"`
		MaritalStatus *string `json:"maritalStatus"`
		DOB           *string `json:"dob"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.in.FirstName = raw.FirstName
	p.in.LastName = raw.LastName
	p.in.Email = raw.Email
	p.in.Country = raw.Country
	p.in.DocType = raw.DocType
	p.in.DocNumber = raw.DocNumber
	p.in.Gender = raw.Gender
	p.in.MaritalStatus = raw.MaritalStatus
	if raw.DOB != nil {
		if dob, err := parseDate(*raw.DOB); err == nil {
			p.in.DateOfBirth = &dob
		}
	}
	return nil
}

func profileFromForm(r *http.Request) verification.ProfileInput {
	var profile verification.ProfileInput
	field := func(name string) *string {
		if v := strings.TrimSpace(r.FormValue(name)); v != "" {
			return &v
		}
		return nil
	}
	profile.FirstName = field("firstName")
	profile.LastName = field("lastName")
	profile.Email = field("email")
	profile.Country = field("country")
	profile.DocType = field("docType")
	profile.DocNumber = field("docNumber")
	profile.Gender = field("gender")
	profile.MaritalStatus = field("maritalStatus")
	if v := strings.TrimSpace(r.FormValue("dob")); v != "" {
		if dob, err := parseDate(v); err == nil {
			profile.DateOfBirth = &dob
		}
	}
	return profile
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func respondWithUnauthorized(w http.ResponseWriter) {
	respondJSON(w, http.StatusUnauthorized, errorResponse{
		StatusCode: http.StatusUnauthorized,
		Message:    "unauthorized",
		Error:      http.StatusText(http.StatusUnauthorized),
	})
}
