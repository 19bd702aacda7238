package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medtrack/internal/apperr"
	"medtrack/internal/auth"
	"medtrack/internal/logger"
	"medtrack/internal/models"
	"medtrack/internal/service/assistant"
	"medtrack/internal/service/classifier"
	"medtrack/internal/service/tracker"
)

// Handler wires HTTP routes to the assistant and tracker services.
type Handler struct {
	assistant *assistant.Service
	tracker   *tracker.Service
	auth      *auth.Service
	log       *logger.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(assistantService *assistant.Service, trackerService *tracker.Service, authService *auth.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		assistant: assistantService,
		tracker:   trackerService,
		auth:      authService,
		log:       log,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)

	api := router.Group("/api")
	api.POST("/register", h.registerUser)
	api.POST("/login", h.loginUser)

	authed := api.Group("")
	authed.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	authed.POST("/logout", h.logoutUser)
	authed.POST("/logout/all", h.logoutAllSessions)
	authed.GET("/user", h.currentUser)

	authed.GET("/medications", h.listMedications)
	authed.GET("/medications/overview", h.medicationOverview)
	authed.POST("/medications", h.addMedication)
	authed.PUT("/medications/:id", h.updateMedication)
	authed.POST("/medications/:id/taken", h.markTaken)
	authed.DELETE("/medications/:id", h.deleteMedication)

	authed.GET("/activities", h.listActivities)
	authed.POST("/activities", h.recordActivity)

	authed.GET("/messages", h.listMessages)
	authed.POST("/messages", h.sendMessage)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return 0, false
	}
	return userID, true
}

// respondError writes the public form of err. Internal causes are logged, never sent.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(requestIDContextKey),
			"error", err,
		)
	}
	c.JSON(status, gin.H{"message": apperr.PublicMessage(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": msg})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}

// User lifecycle

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	*models.User
	AuthToken string `json:"authToken,omitempty"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req assistant.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	user, err := h.assistant.RegisterUser(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	authToken, ok := h.startSession(c, user.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, userResponse{User: user, AuthToken: authToken})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	user, err := h.assistant.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	authToken, ok := h.startSession(c, user.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userResponse{User: user, AuthToken: authToken})
}

// startSession issues the auth token and sets both auth cookies.
func (h *Handler) startSession(c *gin.Context, userID int64) (string, bool) {
	authToken, err := h.auth.IssueToken(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return "", false
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		h.respondError(c, err)
		return "", false
	}
	h.setAuthCookies(c, authToken, csrfToken)
	return authToken, true
}

func (h *Handler) logoutUser(c *gin.Context) {
	if token, ok := auth.AuthTokenFromContext(c); ok {
		if err := h.auth.RevokeToken(c.Request.Context(), token); err != nil {
			h.respondError(c, err)
			return
		}
	}
	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// logoutAllSessions revokes every token the user holds, on all devices.
func (h *Handler) logoutAllSessions(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.auth.RevokeUserTokens(c.Request.Context(), userID); err != nil {
		h.respondError(c, err)
		return
	}
	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out of all sessions"})
}

func (h *Handler) currentUser(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	user, err := h.assistant.Profile(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{User: user})
}

// Medications

func (h *Handler) listMedications(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	filter, err := classifier.ParseFilter(c.Query("filter"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	views, err := h.tracker.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) medicationOverview(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	filter, err := classifier.ParseFilter(c.Query("filter"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ov, err := h.tracker.Overview(c.Request.Context(), userID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (h *Handler) addMedication(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req models.Medication
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	med, err := h.tracker.Add(c.Request.Context(), userID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, med)
}

func (h *Handler) updateMedication(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch models.MedicationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	med, err := h.tracker.Update(c.Request.Context(), userID, id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, med)
}

func (h *Handler) markTaken(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	med, err := h.tracker.MarkTaken(c.Request.Context(), userID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, med)
}

func (h *Handler) deleteMedication(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.tracker.Delete(c.Request.Context(), userID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Activities

func (h *Handler) listActivities(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	items, err := h.tracker.Activities(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) recordActivity(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req models.Activity
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	activity, err := h.tracker.RecordActivity(c.Request.Context(), userID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, activity)
}

// Chat

type messageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) listMessages(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	msgs, err := h.assistant.History(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) sendMessage(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	pair, err := h.assistant.Send(c.Request.Context(), userID, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pair)
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
