package controllers

import (
	"net/http"

	"github.com/itayelfasy/nominal-assignment/internal/quickbooks"
	"github.com/itayelfasy/nominal-assignment/internal/services"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AuthController handles the QuickBooks OAuth consent flow
type AuthController struct {
	client *quickbooks.Client
	tokens services.TokenService
}

// NewAuthController creates a new instance of AuthController
func NewAuthController(client *quickbooks.Client, tokens services.TokenService) *AuthController {
	return &AuthController{client: client, tokens: tokens}
}

// BeginAuth godoc
// @Summary Initiate QuickBooks OAuth flow
// @Description Returns the authorization URL the tenant must visit to grant consent
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/quickbooks [get]
func (ac *AuthController) BeginAuth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"auth_url": ac.client.AuthorizationURL()})
}

// Callback godoc
// @Summary QuickBooks OAuth callback
// @Description Exchanges the authorization code for tokens and stores them for the realm
// @Tags auth
// @Produce json
// @Param code query string true "Authorization code from QuickBooks"
// @Param realm_id query string true "QuickBooks company realm ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /callback [get]
func (ac *AuthController) Callback(c *gin.Context) {
	code := c.Query("code")
	realmID := c.Query("realm_id")

	if code == "" || realmID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Authentication failed: code and realm_id are required"})
		return
	}

	log.WithField("realm_id", realmID).Info("Received QuickBooks OAuth callback")

	result, err := ac.tokens.HandleCallback(code, realmID)
	if err != nil {
		log.WithError(err).Error("Error in QuickBooks callback")
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Authentication failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
