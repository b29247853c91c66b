package controllers

import (
	"errors"
	"net/http"

	"github.com/itayelfasy/nominal-assignment/internal/quickbooks"
	"github.com/itayelfasy/nominal-assignment/internal/services"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AccountController handles HTTP requests for QuickBooks account data
type AccountController struct {
	service        services.AccountService
	defaultRealmID string
}

// NewAccountController creates a new instance of AccountController
func NewAccountController(service services.AccountService, defaultRealmID string) *AccountController {
	return &AccountController{service: service, defaultRealmID: defaultRealmID}
}

// GetAccounts godoc
// @Summary Retrieve accounts from QuickBooks
// @Description Proxies a filtered Account query to QuickBooks for the given realm
// @Tags accounts
// @Produce json
// @Param realm_id query string false "QuickBooks company realm ID (defaults to the sandbox realm)"
// @Param name_prefix query string false "Filter accounts by name prefix"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /accounts [get]
func (ac *AccountController) GetAccounts(c *gin.Context) {
	realmID := c.DefaultQuery("realm_id", ac.defaultRealmID)
	namePrefix := c.Query("name_prefix")

	payload, err := ac.service.GetAccounts(realmID, namePrefix)
	if err != nil {
		if isAccountsDomainError(err) {
			log.WithError(err).WithField("realm_id", realmID).Error("Error getting accounts")
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		log.WithError(err).WithField("realm_id", realmID).Error("Unexpected error getting accounts")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, payload)
}

// isAccountsDomainError separates failures the caller can act on (re-run
// consent, fix the query, wait out a rate limit) from genuine server faults.
func isAccountsDomainError(err error) bool {
	return errors.Is(err, services.ErrNotAuthenticated) ||
		errors.Is(err, services.ErrRefreshFailed) ||
		quickbooks.IsDomainError(err)
}
