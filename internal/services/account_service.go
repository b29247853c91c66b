package services

// AccountService orchestrates the "get accounts for a realm" use case
type AccountService interface {
	// GetAccounts resolves a valid access token for the realm and forwards
	// the filtered Account query upstream
	GetAccounts(realmID, namePrefix string) (map[string]interface{}, error)
}

// accountService is the implementation of the AccountService interface
type accountService struct {
	tokens TokenService
	client QuickBooksClient
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(tokens TokenService, client QuickBooksClient) AccountService {
	return &accountService{tokens: tokens, client: client}
}

func (s *accountService) GetAccounts(realmID, namePrefix string) (map[string]interface{}, error) {
	accessToken, err := s.tokens.GetValidToken(realmID)
	if err != nil {
		return nil, err
	}

	payload, err := s.client.GetAccounts(accessToken, realmID, namePrefix)
	if err != nil {
		log.WithError(err).WithField("realm_id", realmID).Error("Error getting accounts")
		return nil, err
	}
	return payload, nil
}
