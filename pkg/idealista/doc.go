// Package idealista is a client for the idealista property search API.
//
// A client is obtained with the OAuth2 client-credentials grant:
//
//	client, err := idealista.Authenticate(ctx, clientID, clientSecret)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.Search(ctx, idealista.SearchParams{
//		Country:      "es",
//		Operation:    idealista.OperationRent,
//		PropertyType: idealista.PropertyTypeHomes,
//		LocationID:   "0-EU-ES-28",
//		MaxItems:     idealista.Ptr(50),
//	})
//
// Tokens are memoized per credential pair by a TokenCache, so authenticating again with
// the same pair does not reach the token endpoint. Search returns the decoded JSON body
// unchanged.
//
// Errors are typed: *ValidationError for requests rejected before any network call,
// *AuthenticationError for token failures and *APIRequestError for non-2xx search
// responses.
package idealista
