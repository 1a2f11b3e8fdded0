package idealista

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"idealista-go/pkg/config"
	"idealista-go/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authenticateForTest(t *testing.T, baseURL string, token Token) *Client {
	t.Helper()
	cache := newTestCache(TokenFetcherFunc(func(ctx context.Context, clientID, clientSecret string) (Token, error) {
		return token, nil
	}))
	client, err := Authenticate(context.Background(), "id1", "secret1",
		WithBaseURL(baseURL),
		WithTokenCache(cache),
		WithLogger(logger.Discard()),
	)
	require.NoError(t, err)
	return client
}

func TestAuthenticate_SetsReturnedToken(t *testing.T) {
	expected := Token{"token": "abcxyz"}
	var calls atomic.Int32
	cache := newTestCache(TokenFetcherFunc(func(ctx context.Context, clientID, clientSecret string) (Token, error) {
		calls.Add(1)
		return Token{"token": "abcxyz"}, nil
	}))

	client, err := Authenticate(context.Background(), "id1", "secret1", WithTokenCache(cache), WithLogger(logger.Discard()))
	require.NoError(t, err)

	assert.Equal(t, "id1", client.ClientID())
	assert.Equal(t, expected, client.Token())

	_, err = Authenticate(context.Background(), "id1", "secret1", WithTokenCache(cache), WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAuthenticate_WrapsFetchFailure(t *testing.T) {
	boom := errors.New("connection refused")
	cache := newTestCache(TokenFetcherFunc(func(ctx context.Context, clientID, clientSecret string) (Token, error) {
		return nil, boom
	}))

	client, err := Authenticate(context.Background(), "id1", "secret1", WithTokenCache(cache), WithLogger(logger.Discard()))
	require.Error(t, err)
	assert.Nil(t, client)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "id1", authErr.ClientID)
	assert.ErrorIs(t, err, boom)
}

func TestClient_TokenIsACopy(t *testing.T) {
	client := authenticateForTest(t, "http://unused", Token{"access_token": "abc"})
	tok := client.Token()
	tok["access_token"] = "changed"
	assert.Equal(t, "abc", client.Token().AccessToken())
}

func TestSearch_PostsPayloadWithBearerToken(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/3.5/es/search", r.URL.Path)
		assert.Equal(t, "Bearer abcxyz", r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, url.Values{
			"country":      {"es"},
			"operation":    {"rent"},
			"propertyType": {"homes"},
			"locationId":   {"0-EU-ES-28"},
		}, r.PostForm)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":1,"elementList":[{"propertyCode":"123","price":950.0}]}`))
	}))
	defer srv.Close()

	client := authenticateForTest(t, srv.URL+"/3.5", Token{"access_token": "abcxyz", "token_type": "bearer"})

	result, err := client.Search(context.Background(), SearchParams{
		Country:      "es",
		Operation:    OperationRent,
		PropertyType: PropertyTypeHomes,
		LocationID:   "0-EU-ES-28",
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, json.Number("1"), result["total"])
	list, ok := result["elementList"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestSearch_CenterAndOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pt/search", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, url.Values{
			"country":       {"pt"},
			"operation":     {"sale"},
			"propertyType":  {"offices"},
			"center":        {"38.7223,-9.1393"},
			"distance":      {"1500"},
			"maxItems":      {"20"},
			"sinceDate":     {"M"},
			"sort":          {"asc"},
			"hasMultimedia": {"false"},
			"adIds":         {"10", "20"},
		}, r.PostForm)
		w.Write([]byte(`{"elementList":[]}`))
	}))
	defer srv.Close()

	client := authenticateForTest(t, srv.URL, Token{"access_token": "t"})

	_, err := client.Search(context.Background(), SearchParams{
		Country:       "pt",
		Operation:     Operation("SALE"),
		PropertyType:  PropertyType("OFFICES"),
		Center:        &Point{Latitude: 38.7223, Longitude: -9.1393},
		Distance:      Ptr(1500.0),
		MaxItems:      Ptr(20),
		SinceDate:     SinceDate("LAST_MONTH"),
		Sort:          SortAscending,
		HasMultimedia: Ptr(false),
		AdIDs:         []int{10, 20},
	})
	require.NoError(t, err)
}

func TestSearch_ValidationErrorSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := authenticateForTest(t, srv.URL, Token{"access_token": "t"})

	_, err := client.Search(context.Background(), SearchParams{
		Country:      "es",
		Operation:    OperationRent,
		PropertyType: PropertyTypeHomes,
		Center:       &Point{Latitude: 40.4, Longitude: -3.7},
		Distance:     Ptr(1000.0),
		LocationID:   "0-EU-ES-28",
	})
	assert.True(t, IsValidationKind(err, AmbiguousLocation))

	_, err = client.Search(context.Background(), SearchParams{
		Country:      "es",
		Operation:    Operation("lease"),
		PropertyType: PropertyTypeHomes,
		LocationID:   "0-EU-ES-28",
	})
	assert.True(t, IsValidationKind(err, InvalidEnumValue))

	assert.Equal(t, int32(0), hits.Load())
}

func TestSearch_NonSuccessStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid locationId"}`))
	}))
	defer srv.Close()

	client := authenticateForTest(t, srv.URL, Token{"access_token": "t"})

	result, err := client.Search(context.Background(), SearchParams{
		Country:      "es",
		Operation:    OperationRent,
		PropertyType: PropertyTypeHomes,
		LocationID:   "nowhere",
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(1), hits.Load())

	var apiErr *APIRequestError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, `{"message":"invalid locationId"}`, string(apiErr.Body))
	assert.Equal(t, srv.URL+"/es/search", apiErr.URL)
}

func TestSearch_UndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	client := authenticateForTest(t, srv.URL, Token{"access_token": "t"})

	_, err := client.Search(context.Background(), SearchParams{
		Country:      "es",
		Operation:    OperationRent,
		PropertyType: PropertyTypeHomes,
		LocationID:   "0-EU-ES-28",
	})
	require.ErrorContains(t, err, "failed to decode search response")
}

func TestAuthenticateFromConfig_EndToEnd(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		user, pass, _ := r.BasicAuth()
		assert.Equal(t, "cfg-id", user)
		assert.Equal(t, "cfg-secret", pass)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "cfg-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/3.5/it/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer cfg-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":0}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Idealista.ClientID = "cfg-id"
	cfg.Idealista.ClientSecret = "cfg-secret"
	cfg.Idealista.BaseURL = srv.URL + "/3.5"
	cfg.Idealista.TokenURL = srv.URL + "/oauth/token"
	cfg.Idealista.Timeout = config.DefaultTimeout
	cfg.Log.Level = "SILENT"

	ctx := context.Background()
	client, err := AuthenticateFromConfig(ctx, cfg)
	require.NoError(t, err)
	_, err = AuthenticateFromConfig(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load())

	result, err := client.Search(ctx, SearchParams{
		Country:      "it",
		Operation:    OperationSale,
		PropertyType: PropertyTypePremises,
		LocationID:   "0-EU-IT-MI",
	})
	require.NoError(t, err)
	assert.Equal(t, json.Number("0"), result["total"])
}

func TestSearch_KeepsLargeIntegersExact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":1,"elementList":[{"propertyCode":9007199254740993,"price":950.5}]}`))
	}))
	defer srv.Close()

	client := authenticateForTest(t, srv.URL, Token{"access_token": "t"})

	result, err := client.Search(context.Background(), SearchParams{
		Country:      "es",
		Operation:    OperationRent,
		PropertyType: PropertyTypeHomes,
		LocationID:   "0-EU-ES-28",
	})
	require.NoError(t, err)

	list, ok := result["elementList"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	item, ok := list[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, json.Number("9007199254740993"), item["propertyCode"])
	assert.Equal(t, json.Number("950.5"), item["price"])
}

func TestSearch_NonObjectBody(t *testing.T) {
	for _, body := range []string{`null`, `[1,2]`, `"text"`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		client := authenticateForTest(t, srv.URL, Token{"access_token": "t"})
		result, err := client.Search(context.Background(), SearchParams{
			Country:      "es",
			Operation:    OperationRent,
			PropertyType: PropertyTypeHomes,
			LocationID:   "0-EU-ES-28",
		})
		assert.ErrorContains(t, err, "failed to decode search response", body)
		assert.Nil(t, result, body)
		srv.Close()
	}
}

func TestSearch_ConcurrentUseOfOneClient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer shared", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":0,"numPage":` + r.PostForm.Get("numPage") + `}`))
	}))
	defer srv.Close()

	client := authenticateForTest(t, srv.URL, Token{"access_token": "shared"})

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	pages := make([]interface{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := client.Search(context.Background(), SearchParams{
				Country:      "es",
				Operation:    OperationRent,
				PropertyType: PropertyTypeHomes,
				LocationID:   "0-EU-ES-28",
				NumPage:      Ptr(i + 1),
			})
			errs[i] = err
			if err == nil {
				pages[i] = result["numPage"]
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(workers), hits.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, json.Number(strconv.Itoa(i+1)), pages[i])
	}
}

func newConfigForTest(srvURL string, timeout time.Duration) *config.Config {
	cfg := &config.Config{}
	cfg.Idealista.ClientID = "cfg-id"
	cfg.Idealista.ClientSecret = "cfg-secret"
	cfg.Idealista.BaseURL = srvURL + "/3.5"
	cfg.Idealista.TokenURL = srvURL + "/oauth/token"
	cfg.Idealista.Timeout = timeout
	cfg.Log.Level = "SILENT"
	return cfg
}

func TestAuthenticateFromConfig_SeparatesCachesByTimeout(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	_, err := AuthenticateFromConfig(ctx, newConfigForTest(srv.URL, 5*time.Second))
	require.NoError(t, err)
	_, err = AuthenticateFromConfig(ctx, newConfigForTest(srv.URL, 5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load())

	_, err = AuthenticateFromConfig(ctx, newConfigForTest(srv.URL, 7*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int32(2), tokenCalls.Load())
}
