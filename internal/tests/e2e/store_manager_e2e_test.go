// Package e2e provides end-to-end tests for the store manager.
// The suite starts PostgreSQL and NATS with testcontainers-go, wires the real application
// handler into an httptest.Server and drives it over HTTP.
//
// Each test starts from empty tables. Coverage includes product CRUD with validation,
// the sale workflow with its stock effects, concurrent sales against the same stock and
// the sale events published to JetStream.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/storemanager/internal/app"
	"github.com/abgdnv/storemanager/internal/service"
	pkgconfig "github.com/abgdnv/storemanager/pkg/config"
	"github.com/abgdnv/storemanager/pkg/messaging"
	"github.com/abgdnv/storemanager/pkg/messaging/events"
	pnats "github.com/abgdnv/storemanager/pkg/nats"
	"github.com/jackc/pgx/v5/pgxpool"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// skipE2ETests is the environment variable that can be set to skip E2E tests.
const skipE2ETests = "STORE_SVC_SKIP_E2E_TESTS"

const (
	productURL = "/products"
	saleURL    = "/sales"
)

// StoreManagerE2ESuite is a test suite for end-to-end tests of the store manager.
type StoreManagerE2ESuite struct {
	suite.Suite                               // Embedding testify's suite for structured testing
	pgContainer   *postgres.PostgresContainer // PostgreSQL container for E2E tests
	natsContainer *nats.NATSContainer         // NATS container receiving sale events
	dbPool        *pgxpool.Pool               // Pool used to reset tables between tests
	closeStores   func()                      // Releases the application's own pool
	nc            *natsgo.Conn                // NATS connection used by the publisher
	js            jetstream.JetStream         // JetStream context for reading published events
	server        *httptest.Server            // HTTP server for the store manager
	httpClient    *http.Client                // HTTP client for making requests to the server
	logger        *slog.Logger                // Logger for the test suite
	ctx           context.Context             // Context for the test suite
}

// SetupSuite starts the containers, applies migrations through the application's store factory and starts the server.
func (s *StoreManagerE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// 1. Start a PostgreSQL container. Wait for the container to be ready.
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("storemanager"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")
	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	// 2. Open the stores the way the service does, migrations included
	stores, closeStores, err := app.OpenStores(s.ctx, pkgconfig.DatabaseConfig{
		Driver:  pkgconfig.DriverPostgres,
		URL:     connStr,
		Timeout: 30 * time.Second,
		Migrate: true,
	})
	require.NoError(s.T(), err, "Failed to open stores")
	s.closeStores = closeStores

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgx pool")

	// 3. Start NATS and make sure the sales stream exists
	s.natsContainer, err = nats.Run(s.ctx, "nats:2.11.6-alpine")
	require.NoError(s.T(), err, "Failed to run NATS container")
	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	s.nc, err = pnats.NewClient(natsURL, 5*time.Second)
	require.NoError(s.T(), err, "Failed to connect to NATS")
	s.js, err = pnats.NewJetStreamContext(s.nc)
	require.NoError(s.T(), err, "Failed to get JetStream context")
	require.NoError(s.T(), pnats.EnsureStream(s.ctx, s.js, messaging.SalesStream, messaging.SalesSubjects))

	// 4. Wire the application
	deps := app.SetupDependencies(stores, pnats.NewNatsPublisher(s.js), s.logger)
	handler := app.SetupHttpHandler(deps, app.HttpOptions{MetricsPath: "/metrics", Registry: prometheus.NewRegistry()})

	s.server = httptest.NewServer(handler)
	s.httpClient = s.server.Client()
	s.logger.Info("E2E test server started", "url", s.server.URL)
}

// TearDownSuite cleans up resources after all tests in the suite have run.
func (s *StoreManagerE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.closeStores != nil {
		s.closeStores()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.nc != nil {
		s.nc.Close()
	}
	for _, c := range []testcontainers.Container{s.pgContainer, s.natsContainer} {
		if err := testcontainers.TerminateContainer(c); err != nil {
			s.logger.Warn("Failed to terminate container", "error", err)
		}
	}
}

// SetupTest empties the tables and the event stream before each test.
func (s *StoreManagerE2ESuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE sales_products, sales, products RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate tables")
	stream, err := s.js.Stream(s.ctx, messaging.SalesStream)
	require.NoError(s.T(), err)
	require.NoError(s.T(), stream.Purge(s.ctx))
}

func TestStoreManagerE2E(t *testing.T) {
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping E2E tests based on " + skipE2ETests + " env var")
	}
	suite.Run(t, new(StoreManagerE2ESuite))
}

func (s *StoreManagerE2ESuite) TestProducts() {
	testCases := []struct {
		name            string
		payload         any
		expectedStatus  int
		expectedMessage string
	}{
		{name: "created", payload: productPayload{Name: "Martelo de Thor", Quantity: ptr(10)}, expectedStatus: http.StatusCreated},
		{name: "missing name", payload: productPayload{Quantity: ptr(10)}, expectedStatus: http.StatusBadRequest, expectedMessage: `"name" is required`},
		{name: "short name", payload: productPayload{Name: "Thor", Quantity: ptr(10)}, expectedStatus: http.StatusUnprocessableEntity, expectedMessage: `"name" length must be at least 5 characters long`},
		{name: "missing quantity", payload: productPayload{Name: "Martelo de Thor"}, expectedStatus: http.StatusBadRequest, expectedMessage: `"quantity" is required`},
		{name: "zero quantity", payload: productPayload{Name: "Martelo de Thor", Quantity: ptr(0)}, expectedStatus: http.StatusUnprocessableEntity, expectedMessage: `"quantity" must be greater than or equal to 1`},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			body, status := s.doRequest(http.MethodPost, productURL, tc.payload)
			s.Equal(tc.expectedStatus, status)
			if tc.expectedMessage != "" {
				s.Equal(tc.expectedMessage, s.decodeMessage(body))
			}
		})
	}

	// duplicate name
	body, status := s.doRequest(http.MethodPost, productURL, productPayload{Name: "Martelo de Thor", Quantity: ptr(1)})
	s.Equal(http.StatusConflict, status)
	s.Equal("Product already exists", s.decodeMessage(body))

	// update and read back
	updated, status := s.doAndDecodeProduct(http.MethodPut, productURL+"/1", productPayload{Name: "Martelo do Batman", Quantity: ptr(3)})
	s.Equal(http.StatusOK, status)
	s.Equal(service.ProductDto{ID: 1, Name: "Martelo do Batman", Quantity: 3}, updated)
	found, status := s.doAndDecodeProduct(http.MethodGet, productURL+"/1", nil)
	s.Equal(http.StatusOK, status)
	s.Equal(updated, found)

	// delete
	_, status = s.doRequest(http.MethodDelete, productURL+"/1", nil)
	s.Equal(http.StatusNoContent, status)
	body, status = s.doRequest(http.MethodGet, productURL+"/1", nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("Product not found", s.decodeMessage(body))
}

func (s *StoreManagerE2ESuite) TestSaleLifecycle() {
	// given
	s.createProduct("Martelo de Thor", 10)
	s.createProduct("Traje de encolhimento", 20)

	// when
	var created service.SaleCreatedDto
	body, status := s.doRequest(http.MethodPost, saleURL, []saleItemPayload{{ProductID: 1, Quantity: 5}, {ProductID: 2, Quantity: 20}})

	// then
	s.Require().Equal(http.StatusCreated, status, string(body))
	s.Require().NoError(json.Unmarshal(body, &created))
	s.Equal(int64(1), created.ID)
	s.Equal([]service.SaleItemDto{{ProductID: 1, Quantity: 5}, {ProductID: 2, Quantity: 20}}, created.ItemsSold)
	s.Equal(int32(5), s.stock(1))
	s.Equal(int32(0), s.stock(2))

	var lines []service.SaleLineDto
	body, status = s.doRequest(http.MethodGet, fmt.Sprintf("%s/%d", saleURL, created.ID), nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NoError(json.Unmarshal(body, &lines))
	s.Require().Len(lines, 2)
	s.NotContains(string(body), "saleId")

	var all []service.SaleDto
	body, status = s.doRequest(http.MethodGet, saleURL, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NoError(json.Unmarshal(body, &all))
	s.Len(all, 2)

	// rejected: no mutation
	body, status = s.doRequest(http.MethodPost, saleURL, []saleItemPayload{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}})
	s.Equal(http.StatusUnprocessableEntity, status)
	s.Equal("Such amount is not permitted to sell", s.decodeMessage(body))
	s.Equal(int32(5), s.stock(1))

	// unknown product
	body, status = s.doRequest(http.MethodPost, saleURL, []saleItemPayload{{ProductID: 99, Quantity: 1}})
	s.Equal(http.StatusNotFound, status)
	s.Equal("Product not found", s.decodeMessage(body))

	// update: no restock
	_, status = s.doRequest(http.MethodPut, fmt.Sprintf("%s/%d", saleURL, created.ID), []saleItemPayload{{ProductID: 1, Quantity: 1}})
	s.Equal(http.StatusOK, status)
	s.Equal(int32(5), s.stock(1))

	// delete: restores stored quantities
	_, status = s.doRequest(http.MethodDelete, fmt.Sprintf("%s/%d", saleURL, created.ID), nil)
	s.Equal(http.StatusNoContent, status)
	s.Equal(int32(6), s.stock(1))
	s.Equal(int32(20), s.stock(2))
	body, status = s.doRequest(http.MethodDelete, fmt.Sprintf("%s/%d", saleURL, created.ID), nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("Sale not found", s.decodeMessage(body))

	// events
	created1 := s.nextEvent(messaging.SalesCreatedSubject)
	var createdEvent events.SaleCreatedEvent
	s.Require().NoError(json.Unmarshal(created1, &createdEvent))
	s.Equal(created.ID, createdEvent.SaleID)

	deleted := s.nextEvent(messaging.SalesDeletedSubject)
	var deletedEvent events.SaleDeletedEvent
	s.Require().NoError(json.Unmarshal(deleted, &deletedEvent))
	s.ElementsMatch([]events.SaleItem{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 20}}, deletedEvent.ItemsRestored)
}

func (s *StoreManagerE2ESuite) TestConcurrentSalesNeverOversell() {
	// given
	const stock, buyers = 5, 20
	s.createProduct("Martelo de Thor", stock)

	// when
	var mu sync.Mutex
	statuses := make(map[int]int)
	var wg sync.WaitGroup
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, status := s.doRequest(http.MethodPost, saleURL, []saleItemPayload{{ProductID: 1, Quantity: 1}})
			mu.Lock()
			statuses[status]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	// then
	s.Equal(stock, statuses[http.StatusCreated])
	s.Equal(buyers-stock, statuses[http.StatusUnprocessableEntity])
	s.Equal(int32(0), s.stock(1))
}

// --------------------------------------------------------------------------
// ---------- Payload structures and Helper methods for E2E tests -----------
// --------------------------------------------------------------------------

type productPayload struct {
	Name     string `json:"name,omitempty"`
	Quantity *int32 `json:"quantity,omitempty"`
}

type saleItemPayload struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

func ptr(v int32) *int32 {
	return &v
}

func (s *StoreManagerE2ESuite) createProduct(name string, quantity int32) service.ProductDto {
	s.T().Helper()
	product, status := s.doAndDecodeProduct(http.MethodPost, productURL, productPayload{Name: name, Quantity: &quantity})
	s.Require().Equal(http.StatusCreated, status)
	return product
}

func (s *StoreManagerE2ESuite) stock(id int64) int32 {
	s.T().Helper()
	product, status := s.doAndDecodeProduct(http.MethodGet, fmt.Sprintf("%s/%d", productURL, id), nil)
	s.Require().Equal(http.StatusOK, status)
	return product.Quantity
}

// nextEvent reads the next message on subject from the sales stream.
func (s *StoreManagerE2ESuite) nextEvent(subject string) []byte {
	s.T().Helper()
	consumer, err := s.js.OrderedConsumer(s.ctx, messaging.SalesStream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
	})
	s.Require().NoError(err)
	msg, err := consumer.Next(jetstream.FetchMaxWait(5 * time.Second))
	s.Require().NoError(err, "no event on %s", subject)
	return msg.Data()
}

func (s *StoreManagerE2ESuite) doAndDecodeProduct(method, path string, payload any) (service.ProductDto, int) {
	s.T().Helper()
	body, status := s.doRequest(method, path, payload)
	var product service.ProductDto
	if status == http.StatusOK || status == http.StatusCreated {
		s.Require().NoError(json.Unmarshal(body, &product), "Failed to decode product")
	}
	return product, status
}

func (s *StoreManagerE2ESuite) decodeMessage(body []byte) string {
	s.T().Helper()
	var resp struct {
		Message string `json:"message"`
	}
	s.Require().NoError(json.Unmarshal(body, &resp), "Failed to decode error body")
	return resp.Message
}

// doRequest makes an HTTP request to the server and returns the response body and status code.
func (s *StoreManagerE2ESuite) doRequest(method, path string, payload any) ([]byte, int) {
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		require.NoError(s.T(), err)
		body = bytes.NewBuffer(payloadBytes)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, body)
	require.NoError(s.T(), err, "Failed to create HTTP request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err, "HTTP request failed")
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err, "Failed to read response body")
	return bodyBytes, resp.StatusCode
}
