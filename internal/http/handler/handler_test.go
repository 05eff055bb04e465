package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/http/handler"
	"github.com/alaraf/fleet-finance/internal/jobs"
	"github.com/alaraf/fleet-finance/internal/repository"
	"github.com/alaraf/fleet-finance/internal/service"
	"github.com/alaraf/fleet-finance/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, time.April, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// ============================================================================
// Helpers
// ============================================================================

type handlers struct {
	payment     *handler.PaymentHandler
	delinquency *handler.DelinquencyHandler
	invoice     *handler.InvoiceHandler
	fleet       *handler.FleetHandler
}

func newHandlers(db *gorm.DB) handlers {
	logger := zap.NewNop()
	policies := config.NewStaticPolicyProvider(domain.DefaultPolicy())

	contracts := repository.NewContractRepository(db)
	invoices := repository.NewInvoiceRepository(db)
	payments := repository.NewPaymentRepository(db)

	paymentSvc := service.NewPaymentService(db, contracts, invoices, payments, policies, logger)
	paymentSvc.SetClock(fixedClock)

	delinquencySvc := service.NewDelinquencyService(contracts, invoices,
		repository.NewCustomerRepository(db),
		repository.NewViolationRepository(db),
		repository.NewLegalCaseRepository(db),
		nil, policies, logger)
	delinquencySvc.SetClock(fixedClock)

	cadenceSvc := service.NewCadenceService(db, contracts, invoices, repository.NewNumberSequenceRepository(db), logger)
	cadenceSvc.SetClock(fixedClock)

	reconcileSvc := service.NewReconciliationService(db, contracts, invoices, payments, logger)
	reconcileSvc.SetClock(fixedClock)

	occupancySvc := service.NewOccupancyService(contracts, repository.NewVehicleRepository(db), logger)
	occupancySvc.SetClock(fixedClock)

	return handlers{
		payment:     handler.NewPaymentHandler(paymentSvc, logger),
		delinquency: handler.NewDelinquencyHandler(delinquencySvc, logger),
		invoice:     handler.NewInvoiceHandler(cadenceSvc, reconcileSvc, logger),
		fleet:       handler.NewFleetHandler(occupancySvc, logger),
	}
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), target), rr.Body.String())
}

// ============================================================================
// Payments
// ============================================================================

func TestPaymentHandler_Record(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlers(db)

	customer := testutil.CreateTestCustomer(t, db, "Omar", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-1", testutil.Date(2024, time.January, 5), "1000")
	invoice := testutil.CreateTestInvoice(t, db, contract, "INV-1", testutil.Date(2024, time.March, 5), "1000", "0")

	t.Run("records a valid payment", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.payment.Record(rr, jsonRequest(t, http.MethodPost, "/payments", map[string]interface{}{
			"contractId":  contract.ID,
			"invoiceId":   invoice.ID,
			"amount":      "400",
			"paymentDate": "2024-04-09",
		}))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var resp handler.RecordPaymentResponse
		decode(t, rr, &resp)
		assert.Equal(t, contract.ID, resp.Payment.ContractID)
		assert.Equal(t, "2024-04-09", resp.Payment.PaymentDate)
		assert.True(t, resp.Payment.Amount.Equal(testutil.Money("400")))
		assert.True(t, resp.Validation.IsValid)
	})

	t.Run("blocked payment is 422 with the result", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.payment.Record(rr, jsonRequest(t, http.MethodPost, "/payments", map[string]interface{}{
			"contractId": contract.ID,
			"amount":     "0",
		}))

		require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
		var result map[string]interface{}
		decode(t, rr, &result)
		assert.Equal(t, true, result["isBlocked"])
	})

	t.Run("missing contract id fails validation", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.payment.Record(rr, jsonRequest(t, http.MethodPost, "/payments", map[string]interface{}{
			"amount": "100",
		}))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var apiErr domain.APIError
		decode(t, rr, &apiErr)
		assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
		assert.Contains(t, apiErr.Errors, "contractID")
	})

	t.Run("bad payment date format fails validation", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.payment.Record(rr, jsonRequest(t, http.MethodPost, "/payments", map[string]interface{}{
			"contractId":  contract.ID,
			"amount":      "100",
			"paymentDate": "09/04/2024",
		}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown contract is 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.payment.Record(rr, jsonRequest(t, http.MethodPost, "/payments", map[string]interface{}{
			"contractId": uuid.New(),
			"amount":     "100",
		}))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString("{"))
		h.payment.Record(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestPaymentHandler_Validate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlers(db)

	customer := testutil.CreateTestCustomer(t, db, "Lina", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-1", testutil.Date(2024, time.January, 5), "1000")

	rr := httptest.NewRecorder()
	h.payment.Validate(rr, jsonRequest(t, http.MethodPost, "/payments/validate", map[string]interface{}{
		"contractId": contract.ID,
		"amount":     "-5",
	}))

	require.Equal(t, http.StatusOK, rr.Code, "a blocked payment is a normal validation result")
	var result map[string]interface{}
	decode(t, rr, &result)
	assert.Equal(t, true, result["isBlocked"])

	var count int64
	require.NoError(t, db.Model(&domain.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

// ============================================================================
// Delinquency
// ============================================================================

func TestDelinquencyHandler_GetContractAssessment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlers(db)

	customer := testutil.CreateTestCustomer(t, db, "Karim", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-1", testutil.Date(2024, time.January, 5), "1000")
	testutil.CreateTestInvoice(t, db, contract, "INV-JAN", testutil.Date(2024, time.January, 5), "1000", "0")

	t.Run("assessment of an overdue contract", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/contracts/x/delinquency", nil), "id", contract.ID.String())
		h.delinquency.GetContractAssessment(rr, req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var dto domain.DelinquencyAssessmentDTO
		decode(t, rr, &dto)
		assert.Equal(t, "C-1", dto.ContractNumber)
		assert.Equal(t, "Karim", dto.CustomerName)
		assert.True(t, dto.IsDelinquent)
		assert.Equal(t, 96, dto.DaysOverdue)
		assert.Equal(t, "2024-04-10", dto.AssessedOn)
		require.Len(t, dto.Penalties, 1)
		assert.Equal(t, "INV-JAN", dto.Penalties[0].InvoiceNumber)
		assert.True(t, dto.Penalties[0].CapApplied)
	})

	t.Run("invalid id is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/contracts/x/delinquency", nil), "id", "not-a-uuid")
		h.delinquency.GetContractAssessment(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown contract is 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/contracts/x/delinquency", nil), "id", uuid.New().String())
		h.delinquency.GetContractAssessment(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDelinquencyHandler_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlers(db)

	customer := testutil.CreateTestCustomer(t, db, "Sami", "5000")
	late := testutil.CreateTestContract(t, db, customer, "C-LATE", testutil.Date(2024, time.January, 5), "1000")
	testutil.CreateTestInvoice(t, db, late, "INV-1", testutil.Date(2024, time.February, 5), "1000", "0")
	recent := testutil.CreateTestContract(t, db, customer, "C-RECENT", testutil.Date(2024, time.January, 5), "1000")
	testutil.CreateTestInvoice(t, db, recent, "INV-2", testutil.Date(2024, time.April, 5), "1000", "0")

	rr := httptest.NewRecorder()
	h.delinquency.List(rr, httptest.NewRequest(http.MethodGet, "/delinquency?minDaysOverdue=30", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var dtos []domain.DelinquencyAssessmentDTO
	decode(t, rr, &dtos)
	require.Len(t, dtos, 1)
	assert.Equal(t, "C-LATE", dtos[0].ContractNumber)

	rr = httptest.NewRecorder()
	h.delinquency.List(rr, httptest.NewRequest(http.MethodGet, "/delinquency?minDaysOverdue=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDelinquencyHandler_PreviewPenalty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlers(db)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"valid", "?daysOverdue=10", http.StatusOK},
		{"zero", "?daysOverdue=0", http.StatusOK},
		{"missing", "", http.StatusBadRequest},
		{"negative", "?daysOverdue=-1", http.StatusBadRequest},
		{"not a number", "?daysOverdue=ten", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.delinquency.PreviewPenalty(rr, httptest.NewRequest(http.MethodGet, "/penalties/preview"+tt.query, nil))
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}

	rr := httptest.NewRecorder()
	h.delinquency.PreviewPenalty(rr, httptest.NewRequest(http.MethodGet, "/penalties/preview?daysOverdue=10", nil))
	var breakdown map[string]interface{}
	decode(t, rr, &breakdown)
	assert.Equal(t, float64(10), breakdown["daysOverdue"])
}

// ============================================================================
// Invoices
// ============================================================================

func TestInvoiceHandler_GenerateAndMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlers(db)

	customer := testutil.CreateTestCustomer(t, db, "Nour", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-1", testutil.Date(2024, time.February, 10), "1000")

	missing := func() []map[string]interface{} {
		rr := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/contracts/x/invoices/missing", nil), "id", contract.ID.String())
		h.invoice.Missing(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var candidates []map[string]interface{}
		decode(t, rr, &candidates)
		return candidates
	}

	assert.Len(t, missing(), 3, "February through April")

	rr := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/contracts/x/invoices/generate", nil), "id", contract.ID.String())
	h.invoice.Generate(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created []domain.InvoiceDTO
	decode(t, rr, &created)
	require.Len(t, created, 3)
	assert.Equal(t, "2024-02", created[0].BillingPeriod)
	assert.Equal(t, "2024-04-10", created[2].DueDate)
	assert.Equal(t, domain.InvoicePaymentUnpaid, created[0].PaymentStatus)

	assert.Empty(t, missing())

	rr = httptest.NewRecorder()
	req = withURLParam(httptest.NewRequest(http.MethodPost, "/contracts/x/invoices/generate", nil), "id", contract.ID.String())
	h.invoice.Generate(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &created)
	assert.Empty(t, created)
}

func TestInvoiceHandler_Generate_Errors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlers(db)

	customer := testutil.CreateTestCustomer(t, db, "Rami", "5000")
	cancelled := testutil.CreateTestContract(t, db, customer, "C-X", testutil.Date(2024, time.January, 5), "1000",
		testutil.WithStatus(domain.ContractStatusCancelled))
	unpriced := testutil.CreateTestContract(t, db, customer, "C-0", testutil.Date(2024, time.January, 5), "0")

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"not billable", cancelled.ID.String(), http.StatusConflict},
		{"no monthly amount", unpriced.ID.String(), http.StatusUnprocessableEntity},
		{"unknown", uuid.New().String(), http.StatusNotFound},
		{"malformed", "abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := withURLParam(httptest.NewRequest(http.MethodPost, "/contracts/x/invoices/generate", nil), "id", tt.id)
			h.invoice.Generate(rr, req)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestInvoiceHandler_Reconcile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlers(db)

	customer := testutil.CreateTestCustomer(t, db, "Dina", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-1", testutil.Date(2024, time.March, 5), "1000")
	first := testutil.CreateTestInvoice(t, db, contract, "INV-A", testutil.Date(2024, time.March, 5), "1000", "0")
	second := testutil.CreateTestInvoice(t, db, contract, "INV-B", testutil.Date(2024, time.March, 20), "1000", "0")
	require.NoError(t, db.Model(&domain.Invoice{}).Where("id = ?", first.ID).
		UpdateColumn("created_at", testNow.Add(-2*time.Hour)).Error)
	require.NoError(t, db.Model(&domain.Invoice{}).Where("id = ?", second.ID).
		UpdateColumn("created_at", testNow.Add(-time.Hour)).Error)

	rr := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/contracts/x/invoices/reconcile?dryRun=true", nil), "id", contract.ID.String())
	h.invoice.Reconcile(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report domain.BatchReport
	decode(t, rr, &report)
	assert.True(t, report.DryRun)
	require.Len(t, report.Results, 1)
	assert.Equal(t, domain.OutcomeSuccess, report.Results[0].Outcome)

	var inv domain.Invoice
	require.NoError(t, db.First(&inv, "id = ?", second.ID).Error)
	assert.Equal(t, domain.InvoiceStatusIssued, inv.Status, "dry run writes nothing")

	rr = httptest.NewRecorder()
	req = withURLParam(httptest.NewRequest(http.MethodPost, "/contracts/x/invoices/reconcile", nil), "id", contract.ID.String())
	h.invoice.Reconcile(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.NoError(t, db.First(&inv, "id = ?", second.ID).Error)
	assert.Equal(t, domain.InvoiceStatusCancelled, inv.Status)
}

// ============================================================================
// Fleet
// ============================================================================

func TestFleetHandler_Sync(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlers(db)

	customer := testutil.CreateTestCustomer(t, db, "Tarek", "5000")
	vehicle := testutil.CreateTestVehicle(t, db, "AB-123", domain.VehicleStatusAvailable)
	testutil.CreateTestContract(t, db, customer, "C-1", testutil.Date(2024, time.January, 5), "1000",
		testutil.WithVehicle(vehicle.ID), testutil.WithPlate("AB-123"))

	rr := httptest.NewRecorder()
	h.fleet.Sync(rr, httptest.NewRequest(http.MethodPost, "/fleet/sync?dryRun=true", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp handler.FleetSyncResponse
	decode(t, rr, &resp)
	require.Len(t, resp.Plan.StatusChanges, 1)
	assert.Equal(t, domain.VehicleStatusRented, resp.Plan.StatusChanges[0].NewStatus)
	assert.True(t, resp.Report.DryRun)

	var v domain.Vehicle
	require.NoError(t, db.First(&v, "id = ?", vehicle.ID).Error)
	assert.Equal(t, domain.VehicleStatusAvailable, v.Status)

	rr = httptest.NewRecorder()
	h.fleet.Sync(rr, httptest.NewRequest(http.MethodPost, "/fleet/sync", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, db.First(&v, "id = ?", vehicle.ID).Error)
	assert.Equal(t, domain.VehicleStatusRented, v.Status)
}

// ============================================================================
// Jobs
// ============================================================================

type fakeRunner struct {
	err    error
	dryRun bool
}

func (f *fakeRunner) RunNow(ctx context.Context, name string, dryRun bool) (*domain.BatchReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.dryRun = dryRun
	report := domain.NewBatchReport(name, testNow)
	report.DryRun = dryRun
	return report, nil
}

func (f *fakeRunner) Names() []string { return []string{jobs.InvoiceCadenceJob} }

func TestJobHandler_Run(t *testing.T) {
	runs := repository.NewJobRunRepository(testutil.SetupTestDB(t))

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"runs", nil, http.StatusOK},
		{"unknown", jobs.ErrUnknownJob, http.StatusNotFound},
		{"busy", jobs.ErrJobRunning, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.err}
			h := handler.NewJobHandler(runner, runs, zap.NewNop())

			rr := httptest.NewRecorder()
			req := withURLParam(httptest.NewRequest(http.MethodPost, "/jobs/x/run?dryRun=true", nil), "name", jobs.InvoiceCadenceJob)
			h.Run(rr, req)
			assert.Equal(t, tt.status, rr.Code)
			if tt.err == nil {
				assert.True(t, runner.dryRun)
			}
		})
	}
}

func TestJobHandler_ListRuns(t *testing.T) {
	db := testutil.SetupTestDB(t)
	runs := repository.NewJobRunRepository(db)
	ctx := context.Background()

	require.NoError(t, runs.Create(ctx, &domain.JobRun{
		JobName: jobs.InvoiceCadenceJob, StartedAt: testNow, FinishedAt: testNow.Add(time.Second), Succeeded: 3,
	}))
	require.NoError(t, runs.Create(ctx, &domain.JobRun{
		JobName: jobs.VehicleOccupancyJob, StartedAt: testNow.Add(time.Minute), FinishedAt: testNow.Add(2 * time.Minute), Failed: 1,
	}))

	h := handler.NewJobHandler(&fakeRunner{}, runs, zap.NewNop())

	rr := httptest.NewRecorder()
	h.ListRuns(rr, httptest.NewRequest(http.MethodGet, "/jobs/runs", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var all []domain.JobRunDTO
	decode(t, rr, &all)
	require.Len(t, all, 2)
	assert.Equal(t, jobs.VehicleOccupancyJob, all[0].JobName, "newest first")

	rr = httptest.NewRecorder()
	h.ListRuns(rr, httptest.NewRequest(http.MethodGet, "/jobs/runs?job=invoice_cadence", nil))
	var filtered []domain.JobRunDTO
	decode(t, rr, &filtered)
	require.Len(t, filtered, 1)
	assert.Equal(t, 3, filtered[0].Succeeded)
}

// ============================================================================
// Health
// ============================================================================

func TestHealthHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)

	t.Run("live", func(t *testing.T) {
		h := handler.NewHealthHandler(db, nil, zap.NewNop())
		rr := httptest.NewRecorder()
		h.Live(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("database", func(t *testing.T) {
		h := handler.NewHealthHandler(db, nil, zap.NewNop())
		rr := httptest.NewRecorder()
		h.Database(rr, httptest.NewRequest(http.MethodGet, "/health/db", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("ready with healthy dependency", func(t *testing.T) {
		h := handler.NewHealthHandler(db, map[string]handler.Pinger{
			"redis": handler.PingFunc(func(ctx context.Context) error { return nil }),
		}, zap.NewNop())
		rr := httptest.NewRecorder()
		h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp domain.HealthResponse
		decode(t, rr, &resp)
		assert.Equal(t, "healthy", resp.Checks["redis"])
	})

	t.Run("ready with failing dependency", func(t *testing.T) {
		h := handler.NewHealthHandler(db, map[string]handler.Pinger{
			"warehouse": handler.PingFunc(func(ctx context.Context) error { return errors.New("unreachable") }),
		}, zap.NewNop())
		rr := httptest.NewRecorder()
		h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)

		var resp domain.HealthResponse
		decode(t, rr, &resp)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "unreachable", resp.Checks["warehouse"])
	})
}
