package dividends

import (
	"fmt"
	"testing"

	divsvc "sacco-backend/internal/application/dividends"
	"sacco-backend/internal/application/ledger"
	"sacco-backend/internal/domain"
	"sacco-backend/internal/pkg/constants"
	"sacco-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*fiber.App, *gorm.DB) {
	db := testutil.NewDB(t)
	h := &Handlers{Service: divsvc.NewService(db, ledger.NewService(db, 3), "USD")}
	app := testutil.NewApp()
	g := app.Group("/dividends", testutil.AsUser(constants.Admin, 0))
	g.Post("/calculate", h.Calculate)
	g.Post("/", h.CreateDividend)
	g.Get("/", h.ListDividends)
	g.Get("/:id", h.GetDividend)
	g.Put("/:id", h.UpdateDividend)
	g.Delete("/:id", h.DeleteDividend)
	g.Post("/:id/distribute", h.Distribute)
	g.Get("/:id/payouts", h.Payouts)
	return app, db
}

func TestCalculate(t *testing.T) {
	app, db := setup(t)
	testutil.CreateShareholder(t, db, "Alem", testutil.WithShares("100"))
	testutil.CreateShareholder(t, db, "Bekele", testutil.WithShares("300"))

	resp, env := testutil.Do(t, app, "POST", "/dividends/calculate", fiber.Map{
		"year": 2025, "month": 1, "total_profit": "100000", "dividend_rate": "10",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error.Message)
	var calc divsvc.Calculation
	testutil.DecodeData(t, env, &calc)
	assert.True(t, calc.TotalDividendAmount.Equal(testutil.D("10000")))
	require.Len(t, calc.Shareholders, 2)
	assert.True(t, calc.Shareholders[0].DividendAmount.Equal(testutil.D("7500")))

	resp, env = testutil.Do(t, app, "POST", "/dividends/calculate", fiber.Map{
		"year": 2025, "month": 13, "total_profit": "100", "dividend_rate": "10",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Month must be between 1 and 12", env.Error.Message)
}

func TestDeclareAndDistribute(t *testing.T) {
	app, db := setup(t)
	a := testutil.CreateShareholder(t, db, "Alem", testutil.WithShares("100"))
	b := testutil.CreateShareholder(t, db, "Bekele", testutil.WithShares("300"))

	resp, env := testutil.Do(t, app, "POST", "/dividends", fiber.Map{
		"year": 2025, "month": 1, "total_profit": "100000", "dividend_rate": "10",
		"distribution_date": "2025-02-01",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error.Message)
	var d domain.Dividend
	testutil.DecodeData(t, env, &d)

	resp, env = testutil.Do(t, app, "POST", "/dividends", fiber.Map{
		"year": 2025, "month": 1, "total_profit": "5", "dividend_rate": "10",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Dividend for January 2025 already exists", env.Error.Message)

	resp, env = testutil.Do(t, app, "POST", fmt.Sprintf("/dividends/%d/distribute", d.DividendID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error.Message)
	assert.Equal(t, "Distributed $10,000.00 to 2 shareholders for January 2025", env.Message)
	assert.True(t, testutil.Reload(t, db, a.ShareholderID).CurrentBalance.Equal(testutil.D("2500")))
	assert.True(t, testutil.Reload(t, db, b.ShareholderID).CurrentBalance.Equal(testutil.D("7500")))

	resp, _ = testutil.Do(t, app, "POST", fmt.Sprintf("/dividends/%d/distribute", d.DividendID), nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.True(t, testutil.Reload(t, db, a.ShareholderID).CurrentBalance.Equal(testutil.D("2500")))

	resp, env = testutil.Do(t, app, "GET", fmt.Sprintf("/dividends/%d/payouts", d.DividendID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var payouts []domain.LedgerEntry
	testutil.DecodeData(t, env, &payouts)
	assert.Len(t, payouts, 2)

	resp, _ = testutil.Do(t, app, "PUT", fmt.Sprintf("/dividends/%d", d.DividendID), fiber.Map{
		"year": 2025, "month": 1, "total_profit": "1", "dividend_rate": "1",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, env = testutil.Do(t, app, "DELETE", fmt.Sprintf("/dividends/%d", d.DividendID), nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Cannot delete distributed dividend", env.Error.Message)
}

func TestDistribute_NoRecipients(t *testing.T) {
	app, _ := setup(t)
	_, env := testutil.Do(t, app, "POST", "/dividends", fiber.Map{
		"year": 2025, "month": 3, "total_profit": "1000", "dividend_rate": "10",
	})
	var d domain.Dividend
	testutil.DecodeData(t, env, &d)

	resp, env := testutil.Do(t, app, "POST", fmt.Sprintf("/dividends/%d/distribute", d.DividendID), nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "No active shareholders found", env.Error.Message)
}

func TestListDividends(t *testing.T) {
	app, _ := setup(t)
	for _, m := range []int{1, 2} {
		testutil.Do(t, app, "POST", "/dividends", fiber.Map{"year": 2024, "month": m, "total_profit": "10", "dividend_rate": "5"})
	}
	testutil.Do(t, app, "POST", "/dividends", fiber.Map{"year": 2025, "month": 1, "total_profit": "10", "dividend_rate": "5"})

	resp, env := testutil.Do(t, app, "GET", "/dividends?year=2024", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list []domain.Dividend
	testutil.DecodeData(t, env, &list)
	assert.Len(t, list, 2)

	resp, _ = testutil.Do(t, app, "GET", "/dividends?year=last", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
