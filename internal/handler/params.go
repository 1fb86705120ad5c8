package handler

import (
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/middleware"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// requireActor returns the authenticated actor or false after writing a 401
func requireActor(c echo.Context) (domain.Actor, bool, error) {
	actor := middleware.GetActor(c)
	if actor.ID == "" {
		return actor, false, NewUnauthorizedError(c, "Authentication required")
	}
	return actor, true, nil
}

// optionalDecimal parses s, treating "" as zero. The validator has already
// checked the format.
func optionalDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// optionalDay parses a YYYY-MM-DD day in loc, "" gives the zero time
func optionalDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return util.ParseDay(s, loc)
}

// optionalString returns nil for ""
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
