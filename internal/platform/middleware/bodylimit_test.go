package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func bodyLimitServer(limit string) *echo.Echo {
	e := echo.New()
	e.Use(BodyLimit(limit))
	e.POST("/", func(c echo.Context) error {
		buf := make([]byte, 4096)
		for {
			if _, err := c.Request().Body.Read(buf); err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					return he
				}
				break
			}
		}
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestBodyLimit_UnderLimit(t *testing.T) {
	e := bodyLimitServer("1K")
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 512)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestBodyLimit_ContentLengthRejected(t *testing.T) {
	e := bodyLimitServer("1K")
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 2048)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestBodyLimit_StreamRejectedWithoutContentLength(t *testing.T) {
	e := bodyLimitServer("1K")
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 2048)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestParseSizeLimit(t *testing.T) {
	cases := map[string]int64{
		"1K":    1 << 10,
		"1M":    1 << 20,
		"2G":    2 << 30,
		"512":   512,
		"":      1 << 20,
		"bogus": 1 << 20,
		" 64K ": 64 << 10,
	}
	for in, want := range cases {
		if got := parseSizeLimit(in); got != want {
			t.Errorf("parseSizeLimit(%q) = %d, want %d", in, got, want)
		}
	}
}
