package util

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestQueryUint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query  string
		want   uint
		wantOK bool
	}{
		{"", 0, true},
		{"?programId=7", 7, true},
		{"?programId=abc", 0, false},
		{"?programId=0", 0, false},
		{"?programId=-3", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/api/attempts/user"+tc.query, nil)
			got, ok := QueryUint(c, "programId")
			if got != tc.want || ok != tc.wantOK {
				t.Fatalf("QueryUint = %d, %v; want %d, %v", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=0&limit=500", nil)
	page, limit := Pagination(c, 10, 100)
	if page != 1 || limit != 100 {
		t.Fatalf("Pagination = %d, %d", page, limit)
	}
}
