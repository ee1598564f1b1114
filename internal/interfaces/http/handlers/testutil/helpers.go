// Package testutil builds gin contexts for handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewTestContext returns a context for a request to path. A non-nil body is
// sent as JSON.
func NewTestContext(method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	var payload io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		payload = bytes.NewReader(raw)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, payload)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, w
}

// SetAuthContext stores what the auth middleware would after verifying a
// token. An empty organization means an unscoped operator.
func SetAuthContext(c *gin.Context, actor, role, organizationID string) {
	c.Set(constants.ContextKeyUserID, actor)
	c.Set(constants.ContextKeyUserRole, role)
	if organizationID != "" {
		c.Set(constants.ContextKeyOrganizationID, organizationID)
	}
}

func SetURLParam(c *gin.Context, key, value string) {
	c.Params = append(c.Params, gin.Param{Key: key, Value: value})
}

func SetQueryParams(c *gin.Context, params map[string]string) {
	q := make(url.Values, len(params))
	for k, v := range params {
		q.Set(k, v)
	}
	c.Request.URL.RawQuery = q.Encode()
}

// APIResponse is utils.APIResponse with the payload left undecoded.
type APIResponse struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data,omitempty"`
	Error   *utils.ErrorInfo `json:"error,omitempty"`
	Message string           `json:"message,omitempty"`
}

// DecodeAPIResponse reads the envelope and, when target is set, its data.
func DecodeAPIResponse(w *httptest.ResponseRecorder, target any) (*APIResponse, error) {
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		return nil, err
	}
	if target == nil || len(resp.Data) == 0 {
		return &resp, nil
	}
	if err := json.Unmarshal(resp.Data, target); err != nil {
		return nil, err
	}
	return &resp, nil
}
