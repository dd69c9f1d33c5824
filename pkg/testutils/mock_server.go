package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
)

// MockServerConfig holds configuration for creating mock servers
type MockServerConfig struct {
	ResponseBody    string
	StatusCode      int
	Headers         map[string]string
	ValidateRequest func(r *http.Request) error
}

// DefaultMockServerConfig returns a default configuration
func DefaultMockServerConfig(responseBody string) MockServerConfig {
	return MockServerConfig{
		ResponseBody: responseBody,
		StatusCode:   http.StatusOK,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// CreateMockServer creates a mock HTTP server with the given configuration
func CreateMockServer(config MockServerConfig) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.ValidateRequest != nil {
			if err := config.ValidateRequest(r); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		for key, value := range config.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(config.StatusCode)

		w.Write([]byte(config.ResponseBody))
	}))
}

// CreateErrorServer creates a mock server that returns an error
func CreateErrorServer(statusCode int, errorMessage string) *httptest.Server {
	return CreateMockServer(MockServerConfig{
		ResponseBody: errorMessage,
		StatusCode:   statusCode,
		Headers:      map[string]string{},
	})
}

// CreateSequenceServer returns a server that replays the given status
// codes in order, repeating the last one once the sequence is exhausted.
// The request count can be read through the returned counter.
func CreateSequenceServer(statuses []int, bodies []string) (*httptest.Server, *int) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := calls
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statuses[idx])
		if idx < len(bodies) {
			w.Write([]byte(bodies[idx]))
		}
	}))
	return server, &calls
}

// ActivityListResponse marshals activities for the data API mock.
func ActivityListResponse(activities interface{}) string {
	data, err := json.Marshal(activities)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// OrderAcceptedResponse is the CLOB success payload.
func OrderAcceptedResponse(orderID string) string {
	return `{"success": true, "orderID": "` + orderID + `"}`
}

// OrderRejectedResponse is a CLOB business-level rejection.
func OrderRejectedResponse(message string) string {
	return `{"success": false, "errorMsg": "` + message + `"}`
}
