package response

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSuccess(t *testing.T) {
	resp := Success(map[string]string{"name": "test"})

	if !resp.Success {
		t.Error("Expected success to be true")
	}
	if resp.Data == nil {
		t.Error("Expected data to be set")
	}
	if resp.Error != nil {
		t.Error("Expected error to be nil")
	}
	if resp.Status() != http.StatusOK {
		t.Errorf("Status() = %d, want %d", resp.Status(), http.StatusOK)
	}
}

func TestSuccess_JSONFormat(t *testing.T) {
	jsonBytes, err := json.Marshal(Success(map[string]string{"id": "123"}))
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if parsed["success"] != true {
		t.Errorf("Expected success=true, got %v", parsed["success"])
	}
	if _, ok := parsed["error"]; ok {
		t.Error("Expected error field to be omitted")
	}
	if _, ok := parsed["meta"]; ok {
		t.Error("Expected meta field to be omitted")
	}
}

func TestError(t *testing.T) {
	resp := Error(ErrCodeNotFound, "Order not found")

	if resp.Success {
		t.Error("Expected success to be false")
	}
	if resp.Error == nil {
		t.Fatal("Expected error to be set")
	}
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("Expected code %s, got %s", ErrCodeNotFound, resp.Error.Code)
	}
	if resp.Error.Message != "Order not found" {
		t.Errorf("Expected message 'Order not found', got '%s'", resp.Error.Message)
	}
}

func TestCapacityExceeded(t *testing.T) {
	resp := CapacityExceeded("", map[string]string{"spots_left": "0"})

	if resp.Error.Code != ErrCodeCapacityExceeded {
		t.Errorf("Expected code %s, got %s", ErrCodeCapacityExceeded, resp.Error.Code)
	}
	if resp.Error.Details["spots_left"] != "0" {
		t.Errorf("Expected spots_left detail, got %v", resp.Error.Details)
	}
	if resp.Status() != http.StatusConflict {
		t.Errorf("Status() = %d, want %d", resp.Status(), http.StatusConflict)
	}
}

func TestList(t *testing.T) {
	resp := List([]int{1, 2, 3}, 3)
	if resp.Meta == nil || resp.Meta.Total != 3 {
		t.Errorf("Expected meta total 3, got %+v", resp.Meta)
	}
}

func TestPaginated(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		perPage    int
		wantPages  int
	}{
		{"exact pages", 40, 20, 2},
		{"partial page", 41, 20, 3},
		{"empty", 0, 20, 0},
		{"zero per page", 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Paginated(nil, 1, tt.perPage, tt.total)
			if resp.Meta.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", resp.Meta.TotalPages, tt.wantPages)
			}
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeCapacityExceeded, http.StatusConflict},
		{ErrCodeInvalidTransition, http.StatusConflict},
		{ErrCodeMaxLimitReached, http.StatusUnprocessableEntity},
		{ErrCodeInvalidStaffCode, http.StatusUnauthorized},
		{ErrCodeStaffCodeNotActive, http.StatusForbidden},
		{ErrCodeInternalError, http.StatusInternalServerError},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := GetHTTPStatus(tt.code); got != tt.expected {
				t.Errorf("GetHTTPStatus(%s) = %d, want %d", tt.code, got, tt.expected)
			}
		})
	}
}

func TestDefaultMessages(t *testing.T) {
	tests := []struct {
		name     string
		resp     *Response
		expected string
	}{
		{"unauthorized", Unauthorized(""), "Authentication required"},
		{"forbidden", Forbidden(""), "Access denied"},
		{"not found", NotFound(""), "Resource not found"},
		{"internal", InternalError(""), "An internal error occurred"},
		{"unavailable", ServiceUnavailable(""), "Service temporarily unavailable"},
		{"capacity", CapacityExceeded("", nil), "Not enough capacity available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.resp.Error.Message != tt.expected {
				t.Errorf("Message = %q, want %q", tt.resp.Error.Message, tt.expected)
			}
		})
	}
}

func TestValidationFailed(t *testing.T) {
	resp := ValidationFailed(map[string]string{"quantity": "must be positive"})
	if resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("Expected code %s, got %s", ErrCodeValidationFailed, resp.Error.Code)
	}
	if resp.Error.Details["quantity"] != "must be positive" {
		t.Errorf("Unexpected details: %v", resp.Error.Details)
	}
}
