package assignment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	svc, _ := newTestService(t)
	mux := http.NewServeMux()
	NewHandler(svc).RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: invalid response json: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, out
}

func rfc(dayN int) string {
	return day(dayN).Format(time.RFC3339)
}

func TestHTTPCreateAndConflict(t *testing.T) {
	mux := newTestMux(t)

	w, body := doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u1","start_at":%q,"end_at":%q,"reason":"business"}`,
		rfc(1), rfc(3)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %v", w.Code, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create: missing id in %v", body)
	}

	// 重叠时段
	w, body = doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u2","start_at":%q,"end_at":%q}`, rfc(2), rfc(4)))
	if w.Code != http.StatusConflict {
		t.Fatalf("conflict: status %d body %v", w.Code, body)
	}
	if body["error"] != "conflict" || body["conflicting_id"] != id {
		t.Fatalf("conflict payload: %v", body)
	}

	// 首尾相接
	w, _ = doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u2","start_at":%q,"end_at":%q}`, rfc(3), rfc(5)))
	if w.Code != http.StatusCreated {
		t.Fatalf("adjacent create: status %d", w.Code)
	}

	// 非法区间
	w, body = doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u2","start_at":%q,"end_at":%q}`, rfc(9), rfc(9)))
	if w.Code != http.StatusBadRequest || body["error"] != "invalid_interval" {
		t.Fatalf("invalid interval: status %d body %v", w.Code, body)
	}

	// 未知车辆
	w, body = doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"ghost","user_id":"u2","start_at":%q}`, rfc(9)))
	if w.Code != http.StatusNotFound || body["error"] != "vehicle_not_found" {
		t.Fatalf("unknown vehicle: status %d body %v", w.Code, body)
	}
}

func TestHTTPCloseAndCancel(t *testing.T) {
	mux := newTestMux(t)

	_, body := doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u1","start_at":%q,"start_odometer":100}`, rfc(1)))
	id := body["id"].(string)

	// 里程倒退
	w, body := doJSON(t, mux, http.MethodPost, "/api/assignments/"+id+"/close", fmt.Sprintf(
		`{"end_at":%q,"end_odometer":50}`, rfc(4)))
	if w.Code != http.StatusBadRequest || body["error"] != "invalid_odometer" {
		t.Fatalf("odometer regression: status %d body %v", w.Code, body)
	}

	w, body = doJSON(t, mux, http.MethodPost, "/api/assignments/"+id+"/close", fmt.Sprintf(
		`{"end_at":%q,"end_odometer":250}`, rfc(4)))
	if w.Code != http.StatusOK {
		t.Fatalf("close: status %d body %v", w.Code, body)
	}
	if body["end_at"] == nil {
		t.Fatalf("close response missing end_at: %v", body)
	}

	// 重复收口
	w, body = doJSON(t, mux, http.MethodPost, "/api/assignments/"+id+"/close", fmt.Sprintf(
		`{"end_at":%q}`, rfc(5)))
	if w.Code != http.StatusConflict || body["error"] != "assignment_not_open" {
		t.Fatalf("double close: status %d body %v", w.Code, body)
	}

	w, body = doJSON(t, mux, http.MethodPost, "/api/assignments/"+id+"/cancel", "")
	if w.Code != http.StatusOK || body["cancelled"] != true {
		t.Fatalf("cancel: status %d body %v", w.Code, body)
	}

	w, _ = doJSON(t, mux, http.MethodPost, "/api/assignments/missing/cancel", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("cancel unknown: status %d", w.Code)
	}
}

func TestHTTPPropose(t *testing.T) {
	mux := newTestMux(t)

	_, created := doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u1","start_at":%q,"end_at":%q}`, rfc(1), rfc(5)))
	id := created["id"].(string)

	w, body := doJSON(t, mux, http.MethodPost, "/api/assignments/propose", fmt.Sprintf(
		`{"vehicle_id":"v1","start_at":%q,"end_at":%q}`, rfc(3), rfc(7)))
	if w.Code != http.StatusOK || body["accepted"] != false {
		t.Fatalf("propose overlap: status %d body %v", w.Code, body)
	}
	if body["conflicting_id"] != id {
		t.Fatalf("propose conflict payload: %v", body)
	}

	// 排除自身（修订场景）
	w, body = doJSON(t, mux, http.MethodPost, "/api/assignments/propose", fmt.Sprintf(
		`{"vehicle_id":"v1","start_at":%q,"end_at":%q,"exclude_id":%q}`, rfc(3), rfc(7), id))
	if w.Code != http.StatusOK || body["accepted"] != true {
		t.Fatalf("propose excluding self: status %d body %v", w.Code, body)
	}

	// 裁决不落库：再次提交原区间仍然成功
	w, _ = doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u2","start_at":%q,"end_at":%q}`, rfc(5), rfc(7)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create after propose: status %d", w.Code)
	}
}

func TestHTTPQueries(t *testing.T) {
	mux := newTestMux(t)

	doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u1","start_at":%q,"end_at":%q}`, rfc(1), rfc(5)))
	doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u2","start_at":%q,"end_at":%q}`, rfc(8), rfc(9)))

	w, body := doJSON(t, mux, http.MethodGet, "/api/assignments/active?vehicle_id=v1&as_of="+rfc(3), "")
	if w.Code != http.StatusOK {
		t.Fatalf("active: status %d", w.Code)
	}
	active, _ := body["active"].(map[string]any)
	if active == nil || active["user_id"] != "u1" {
		t.Fatalf("active payload: %v", body)
	}

	w, body = doJSON(t, mux, http.MethodGet, "/api/assignments/active?vehicle_id=v1&as_of="+rfc(6), "")
	if w.Code != http.StatusOK || body["active"] != nil {
		t.Fatalf("active in gap: status %d body %v", w.Code, body)
	}

	w, body = doJSON(t, mux, http.MethodGet, "/api/assignments/upcoming?vehicle_id=v1&as_of="+rfc(3), "")
	if w.Code != http.StatusOK {
		t.Fatalf("upcoming: status %d", w.Code)
	}
	up, _ := body["upcoming"].(map[string]any)
	if up == nil || up["user_id"] != "u2" {
		t.Fatalf("upcoming payload: %v", body)
	}

	w, body = doJSON(t, mux, http.MethodGet, "/api/assignments/occupied?vehicle_id=v1&as_of="+rfc(0), "")
	if w.Code != http.StatusOK {
		t.Fatalf("occupied: status %d", w.Code)
	}
	occ, _ := body["occupied"].([]any)
	if len(occ) != 2 {
		t.Fatalf("occupied payload: %v", body)
	}

	w, body = doJSON(t, mux, http.MethodGet, "/api/assignments/history?vehicle_id=v1", "")
	if w.Code != http.StatusOK || body["total"] != float64(2) {
		t.Fatalf("history: status %d body %v", w.Code, body)
	}

	// vehicle_id 必填
	w, body = doJSON(t, mux, http.MethodGet, "/api/assignments/active", "")
	if w.Code != http.StatusBadRequest || body["error"] != "vehicle_id_required" {
		t.Fatalf("missing vehicle_id: status %d body %v", w.Code, body)
	}

	// as_of 必须是 RFC3339
	w, body = doJSON(t, mux, http.MethodGet, "/api/assignments/active?vehicle_id=v1&as_of=yesterday", "")
	if w.Code != http.StatusBadRequest || body["error"] != "invalid_as_of" {
		t.Fatalf("bad as_of: status %d body %v", w.Code, body)
	}
}

func TestHTTPGetByID(t *testing.T) {
	mux := newTestMux(t)

	_, created := doJSON(t, mux, http.MethodPost, "/api/assignments", fmt.Sprintf(
		`{"vehicle_id":"v1","user_id":"u1","start_at":%q,"end_at":%q}`, rfc(1), rfc(3)))
	id := created["id"].(string)

	w, body := doJSON(t, mux, http.MethodGet, "/api/assignments/"+id, "")
	if w.Code != http.StatusOK || body["id"] != id {
		t.Fatalf("get: status %d body %v", w.Code, body)
	}

	w, body = doJSON(t, mux, http.MethodGet, "/api/assignments/missing", "")
	if w.Code != http.StatusNotFound || body["error"] != "assignment_not_found" {
		t.Fatalf("get missing: status %d body %v", w.Code, body)
	}
}
