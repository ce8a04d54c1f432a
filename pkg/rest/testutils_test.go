package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/msghub"
	"github.com/inbucket/courier/pkg/repayment"
	"github.com/inbucket/courier/pkg/server/web"
	"github.com/stretchr/testify/require"
)

func testRestGet(url string) (*httptest.ResponseRecorder, error) {
	return testRestRequest("GET", url, "")
}

func testRestPatch(url string, body string) (*httptest.ResponseRecorder, error) {
	return testRestRequest("PATCH", url, body)
}

func testRestPost(url string, body string) (*httptest.ResponseRecorder, error) {
	return testRestRequest("POST", url, body)
}

func testRestDelete(url string) (*httptest.ResponseRecorder, error) {
	return testRestRequest("DELETE", url, "")
}

func testRestRequest(method, url, body string) (*httptest.ResponseRecorder, error) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/json")
	if body != "" {
		req.Header.Add("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	web.Router.ServeHTTP(w, req)
	return w, nil
}

var configRoot = config.Root{
	Web: config.Web{
		Addr: "127.0.0.1:0",
	},
}

func setupWebServer(mm message.Manager, rm repayment.Manager) {
	SetupRoutes(web.Router.PathPrefix("/api/").Subrouter())
	web.NewServer(&configRoot, mm, rm, msghub.New(0, extension.NewHost()))
}

// decodeJSON decodes the recorded response body into a generic value.
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) any {
	t.Helper()
	var result any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result), "body: %s", w.Body.String())
	return result
}

func decodedBoolEquals(t *testing.T, json any, path string, want bool) {
	t.Helper()
	els := strings.Split(path, "/")
	val, msg := getDecodedPath(json, els...)
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	if got, ok := val.(bool); ok {
		if got == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T), want: %v", path, val, val, want)
}

func decodedNumberEquals(t *testing.T, json any, path string, want float64) {
	t.Helper()
	els := strings.Split(path, "/")
	val, msg := getDecodedPath(json, els...)
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	got, ok := val.(float64)
	if ok {
		if got == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T) %v (int64),\nwant: %v / %v",
		path, val, val, int64(got), want, int64(want))
}

func decodedStringEquals(t *testing.T, json any, path string, want string) {
	t.Helper()
	els := strings.Split(path, "/")
	val, msg := getDecodedPath(json, els...)
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	if got, ok := val.(string); ok {
		if got == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T), want: %v", path, val, val, want)
}

func decodedLenEquals(t *testing.T, json any, path string, want int) {
	t.Helper()
	var val any = json
	var msg string
	if path != "" {
		val, msg = getDecodedPath(json, strings.Split(path, "/")...)
	}
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	switch v := val.(type) {
	case []any:
		if len(v) == want {
			return
		}
	case map[string]any:
		if len(v) == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T), want length: %v", path, val, val, want)
}

// getDecodedPath recursively navigates the specified path, returing the requested element.  If
// something goes wrong, the returned string will contain an explanation.
//
// Named path elements require the parent element to be a map[string]any, numbers in square
// brackets require the parent element to be a []any.
//
//	getDecodedPath(o, "users", "[1]", "name")
//
// is equivalent to the JavaScript:
//
//	o.users[1].name
func getDecodedPath(o any, path ...string) (any, string) {
	if len(path) == 0 {
		return o, ""
	}
	if o == nil {
		return nil, " is nil"
	}
	key := path[0]
	present := false
	var val any
	if key[0] == '[' {
		// Expecting slice.
		index, err := strconv.Atoi(strings.Trim(key, "[]"))
		if err != nil {
			return nil, "/" + key + " is not a slice index"
		}
		oslice, ok := o.([]any)
		if !ok {
			return nil, " is not a slice"
		}
		if index >= len(oslice) {
			return nil, "/" + key + " is out of bounds"
		}
		val, present = oslice[index], true
	} else {
		// Expecting map.
		omap, ok := o.(map[string]any)
		if !ok {
			return nil, " is not a map"
		}
		val, present = omap[key]
	}
	if !present {
		return nil, "/" + key + " is missing"
	}
	result, msg := getDecodedPath(val, path[1:]...)
	if msg != "" {
		return nil, "/" + key + msg
	}
	return result, ""
}
