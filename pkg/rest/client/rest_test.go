package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURLStr = "http://test.local:8080"
const baseURLPathStr = "http://test.local:8080/courier"

var baseURL *url.URL

var baseURLPath *url.URL

func init() {
	var err error
	baseURL, err = url.Parse(baseURLStr)
	if err != nil {
		panic(err)
	}
	baseURLPath, err = url.Parse(baseURLPathStr)
	if err != nil {
		panic(err)
	}
}

type mockHTTPClient struct {
	req        *http.Request
	statusCode int
	body       string
}

func (m *mockHTTPClient) Do(req *http.Request) (resp *http.Response, err error) {
	m.req = req
	if m.statusCode == 0 {
		m.statusCode = 200
	}
	resp = &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}
	return
}

func (m *mockHTTPClient) ReqBody() []byte {
	if m.req.GetBody == nil {
		return nil
	}
	r, err := m.req.GetBody()
	if err != nil {
		return nil
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	_ = r.Close()
	return body
}

func TestDoTable(t *testing.T) {
	tests := []struct {
		method     string
		uri        string
		query      url.Values
		wantMethod string
		base       *url.URL
		wantURL    string
		wantBody   []byte
	}{
		{method: "GET", wantMethod: "GET", uri: "/doget", base: baseURL, wantURL: baseURLStr + "/doget", wantBody: []byte("Test body 1")},
		{method: "POST", wantMethod: "POST", uri: "/dopost", base: baseURL, wantURL: baseURLStr + "/dopost", wantBody: []byte("Test body 2")},
		{method: "GET", wantMethod: "GET", uri: "/doget", base: baseURLPath, wantURL: baseURLPathStr + "/doget", wantBody: []byte("Test body 3")},
		{method: "POST", wantMethod: "POST", uri: "/dopost", base: baseURLPath, wantURL: baseURLPathStr + "/dopost", wantBody: []byte("Test body 4")},
		{
			method: "GET", wantMethod: "GET", uri: "/doget", base: baseURL,
			query:   url.Values{"query": {"from:bob"}, "labels": {"A,B"}},
			wantURL: baseURLStr + "/doget?labels=A%2CB&query=from%3Abob",
		},
	}
	for _, test := range tests {
		testname := fmt.Sprintf("%s,%s", test.method, test.wantURL)
		t.Run(testname, func(t *testing.T) {
			ctx := context.Background()
			mth := &mockHTTPClient{}
			c := &restClient{mth, test.base}

			resp, err := c.do(ctx, test.method, test.uri, test.query, test.wantBody)
			require.NoError(t, err)
			err = resp.Body.Close()
			require.NoError(t, err)

			assert.Equal(t, test.wantMethod, mth.req.Method)
			assert.Equal(t, test.wantURL, mth.req.URL.String())
			assert.Equal(t, test.wantBody, mth.ReqBody())
			if test.wantBody != nil {
				assert.Equal(t, "application/json", mth.req.Header.Get("Content-Type"))
			}
		})
	}
}

func TestDoJSON(t *testing.T) {
	mth := &mockHTTPClient{
		body: `{"foo": "bar"}`,
	}
	c := &restClient{mth, baseURL}

	var v map[string]any
	err := c.doJSON(context.Background(), "POST", "/dopost", nil, map[string]int{"n": 1}, &v)
	require.NoError(t, err)

	assert.Equal(t, "POST", mth.req.Method)
	assert.Equal(t, baseURLStr+"/dopost", mth.req.URL.String())
	assert.JSONEq(t, `{"n": 1}`, string(mth.ReqBody()))
	assert.Equal(t, "bar", v["foo"])
}

func TestDoJSONNilV(t *testing.T) {
	mth := &mockHTTPClient{}
	c := &restClient{mth, baseURL}

	err := c.doJSON(context.Background(), "GET", "/doget", nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "GET", mth.req.Method)
	assert.Equal(t, baseURLStr+"/doget", mth.req.URL.String())
	assert.Nil(t, mth.ReqBody())
}

func TestDoJSONError(t *testing.T) {
	mth := &mockHTTPClient{
		statusCode: 400,
		body:       `{"error": "validation failed", "fields": {"to": "to is a required field"}}`,
	}
	c := &restClient{mth, baseURL}

	err := c.doJSON(context.Background(), "POST", "/dopost", nil, struct{}{}, nil)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 400, cerr.StatusCode)
	assert.Equal(t, "validation failed", cerr.Message)
	assert.Equal(t, map[string]string{"to": "to is a required field"}, cerr.Fields)
	assert.Equal(t, "400: validation failed", err.Error())
	assert.False(t, IsNotFound(err))

	// Non-JSON bodies still report the status.
	mth = &mockHTTPClient{statusCode: 404, body: "404 page not found"}
	c = &restClient{mth, baseURL}
	err = c.doJSON(context.Background(), "GET", "/doget", nil, nil, nil)
	assert.EqualError(t, err, "unexpected status 404")
	assert.True(t, IsNotFound(err))
}
