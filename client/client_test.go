package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRecordSendsUnescapedMetadata(t *testing.T) {
	const md = `{"productName":"Apples & Pears <Grade A>"}`
	var gotBody []byte
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/food-records", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"success","message":"created"}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.Token = "tok"
	st, err := c.CreateRecord(context.Background(), CreateRecordRequest{
		ProductID: "BATCH001",
		Metadata:  json.RawMessage(md),
	})
	require.NoError(t, err)
	assert.Equal(t, "success", st.Status)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Contains(t, string(gotBody), md)
}

func TestErrorsCarryStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/food-records/MISSING":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"error","message":"no food record found"}`))
		case "/api/food-records":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"status":"error","message":"product ID 'X' already exists"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()
	c := New(srv.URL)

	_, err := c.GetRecord(context.Background(), "MISSING")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "no food record found")

	_, err = c.CreateRecord(context.Background(), CreateRecordRequest{ProductID: "X"})
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))

	_, err = c.Health(context.Background())
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadGateway, ae.StatusCode)
	assert.Equal(t, "Bad Gateway", ae.Message)
}

func TestListAndVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/food-records":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "5", r.URL.Query().Get("page_size"))
			_, _ = w.Write([]byte(`{"items":[{"product_id":"P1","product_name":"Tea","onchain_metadata_hash":"0xab","created_at":"2024-05-01T10:00:00Z"}],"total_items":6,"page":2,"page_size":5,"total_pages":2}`))
		case "/api/food-records/P1/verify":
			_, _ = w.Write([]byte(`{"product_id":"P1","verified":true,"metadata_intact":true,"onchain_match":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := New(srv.URL)

	page, err := c.ListRecords(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 6, page.TotalItems)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Tea", *page.Items[0].ProductName)

	v, err := c.VerifyRecord(context.Background(), "P1")
	require.NoError(t, err)
	assert.True(t, v.Verified)
}

func TestGetRecordKeepsMetadataBytes(t *testing.T) {
	const md = `{"productId":"BATCH001","productName":"A & B"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"product_id":"BATCH001","metadata_json":` + md + `,"onchain_metadata_hash":"0x01","blockchain_transaction_hash":"0x02","created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-01T10:00:00Z"}`))
	}))
	defer srv.Close()

	rec, err := New(srv.URL).GetRecord(context.Background(), "BATCH001")
	require.NoError(t, err)
	assert.Equal(t, md, string(rec.MetadataJSON))
}
