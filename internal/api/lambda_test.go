package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshop/internal/model"
)

func TestLambdaHandler_CreateOrder(t *testing.T) {
	s := newTestShop(t)
	lh := NewLambdaHandler(s.handler)

	resp, err := lh.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/orders",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       validOrder,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	var o model.Order
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &o))
	assert.Equal(t, int64(1), o.ID)
}

func TestLambdaHandler_Base64AndErrors(t *testing.T) {
	s := newTestShop(t)
	lh := NewLambdaHandler(s.handler)
	ctx := context.Background()

	resp, err := lh.Handle(ctx, events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/api/orders",
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"customerInfo":{"name":"a","address":"b","email":"c"},"items":[{"productId":1,"quantity":50}]}`)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = lh.Handle(ctx, events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/api/orders",
		Body:            "%%%",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = lh.Handle(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/orders/9"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
