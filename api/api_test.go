// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package api_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	const body = `{"access_token":"ya29.token","expires_in":3600,"token_type":"Bearer"}`

	var token api.AccessToken
	require.NoError(t, json.Unmarshal([]byte(body), &token))
	assert.Equal(t, "ya29.token", token.Token)
	assert.Equal(t, int64(3600), token.ExpiresInSeconds)
	assert.Equal(t, time.Hour, token.ExpiresIn())

	b, err := json.Marshal(&token)
	require.NoError(t, err)

	var again api.AccessToken
	require.NoError(t, json.Unmarshal(b, &again))
	assert.Equal(t, token, again)
}

func TestErrorResponseRoundTrip(t *testing.T) {
	const body = `{"error":{"message":"Subscription does not exist.","status":"NOT_FOUND","code":404}}`

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "Subscription does not exist.", resp.Error.Message)
	assert.Equal(t, "NOT_FOUND", resp.Error.Status)
	assert.Equal(t, 404, resp.Error.Code)

	b, err := json.Marshal(&resp)
	require.NoError(t, err)

	var again api.ErrorResponse
	require.NoError(t, json.Unmarshal(b, &again))
	assert.Equal(t, resp, again)
}

func TestPubsubMessageDecoding(t *testing.T) {
	const body = `{
		"ackId": "ack-1",
		"message": {
			"data": "aGVsbG8=",
			"attributes": {"k": "v"},
			"messageId": "m-1",
			"publishTime": "2024-05-01T10:00:00Z",
			"orderingKey": "ok"
		}
	}`

	var received api.ReceivedMessage
	require.NoError(t, json.Unmarshal([]byte(body), &received))
	assert.Equal(t, api.AckID("ack-1"), received.AckID)
	assert.Equal(t, []byte("hello"), received.Message.Data)
	assert.Equal(t, map[string]string{"k": "v"}, received.Message.Attributes)
	assert.Equal(t, "m-1", received.Message.MessageID)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), received.Message.PublishTime.UTC())
	assert.Equal(t, "ok", received.Message.OrderingKey)
}

func TestPublishRequestEncoding(t *testing.T) {
	req := api.PublishRequest{
		Messages: []api.PublishMessage{{
			Data:       []byte{0x01, 0x02},
			MessageID:  "u1",
			Attributes: map[string]string{},
		}},
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[{"data":"AQI=","messageId":"u1","attributes":{}}]}`, string(b))
}

func TestClassifyErrorBody(t *testing.T) {
	for _, tc := range []struct {
		name  string
		body  string
		check func(t *testing.T, err error)
	}{
		{
			name: "no ack ids",
			body: `{"error":{"message":"No ack ids specified.","status":"INVALID_ARGUMENT","code":400}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, api.ErrNoAckIDs)
			},
		},
		{
			name: "unknown",
			body: `{"error":{"message":"Deadline exceeded.","status":"DEADLINE_EXCEEDED","code":504}}`,
			check: func(t *testing.T, err error) {
				var unknownErr *api.UnknownError
				require.ErrorAs(t, err, &unknownErr)
				assert.Contains(t, unknownErr.Body, "DEADLINE_EXCEEDED")
			},
		},
		{
			name: "unparseable",
			body: `<html>bad gateway</html>`,
			check: func(t *testing.T, err error) {
				var unparseableErr *api.UnparseableBodyError
				require.ErrorAs(t, err, &unparseableErr)
				assert.Equal(t, `<html>bad gateway</html>`, unparseableErr.Raw)
			},
		},
		{
			name: "valid json but not an error shape",
			body: `{"receivedMessages":[]}`,
			check: func(t *testing.T, err error) {
				var unparseableErr *api.UnparseableBodyError
				assert.ErrorAs(t, err, &unparseableErr)
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, api.ClassifyErrorBody([]byte(tc.body)))
		})
	}
}
