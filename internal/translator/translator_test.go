package translator

import (
	"testing"

	"github.com/tidwall/sjson"
	"github.com/stretchr/testify/require"
)

func TestUnaryPeelsEnvelope(t *testing.T) {
	body := []byte(`{"response":{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}}`)
	out, err := Unary(body)
	require.NoError(t, err)
	require.JSONEq(t, `{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}`, string(out))
}

func TestUnaryMissingEnvelope(t *testing.T) {
	for _, body := range []string{
		`{"candidates":[]}`,
		`not json`,
		``,
		`[1,2,3]`,
	} {
		_, err := Unary([]byte(body))
		require.ErrorIs(t, err, ErrMissingEnvelope, "body %q", body)
	}
}

func TestSSEDataPeelsEnvelope(t *testing.T) {
	out, err := SSEData(`{"response":{"candidates":[{"finishReason":"STOP"}]}}`)
	require.NoError(t, err)
	require.JSONEq(t, `{"candidates":[{"finishReason":"STOP"}]}`, out)
}

func TestSSEDataMissingEnvelope(t *testing.T) {
	_, err := SSEData(`{"error":{"code":500}}`)
	require.ErrorIs(t, err, ErrMissingEnvelope)
}

// Wrapping an arbitrary object and unwrapping it yields the original.
func TestEnvelopeRoundTrip(t *testing.T) {
	inner := `{"candidates":[{"content":{"parts":[{"text":"x"},{"inlineData":{"mimeType":"image/png","data":"AAAA"}}]}}],"usageMetadata":{"totalTokenCount":42}}`
	wrapped, err := sjson.SetRaw(`{}`, "response", inner)
	require.NoError(t, err)

	out, err := Unary([]byte(wrapped))
	require.NoError(t, err)
	require.JSONEq(t, inner, string(out))

	sseOut, err := SSEData(wrapped)
	require.NoError(t, err)
	require.JSONEq(t, inner, sseOut)
}
