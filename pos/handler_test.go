package pos

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/algopay/types"
)

func newTestServer(t *testing.T, node *stubNode) *echo.Echo {
	t.Helper()
	e := echo.New()
	NewHandler(NewService(node, nil), nil).Register(e)
	return e
}

func TestQRCodeEndpoint(t *testing.T) {
	e := newTestServer(t, &stubNode{})

	body := `{"receiver":"` + testReceiver() + `","amount":"2.5"}`
	req := httptest.NewRequest(http.MethodPost, "/pos/algorand/qr_code", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"qr_code":"data:image/png;base64,`)
	assert.Contains(t, rec.Body.String(), "algorand://")
}

func TestQRCodeEndpointRejectsBadAddress(t *testing.T) {
	e := newTestServer(t, &stubNode{})

	body := `{"receiver":"tooshort","amount":"2.5"}`
	req := httptest.NewRequest(http.MethodPost, "/pos/algorand/qr_code", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckTransactionEndpoint(t *testing.T) {
	e := newTestServer(t, &stubNode{pending: &types.PendingTransaction{ConfirmedRound: 77}})

	req := httptest.NewRequest(http.MethodPost, "/pos/algorand/check_transaction",
		strings.NewReader(`{"txId":"TXID1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)
	assert.Contains(t, rec.Body.String(), `"confirmedRound":77`)
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	receiver := testReceiver()
	e := newTestServer(t, &stubNode{pending: &types.PendingTransaction{
		ConfirmedRound: 50,
		Sender:         "PAYER",
		Receiver:       receiver,
		Amount:         2_500_000,
	}})

	body := `{"txId":"TXID1","receiver":"` + receiver + `","amount":"2.5"}`
	req := httptest.NewRequest(http.MethodPost, "/pos/algorand/verify_payment", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"verified":true`)
}

func TestVerifyPaymentEndpointRequiresTxID(t *testing.T) {
	e := newTestServer(t, &stubNode{})

	body := `{"receiver":"` + testReceiver() + `","amount":"2.5"}`
	req := httptest.NewRequest(http.MethodPost, "/pos/algorand/verify_payment", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
