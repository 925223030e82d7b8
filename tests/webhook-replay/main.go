// webhook-replay signs and posts sample provider webhooks against a locally
// running service, so the reconciliation path can be exercised without real
// provider traffic.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

var (
	baseURL   = flag.String("url", "http://localhost:8080", "service base URL")
	provider  = flag.String("provider", "revolut", "provider to emulate: revolut or stripe")
	secret    = flag.String("secret", "whsec_test", "webhook signing secret")
	event     = flag.String("event", "", "event type, defaults to the provider's payment-completed event")
	paymentID = flag.String("payment", "pay_replay_1", "provider payment id")
	orderID   = flag.String("order", "", "order id to reference in the event")
	repeat    = flag.Int("repeat", 1, "number of deliveries, >1 exercises idempotency")
)

func main() {
	flag.Parse()

	var body []byte
	headers := map[string]string{}

	switch *provider {
	case "revolut":
		body = revolutBody()
		ts := fmt.Sprintf("%d", time.Now().UnixMilli())
		headers["Revolut-Signature"] = signRevolut(ts, body)
		headers["Revolut-Request-Timestamp"] = ts
	case "stripe":
		body = stripeBody()
		headers["Stripe-Signature"] = signStripe(body)
	default:
		log.Fatalf("unknown provider %q", *provider)
	}

	url := fmt.Sprintf("%s/webhooks/%s", *baseURL, *provider)
	for i := 0; i < *repeat; i++ {
		post(url, headers, body)
	}
}

func revolutBody() []byte {
	evt := *event
	if evt == "" {
		evt = "ORDER_COMPLETED"
	}
	body, _ := json.Marshal(map[string]string{
		"event":                  evt,
		"order_id":               *paymentID,
		"merchant_order_ext_ref": *orderID,
	})
	return body
}

func signRevolut(ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(*secret))
	mac.Write([]byte("v1." + ts + "."))
	mac.Write(body)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

func stripeBody() []byte {
	evt := *event
	if evt == "" {
		evt = "payment_intent.succeeded"
	}
	body, _ := json.Marshal(map[string]any{
		"id":   fmt.Sprintf("evt_replay_%d", time.Now().Unix()),
		"type": evt,
		"data": map[string]any{
			"object": map[string]any{
				"id":       *paymentID,
				"metadata": map[string]string{"order_id": *orderID},
			},
		},
	})
	return body
}

func signStripe(body []byte) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(*secret))
	mac.Write([]byte(ts + "."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func post(url string, headers map[string]string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	log.Println("POST", url, "->", resp.Status)
}
