package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	orderID     int64
)

// Metrics
var (
	totalRequests uint64
	paid          uint64
	pending       uint64
	waiting       uint64
	settledNow    uint64 // webhook deliveries that performed the transition
	rejected      uint64 // 4xx
	failOther     uint64
)

type checkout struct {
	OrderID   int64  `json:"order_id"`
	RequestID string `json:"request_id"`
	Nonce     string `json:"nonce"`
}

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "mixed", "Workload type: poll | webhook | mixed")
	flag.Int64Var(&orderID, "order", 0, "Existing order id; 0 creates a new order")
}

func main() {
	flag.Parse()
	client := &http.Client{Timeout: 5 * time.Second}

	co, err := prepare(client)
	if err != nil {
		log.Fatalf("Setup failed: %v", err)
	}
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s | Order: %d (%s)", workload, concurrency, duration, co.OrderID, co.RequestID)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, co)
	}

	wg.Wait()
	printResults(time.Since(start))

	completions, err := countCompletionNotes(client, co.OrderID)
	if err != nil {
		log.Fatalf("Verify failed: %v", err)
	}
	log.Printf("Completion notes on order %d: %d", co.OrderID, completions)
	if completions > 1 {
		log.Fatalf("order settled %d times", completions)
	}
}

// countCompletionNotes counts paid-transition notes on the order. Every
// settlement, by poll or webhook, writes exactly one.
func countCompletionNotes(client *http.Client, id int64) (int, error) {
	resp, err := client.Get(fmt.Sprintf("%s/api/v1/orders/%d", targetURL, id))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get order: status %d", resp.StatusCode)
	}

	var body struct {
		Notes []struct {
			Text string `json:"text"`
		} `json:"notes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	n := 0
	for _, note := range body.Notes {
		if strings.HasPrefix(note.Text, "Lightning payment completed") {
			n++
		}
	}
	return n, nil
}

// prepare creates an order if needed and opens its checkout view.
func prepare(client *http.Client) (*checkout, error) {
	if orderID == 0 {
		body, _ := json.Marshal(map[string]any{"total": "10.00", "currency": "USD"})
		resp, err := client.Post(targetURL+"/api/v1/orders", "application/json", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		var order struct {
			ID int64 `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&order); err != nil || order.ID == 0 {
			return nil, fmt.Errorf("create order: status %d", resp.StatusCode)
		}
		orderID = order.ID
	}

	resp, err := client.Get(fmt.Sprintf("%s/api/v1/orders/%d/payment", targetURL, orderID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("checkout view: status %d", resp.StatusCode)
	}
	var co checkout
	if err := json.NewDecoder(resp.Body).Decode(&co); err != nil {
		return nil, err
	}
	return &co, nil
}

func worker(wg *sync.WaitGroup, start time.Time, co *checkout) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		useWebhook := workload == "webhook" || (workload == "mixed" && rand.Float32() < 0.5)

		var (
			resp *http.Response
			err  error
		)
		if useWebhook {
			body, _ := json.Marshal(map[string]any{
				"id":        uuid.NewString(),
				"eventType": "receive-request.receive-completed",
				"data":      map[string]string{"entityId": co.RequestID},
			})
			resp, err = client.Post(targetURL+"/webhooks/strike", "application/json", bytes.NewReader(body))
		} else {
			form := url.Values{"order_id": {strconv.FormatInt(co.OrderID, 10)}, "nonce": {co.Nonce}}
			resp, err = client.PostForm(targetURL+"/api/v1/payments/check", form)
		}
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		tally(resp, useWebhook)
		resp.Body.Close()
	}
}

func tally(resp *http.Response, webhook bool) {
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		atomic.AddUint64(&rejected, 1)
		return
	}
	if resp.StatusCode != http.StatusOK {
		atomic.AddUint64(&failOther, 1)
		return
	}

	if webhook {
		var ack struct {
			Outcome string `json:"outcome"`
		}
		json.NewDecoder(resp.Body).Decode(&ack)
		switch ack.Outcome {
		case "settled_now":
			atomic.AddUint64(&settledNow, 1)
			atomic.AddUint64(&paid, 1)
		case "already_paid":
			atomic.AddUint64(&paid, 1)
		case "pending":
			atomic.AddUint64(&pending, 1)
		default:
			atomic.AddUint64(&waiting, 1)
		}
		return
	}

	var env struct {
		Data struct {
			Paid   bool   `json:"paid"`
			Status string `json:"status"`
		} `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&env)
	switch {
	case env.Data.Paid:
		atomic.AddUint64(&paid, 1)
	case env.Data.Status == "pending":
		atomic.AddUint64(&pending, 1)
	default:
		atomic.AddUint64(&waiting, 1)
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	settled := atomic.LoadUint64(&settledNow)

	results := map[string]any{
		"workload":       workload,
		"order_id":       orderID,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_rps": float64(total) / d.Seconds(),
		"paid":           atomic.LoadUint64(&paid),
		"pending":        atomic.LoadUint64(&pending),
		"waiting":        atomic.LoadUint64(&waiting),
		"settled_now":    settled,
		"rejected_4xx":   atomic.LoadUint64(&rejected),
		"errors":         atomic.LoadUint64(&failOther),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err == nil {
		defer file.Close()
		json.NewEncoder(file).Encode(results)
	}
}
