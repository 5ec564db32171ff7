package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	slots       int
	workload    string
)

// Metrics
var (
	totalRequests uint64
	success200    uint64
	credited      uint64
	fail409       uint64
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 50, "Number of concurrent callers")
	flag.IntVar(&slots, "slots", 5, "Creator slots on the contended campaign (accept workload)")
	flag.StringVar(&workload, "workload", "accept", "Workload type: accept | deposit")
}

type caller struct {
	client *http.Client
	id     uuid.UUID
	role   string
}

func newCaller(role string) caller {
	return caller{client: &http.Client{Timeout: 10 * time.Second}, id: uuid.New(), role: role}
}

func (c caller) call(method, path string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequest(method, targetURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.role != "" {
		req.Header.Set("X-User-ID", c.id.String())
		req.Header.Set("X-User-Role", c.role)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c caller) must(method, path string, body any, out any, want int, step string) {
	code, err := c.call(method, path, body, out)
	if err != nil {
		log.Fatalf("%s: %v", step, err)
	}
	if code != want {
		log.Fatalf("%s: status %d, want %d", step, code, want)
	}
}

func fundedAdvertiser(amount string) caller {
	adv := newCaller("advertiser")
	adv.must(http.MethodPost, "/api/v1/wallets", nil, nil, http.StatusCreated, "open advertiser wallet")
	ref := "bench_" + uuid.NewString()
	adv.must(http.MethodPost, "/api/v1/deposits/intents", map[string]string{"amount": amount, "external_ref": ref}, nil, http.StatusCreated, "deposit intent")
	caller{client: adv.client}.must(http.MethodPost, "/api/v1/deposits/confirm", map[string]string{"external_ref": ref, "amount": amount}, nil, http.StatusOK, "deposit confirm")
	return adv
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d", workload, concurrency)

	start := time.Now()
	var expected uint64
	switch workload {
	case "accept":
		expected = runAccept()
	case "deposit":
		expected = runDeposit()
	default:
		log.Fatalf("unknown workload %q", workload)
	}
	printResults(time.Since(start), expected)
}

// runAccept fires one accept per applicant at a campaign with fewer slots
// than applicants. Exactly slots accepts may succeed.
func runAccept() uint64 {
	adv := fundedAdvertiser(fmt.Sprintf("%d.00", 10*slots))

	var camp struct {
		ID uuid.UUID `json:"id"`
	}
	adv.must(http.MethodPost, "/api/v1/campaigns", map[string]any{
		"title":              "Benchmark campaign",
		"description":        "Contended slots",
		"requirements":       "None",
		"category":           "bench",
		"platform":           "both",
		"budget_per_creator": "10.00",
		"max_creators":       slots,
		"deadline":           time.Now().Add(time.Hour).UTC(),
	}, &camp, http.StatusCreated, "create campaign")

	apps := make([]uuid.UUID, 0, concurrency)
	for i := 0; i < concurrency; i++ {
		creator := newCaller("content_creator")
		creator.must(http.MethodPost, "/api/v1/wallets", nil, nil, http.StatusCreated, "open creator wallet")
		var app struct {
			Application struct {
				ID uuid.UUID `json:"id"`
			} `json:"application"`
		}
		creator.must(http.MethodPost, "/api/v1/campaigns/"+camp.ID.String()+"/apply", map[string]any{
			"proposal":               "bench",
			"expected_delivery_date": time.Now().Add(30 * time.Minute).UTC(),
		}, &app, http.StatusCreated, "apply")
		apps = append(apps, app.Application.ID)
	}

	var wg sync.WaitGroup
	wg.Add(len(apps))
	for _, id := range apps {
		go func(id uuid.UUID) {
			defer wg.Done()
			code, err := adv.call(http.MethodPut, "/api/v1/applications/"+id.String()+"/respond", map[string]string{"status": "accepted"}, nil)
			record(code, err, false)
		}(id)
	}
	wg.Wait()
	return uint64(min(slots, concurrency))
}

// runDeposit replays one deposit confirmation from every worker at once.
// Exactly one replay may credit the wallet.
func runDeposit() uint64 {
	owner := newCaller("advertiser")
	owner.must(http.MethodPost, "/api/v1/wallets", nil, nil, http.StatusCreated, "open wallet")
	ref := "bench_" + uuid.NewString()
	owner.must(http.MethodPost, "/api/v1/deposits/intents", map[string]string{"amount": "25.00", "external_ref": ref}, nil, http.StatusCreated, "deposit intent")

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			var resp struct {
				Credited bool `json:"credited"`
			}
			webhook := caller{client: &http.Client{Timeout: 10 * time.Second}}
			code, err := webhook.call(http.MethodPost, "/api/v1/deposits/confirm", map[string]string{"external_ref": ref, "amount": "25.00"}, &resp)
			record(code, err, resp.Credited)
		}()
	}
	wg.Wait()
	return 1
}

func record(code int, err error, wasCredited bool) {
	if err != nil {
		atomic.AddUint64(&failOther, 1)
		return
	}
	atomic.AddUint64(&totalRequests, 1)
	switch code {
	case http.StatusOK:
		atomic.AddUint64(&success200, 1)
		if wasCredited {
			atomic.AddUint64(&credited, 1)
		}
	case http.StatusConflict:
		atomic.AddUint64(&fail409, 1)
	default:
		atomic.AddUint64(&failOther, 1)
	}
}

func printResults(d time.Duration, expected uint64) {
	total := atomic.LoadUint64(&totalRequests)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	fErr := atomic.LoadUint64(&failOther)
	cred := atomic.LoadUint64(&credited)

	effective := s200
	if workload == "deposit" {
		effective = cred
	}

	results := map[string]any{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"success_ok":        s200,
		"deposits_credited": cred,
		"aborts_conflict":   f409,
		"errors":            fErr,
		"expected_effects":  expected,
		"observed_effects":  effective,
		"consistent":        effective == expected,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
